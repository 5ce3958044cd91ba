package metrics

// Outcome buckets latency samples for read-through operations. Native
// operations are counted but never latency-sampled; the hit/miss cost
// asymmetry is the operationally interesting signal.
type Outcome int

const (
	OutcomeHit Outcome = iota
	OutcomeMiss
	OutcomeSet
	OutcomeDelete
)

func (o Outcome) String() string {
	switch o {
	case OutcomeHit:
		return "hit"
	case OutcomeMiss:
		return "miss"
	case OutcomeSet:
		return "set"
	case OutcomeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// outcomes enumerates every latency bucket.
var outcomes = []Outcome{OutcomeHit, OutcomeMiss, OutcomeSet, OutcomeDelete}

// NativeOp identifies a direct key-value operation.
type NativeOp int

const (
	NativeSet NativeOp = iota
	NativeGet
	NativeDelete
	NativeClear
	NativeDeleteByTags
)

func (op NativeOp) String() string {
	switch op {
	case NativeSet:
		return "set"
	case NativeGet:
		return "get"
	case NativeDelete:
		return "delete"
	case NativeClear:
		return "clear"
	case NativeDeleteByTags:
		return "deleteByTags"
	default:
		return "unknown"
	}
}

// Counters is the counter block shared by the aggregate window, per-key
// entries, and historical rollups.
type Counters struct {
	Hits    uint64 `json:"hits" bun:"hits"`
	Misses  uint64 `json:"misses" bun:"misses"`
	Sets    uint64 `json:"sets" bun:"sets"`
	Deletes uint64 `json:"deletes" bun:"deletes"`
	Errors  uint64 `json:"errors" bun:"errors"`

	NativeSets         uint64 `json:"nativeSets" bun:"native_sets"`
	NativeGets         uint64 `json:"nativeGets" bun:"native_gets"`
	NativeDeletes      uint64 `json:"nativeDeletes" bun:"native_deletes"`
	NativeClears       uint64 `json:"nativeClears" bun:"native_clears"`
	NativeDeleteByTags uint64 `json:"nativeDeleteByTags" bun:"native_delete_by_tags"`
	NativeErrors       uint64 `json:"nativeErrors" bun:"native_errors"`
}

// TotalRequests is the number of orchestrated lookups: hits plus misses.
// Recoverable errors are counted separately and do not enter the ratio.
func (c Counters) TotalRequests() uint64 {
	return c.Hits + c.Misses
}

// add folds other into c.
func (c *Counters) add(other Counters) {
	c.Hits += other.Hits
	c.Misses += other.Misses
	c.Sets += other.Sets
	c.Deletes += other.Deletes
	c.Errors += other.Errors
	c.NativeSets += other.NativeSets
	c.NativeGets += other.NativeGets
	c.NativeDeletes += other.NativeDeletes
	c.NativeClears += other.NativeClears
	c.NativeDeleteByTags += other.NativeDeleteByTags
	c.NativeErrors += other.NativeErrors
}

// empty reports whether no operation has been counted.
func (c Counters) empty() bool {
	return c == Counters{}
}

func (c *Counters) bumpNative(op NativeOp) {
	switch op {
	case NativeSet:
		c.NativeSets++
	case NativeGet:
		c.NativeGets++
	case NativeDelete:
		c.NativeDeletes++
	case NativeClear:
		c.NativeClears++
	case NativeDeleteByTags:
		c.NativeDeleteByTags++
	}
}
