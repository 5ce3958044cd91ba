// Package metrics tracks cache performance separately for read-through and
// direct (native) operations: counters, bounded latency samples, derived
// ratios computed at read time, an independent per-key table, and periodic
// persistence that merges the live window into hourly/daily/monthly
// rollups using weighted averages.
//
// Recording is gated by the live runtime configuration on every call. When
// metrics are disabled, readers receive nil, not zeroed structures - that
// distinguishes "never measured" from "measured and idle".
package metrics
