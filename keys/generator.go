package keys

import (
	"context"
	"sort"
	"strings"

	"github.com/jonwraymond/cachelayer/config"
)

// QueryOp classifies a structured query descriptor.
type QueryOp int

const (
	OpSelect QueryOp = iota
	OpInsert
	OpUpdate
	OpDelete
)

func (op QueryOp) String() string {
	switch op {
	case OpSelect:
		return "select"
	case OpInsert:
		return "insert"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Query is a structured query descriptor. Only read queries are cacheable;
// mutating operations must never be served from cache.
type Query struct {
	Operation QueryOp
	Statement string
	Params    map[string]any
}

// Cacheable reports whether results of this query may be cached.
func (q Query) Cacheable() bool {
	return q.Operation == OpSelect
}

// Cacheability lets an input opt out of caching. Generate returns
// ("", false) for inputs reporting false; callers treat that as
// "do not cache".
type Cacheability interface {
	Cacheable() bool
}

// Request is the narrow extraction contract for framework request objects.
// The generator consumes requests only through this interface and never
// sees the host framework's types.
type Request interface {
	Path() string
	Query() map[string]string
	Params() map[string]string
	Tenant() string
	User() string
	Locale() string
}

// Generator derives deterministic cache keys. Awareness flags are read
// live from the runtime configuration on every call.
type Generator struct {
	runtime *config.Manager
}

// NewGenerator creates a Generator bound to the given runtime configuration.
func NewGenerator(runtime *config.Manager) *Generator {
	return &Generator{runtime: runtime}
}

// Generate derives a key for input. The boolean is false when the input is
// non-cacheable; callers must not read or write the cache for that call.
//
// String inputs are used verbatim as the hash component, preserving
// operator-supplied readability. Structured inputs are canonicalized and
// digested. Requests additionally fold in tenant/user/locale when the
// corresponding awareness flag is enabled.
func (g *Generator) Generate(ctx context.Context, input any, kctx *Context, template string) (string, bool) {
	base, ok := g.baseKey(ctx, input)
	if !ok {
		return "", false
	}
	if template == "" {
		return base, true
	}
	return Expand(ctx, template, base, kctx), true
}

func (g *Generator) baseKey(ctx context.Context, input any) (string, bool) {
	if c, ok := input.(Cacheability); ok && !c.Cacheable() {
		return "", false
	}

	switch v := input.(type) {
	case string:
		return v, true
	case Request:
		return g.requestKey(ctx, v), true
	case Query:
		return "q:" + Digest(v), true
	case *Query:
		return "q:" + Digest(*v), true
	default:
		return Digest(input), true
	}
}

// requestKey folds the request's path, query, and params into a digest,
// prefixed with the ambient dimensions the awareness flags select.
func (g *Generator) requestKey(ctx context.Context, req Request) string {
	var b strings.Builder
	b.WriteString(req.Path())
	b.WriteByte('?')
	writeSortedPairs(&b, req.Query())
	b.WriteByte('#')
	writeSortedPairs(&b, req.Params())

	rt := g.runtime.Current()
	parts := make([]string, 0, 4)
	if rt.TenantAware {
		tenant := req.Tenant()
		if tenant == "" {
			tenant = TenantFrom(ctx, nil)
		}
		parts = append(parts, tenant)
	}
	if rt.UserAware {
		user := req.User()
		if user == "" {
			user = UserFrom(ctx, nil)
		}
		parts = append(parts, user)
	}
	if rt.LocaleAware {
		locale := req.Locale()
		if locale == "" {
			locale = LocaleFrom(ctx, nil)
		}
		parts = append(parts, locale)
	}

	parts = append(parts, Digest(b.String()))
	return "req:" + strings.Join(parts, ":")
}

func writeSortedPairs(b *strings.Builder, m map[string]string) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(m[name])
	}
}
