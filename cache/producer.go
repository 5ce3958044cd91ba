package cache

import (
	"context"

	"github.com/jonwraymond/cachelayer/keys"
)

// Producer is the closed set of things an orchestrated call can execute on
// a miss: a plain function, a structured query, or a remote call
// descriptor. The orchestrator is oblivious to which variant it received.
//
// The variant methods are unexported on purpose; new producer kinds belong
// in this package.
type Producer interface {
	// Invoke runs the underlying operation with the supplied arguments.
	Invoke(ctx context.Context, args []any) (any, error)

	// identity returns the construct name and the input the key generator
	// derives the default cache key from.
	identity() (name string, input any)

	// kind classifies the producer for per-key metrics.
	kind() string
}

// Func wraps a plain function as a producer.
type Func struct {
	// Name is the logical operation identity; distinct operations must use
	// distinct names or they will share cache keys.
	Name string
	Fn   func(ctx context.Context, args ...any) (any, error)
}

// Invoke runs the wrapped function.
func (f Func) Invoke(ctx context.Context, args []any) (any, error) {
	return f.Fn(ctx, args...)
}

func (f Func) identity() (string, any) { return f.Name, f.Name }
func (f Func) kind() string            { return "function" }

// QueryProducer wraps a structured query descriptor and its runner.
// Mutating queries are non-cacheable; the orchestrator degrades such calls
// to plain execution.
type QueryProducer struct {
	Query keys.Query
	Run   func(ctx context.Context, q keys.Query) (any, error)
}

// Invoke runs the query. Arguments are carried by the descriptor itself.
func (q QueryProducer) Invoke(ctx context.Context, _ []any) (any, error) {
	return q.Run(ctx, q.Query)
}

func (q QueryProducer) identity() (string, any) {
	return q.Query.Operation.String() + " query", q.Query
}
func (q QueryProducer) kind() string { return "query" }

// RemoteCall wraps a remote call descriptor as a producer.
type RemoteCall struct {
	Service string
	Method  string
	Call    func(ctx context.Context, args []any) (any, error)
}

// Invoke performs the remote call.
func (r RemoteCall) Invoke(ctx context.Context, args []any) (any, error) {
	return r.Call(ctx, args)
}

func (r RemoteCall) identity() (string, any) {
	name := r.Service + "." + r.Method
	return name, name
}
func (r RemoteCall) kind() string { return "remote-call" }

// Compile-time variant checks.
var (
	_ Producer = Func{}
	_ Producer = QueryProducer{}
	_ Producer = RemoteCall{}
)
