package cache

import "errors"

// Sentinel errors for the caching layer.
var (
	ErrNilStore    = errors.New("cache: store is nil")
	ErrNilProducer = errors.New("cache: producer is nil")
)

// CacheError records one recoverable storage failure observed during an
// orchestrated call: which operation failed and why. These are collected
// into the result envelope instead of failing the call, unless the caller
// opted into FailOnErrors.
type CacheError struct {
	Operation string `json:"operation"`
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

func newCacheError(operation string, err error) CacheError {
	return CacheError{Operation: operation, Message: err.Error(), Err: err}
}

func (e CacheError) Error() string {
	return "cache: " + e.Operation + " failed: " + e.Message
}

func (e CacheError) Unwrap() error {
	return e.Err
}
