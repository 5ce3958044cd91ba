// Package store defines the pluggable key-value adapter the caching layer
// is built on, along with in-memory, sharded, and file-backed implementations.
//
// Adapters own entries once written: TTL expiry is enforced here, not by the
// callers, and a missing key looks the same whether it expired, was deleted,
// or never existed.
package store
