// Package keys derives deterministic cache keys from heterogeneous inputs:
// plain strings, structured objects, query descriptors, and framework
// requests, optionally expanded through a placeholder template.
//
// Determinism is the load-bearing property: for a fixed input, context,
// template, and runtime configuration, Generate returns byte-identical
// output across calls and process restarts.
package keys
