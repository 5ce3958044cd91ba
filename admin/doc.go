// Package admin exposes the operational data surface of a cache instance:
// entry enumeration and editing, metric toggles, readouts, and historical
// rollup queries, with JSON HTTP handlers for each operation. Authorization
// is deliberately out of scope; mount the handlers behind whatever access
// control the host service already has.
package admin
