// Package tags resolves declarative tag specifications into concrete
// invalidation labels and maintains the reverse tag-to-keys index used for
// bulk invalidation.
//
// Resolution is pure: the same payload, params, and ambient context always
// yield the same tags, and a spec referencing absent data silently
// contributes nothing rather than failing the call.
package tags
