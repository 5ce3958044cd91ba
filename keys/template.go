package keys

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Expand substitutes template placeholders left-to-right:
//
//	{hash}    the supplied base hash
//	{tenant}  resolved tenant (explicit context, ambient, default)
//	{user}    resolved user
//	{locale}  resolved locale
//	{args[n]} the n-th positional argument; objects are digested,
//	          scalars are stringified
//
// Unknown or unresolvable placeholders expand to the empty string.
// Expansion never fails.
func Expand(ctx context.Context, template, hash string, kctx *Context) string {
	var b strings.Builder
	b.Grow(len(template) + len(hash))

	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			b.WriteString(rest)
			return b.String()
		}
		close += open

		b.WriteString(rest[:open])
		b.WriteString(resolvePlaceholder(ctx, rest[open+1:close], hash, kctx))
		rest = rest[close+1:]
	}
}

func resolvePlaceholder(ctx context.Context, token, hash string, kctx *Context) string {
	switch token {
	case "hash":
		return hash
	case "tenant":
		return TenantFrom(ctx, kctx)
	case "user":
		return UserFrom(ctx, kctx)
	case "locale":
		return LocaleFrom(ctx, kctx)
	}

	if inner, ok := strings.CutPrefix(token, "args["); ok {
		if idx, ok := strings.CutSuffix(inner, "]"); ok {
			return resolveArg(ctx, idx, kctx)
		}
	}
	return ""
}

func resolveArg(ctx context.Context, idx string, kctx *Context) string {
	n, err := strconv.Atoi(idx)
	if err != nil || n < 0 {
		return ""
	}
	args := ArgsFrom(ctx, kctx)
	if n >= len(args) {
		return ""
	}

	arg := args[n]
	switch arg.(type) {
	case nil:
		return ""
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return fmt.Sprintf("%v", arg)
	default:
		return Digest(arg)
	}
}
