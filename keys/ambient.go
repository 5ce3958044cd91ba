package keys

import "context"

// Fixed defaults used when neither an explicit Context nor the ambient
// call context carries a value.
const (
	DefaultTenant = "global"
	DefaultUser   = "anonymous"
	DefaultLocale = "en"
)

// Context carries the explicit ambient dimensions for one call: who is
// asking, where, and with which positional arguments.
type Context struct {
	Tenant string
	User   string
	Locale string
	Args   []any
}

type (
	tenantContextKey struct{}
	userContextKey   struct{}
	localeContextKey struct{}
	argsContextKey   struct{}
)

// WithTenant attaches a tenant to the ambient call context.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenant)
}

// WithUser attaches a user to the ambient call context.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// WithLocale attaches a locale to the ambient call context.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeContextKey{}, locale)
}

// WithArgs attaches positional arguments to the ambient call context for
// {args[n]} template expansion.
func WithArgs(ctx context.Context, args ...any) context.Context {
	return context.WithValue(ctx, argsContextKey{}, args)
}

// TenantFrom resolves the tenant: explicit Context first, then ambient
// context, then DefaultTenant.
func TenantFrom(ctx context.Context, kctx *Context) string {
	if kctx != nil && kctx.Tenant != "" {
		return kctx.Tenant
	}
	if ctx != nil {
		if tenant, ok := ctx.Value(tenantContextKey{}).(string); ok && tenant != "" {
			return tenant
		}
	}
	return DefaultTenant
}

// UserFrom resolves the user with the same precedence as TenantFrom.
func UserFrom(ctx context.Context, kctx *Context) string {
	if kctx != nil && kctx.User != "" {
		return kctx.User
	}
	if ctx != nil {
		if user, ok := ctx.Value(userContextKey{}).(string); ok && user != "" {
			return user
		}
	}
	return DefaultUser
}

// LocaleFrom resolves the locale with the same precedence as TenantFrom.
func LocaleFrom(ctx context.Context, kctx *Context) string {
	if kctx != nil && kctx.Locale != "" {
		return kctx.Locale
	}
	if ctx != nil {
		if locale, ok := ctx.Value(localeContextKey{}).(string); ok && locale != "" {
			return locale
		}
	}
	return DefaultLocale
}

// ArgsFrom resolves positional arguments: explicit Context first, then
// ambient context, else nil.
func ArgsFrom(ctx context.Context, kctx *Context) []any {
	if kctx != nil && len(kctx.Args) > 0 {
		return kctx.Args
	}
	if ctx != nil {
		if args, ok := ctx.Value(argsContextKey{}).([]any); ok {
			return args
		}
	}
	return nil
}
