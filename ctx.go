package accounts

import "context"

type contextKey string

const identityContextKey contextKey = "accounts:identity"

// WithIdentity returns a context carrying the verified caller.
func WithIdentity(ctx context.Context, ident Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, ident)
}

// IdentityFromContext retrieves the verified caller, if any.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityContextKey).(Identity)
	return ident, ok
}
