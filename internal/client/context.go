package client

import "context"

type contextKey string

const (
	withoutTenantKey       contextKey = "without_tenant"
	withoutInvalidationKey contextKey = "without_invalidation"
)

// WithoutTenant marks requests made with ctx as cross tenant: the active
// tenant header is not attached. A header set explicitly on the request is
// still sent.
func WithoutTenant(ctx context.Context) context.Context {
	return context.WithValue(ctx, withoutTenantKey, true)
}

func isWithoutTenant(ctx context.Context) bool {
	v, _ := ctx.Value(withoutTenantKey).(bool)
	return v
}

// withoutInvalidation stops a 401 response from dropping the session, used
// for the login call where a 401 says nothing about the current token.
func withoutInvalidation(ctx context.Context) context.Context {
	return context.WithValue(ctx, withoutInvalidationKey, true)
}

func isWithoutInvalidation(ctx context.Context) bool {
	v, _ := ctx.Value(withoutInvalidationKey).(bool)
	return v
}
