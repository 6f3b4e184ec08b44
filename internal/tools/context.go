package tools

import "context"

// TenantContext carries the per-turn tenant/session identifiers that a
// tool's Execute needs but that its JSON-schema arguments never expose
// directly to the LLM. The engine resolves this once per inbound message
// and injects it into the context passed to Run, so every concrete tool can
// recover it without threading it through the provider.Tool interface.
type TenantContext struct {
	BusinessID    string
	OwnerUserID   string
	BranchID      string
	CustomerPhone string
	Platform      string
	SessionID     string
	BusinessType  string
	Timezone      string
}

type tenantContextKey struct{}

// WithTenant attaches tc to ctx for downstream tool executors to recover
// via TenantFromContext.
func WithTenant(ctx context.Context, tc TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tc)
}

// TenantFromContext recovers the TenantContext attached by WithTenant. ok
// is false if the engine never attached one, which a tool should treat as
// an internal error rather than silently operating tenant-less.
func TenantFromContext(ctx context.Context) (TenantContext, bool) {
	tc, ok := ctx.Value(tenantContextKey{}).(TenantContext)
	return tc, ok
}
