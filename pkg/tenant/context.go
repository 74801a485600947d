package tenant

import (
	"context"
	"errors"
)

type contextKey string

const tenantIDKey contextKey = "tenantId"

// DefaultTenantID is used when a request carries no tenant header and the
// service does not require one. Single-workshop deployments run entirely
// under this tenant.
const DefaultTenantID = "default"

var (
	ErrMissingTenantID    = errors.New("tenantId is required")
	ErrUnauthorizedAccess = errors.New("unauthorized access to tenant resource")
)

// FromContext extracts the tenant id from the context. Returns
// ErrMissingTenantID when none is set.
func FromContext(ctx context.Context) (string, error) {
	if v := ctx.Value(tenantIDKey); v != nil {
		if id, ok := v.(string); ok && id != "" {
			return id, nil
		}
	}
	return "", ErrMissingTenantID
}

// FromContextOrDefault extracts the tenant id, falling back to
// DefaultTenantID when none is set.
func FromContextOrDefault(ctx context.Context) string {
	if id, err := FromContext(ctx); err == nil {
		return id
	}
	return DefaultTenantID
}

// ToContext returns a context carrying the tenant id
func ToContext(ctx context.Context, tenantID string) context.Context {
	if tenantID == "" {
		return ctx
	}
	return context.WithValue(ctx, tenantIDKey, tenantID)
}
