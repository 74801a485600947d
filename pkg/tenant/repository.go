package tenant

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
)

// RepositoryHelper provides tenant-aware query building for MongoDB
// repositories. Embed it in repository structs to scope queries by tenant.
type RepositoryHelper struct {
	// EnforceTenant when true makes WithTenantFilter fail on a missing
	// tenant context instead of falling back to the default tenant
	EnforceTenant bool
}

// NewRepositoryHelper creates a new RepositoryHelper
func NewRepositoryHelper(enforceTenant bool) *RepositoryHelper {
	return &RepositoryHelper{EnforceTenant: enforceTenant}
}

// WithTenantFilter adds a tenantId condition to a MongoDB query filter.
// The original filter is not modified.
func (h *RepositoryHelper) WithTenantFilter(ctx context.Context, filter bson.M) (bson.M, error) {
	tenantID, err := FromContext(ctx)
	if err != nil {
		if h.EnforceTenant {
			return nil, err
		}
		tenantID = DefaultTenantID
	}

	scoped := bson.M{}
	for k, v := range filter {
		scoped[k] = v
	}
	scoped["tenantId"] = tenantID

	return scoped, nil
}

// TenantID resolves the tenant for a write, honoring EnforceTenant
func (h *RepositoryHelper) TenantID(ctx context.Context) (string, error) {
	tenantID, err := FromContext(ctx)
	if err != nil {
		if h.EnforceTenant {
			return "", err
		}
		return DefaultTenantID, nil
	}
	return tenantID, nil
}
