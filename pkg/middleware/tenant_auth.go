package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/autofix-platform/autofix/pkg/logging"
	"github.com/autofix-platform/autofix/pkg/tenant"
)

const (
	// ContextKeyTenantID is the gin context key for the tenant id
	ContextKeyTenantID = "tenantId"

	// HeaderTenantID carries the tenant id on incoming requests
	HeaderTenantID = "X-Tenant-ID"
)

// TenantConfig holds configuration for the tenant middleware
type TenantConfig struct {
	// Required rejects requests without a tenant header when true
	Required bool

	// DefaultTenantID is used when no header is provided and Required is false
	DefaultTenantID string
}

// DefaultTenantConfig returns a configuration that falls back to the
// default tenant
func DefaultTenantConfig() *TenantConfig {
	return &TenantConfig{
		Required:        false,
		DefaultTenantID: tenant.DefaultTenantID,
	}
}

// TenantContext extracts the tenant id from the request header and threads
// it through both the gin context and the request context, so repositories
// and the outbox see the same tenant the handler does.
func TenantContext(config *TenantConfig) gin.HandlerFunc {
	if config == nil {
		config = DefaultTenantConfig()
	}

	return func(c *gin.Context) {
		tenantID := c.GetHeader(HeaderTenantID)

		if tenantID == "" {
			if config.Required {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"code":    "MISSING_TENANT_CONTEXT",
					"message": "Tenant context is required",
				})
				return
			}
			tenantID = config.DefaultTenantID
		}

		c.Set(ContextKeyTenantID, tenantID)

		ctx := tenant.ToContext(c.Request.Context(), tenantID)
		ctx = logging.ContextWithTenantID(ctx, tenantID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetTenantID extracts the tenant id from a gin context
func GetTenantID(c *gin.Context) string {
	if val, exists := c.Get(ContextKeyTenantID); exists {
		if id, ok := val.(string); ok {
			return id
		}
	}
	return tenant.DefaultTenantID
}
