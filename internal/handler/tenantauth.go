package handler

import (
	"context"
	"net/http"

	"github.com/trackshield/platform/internal/domain"
	"github.com/trackshield/platform/internal/guard"
	"github.com/trackshield/platform/internal/service"
)

const tenantKey contextKeyType = "tenant"

// apiKeyHeader carries the tenant API key on every ingestion request.
const apiKeyHeader = "X-API-Key"

// TenantAuth admits the presented API key (metering quota in the same step)
// and applies the per-tenant burst rate limit. Admission failures are never
// retried for the caller; they surface as 401 or 429.
func TenantAuth(tenants *service.TenantService, limiter *guard.RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant, err := tenants.Admit(r.Context(), r.Header.Get(apiKeyHeader))
			if err != nil {
				RespondError(w, err)
				return
			}

			if result := limiter.Check(r.Context(), tenant.ID.String()); !result.Allowed {
				RespondError(w, domain.ErrRateLimited(result.Reason))
				return
			}

			ctx := context.WithValue(r.Context(), tenantKey, tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// TenantFrom extracts the admitted tenant from the request context.
func TenantFrom(ctx context.Context) *domain.Tenant {
	tenant, _ := ctx.Value(tenantKey).(*domain.Tenant)
	return tenant
}
