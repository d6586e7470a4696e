package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/stratix/okrimport/internal/auth"
)

// ScopeMiddleware resolves the caller's tenant scope from gateway headers
// and stores it on the request context. Requests without a tenant are
// rejected before they reach any handler.
func ScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, err := uuid.Parse(r.Header.Get("X-Tenant-ID"))
		if err != nil {
			http.Error(w, "missing or invalid X-Tenant-ID header", http.StatusUnauthorized)
			return
		}
		userID, err := uuid.Parse(r.Header.Get("X-User-ID"))
		if err != nil {
			http.Error(w, "missing or invalid X-User-ID header", http.StatusUnauthorized)
			return
		}

		scope := auth.Scope{
			TenantID: tenantID,
			UserID:   userID,
			Role:     auth.Role(r.Header.Get("X-Role")),
		}
		if scope.Role == "" {
			scope.Role = auth.RoleManager
		}
		if raw := r.Header.Get("X-Area-ID"); raw != "" {
			areaID, err := uuid.Parse(raw)
			if err != nil {
				http.Error(w, "invalid X-Area-ID header", http.StatusUnauthorized)
				return
			}
			scope.AreaID = &areaID
		}

		next.ServeHTTP(w, r.WithContext(auth.ContextWithScope(r.Context(), scope)))
	})
}
