package middleware

import (
	"context"
	"net/http"

	"github.com/juspay/airborne/internal/apierr"
)

// Headers a trusted upstream gateway is expected to set once it has
// resolved the caller's identity. spec.md §1 places IdP integration and
// group-based RBAC out of scope for this service; PrincipalMiddleware's
// only job is to lift the already-resolved Principal out of those
// headers onto the request context, not to authenticate anyone.
const (
	PrincipalOrgHeader  = "X-Principal-Org"
	PrincipalAppHeader  = "X-Principal-App"
	PrincipalRoleHeader = "X-Principal-Role"
)

// PrincipalMiddleware extracts Principal{org, app, role} from trusted
// headers. A request with no principal headers at all is let through
// with an empty Principal so public endpoints (the serve endpoint, the
// health check) keep working; RequireRole is what actually enforces
// presence for endpoints that need it.
func PrincipalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := Principal{
			Org:  r.Header.Get(PrincipalOrgHeader),
			App:  r.Header.Get(PrincipalAppHeader),
			Role: r.Header.Get(PrincipalRoleHeader),
		}
		ctx := context.WithValue(r.Context(), PrincipalContextKey, p)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPrincipal extracts the Principal placed on the context by
// PrincipalMiddleware.
func GetPrincipal(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(PrincipalContextKey).(Principal)
	return p, ok
}

// RequireRole rejects requests whose principal is absent (Unauthorized,
// spec.md §7) or below requiredRole's level (Forbidden, spec.md §7).
func RequireRole(requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			p, ok := GetPrincipal(r.Context())
			if !ok || p.Role == "" {
				apierr.WriteError(w, apierr.Unauthorized("missing principal").WithRequestID(requestID))
				return
			}
			if !HasRequiredRole(p.Role, requiredRole) {
				apierr.WriteError(w, apierr.Forbidden("role "+p.Role+" below required level "+requiredRole).WithRequestID(requestID))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly is a convenience wrapper for admin-only routes.
func AdminOnly(next http.Handler) http.Handler {
	return RequireRole(RoleAdmin)(next)
}

// OperatorOrAbove is a convenience wrapper for operator+ routes.
func OperatorOrAbove(next http.Handler) http.Handler {
	return RequireRole(RoleOperator)(next)
}
