package httpx

import (
	"net/http"
	"slices"
)

// RequireRole lets the request through only when the token's role is one of
// roles. It must run after AuthnMiddleware.
func RequireRole(roles ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				WriteBearerError(w, "missing bearer token")
				return
			}

			if !slices.Contains(roles, claims.Role) {
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
				WriteError(w, http.StatusForbidden, "insufficient_role", "this action needs a different role")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
