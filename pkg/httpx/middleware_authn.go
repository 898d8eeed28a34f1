package httpx

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/consign/pkg/jwtx"
	"github.com/aussiebroadwan/consign/pkg/slogx"
)

// AuthnMiddleware requires a valid bearer session token and puts its claims
// on the request context.
func AuthnMiddleware(v jwtx.Verifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(authz, "Bearer ") {
				WriteBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))

			claims, err := v.Verify(raw)
			switch {
			case errors.Is(err, jwtx.ErrExpired):
				WriteBearerError(w, "token expired")
				return
			case err != nil:
				log.Warn("jwt verify failed", "err", err)
				WriteBearerError(w, "token verification failed")
				return
			}

			next.ServeHTTP(w, r.WithContext(contextWithAuth(ctx, claims)))
		})
	}
}

// WriteBearerError answers 401 with an RFC 6750 challenge and the same
// description in the JSON body.
func WriteBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate",
		`Bearer error="invalid_token", error_description="`+strings.ReplaceAll(desc, `"`, `'`)+`"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}
