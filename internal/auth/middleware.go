package auth

import (
	"context"
	"encoding/json"
	"net/http"
)

type contextKey string

const principalKey contextKey = "principal"

func WithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// PrincipalFromContext returns the caller attached by the middleware, or nil.
func PrincipalFromContext(ctx context.Context) *Principal {
	if ctx == nil {
		return nil
	}
	principal, ok := ctx.Value(principalKey).(*Principal)
	if !ok {
		return nil
	}
	return principal
}

// Optional attaches the caller when a valid token is present and otherwise
// lets the request through anonymously.
func (v *Verifier) Optional(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principal, err := v.Verify(BearerToken(r.Header.Get("Authorization"))); err == nil {
			r = r.WithContext(WithPrincipal(r.Context(), principal))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects requests without a valid token with 401.
func (v *Verifier) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := v.Verify(BearerToken(r.Header.Get("Authorization")))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// RequireAdmin is RequireUser plus a 403 for callers without the admin role.
func (v *Verifier) RequireAdmin(next http.Handler) http.Handler {
	return v.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if principal := PrincipalFromContext(r.Context()); principal == nil || !principal.IsAdmin {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message}) //nolint:errcheck
}
