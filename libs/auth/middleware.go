package auth

import (
	"net/http"
	"strings"

	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
)

// Authenticate attaches the caller Identity to the request context when a valid
// bearer token is present. Requests without an Authorization header pass through
// anonymously; the domain layer decides whether anonymity is acceptable.
func Authenticate(v *Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}
			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid Authorization header")
				return
			}

			id, err := v.Verify(token)
			if err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(next http.Handler, roles ...Role) http.Handler {
	allowed := map[Role]struct{}{}
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFromContext(r.Context())
		if !ok {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
			return
		}
		if _, ok := allowed[id.Role]; !ok {
			httpx.WriteError(w, http.StatusForbidden, "forbidden", "role "+id.Role.String()+" may not call this endpoint")
			return
		}
		next.ServeHTTP(w, r)
	})
}
