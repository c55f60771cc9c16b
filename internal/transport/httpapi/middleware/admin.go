package middleware

import (
	"net/http"
	"strings"
)

// RequireAdmin lets through only sessions whose wallet is in addresses.
// It must run after JWTMiddleware. An empty list closes the routes entirely.
func RequireAdmin(addresses []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		allowed[strings.ToLower(strings.TrimSpace(a))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			address, ok := GetAddressFromContext(r.Context())
			if !ok {
				unauthorized(w, "missing session")
				return
			}
			if _, ok := allowed[strings.ToLower(address)]; !ok {
				writeError(w, http.StatusForbidden, "wallet is not allowed to perform maintenance", "FORBIDDEN")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
