package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// corsMaxAge is how long browsers may cache a preflight answer, in seconds
const corsMaxAge = 600

// CORS admits the dApp origins. Sessions travel as bearer tokens, so cookies
// are never shared cross-origin. A "*" entry admits any origin.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:         corsMaxAge,
	})
}
