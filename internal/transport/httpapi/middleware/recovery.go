package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/earnx/earnx/pkg/logger"
)

// Recovery turns a handler panic into a JSON 500 and logs the stack.
// http.ErrAbortHandler is re-raised so the server can drop the connection.
func Recovery(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				log.WithContext(r.Context()).Error("panic recovered",
					"error", fmt.Sprint(rec),
					"route", r.Method+" "+r.URL.Path,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
