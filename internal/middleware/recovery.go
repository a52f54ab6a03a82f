package middleware

import (
	"fmt"
	"io"
	"net/http"
	"runtime/debug"

	"github.com/vyrodovalexey/avaproxy/internal/observability"
)

// Recovery turns a panic in the handler chain into a 500 response and an
// error log entry carrying the stack. http.ErrAbortHandler is re-raised so
// the server aborts the connection.
func Recovery(logger observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && err == http.ErrAbortHandler { //nolint:errorlint // sentinel identity
					panic(v)
				}

				getMiddlewareMetrics().panicsRecovered.Inc()
				logger.WithContext(r.Context()).Error("panic recovered",
					observability.String("method", r.Method),
					observability.String("path", r.URL.Path),
					observability.String("panic", fmt.Sprint(v)),
					observability.ByteString("stack", debug.Stack()),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(w, `{"error":"internal server error"}`)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
