package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recovery creates a middleware that recovers from panics and logs them.
// http.ErrAbortHandler is re-panicked so the server aborts the connection as usual.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				correlationID := GetCorrelationID(r.Context())

				logger.Error("HTTP request panic recovered",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("correlation_id", correlationID),
					slog.Any("panic", rec),
					slog.String("stack_trace", string(debug.Stack())),
				)

				detail := "An unexpected error occurred while processing the request"
				if err := writeProblem(w, r, http.StatusInternalServerError, detail); err != nil {
					logger.Error("Failed to encode error response",
						slog.Any("error", err),
						slog.String("correlation_id", correlationID),
					)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
