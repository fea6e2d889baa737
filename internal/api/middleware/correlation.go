package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// CorrelationHeader carries the request correlation ID in both directions.
const CorrelationHeader = "X-Correlation-ID"

// maxCorrelationIDLength bounds client supplied IDs so they cannot bloat log lines.
const maxCorrelationIDLength = 128

// correlationIDKey is the context key for correlation ID.
type correlationIDKey struct{}

// CorrelationID creates a middleware that adds a correlation ID to each request.
// If the request already has a X-Correlation-ID header, it uses that value.
// Otherwise, it generates a new correlation ID.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := r.Header.Get(CorrelationHeader)

			if correlationID == "" || len(correlationID) > maxCorrelationIDLength {
				correlationID = uuid.NewString()
			}

			w.Header().Set(CorrelationHeader, correlationID)

			ctx := WithCorrelationIDContext(r.Context(), correlationID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithCorrelationIDContext returns a copy of ctx carrying correlationID.
func WithCorrelationIDContext(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, correlationID)
}

// GetCorrelationID extracts the correlation ID from the request context.
func GetCorrelationID(ctx context.Context) string {
	if correlationID, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return correlationID
	}

	return "unknown"
}
