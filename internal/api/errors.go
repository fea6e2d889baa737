package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/satstac/stac-sentinel/internal/api/middleware"
	"github.com/satstac/stac-sentinel/internal/collections"
	"github.com/satstac/stac-sentinel/internal/fetch"
	"github.com/satstac/stac-sentinel/internal/geo"
	"github.com/satstac/stac-sentinel/internal/sentinel"
	"github.com/satstac/stac-sentinel/internal/stac"
)

// ProblemDetail represents an RFC 7807 Problem Details structure.
// See https://tools.ietf.org/html/rfc7807 for specification.
type ProblemDetail struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	Status        int    `json:"status"`
	Detail        string `json:"detail,omitempty"`
	Instance      string `json:"instance,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// NewProblemDetail creates a new RFC 7807 Problem Detail.
func NewProblemDetail(status int, title, detail string) *ProblemDetail {
	return &ProblemDetail{
		Type:   middleware.ProblemType(status),
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// WriteErrorResponse writes an RFC 7807 compliant error response.
func WriteErrorResponse(w http.ResponseWriter, r *http.Request, logger *slog.Logger, problem *ProblemDetail) {
	correlationID := middleware.GetCorrelationID(r.Context())

	if problem.CorrelationID == "" {
		problem.CorrelationID = correlationID
	}

	if problem.Instance == "" {
		problem.Instance = r.URL.Path
	}

	w.Header().Set("Content-Type", middleware.ProblemContentType)
	w.WriteHeader(problem.Status)

	if err := json.NewEncoder(w).Encode(problem); err != nil {
		logger.Error("Failed to encode error response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.String("method", r.Method),
			slog.Any("encode_error", err),
			slog.Int("status", problem.Status),
		)
	}
}

// InternalServerError creates a 500 Internal Server Error problem.
func InternalServerError(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusInternalServerError, "Internal Server Error", detail)
}

// BadRequest creates a 400 Bad Request problem.
func BadRequest(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusBadRequest, "Bad Request", detail)
}

// NotFound creates a 404 Not Found problem.
func NotFound(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusNotFound, "Not Found", detail)
}

// PayloadTooLarge creates a 413 Payload Too Large problem.
func PayloadTooLarge(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusRequestEntityTooLarge, "Payload Too Large", detail)
}

// UnprocessableEntity creates a 422 problem for documents that cannot be transformed.
func UnprocessableEntity(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusUnprocessableEntity, "Unprocessable Entity", detail)
}

// BadGateway creates a 502 problem for failures of upstream fetches or sinks.
func BadGateway(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusBadGateway, "Bad Gateway", detail)
}

// GatewayTimeout creates a 504 problem for upstream fetches that ran out of time.
func GatewayTimeout(detail string) *ProblemDetail {
	return NewProblemDetail(http.StatusGatewayTimeout, "Gateway Timeout", detail)
}

// transformErrors are caused by the submitted document itself.
var transformErrors = []error{
	sentinel.ErrMissingField,
	sentinel.ErrInvalidField,
	sentinel.ErrUnknownFamily,
	sentinel.ErrFamilyMismatch,
	geo.ErrUnsupportedCRS,
	geo.ErrCoordinateRange,
	geo.ErrDegenerateRing,
	stac.ErrInvalidItem,
}

// problemFor maps a conversion error to its response.
func problemFor(err error) *ProblemDetail {
	var (
		statusErr *fetch.StatusError
		urlErr    *url.Error
	)

	switch {
	case errors.Is(err, collections.ErrUnsupportedCollection):
		return NotFound(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return GatewayTimeout(err.Error())
	case errors.As(err, &statusErr), errors.As(err, &urlErr),
		errors.Is(err, fetch.ErrBodyTooLarge), errors.Is(err, fetch.ErrUnsupportedScheme),
		errors.Is(err, fetch.ErrNoPresigner):
		return BadGateway(err.Error())
	}

	for _, target := range transformErrors {
		if errors.Is(err, target) {
			return UnprocessableEntity(err.Error())
		}
	}

	return InternalServerError("Failed to convert scene metadata")
}
