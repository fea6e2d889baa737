package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/satstac/stac-sentinel/internal/api/middleware"
	"github.com/satstac/stac-sentinel/internal/collections"
	"github.com/satstac/stac-sentinel/internal/logging"
	"github.com/satstac/stac-sentinel/internal/sentinel"
	"github.com/satstac/stac-sentinel/internal/stac"
)

const (
	healthCheckTimeout    = 2 * time.Second
	contentTypeJSON       = "application/json"
	contentTypeGeoJSON    = "application/geo+json"
	versionHeader         = "X-Stac-Sentinel-Version"
	serviceName           = "stac-sentinel"
	queryBaseURL          = "base_url"
	queryMetadataURL      = "metadata_url"
	queryKey              = "key"
	collectionPathSegment = "collection"
)

type (
	// HealthStatus represents the health check response structure.
	HealthStatus struct {
		Status      string `json:"status"`
		ServiceName string `json:"serviceName"`
		Version     string `json:"version"`
		StacVersion string `json:"stacVersion"`
		Uptime      string `json:"uptime,omitempty"`
	}

	// CollectionSummary describes one registered collection.
	CollectionSummary struct {
		ID          string                `json:"id"`
		Title       string                `json:"title,omitempty"`
		Description string                `json:"description,omitempty"`
		License     string                `json:"license,omitempty"`
		Family      collections.Family    `json:"family"`
		Extensions  []string              `json:"stac_extensions,omitempty"` //nolint: tagliatelle
		Endpoints   collections.Endpoints `json:"endpoints"`
		Links       []stac.Link           `json:"links"`
	}

	// CollectionList is the body of GET /api/v1/collections.
	CollectionList struct {
		Collections []CollectionSummary `json:"collections"`
	}

	// Route represents an HTTP route configuration with a path and handler.
	Route struct {
		Path    string
		Handler http.HandlerFunc
	}
)

// setupRoutes sets up all HTTP routes for the API server.
func (s *Server) setupRoutes(mux *http.ServeMux) {
	s.registerRoutes(
		mux,
		Route{"GET /ping", s.handlePing},     // K8s liveness probe
		Route{"GET /ready", s.handleReady},   // K8s readiness probe
		Route{"GET /health", s.handleHealth}, // status, uptime, version
		Route{"GET /api/v1/collections", s.handleListCollections},
		Route{"GET /api/v1/collections/{collection}", s.handleGetCollection},
		Route{"POST /api/v1/collections/{collection}/items", s.handleTransform},
		Route{"/", s.handleNotFound},
	)
}

func (s *Server) registerRoutes(mux *http.ServeMux, routes ...Route) {
	for _, route := range routes {
		mux.Handle(route.Path, route.Handler)
	}
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Header().Set(versionHeader, s.config.Version)
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("pong")); err != nil {
		s.logger.Error("Failed to write ping response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}

// handleReady responds to readiness probes. Without a configured item index the
// service has no backing store and is always ready.
//
// Response codes:
//   - 200 OK: the index (if any) answered a ping
//   - 503 Service Unavailable: the index is unreachable
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	status, body := http.StatusOK, "ready"

	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := s.health.HealthCheck(ctx); err != nil {
			logging.FromContext(r.Context()).Error("Storage health check failed",
				slog.String("error", err.Error()),
			)

			status, body = http.StatusServiceUnavailable, "storage unavailable"
		}
	}

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)

	if _, err := w.Write([]byte(body)); err != nil {
		s.logger.Error("Failed to write ready response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var uptime string

	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second).String()
	}

	w.Header().Set(versionHeader, s.config.Version)

	s.writeJSON(w, r, http.StatusOK, contentTypeJSON, HealthStatus{
		Status:      "healthy",
		ServiceName: serviceName,
		Version:     s.config.Version,
		StacVersion: stac.Version,
		Uptime:      uptime,
	})
}

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	list := CollectionList{Collections: make([]CollectionSummary, 0)}

	for _, col := range s.registry.All() {
		list.Collections = append(list.Collections, summarize(col))
	}

	s.writeJSON(w, r, http.StatusOK, contentTypeJSON, list)
}

func (s *Server) handleGetCollection(w http.ResponseWriter, r *http.Request) {
	col, err := s.registry.Get(r.PathValue(collectionPathSegment))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, NotFound(err.Error()))

		return
	}

	s.writeJSON(w, r, http.StatusOK, contentTypeJSON, summarize(col))
}

// handleTransform converts the metadata document in the request body into an Item.
//
// Asset hrefs are resolved against ?base_url= (and ?metadata_url= for metadata files,
// defaulting to base_url). Alternatively ?key= names the metadata file's key on the
// collection's endpoints, the same way batch ingestion resolves scenes.
func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromContext(r.Context())

	col, err := s.registry.Get(r.PathValue(collectionPathSegment))
	if err != nil {
		WriteErrorResponse(w, r, s.logger, NotFound(err.Error()))

		return
	}

	base, problem := resolveBase(col, r)
	if problem != nil {
		WriteErrorResponse(w, r, s.logger, problem)

		return
	}

	doc, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			WriteErrorResponse(w, r, s.logger, PayloadTooLarge(err.Error()))

			return
		}

		WriteErrorResponse(w, r, s.logger, BadRequest("Failed to read request body"))

		return
	}

	if len(doc) == 0 {
		WriteErrorResponse(w, r, s.logger, BadRequest("Request body must contain a metadata document"))

		return
	}

	item, err := s.converter.Convert(r.Context(), col, doc, base)
	if err != nil {
		problem := problemFor(err)

		logger.Warn("Failed to convert scene",
			slog.String("collection", col.ID),
			slog.Int("status", problem.Status),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, problem)

		return
	}

	if s.sink != nil {
		if err := s.sink.Write(r.Context(), item); err != nil {
			logger.Error("Failed to write item to sink",
				slog.String("item_id", item.ID),
				slog.String("error", err.Error()),
			)

			WriteErrorResponse(w, r, s.logger, BadGateway("Item was converted but could not be published"))

			return
		}
	}

	logger.Info("Converted scene",
		slog.String("collection", col.ID),
		slog.String("item_id", item.ID),
	)

	s.writeJSON(w, r, http.StatusOK, contentTypeGeoJSON, item)
}

func resolveBase(col *collections.Collection, r *http.Request) (sentinel.Base, *ProblemDetail) {
	query := r.URL.Query()

	if key := query.Get(queryKey); key != "" {
		if query.Get(queryBaseURL) != "" {
			return sentinel.Base{}, BadRequest("Use either key or base_url, not both")
		}

		return sentinel.Base{Assets: col.AssetBase(key), Metadata: col.MetadataBase(key)}, nil
	}

	baseURL := query.Get(queryBaseURL)
	if baseURL == "" {
		return sentinel.Base{}, BadRequest("Query parameter base_url or key is required")
	}

	return sentinel.Base{Assets: baseURL, Metadata: query.Get(queryMetadataURL)}, nil
}

func summarize(col *collections.Collection) CollectionSummary {
	return CollectionSummary{
		ID:          col.ID,
		Title:       col.Title,
		Description: col.Description,
		License:     col.License,
		Family:      col.Family,
		Extensions:  col.Extensions,
		Endpoints:   col.Endpoints,
		Links:       []stac.Link{stac.CollectionLink(col.ID)},
	}
}

// writeJSON marshals before writing headers so encoding failures still produce a problem response.
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, contentType string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("Failed to encode response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)

		WriteErrorResponse(w, r, s.logger, InternalServerError("Failed to encode response"))

		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("Failed to write response",
			slog.String("correlation_id", middleware.GetCorrelationID(r.Context())),
			slog.String("error", err.Error()),
		)
	}
}

// handleNotFound returns RFC 7807 compliant 404 responses for unknown endpoints.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteErrorResponse(w, r, s.logger, NotFound("The requested resource was not found"))
}
