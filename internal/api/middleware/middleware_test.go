package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satstac/stac-sentinel/internal/logging"
)

func TestCorrelationID(t *testing.T) {
	var seen string

	handler := CorrelationID()(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rec.Header().Get(CorrelationHeader))
	})

	t.Run("propagated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(CorrelationHeader, "scene-42")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "scene-42", seen)
		assert.Equal(t, "scene-42", rec.Header().Get(CorrelationHeader))
	})

	t.Run("oversized header replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(CorrelationHeader, strings.Repeat("x", maxCorrelationIDLength+1))

		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Len(t, seen, 36)
	})
}

func TestGetCorrelationID_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Equal(t, "unknown", GetCorrelationID(req.Context()))
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer

	logger := logging.NewWithWriter(&buf, slog.LevelInfo)

	handler := Apply(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), WithCorrelationID(), WithRecovery(logger))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/explode", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, ProblemContentType, rec.Header().Get("Content-Type"))

	var problem map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	assert.Equal(t, "/explode", problem["instance"])
	assert.Equal(t, "Internal Server Error", problem["title"])

	assert.Contains(t, buf.String(), "HTTP request panic recovered")
	assert.Contains(t, buf.String(), `"panic":"boom"`)
}

func TestRecovery_AbortHandlerRepanics(t *testing.T) {
	handler := Recovery(slog.New(slog.DiscardHandler))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := logging.NewWithWriter(&buf, slog.LevelInfo)

	var fromCtx *slog.Logger

	handler := Apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = logging.FromContext(r.Context())

		w.WriteHeader(http.StatusAccepted)
		w.WriteHeader(http.StatusTeapot)
	}), WithCorrelationID(), WithRequestLogger(logger))

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(CorrelationHeader, "abc")

	handler.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, fromCtx)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

	assert.Equal(t, "HTTP request completed", entry["msg"])
	assert.Equal(t, "abc", entry["correlation_id"])
	assert.InDelta(t, http.StatusAccepted, entry["status_code"], 0)
}

func TestWithMaxBodySize(t *testing.T) {
	var readErr error

	handler := Apply(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}), WithMaxBodySize(4))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))

	var maxErr *http.MaxBytesError
	assert.ErrorAs(t, readErr, &maxErr)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader("012")))
	assert.NoError(t, readErr)
}

func TestApply_Order(t *testing.T) {
	var order []string

	mark := func(name string) Option {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	handler := Apply(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mark("first"), mark("second"))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"first", "second", "handler"}, order)
}
