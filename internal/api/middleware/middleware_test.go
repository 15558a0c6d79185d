package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func TestRateLimit_OnlyGuardedRoutes(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(RateLimit(0.001, 1, logger, "/api/upload"))
		r.Post("/api/upload", okHandler)
		r.Get("/api/stats", okHandler)
	})

	do := func(method, path string) int {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/upload"))
	assert.Equal(t, http.StatusTooManyRequests, do(http.MethodPost, "/api/upload"))
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/stats"))
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/stats"))
	assert.Contains(t, logs.String(), "Превышен лимит запросов")
}

func TestRateLimit_Disabled(t *testing.T) {
	mw := RateLimit(0, 0, slog.Default(), "/api/upload")
	h := mw(http.HandlerFunc(okHandler))

	for range 10 {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/upload", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_Body(t *testing.T) {
	// Шаблон маршрута известен только после роутинга, поэтому With, а не Use
	r := chi.NewRouter()
	r.With(RateLimit(0.001, 1, slog.Default(), "/upload")).Post("/upload", okHandler)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/upload", nil))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upload", nil))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.JSONEq(t, `{"error":"Too many upload requests"}`, rec.Body.String())
}

func TestRequestLogger_Levels(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/fail") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		okHandler(w, r)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Contains(t, logs.String(), "level=INFO")
	assert.Contains(t, logs.String(), "bytes=2")

	logs.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/fail", nil))
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "status=500")
}

func TestRequestLogger_AbortRepanics(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	h := RequestLogger(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))

	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/download", nil))
	})
	assert.Contains(t, logs.String(), "HTTP запрос прерван")
}

func TestMetricsMiddleware_RoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware())
	var pattern string
	r.Get("/download/{category}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		pattern = routePattern(r)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/download/PNG", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/download/{category}", pattern)
}
