// metrics.go — Prometheus метрики File Organizer.
// HTTP метрики: fo_http_requests_total, fo_http_request_duration_seconds.
// Бизнес-метрики экспортируются для обновления из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fo_http_requests_total",
			Help: "Общее количество HTTP-запросов к File Organizer",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fo_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к File Organizer в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики
var (
	// OperationsTotal — количество операций (upload, download, clear, reconcile, mirror_*).
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fo_operations_total",
			Help: "Общее количество операций File Organizer",
		},
		[]string{"operation", "result"},
	)

	// FilesOrganizedTotal — количество разложенных файлов по категориям.
	FilesOrganizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fo_files_organized_total",
			Help: "Количество файлов, разложенных по категориям",
		},
		[]string{"category"},
	)

	// BytesOrganizedTotal — суммарный объём разложенных файлов.
	BytesOrganizedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fo_bytes_organized_total",
			Help: "Суммарный объём разложенных файлов в байтах",
		},
	)

	// ReconcileIssues — количество расхождений последней сверки по типам.
	ReconcileIssues = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fo_reconcile_issues",
			Help: "Количество расхождений, найденных последней сверкой",
		},
		[]string{"type"},
	)

	// ReconcileLastRun — время завершения последней сверки (Unix seconds).
	ReconcileLastRun = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fo_reconcile_last_run_timestamp_seconds",
			Help: "Время завершения последней сверки",
		},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Лейбл path — шаблон маршрута chi ({category} вместо значения),
// что ограничивает кардинальность.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			path := routePattern(r)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// routePattern возвращает шаблон сработавшего маршрута chi.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
