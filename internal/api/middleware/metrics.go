// metrics.go — Prometheus HTTP метрики docstore.
// Регистрирует метрики: ds_http_requests_total, ds_http_request_duration_seconds.
// Бизнес-метрики (ds_files_total, ds_operations_total) обновляются
// из сервисного слоя.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ds_http_requests_total",
			Help: "Общее количество HTTP-запросов к docstore",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ds_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к docstore в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Бизнес-метрики (экспортируются для обновления из сервисного слоя)
var (
	// FilesTotal — текущее количество записей о файлах.
	FilesTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ds_files_total",
			Help: "Текущее количество файлов в хранилище",
		},
	)

	// OperationsTotal — количество файловых операций по типу и результату.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ds_operations_total",
			Help: "Общее количество файловых операций",
		},
		[]string{"operation", "result"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newStatusRecorder(w)
			next.ServeHTTP(wrapped, r)

			status := strconv.Itoa(wrapped.statusCode)
			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(time.Since(start).Seconds())
		})
	}
}

// statusRecorder — обёртка для перехвата статус-кода.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *statusRecorder) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет идентификатор файла на {id} для ограничения
// кардинальности метрик. Неизвестные пути схлопываются в "other".
// /upload/a1b2c3d4-e5f6-7890-abcd-ef1234567890 → /upload/{id}
func normalizePath(path string) string {
	switch path {
	case "/upload", "/health/live", "/health/ready", "/metrics",
		"/openapi.json", "/maintenance/reconcile":
		return path
	}

	if rest, ok := strings.CutPrefix(path, "/upload/"); ok && rest != "" && !strings.Contains(rest, "/") {
		if uuid.Validate(rest) == nil {
			return "/upload/{id}"
		}
		return "/upload/{invalid}"
	}
	return "other"
}
