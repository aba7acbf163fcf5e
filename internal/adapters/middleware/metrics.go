package middleware

import (
	"net/http"
	"time"

	"github.com/m-silliman/svc-queue-monitor/internal/infrastructure"
)

type MetricsMiddleware struct {
	metrics infrastructure.Metrics
}

func NewMetricsMiddleware(metrics infrastructure.Metrics) *MetricsMiddleware {
	return &MetricsMiddleware{
		metrics: metrics,
	}
}

func (m *MetricsMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()
		wrapped := NewFlushableResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		m.metrics.RecordHTTPRequest(r.Method, r.URL.Path, wrapped.StatusCode(), time.Since(startTime))
	})
}
