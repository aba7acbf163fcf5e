package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

type contextKey string

const skipAccessLogKey contextKey = "skip_access_log"

// AccessLogger emits one structured log line per request. Health and metrics
// probes can opt out through QuietFilter.
type AccessLogger struct {
	logger zerolog.Logger
}

func NewAccessLogger(logger zerolog.Logger) *AccessLogger {
	return &AccessLogger{
		logger: logger.With().Str("component", "http_access").Logger(),
	}
}

func (a *AccessLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if skip, ok := r.Context().Value(skipAccessLogKey).(bool); ok && skip {
			next.ServeHTTP(w, r)

			return
		}

		startTime := time.Now()
		wrapped := NewFlushableResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		duration := time.Since(startTime)

		logEvent := a.logger.Info()
		if wrapped.StatusCode() >= http.StatusInternalServerError {
			logEvent = a.logger.Error()
		}

		logEvent.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status_code", wrapped.StatusCode()).
			Int64("response_size_bytes", wrapped.BytesWritten()).
			Dur("duration", duration)

		if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
			logEvent.Str("request_id", requestID)
		}

		logEvent.Msg("request completed")
	})
}
