package middleware

import (
	"net/http"

	"github.com/throttled/throttled/v2"
	"github.com/throttled/throttled/v2/store/memstore"

	"github.com/m-silliman/svc-queue-monitor/internal/config"
	"github.com/m-silliman/svc-queue-monitor/internal/infrastructure"
)

// ThrottledRateLimitingMiddleware applies a per-client GCRA rate limit.
// Probe paths are exempt so scrapers never get throttled away.
type ThrottledRateLimitingMiddleware struct {
	limiter   throttled.HTTPRateLimiterCtx
	skipPaths map[string]struct{}
}

func NewThrottledRateLimitingMiddleware(cfg config.ThrottledRateLimitingConfig, logger infrastructure.Logger) (*ThrottledRateLimitingMiddleware, error) {
	store, err := memstore.NewCtx(cfg.MaxKeys)
	if err != nil {
		return nil, err
	}

	quota := throttled.RateQuota{
		MaxRate:  throttled.PerSec(cfg.RequestsPerSecond),
		MaxBurst: cfg.BurstSize,
	}

	rateLimiter, err := throttled.NewGCRARateLimiterCtx(store, quota)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	logger.Debug().
		Int("requests_per_second", cfg.RequestsPerSecond).
		Int("burst_size", cfg.BurstSize).
		Msg("rate limiting enabled")

	return &ThrottledRateLimitingMiddleware{
		limiter: throttled.HTTPRateLimiterCtx{
			RateLimiter: rateLimiter,
			VaryBy:      &throttled.VaryBy{RemoteAddr: true},
		},
		skipPaths: skip,
	}, nil
}

func (m *ThrottledRateLimitingMiddleware) Middleware(next http.Handler) http.Handler {
	limited := m.limiter.RateLimit(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := m.skipPaths[r.URL.Path]; ok {
			next.ServeHTTP(w, r)

			return
		}

		limited.ServeHTTP(w, r)
	})
}
