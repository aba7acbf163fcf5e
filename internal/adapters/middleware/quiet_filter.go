package middleware

import (
	"context"
	"net/http"
)

// QuietFilter marks probe endpoints so the access logger skips them. Scraped
// paths like /health and /metrics would otherwise dominate the access log.
type QuietFilter struct {
	quietPaths map[string]struct{}
}

func NewQuietFilter(paths ...string) *QuietFilter {
	quiet := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		quiet[p] = struct{}{}
	}

	return &QuietFilter{quietPaths: quiet}
}

func (f *QuietFilter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := f.quietPaths[r.URL.Path]; ok {
			ctx := context.WithValue(r.Context(), skipAccessLogKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))

			return
		}

		next.ServeHTTP(w, r)
	})
}
