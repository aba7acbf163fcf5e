package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/m-silliman/svc-queue-monitor/internal/adapters/middleware"
	"github.com/m-silliman/svc-queue-monitor/internal/config"
	"github.com/m-silliman/svc-queue-monitor/internal/infrastructure"
)

// NewRouter wires the HTTP surface: connection management, queue and message
// operations, destructive actions, export and the event stream.
func NewRouter(
	handler *RequestHandler,
	cfg *config.ServiceConfig,
	logger infrastructure.Logger,
	metrics infrastructure.Metrics,
) (chi.Router, error) {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.NewAPIVersionMiddleware(cfg.AppConfig.APIVersion).Middleware)
	router.Use(middleware.NewMetricsMiddleware(metrics).Middleware)
	router.Use(middleware.NewQuietFilter("/health", "/metrics").Middleware)
	router.Use(middleware.NewAccessLogger(*logger.Logger).Middleware)

	if cfg.ThrottledRateLimiting.Enabled {
		rateLimiter, err := middleware.NewThrottledRateLimitingMiddleware(cfg.ThrottledRateLimiting, logger)
		if err != nil {
			return nil, err
		}

		router.Use(rateLimiter.Middleware)
	}

	router.Get("/health", handler.HealthCheck)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	router.Route("/v1", func(r chi.Router) {
		// The event stream stays open indefinitely, so the request timeout
		// applies only to the regular API routes.
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Timeout(cfg.HTTPServer.WriteTimeout))

			r.Route("/connections", func(r chi.Router) {
				r.Post("/", handler.Connect)
				r.Get("/", handler.ListConnections)

				r.Route("/saved", func(r chi.Router) {
					r.Post("/", handler.SaveConnections)
					r.Post("/load", handler.LoadConnections)
					r.Delete("/", handler.ClearSavedConnections)
				})

				r.Route("/{connectionID}", func(r chi.Router) {
					r.Get("/", handler.GetConnection)
					r.Delete("/", handler.Disconnect)
					r.Post("/refresh", handler.RefreshConnection)
					r.Post("/probe", handler.ProbeConnection)
					r.Put("/refresh-interval", handler.SetRefreshInterval)
					r.Post("/pause", handler.PauseAutoRefresh)
					r.Post("/resume", handler.ResumeAutoRefresh)
					r.Get("/queues", handler.ListQueues)
				})
			})

			r.Route("/messages", func(r chi.Router) {
				r.Get("/", handler.ListMessages)
				r.Get("/{lookupID}", handler.InspectMessage)
				r.Post("/move", handler.MoveMessage)
				r.Post("/resend", handler.ResendMessage)
				r.Delete("/{messageID}", handler.DeleteMessage)
				r.Post("/bulk-delete", handler.BulkDelete)
				r.Post("/export", handler.ExportMessages)
			})

			r.Route("/purge", func(r chi.Router) {
				r.Get("/preview", handler.PurgePreview)
				r.Post("/", handler.Purge)
			})
		})

		r.Get("/events", handler.StreamEvents)
	})

	return router, nil
}
