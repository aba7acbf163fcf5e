package runtime

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/m-silliman/svc-queue-monitor/internal/adapters/httpapi"
	"github.com/m-silliman/svc-queue-monitor/internal/config"
	"github.com/m-silliman/svc-queue-monitor/internal/infrastructure"
	"github.com/m-silliman/svc-queue-monitor/internal/ports"
	"github.com/m-silliman/svc-queue-monitor/internal/service"
	"github.com/m-silliman/svc-queue-monitor/internal/supervisor"
)

type (
	InfrastructureDeps struct {
		HTTPServer *http.Server
		Metrics    infrastructure.Metrics
	}

	// Adapters holds the pluggable edges: the queue driver the supervisor
	// talks to, plus the persistence, cache and export backends.
	Adapters struct {
		Driver   ports.QueueDriver
		Store    ports.ConnectionStore
		Cache    ports.RenderCache
		Exporter ports.MessageExporter
	}

	Services struct {
		Supervisor *supervisor.Supervisor
		Operations service.OperationsService
	}

	Dependencies struct {
		cfg          *config.ServiceConfig
		configLoader *config.Loader

		logger infrastructure.Logger

		Infra    InfrastructureDeps
		Adapters Adapters
		Services Services

		// closers are released in reverse order during shutdown.
		closers []io.Closer
	}
)

func initializeDependencies(ctx context.Context, opts ...DependencyOption) (*Dependencies, error) {
	cfg, err := config.Init()
	if err != nil {
		return nil, fmt.Errorf("unable to load service configuration: %w", err)
	}

	appLogger := infrastructure.NewLogger(cfg.Logging, cfg.AppConfig.ServiceName)

	appLogger.Info().Msg("initializing dependencies...")

	deps := &Dependencies{
		cfg:    cfg,
		logger: appLogger,
	}

	options := append(defaultOptions(ctx), opts...)

	for _, opt := range options {
		if err := opt(deps); err != nil {
			return nil, fmt.Errorf("failed to apply dependency option: %w", err)
		}
	}

	deps.logger.Info().Msg("dependencies initialized successfully")

	return deps, nil
}

func initHTTPServer(deps *Dependencies) (*http.Server, error) {
	deps.logger.Info().Msg("creating HTTP server...")

	handler := httpapi.NewRequestHandler(
		deps.Services.Supervisor,
		deps.Services.Operations,
		deps.cfg.AppConfig,
		deps.logger,
	)

	router, err := httpapi.NewRouter(handler, deps.cfg, deps.logger, deps.Infra.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to build router: %w", err)
	}

	server := &http.Server{
		Addr:         net.JoinHostPort(deps.cfg.HTTPServer.Host, fmt.Sprintf("%d", deps.cfg.HTTPServer.Port)),
		Handler:      router,
		ReadTimeout:  deps.cfg.HTTPServer.ReadTimeout,
		WriteTimeout: deps.cfg.HTTPServer.WriteTimeout,
		IdleTimeout:  deps.cfg.HTTPServer.IdleTimeout,
	}

	deps.logger.Info().Str("addr", server.Addr).Msg("HTTP server created")

	return server, nil
}
