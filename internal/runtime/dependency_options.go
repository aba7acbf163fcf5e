package runtime

import (
	"context"
	"fmt"
	"strings"

	"github.com/m-silliman/svc-queue-monitor/internal/adapters/amqpdriver"
	"github.com/m-silliman/svc-queue-monitor/internal/adapters/connstore"
	"github.com/m-silliman/svc-queue-monitor/internal/adapters/export"
	"github.com/m-silliman/svc-queue-monitor/internal/adapters/memdriver"
	"github.com/m-silliman/svc-queue-monitor/internal/adapters/rendercache"
	"github.com/m-silliman/svc-queue-monitor/internal/config"
	"github.com/m-silliman/svc-queue-monitor/internal/infrastructure"
	"github.com/m-silliman/svc-queue-monitor/internal/service"
	"github.com/m-silliman/svc-queue-monitor/internal/shared/backoff"
	"github.com/m-silliman/svc-queue-monitor/internal/supervisor"
)

type (
	DependencyOption func(*Dependencies) error
)

func defaultOptions(ctx context.Context) []DependencyOption {
	return []DependencyOption{
		WithConfigLoader(),
		WithMetrics(),
		WithQueueDriver(),
		WithConnectionStore(),
		WithRenderCache(ctx),
		WithExporter(),
		WithSupervisor(),
		WithOperations(),
	}
}

func WithConfigLoader() DependencyOption {
	return func(d *Dependencies) error {
		d.configLoader = config.NewLoader(d.cfg)

		return nil
	}
}

func WithMetrics() DependencyOption {
	return func(d *Dependencies) error {
		d.Infra.Metrics = infrastructure.NewPrometheusMetrics()

		return nil
	}
}

// WithQueueDriver selects the broker driver. The AMQP driver is the
// production path; the in-memory driver serves local demo runs.
func WithQueueDriver() DependencyOption {
	return func(d *Dependencies) error {
		switch strings.ToLower(d.cfg.Driver.Kind) {
		case "memory":
			d.Adapters.Driver = memdriver.New()
			d.logger.Info().Msg("using in-memory queue driver")
		case "amqp", "":
			driver := amqpdriver.New(d.cfg.Driver, d.logger)
			d.Adapters.Driver = driver
			d.closers = append(d.closers, driver)
			d.logger.Info().
				Str("host", d.cfg.Driver.Host).
				Msg("using AMQP queue driver")
		default:
			return fmt.Errorf("unknown driver kind: %q", d.cfg.Driver.Kind)
		}

		return nil
	}
}

func WithConnectionStore() DependencyOption {
	return func(d *Dependencies) error {
		if !d.cfg.Storage.Enabled {
			d.Adapters.Store = connstore.NewMemoryStore()
			d.logger.Info().Msg("storage disabled, saved connections are kept in memory")

			return nil
		}

		store, err := connstore.NewPostgresStore(d.cfg.Storage)
		if err != nil {
			return fmt.Errorf("failed to initialize connection storage: %w", err)
		}

		d.Adapters.Store = store
		d.closers = append(d.closers, store)

		return nil
	}
}

func WithRenderCache(ctx context.Context) DependencyOption {
	return func(d *Dependencies) error {
		if !d.cfg.Cache.Enabled {
			d.Adapters.Cache = rendercache.NewMemoryCache()
			d.logger.Info().Msg("cache disabled, renderings are cached in memory")

			return nil
		}

		cache := rendercache.NewRedisCache(d.cfg.Cache)

		pingCtx, cancel := context.WithTimeout(ctx, d.cfg.Cache.DialTimeout)
		defer cancel()

		if err := cache.Ping(pingCtx); err != nil {
			return fmt.Errorf("failed to reach render cache: %w", err)
		}

		d.Adapters.Cache = cache
		d.closers = append(d.closers, cache)

		return nil
	}
}

func WithExporter() DependencyOption {
	return func(d *Dependencies) error {
		d.Adapters.Exporter = export.NewFileExporter(d.cfg.Export, d.logger)

		return nil
	}
}

func WithSupervisor() DependencyOption {
	return func(d *Dependencies) error {
		d.Services.Supervisor = supervisor.New(
			d.cfg.Supervisor,
			d.Adapters.Driver,
			d.logger,
			supervisor.WithConnectionStore(d.Adapters.Store),
			supervisor.WithMetrics(d.Infra.Metrics),
			supervisor.WithBackoffStrategy(backoff.NewExponentialStrategy(d.cfg.Backoff)),
		)

		return nil
	}
}

func WithOperations() DependencyOption {
	return func(d *Dependencies) error {
		d.Services.Operations = service.NewOperationsService(
			d.Adapters.Driver,
			d.Adapters.Exporter,
			d.Adapters.Cache,
			d.cfg.Codec,
			d.logger,
			d.Infra.Metrics,
		)

		return nil
	}
}

func WithHTTPServer() DependencyOption {
	return func(d *Dependencies) error {
		server, err := initHTTPServer(d)
		if err != nil {
			return err
		}

		d.Infra.HTTPServer = server

		return nil
	}
}
