package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

type ServiceCtx struct {
	deps *Dependencies

	shutdownChannel chan os.Signal

	serverCtx      context.Context
	serverStopFunc context.CancelFunc

	serverReady chan struct{}
}

func New(opt ...ServiceOption) *ServiceCtx {
	if len(opt) != 0 {
		sCtx := ServiceCtx{}

		for i := range opt {
			opt[i](&sCtx)
		}

		return &sCtx
	}

	return &ServiceCtx{
		shutdownChannel: make(chan os.Signal, 1),
	}
}

func (c *ServiceCtx) Run() {
	c.build()
	c.startService()
	c.monitorConfigChanges()
	c.shutdownHook()
	c.shutdown()
}

// build initializes the service components
func (c *ServiceCtx) build() {
	c.serverCtx, c.serverStopFunc = context.WithCancel(context.Background())

	deps, err := initializeDependencies(c.serverCtx, WithHTTPServer())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	c.deps = deps
}

// startService starts the supervisor scheduler and the HTTP server.
func (c *ServiceCtx) startService() {
	c.deps.Services.Supervisor.Start(c.serverCtx)

	c.restoreConnections()

	go func() {
		c.deps.logger.Info().
			Str("address", c.deps.Infra.HTTPServer.Addr).
			Msg("service starting up")

		if c.serverReady != nil {
			c.serverReady <- struct{}{}
		}

		if err := c.deps.Infra.HTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.deps.logger.Fatal().Err(err).Msg("unable to start http server")
			c.serverStopFunc()

			return
		}
	}()
}

// restoreConnections re-establishes the connections saved in a previous run.
// Endpoints that fail to connect are reported through lifecycle events rather
// than blocking startup.
func (c *ServiceCtx) restoreConnections() {
	if !c.deps.cfg.Storage.Enabled {
		return
	}

	restored, err := c.deps.Services.Supervisor.LoadConnections(c.serverCtx, true)
	if err != nil {
		c.deps.logger.Error().Err(err).Msg("failed to restore saved connections")

		return
	}

	c.deps.logger.Info().Int("count", len(restored)).Msg("saved connections restored")
}

func (c *ServiceCtx) shutdownHook() {
	signal.Notify(c.shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
}

func (c *ServiceCtx) monitorConfigChanges() {
	reloadErrors := c.deps.configLoader.WatchConfigSignals(c.serverCtx)

	go func() {
		for err := range reloadErrors {
			if err != nil {
				c.deps.logger.Error().Err(err).Msg("failed to reload config")
				continue
			}

			c.deps.logger.Info().Msg("config reloaded successfully")
		}

		c.deps.logger.Info().Msg("stopping config monitor")
	}()
}

func (c *ServiceCtx) shutdown() {
	// Waits for one of the following shutdown conditions to happen.
	select {
	case <-c.serverCtx.Done():
	case <-c.shutdownChannel:
		defer close(c.shutdownChannel)
	}

	c.deps.logger.Info().Msg("received shutdown signal")

	// Shutdown signal with a grace period.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), c.deps.cfg.HTTPServer.ShutdownTimeout)

	go func() {
		<-shutdownCtx.Done()

		if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
			c.deps.logger.Error().Msg("graceful shutdown timed out.. forcing exit.")
			cancel()
			os.Exit(1)
		}
	}()

	c.cleanup(shutdownCtx)

	// Cancel context so underlying goroutines stop.
	c.serverStopFunc()

	c.deps.logger.Info().Msg("shutdown completed")
}

// WaitForServer blocks until the http server is running.
// If you want to be notified when the server is running,
// make sure you instantiate your server with WithWaitingForServer.
//
// Example:
//
//	srv := runtime.New(WithWaitingForServer())
//	go func() {
//		srv.Run()
//	}()
//
//	srv.WaitForServer()
func (c *ServiceCtx) WaitForServer() {
	if c.serverReady != nil {
		<-c.serverReady
		close(c.serverReady)
	}
}

func (c *ServiceCtx) cleanup(shutdownCtx context.Context) {
	c.deps.logger.Info().Msg("cleaning up resources...")

	// Stop accepting requests before tearing down the supervisor.
	if err := c.deps.Infra.HTTPServer.Shutdown(shutdownCtx); err != nil {
		c.deps.logger.Error().Err(err).Msg("unable to gracefully shutdown http server")
	}

	if c.deps.cfg.Storage.Enabled {
		if err := c.deps.Services.Supervisor.SaveConnections(shutdownCtx); err != nil {
			c.deps.logger.Error().Err(err).Msg("failed to save connections")
		}
	}

	c.deps.Services.Supervisor.Stop()

	for i := len(c.deps.closers) - 1; i >= 0; i-- {
		if err := c.deps.closers[i].Close(); err != nil {
			c.deps.logger.Error().Err(err).Msg("failed to close resource")
		}
	}

	c.deps.logger.Info().Msg("cleanup completed")
}
