package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kelseyhightower/envconfig"
)

// Loader handles configuration loading and reloading.
type Loader struct {
	cfg              *ServiceConfig
	configSignalChan chan os.Signal
	reloadErrors     chan error
}

// NewLoader creates a new config loader instance.
func NewLoader(cfg *ServiceConfig) *Loader {
	return &Loader{
		cfg:              cfg,
		configSignalChan: make(chan os.Signal, 1),
		reloadErrors:     make(chan error, 1),
	}
}

// WatchConfigSignals monitors for SIGHUP (reload from environment) and
// SIGUSR1 (dump) signals. It returns a channel that will receive reload
// errors for logging by the caller.
func (l *Loader) WatchConfigSignals(ctx context.Context) <-chan error {
	signal.Notify(l.configSignalChan, syscall.SIGHUP, syscall.SIGUSR1)

	go func() {
		defer signal.Stop(l.configSignalChan)
		defer close(l.configSignalChan)
		defer close(l.reloadErrors)

		for {
			select {
			case <-ctx.Done():
				return

			case sig := <-l.configSignalChan:
				switch sig {
				case syscall.SIGHUP:
					l.reportReloadStatus(l.reload())

				case syscall.SIGUSR1:
					l.DumpConfig()
				}
			}
		}
	}()

	return l.reloadErrors
}

// DumpConfig outputs the current configuration to stdout as JSON.
func (l *Loader) DumpConfig() {
	configJSON, err := json.MarshalIndent(l.cfg, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stdout, "Error marshaling config: %v\n", err)

		return
	}

	fmt.Fprintf(os.Stdout, "\n=== Configuration Dump ===\n%s\n=== End Configuration ===\n\n", string(configJSON))
}

// Init config from environment variables.
func Init() (*ServiceConfig, error) {
	cfg := &ServiceConfig{}

	err := envconfig.Process("", cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to parse service configuration: %w", err)
	}

	if len(ServiceVersion) != 0 {
		cfg.AppConfig.ServiceVersion = ServiceVersion
	}

	if len(CommitSHA) != 0 {
		cfg.AppConfig.CommitSHA = CommitSHA
	}

	if len(APIVersion) != 0 {
		cfg.AppConfig.APIVersion = APIVersion
	}

	return cfg, nil
}

func (l *Loader) reload() error {
	fresh := ServiceConfig{}
	if err := envconfig.Process("", &fresh); err != nil {
		return fmt.Errorf("unable to reload service configuration: %w", err)
	}

	*l.cfg = fresh

	return nil
}

// reportReloadStatus sends reload status (error or nil for success) to reloadErrors channel.
// It uses non-blocking send to avoid blocking if no receiver is ready.
func (l *Loader) reportReloadStatus(err error) {
	select {
	case l.reloadErrors <- err:
	default:
	}
}
