package supervisor

import (
	"github.com/m-silliman/svc-queue-monitor/internal/infrastructure"
	"github.com/m-silliman/svc-queue-monitor/internal/ports"
	"github.com/m-silliman/svc-queue-monitor/internal/shared/backoff"
)

type supervisorOptions struct {
	store    ports.ConnectionStore
	metrics  infrastructure.Metrics
	strategy backoff.Strategy
}

type supervisorOption func(*supervisorOptions)

// WithConnectionStore enables persistence of the connection directory.
func WithConnectionStore(store ports.ConnectionStore) supervisorOption {
	return func(o *supervisorOptions) {
		o.store = store
	}
}

// WithMetrics attaches a metrics sink for refresh and reconnect telemetry.
func WithMetrics(metrics infrastructure.Metrics) supervisorOption {
	return func(o *supervisorOptions) {
		o.metrics = metrics
	}
}

// WithBackoffStrategy overrides the reconnect backoff schedule.
func WithBackoffStrategy(strategy backoff.Strategy) supervisorOption {
	return func(o *supervisorOptions) {
		o.strategy = strategy
	}
}
