package supervisor

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/m-silliman/svc-queue-monitor/internal/config"
	"github.com/m-silliman/svc-queue-monitor/internal/domain"
	"github.com/m-silliman/svc-queue-monitor/internal/infrastructure"
	"github.com/m-silliman/svc-queue-monitor/internal/ports"
	"github.com/m-silliman/svc-queue-monitor/internal/shared/backoff"
)

type (
	// Supervisor maintains the registry of endpoint connections and keeps
	// them synchronized. All mutations of a connection go through its entry
	// lock; callers only ever see snapshot copies.
	Supervisor struct {
		cfg      config.SupervisorConfig
		driver   ports.QueueDriver
		store    ports.ConnectionStore
		logger   infrastructure.Logger
		metrics  infrastructure.Metrics
		strategy backoff.Strategy

		mu      sync.RWMutex
		entries map[string]*entry // keyed by endpoint identity
		byID    map[string]string // connection id -> endpoint identity

		events chan domain.SupervisorEvent

		runMu   sync.Mutex
		runCtx  context.Context
		cancel  context.CancelFunc
		wg      sync.WaitGroup
		started bool
	}

	// entry pairs the connection record with its locks. refreshMu serializes
	// connect, refresh and reconnect cycles for this one connection; stateMu
	// guards the record's fields so readers never observe a half-applied
	// update while driver I/O is in flight.
	entry struct {
		refreshMu sync.Mutex
		stateMu   sync.RWMutex
		conn      *domain.EndpointConnection

		removed     atomic.Bool
		paused      atomic.Bool
		loopRunning atomic.Bool

		reconnectPending bool // guarded by stateMu

		stop       chan struct{}
		stopOnce   sync.Once
		intervalCh chan time.Duration
	}
)

// New creates a supervisor over the given driver. The supervisor does not
// poll until Start is called.
func New(cfg config.SupervisorConfig, driver ports.QueueDriver, logger infrastructure.Logger, opts ...supervisorOption) *Supervisor {
	options := &supervisorOptions{
		metrics: infrastructure.NewNoopMetrics(),
		strategy: backoff.NewExponentialStrategy(config.BackoffConfig{
			BaseDelay:  time.Second,
			Multiplier: 1.6,
			Jitter:     0.2,
			MaxDelay:   30 * time.Second,
		}),
	}
	for _, opt := range opts {
		opt(options)
	}

	bufferSize := cfg.EventBufferSize
	if bufferSize <= 0 {
		bufferSize = 256
	}

	return &Supervisor{
		cfg:      cfg,
		driver:   driver,
		store:    options.store,
		logger:   logger,
		metrics:  options.metrics,
		strategy: options.strategy,
		entries:  make(map[string]*entry),
		byID:     make(map[string]string),
		events:   make(chan domain.SupervisorEvent, bufferSize),
	}
}

// Events exposes the supervisor's notification stream: state transitions,
// completed refreshes and failures, each timestamped. The channel is never
// closed; consumers select against their own context. When no consumer keeps
// up, events are dropped rather than blocking the supervisor.
func (s *Supervisor) Events() <-chan domain.SupervisorEvent {
	return s.events
}

// Connect registers an endpoint and performs one enumerate-queues probe.
// Connect is idempotent: a second call for the same endpoint identity returns
// the existing connection instead of creating a duplicate.
func (s *Supervisor) Connect(ctx context.Context, endpoint, displayName string) (domain.EndpointConnection, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return domain.EndpointConnection{}, domain.NewDomainError(
			"INVALID_ENDPOINT", "endpoint identity must not be empty", 400, nil)
	}

	s.mu.Lock()
	if existing, ok := s.entries[endpoint]; ok {
		s.mu.Unlock()
		return existing.snapshot(), nil
	}

	if displayName == "" {
		displayName = endpoint
	}

	e := &entry{
		conn: &domain.EndpointConnection{
			ID:                 uuid.NewString(),
			Endpoint:           endpoint,
			DisplayName:        displayName,
			State:              domain.StateNotConnected,
			RefreshInterval:    s.cfg.ClampRefreshInterval(s.cfg.DefaultRefreshInterval),
			AutoRefreshEnabled: true,
		},
		stop:       make(chan struct{}),
		intervalCh: make(chan time.Duration, 1),
	}
	s.entries[endpoint] = e
	s.byID[e.conn.ID] = endpoint
	s.mu.Unlock()

	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	s.transition(e, domain.StateConnecting, "")

	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	queues, err := s.driver.EnumerateQueues(probeCtx, endpoint, s.cfg.IncludeSystemQueues)
	if err != nil {
		s.transition(e, domain.StateFailed, err.Error())
		s.emitFailure(e, err, s.cfg.AutoReconnect)
		if s.cfg.AutoReconnect {
			s.scheduleReconnect(e)
		}

		return e.snapshot(), domain.NewTransientError(endpoint, err)
	}

	s.collectJournalCounts(probeCtx, queues)
	s.applyRefreshedQueues(e, queues)
	s.transition(e, domain.StateConnected, "")
	s.emitRefreshed(e, len(queues))

	s.logger.Info().
		Str("endpoint", endpoint).
		Str("connection_id", e.conn.ID).
		Int("queue_count", len(queues)).
		Msg("connected to endpoint")

	s.ensureLoop(e)

	return e.snapshot(), nil
}

// Disconnect removes a connection from the active set. An in-flight refresh
// for the connection is allowed to complete; its result is discarded.
func (s *Supervisor) Disconnect(connectionID string) error {
	s.mu.Lock()
	endpoint, ok := s.byID[connectionID]
	if !ok {
		s.mu.Unlock()
		return domain.NewConnectionNotFoundError(connectionID)
	}

	e := s.entries[endpoint]
	delete(s.entries, endpoint)
	delete(s.byID, connectionID)
	s.mu.Unlock()

	s.transition(e, domain.StateDisconnected, "")

	e.removed.Store(true)
	e.stopOnce.Do(func() { close(e.stop) })

	s.logger.Info().
		Str("endpoint", endpoint).
		Str("connection_id", connectionID).
		Msg("disconnected from endpoint")

	return nil
}

// DisconnectAll removes every connection from the active set.
func (s *Supervisor) DisconnectAll() {
	s.mu.Lock()
	removed := make([]*entry, 0, len(s.entries))
	for endpoint, e := range s.entries {
		removed = append(removed, e)
		delete(s.entries, endpoint)
		delete(s.byID, e.conn.ID)
	}
	s.mu.Unlock()

	for _, e := range removed {
		s.transition(e, domain.StateDisconnected, "")
		e.removed.Store(true)
		e.stopOnce.Do(func() { close(e.stop) })
	}
}

// Connection returns a snapshot of one connection by id.
func (s *Supervisor) Connection(connectionID string) (domain.EndpointConnection, error) {
	e := s.entryByID(connectionID)
	if e == nil {
		return domain.EndpointConnection{}, domain.NewConnectionNotFoundError(connectionID)
	}

	return e.snapshot(), nil
}

// Connections returns snapshots of every active connection.
func (s *Supervisor) Connections() []domain.EndpointConnection {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	connections := make([]domain.EndpointConnection, 0, len(entries))
	for _, e := range entries {
		connections = append(connections, e.snapshot())
	}

	return connections
}

func (s *Supervisor) entryByID(connectionID string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	endpoint, ok := s.byID[connectionID]
	if !ok {
		return nil
	}

	return s.entries[endpoint]
}

// transition applies a validated state change and emits the corresponding
// event. Invalid transitions are logged and ignored; the connection stays in
// its current state.
func (s *Supervisor) transition(e *entry, to domain.ConnectionState, errMsg string) {
	e.stateMu.Lock()
	from := e.conn.State
	if from == to {
		if errMsg != "" {
			e.conn.LastError = errMsg
		}
		e.stateMu.Unlock()
		return
	}

	if !from.CanTransition(to) {
		e.stateMu.Unlock()
		s.logger.Warn().
			Str("endpoint", e.conn.Endpoint).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("ignoring invalid connection state transition")
		return
	}

	e.conn.State = to
	e.conn.LastError = errMsg
	connectionID, endpoint := e.conn.ID, e.conn.Endpoint
	e.stateMu.Unlock()

	s.emit(domain.SupervisorEvent{
		Kind:         domain.EventStateChanged,
		Timestamp:    time.Now().UTC(),
		ConnectionID: connectionID,
		Endpoint:     endpoint,
		State:        to,
		PrevState:    from,
		Error:        errMsg,
	})
}

func (s *Supervisor) emitRefreshed(e *entry, queueCount int) {
	e.stateMu.RLock()
	connectionID, endpoint, state := e.conn.ID, e.conn.Endpoint, e.conn.State
	e.stateMu.RUnlock()

	s.emit(domain.SupervisorEvent{
		Kind:         domain.EventRefreshed,
		Timestamp:    time.Now().UTC(),
		ConnectionID: connectionID,
		Endpoint:     endpoint,
		State:        state,
		QueueCount:   queueCount,
	})
}

func (s *Supervisor) emitFailure(e *entry, cause error, retrying bool) {
	e.stateMu.RLock()
	connectionID, endpoint := e.conn.ID, e.conn.Endpoint
	attempt := e.conn.RetryCount
	e.stateMu.RUnlock()

	s.emit(domain.SupervisorEvent{
		Kind:         domain.EventFailed,
		Timestamp:    time.Now().UTC(),
		ConnectionID: connectionID,
		Endpoint:     endpoint,
		State:        domain.StateFailed,
		Retrying:     retrying,
		Attempt:      attempt,
		Error:        cause.Error(),
	})
}

// emit never blocks the supervisor: when the buffer is full the event is
// dropped and counted against the consumer, not against the poll loop.
func (s *Supervisor) emit(event domain.SupervisorEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Debug().
			Str("kind", string(event.Kind)).
			Str("endpoint", event.Endpoint).
			Msg("event buffer full, dropping notification")
	}
}

// snapshot deep-copies the connection record so callers can hold it without
// racing the supervisor's mutations.
func (e *entry) snapshot() domain.EndpointConnection {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	copied := *e.conn
	copied.Queues = make([]domain.QueueDescriptor, len(e.conn.Queues))
	copy(copied.Queues, e.conn.Queues)

	return copied
}
