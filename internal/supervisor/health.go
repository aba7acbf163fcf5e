package supervisor

import (
	"context"
	"time"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
)

// TestConnectionHealth performs a lightweight probe against the endpoint. On
// failure with auto-reconnect enabled the retry counter is incremented, a
// "will retry" notification carrying the attempt number is published, and a
// reconnect attempt is scheduled. Retries are unbounded; only an explicit
// disconnect stops them.
func (s *Supervisor) TestConnectionHealth(ctx context.Context, connectionID string) error {
	e := s.entryByID(connectionID)
	if e == nil {
		return domain.NewConnectionNotFoundError(connectionID)
	}

	e.stateMu.RLock()
	endpoint := e.conn.Endpoint
	e.stateMu.RUnlock()

	err := s.driver.TestConnection(ctx, endpoint, s.cfg.ConnectTimeout)
	if err == nil {
		return nil
	}

	s.logger.Warn().Err(err).
		Str("endpoint", endpoint).
		Msg("health check failed")

	e.stateMu.Lock()
	e.conn.RetryCount++
	e.stateMu.Unlock()

	s.transition(e, domain.StateFailed, err.Error())
	s.emitFailure(e, err, s.cfg.AutoReconnect)

	if s.cfg.AutoReconnect {
		s.scheduleReconnect(e)
	}

	return domain.NewTransientError(endpoint, err)
}

// scheduleReconnect arms one pending reconnect attempt for the entry, delayed
// by the backoff strategy. At most one attempt is pending per connection.
func (s *Supervisor) scheduleReconnect(e *entry) {
	if e.removed.Load() {
		return
	}

	e.stateMu.Lock()
	if e.reconnectPending {
		e.stateMu.Unlock()
		return
	}
	e.reconnectPending = true
	retries := e.conn.RetryCount
	endpoint := e.conn.Endpoint
	e.stateMu.Unlock()

	delay := s.strategy.Backoff(retries)

	s.logger.Info().
		Str("endpoint", endpoint).
		Int("attempt", retries+1).
		Dur("delay", delay).
		Msg("scheduling reconnect attempt")

	runCtx := s.runningContext()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-runCtx.Done():
			return
		case <-e.stop:
			return
		case <-timer.C:
		}

		s.attemptReconnect(runCtx, e)
	}()
}

func (s *Supervisor) attemptReconnect(ctx context.Context, e *entry) {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	e.stateMu.Lock()
	e.reconnectPending = false
	endpoint := e.conn.Endpoint
	e.stateMu.Unlock()

	if e.removed.Load() || ctx.Err() != nil {
		return
	}

	s.metrics.RecordReconnectAttempt(endpoint)
	s.transition(e, domain.StateConnecting, "")

	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	queues, err := s.driver.EnumerateQueues(probeCtx, endpoint, s.cfg.IncludeSystemQueues)
	if err != nil {
		e.stateMu.Lock()
		e.conn.RetryCount++
		attempt := e.conn.RetryCount
		e.stateMu.Unlock()

		s.transition(e, domain.StateFailed, err.Error())
		s.emitFailure(e, err, true)

		s.logger.Warn().Err(err).
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Msg("reconnect attempt failed, will retry")

		s.scheduleReconnect(e)

		return
	}

	s.collectJournalCounts(probeCtx, queues)
	s.applyRefreshedQueues(e, queues)
	s.transition(e, domain.StateConnected, "")
	s.emitRefreshed(e, len(queues))

	s.logger.Info().
		Str("endpoint", endpoint).
		Int("queue_count", len(queues)).
		Msg("reconnected to endpoint")
}

// runningContext returns the supervisor's lifecycle context, or a background
// context when the scheduler has not been started.
func (s *Supervisor) runningContext() context.Context {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	if s.runCtx != nil {
		return s.runCtx
	}

	return context.Background()
}
