package supervisor

import (
	"context"
	"time"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
)

// Start launches the auto-refresh scheduler. Each connection with
// auto-refresh enabled polls on its own interval, independent of every other
// connection. Start is idempotent.
func (s *Supervisor) Start(ctx context.Context) {
	s.runMu.Lock()
	if s.started {
		s.runMu.Unlock()
		return
	}

	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.runMu.Unlock()

	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	for _, e := range entries {
		s.ensureLoop(e)
	}

	s.logger.Info().Int("connections", len(entries)).Msg("supervisor started")
}

// Stop cancels all poll loops and pending reconnects and waits for them to
// drain. In-flight driver calls are cancelled through the lifecycle context.
func (s *Supervisor) Stop() {
	s.runMu.Lock()
	if !s.started {
		s.runMu.Unlock()
		return
	}
	s.cancel()
	s.started = false
	s.runMu.Unlock()

	s.wg.Wait()

	s.logger.Info().Msg("supervisor stopped")
}

// PauseAutoRefresh suspends the poll loop for one connection without touching
// any other connection's schedule.
func (s *Supervisor) PauseAutoRefresh(connectionID string) error {
	e := s.entryByID(connectionID)
	if e == nil {
		return domain.NewConnectionNotFoundError(connectionID)
	}

	e.paused.Store(true)

	return nil
}

// ResumeAutoRefresh re-enables the poll loop for one connection.
func (s *Supervisor) ResumeAutoRefresh(connectionID string) error {
	e := s.entryByID(connectionID)
	if e == nil {
		return domain.NewConnectionNotFoundError(connectionID)
	}

	e.paused.Store(false)
	s.ensureLoop(e)

	return nil
}

// SetRefreshInterval changes one connection's poll interval, clamped to the
// supported 1s-60s range. The running loop picks the new interval up without
// restarting.
func (s *Supervisor) SetRefreshInterval(connectionID string, interval time.Duration) error {
	e := s.entryByID(connectionID)
	if e == nil {
		return domain.NewConnectionNotFoundError(connectionID)
	}

	clamped := s.cfg.ClampRefreshInterval(interval)

	e.stateMu.Lock()
	e.conn.RefreshInterval = clamped
	e.stateMu.Unlock()

	select {
	case e.intervalCh <- clamped:
	default:
	}

	return nil
}

// ensureLoop starts the per-connection poll goroutine when the scheduler is
// running and no loop exists yet for the entry.
func (s *Supervisor) ensureLoop(e *entry) {
	s.runMu.Lock()
	started := s.started
	runCtx := s.runCtx
	s.runMu.Unlock()

	if !started || e.removed.Load() {
		return
	}

	e.stateMu.RLock()
	enabled := e.conn.AutoRefreshEnabled
	interval := e.conn.RefreshInterval
	connectionID := e.conn.ID
	endpoint := e.conn.Endpoint
	e.stateMu.RUnlock()

	if !enabled {
		return
	}

	if !e.loopRunning.CompareAndSwap(false, true) {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer e.loopRunning.Store(false)

		ticker := time.NewTicker(s.cfg.ClampRefreshInterval(interval))
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return

			case <-e.stop:
				return

			case interval := <-e.intervalCh:
				ticker.Reset(interval)

			case <-ticker.C:
				if e.paused.Load() {
					continue
				}

				if err := s.RefreshConnection(runCtx, connectionID, s.cfg.IncludeSystemQueues); err != nil {
					s.logger.Debug().Err(err).
						Str("endpoint", endpoint).
						Msg("scheduled refresh failed")
				}
			}
		}
	}()
}
