package supervisor

import (
	"context"
	"fmt"
	"time"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
)

// RefreshConnection re-enumerates the endpoint's queues and replaces the
// cached descriptor list wholesale. A failure to read one queue's journal
// count does not abort the rest: it is recorded on that queue while the
// connection stays connected. A total enumeration failure transitions the
// connection to Failed. A cancelled or failed refresh leaves the previous
// cache intact.
func (s *Supervisor) RefreshConnection(ctx context.Context, connectionID string, includeSystemQueues bool) error {
	e := s.entryByID(connectionID)
	if e == nil {
		return domain.NewConnectionNotFoundError(connectionID)
	}

	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	if e.removed.Load() {
		return domain.NewConnectionNotFoundError(connectionID)
	}

	e.stateMu.RLock()
	endpoint := e.conn.Endpoint
	e.stateMu.RUnlock()

	start := time.Now()

	queues, err := s.driver.EnumerateQueues(ctx, endpoint, includeSystemQueues)
	if err != nil {
		s.metrics.RecordRefresh(endpoint, false, 0, time.Since(start))

		// Cancellation is not an endpoint failure: the cache and the
		// connection state both stay as they were.
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.transition(e, domain.StateFailed, err.Error())
		s.emitFailure(e, err, s.cfg.AutoReconnect)
		if s.cfg.AutoReconnect {
			s.scheduleReconnect(e)
		}

		s.logger.Error().Err(err).
			Str("endpoint", endpoint).
			Msg("queue enumeration failed")

		return domain.NewTransientError(endpoint, err)
	}

	if err := s.collectJournalCounts(ctx, queues); err != nil {
		// Only cancellation aborts here; per-queue failures are already
		// recorded on the descriptors.
		s.metrics.RecordRefresh(endpoint, false, 0, time.Since(start))
		return err
	}

	if e.removed.Load() {
		// Disconnected while the refresh was in flight: complete, discard.
		return nil
	}

	s.applyRefreshedQueues(e, queues)
	s.reconnectIfNeeded(e)
	s.emitRefreshed(e, len(queues))
	s.metrics.RecordRefresh(endpoint, true, len(queues), time.Since(start))

	s.logger.Debug().
		Str("endpoint", endpoint).
		Int("queue_count", len(queues)).
		Dur("duration", time.Since(start)).
		Msg("refresh completed")

	return nil
}

// collectJournalCounts derives each queue's journal path and queries its
// message count. Per-queue failures are recorded as that queue's error state;
// only cancellation returns an error.
func (s *Supervisor) collectJournalCounts(ctx context.Context, queues []domain.QueueDescriptor) error {
	for i := range queues {
		if !queues[i].HasJournal {
			continue
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		count, err := s.driver.CountMessages(ctx, queues[i].JournalPath())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			queues[i].LastError = fmt.Sprintf("journal count unavailable: %v", err)
			continue
		}

		queues[i].JournalCount = count
	}

	return nil
}

// applyRefreshedQueues swaps in the new queue cache atomically and resets the
// retry counter.
func (s *Supervisor) applyRefreshedQueues(e *entry, queues []domain.QueueDescriptor) {
	e.stateMu.Lock()
	e.conn.Queues = queues
	e.conn.LastRefreshedAt = time.Now().UTC()
	e.conn.RetryCount = 0
	e.stateMu.Unlock()
}

// reconnectIfNeeded promotes a Failed or Disconnected connection back to
// Connected after a refresh cycle succeeded against the endpoint.
func (s *Supervisor) reconnectIfNeeded(e *entry) {
	e.stateMu.RLock()
	state := e.conn.State
	e.stateMu.RUnlock()

	if state == domain.StateConnected {
		return
	}

	s.transition(e, domain.StateConnecting, "")
	s.transition(e, domain.StateConnected, "")
}
