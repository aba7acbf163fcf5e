package supervisor

import (
	"context"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
)

// SaveConnections writes the current connection set to the configured store.
// Only endpoint identity and display metadata are persisted; credentials
// belong to the driver configuration and never reach the store.
func (s *Supervisor) SaveConnections(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	connections := s.Connections()
	saved := make([]domain.SavedConnection, 0, len(connections))
	for _, conn := range connections {
		saved = append(saved, domain.SavedConnection{
			Endpoint:           conn.Endpoint,
			DisplayName:        conn.DisplayName,
			RefreshInterval:    conn.RefreshInterval,
			AutoRefreshEnabled: conn.AutoRefreshEnabled,
		})
	}

	if err := s.store.SaveConnections(ctx, saved); err != nil {
		return domain.NewInternalError("saving connections", err)
	}

	s.logger.Info().Int("connections", len(saved)).Msg("connection set saved")

	return nil
}

// LoadConnections restores the persisted connection set. With autoConnect
// each restored endpoint is connected immediately; otherwise the saved
// records are returned for the caller to connect selectively. A restore
// failure on one endpoint does not abort the rest.
func (s *Supervisor) LoadConnections(ctx context.Context, autoConnect bool) ([]domain.SavedConnection, error) {
	if s.store == nil {
		return nil, nil
	}

	saved, err := s.store.LoadConnections(ctx)
	if err != nil {
		return nil, domain.NewInternalError("loading connections", err)
	}

	if !autoConnect {
		return saved, nil
	}

	for _, record := range saved {
		conn, err := s.Connect(ctx, record.Endpoint, record.DisplayName)
		if err != nil {
			s.logger.Warn().Err(err).
				Str("endpoint", record.Endpoint).
				Msg("restored connection failed to connect")

			continue
		}

		s.applySavedSettings(conn.ID, record)
	}

	return saved, nil
}

// ClearSavedConnections removes every persisted record without touching the
// live connection set.
func (s *Supervisor) ClearSavedConnections(ctx context.Context) error {
	if s.store == nil {
		return nil
	}

	if err := s.store.ClearSavedConnections(ctx); err != nil {
		return domain.NewInternalError("clearing saved connections", err)
	}

	return nil
}

func (s *Supervisor) applySavedSettings(connectionID string, record domain.SavedConnection) {
	if record.RefreshInterval > 0 {
		if err := s.SetRefreshInterval(connectionID, record.RefreshInterval); err != nil {
			return
		}
	}

	e := s.entryByID(connectionID)
	if e == nil {
		return
	}

	e.stateMu.Lock()
	e.conn.AutoRefreshEnabled = record.AutoRefreshEnabled
	e.stateMu.Unlock()

	if record.AutoRefreshEnabled {
		s.ensureLoop(e)
	} else {
		e.paused.Store(true)
	}
}
