package ports

import (
	"context"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
)

// ConnectionStore persists the set of monitored endpoints across restarts.
// Only endpoint identity and display metadata are stored; credentials are
// never persisted.
type ConnectionStore interface {
	SaveConnections(ctx context.Context, connections []domain.SavedConnection) error
	LoadConnections(ctx context.Context) ([]domain.SavedConnection, error)
	ClearSavedConnections(ctx context.Context) error
}
