package connstore

import (
	"context"
	"sync"

	"github.com/m-silliman/svc-queue-monitor/internal/domain"
	"github.com/m-silliman/svc-queue-monitor/internal/ports"
)

// MemoryStore is the fallback connection store used when persistence is
// disabled. The directory survives reconnects but not a process restart.
type MemoryStore struct {
	mu    sync.Mutex
	saved []domain.SavedConnection
}

var _ ports.ConnectionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) SaveConnections(_ context.Context, connections []domain.SavedConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saved = append([]domain.SavedConnection(nil), connections...)

	return nil
}

func (s *MemoryStore) LoadConnections(context.Context) ([]domain.SavedConnection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.SavedConnection(nil), s.saved...), nil
}

func (s *MemoryStore) ClearSavedConnections(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saved = nil

	return nil
}
