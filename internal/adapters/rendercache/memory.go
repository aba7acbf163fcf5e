package rendercache

import (
	"context"
	"sync"

	"github.com/m-silliman/svc-queue-monitor/internal/codec"
	"github.com/m-silliman/svc-queue-monitor/internal/ports"
)

// MemoryCache is the in-process fallback used when no cache backend is
// configured. No TTL; entries live until invalidated or the process exits.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]codec.Rendering
}

var _ ports.RenderCache = (*MemoryCache)(nil)

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]codec.Rendering)}
}

func (c *MemoryCache) Get(_ context.Context, lookupID string) (*codec.Rendering, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if rendering, ok := c.entries[lookupID]; ok {
		return &rendering, nil
	}

	return nil, nil
}

func (c *MemoryCache) Set(_ context.Context, lookupID string, rendering codec.Rendering) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[lookupID] = rendering

	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, lookupID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, lookupID)

	return nil
}
