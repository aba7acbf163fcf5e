package ports

import (
	"context"

	"github.com/m-silliman/svc-queue-monitor/internal/codec"
)

// RenderCache stores formatted message bodies keyed by message lookup id so
// repeated inspection of large payloads does not re-run the pretty-printer.
// A cache miss returns (nil, nil); cache failures are advisory.
type RenderCache interface {
	Get(ctx context.Context, lookupID string) (*codec.Rendering, error)
	Set(ctx context.Context, lookupID string, rendering codec.Rendering) error
	Invalidate(ctx context.Context, lookupID string) error
}
