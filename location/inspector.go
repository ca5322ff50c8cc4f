package location

import (
	"context"
	"time"

	"github.com/placeloop/go-common/cache"
	"github.com/placeloop/go-common/kv"
	"github.com/placeloop/go-common/logger"
)

// Inspector exposes the position cache's maintenance surface without running
// the freshness loop. Tooling that has no sensor, like cachectl, registers
// it with the coordinator so sign-out and sweeps reach cached fixes too.
type Inspector struct {
	cache *cache.Cache[Position]
}

var _ cache.Domain = (*Inspector)(nil)

// NewInspector opens a read/maintenance view over the position cache.
func NewInspector(base kv.Store, opts ...ServiceOption) *Inspector {
	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.NewConsoleLogger()
	}
	if o.flight == nil {
		o.flight = cache.NewFlight()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return &Inspector{cache: newPositionCache(base, &o)}
}

// Name implements cache.Domain.
func (i *Inspector) Name() string {
	return "location"
}

// Invalidate implements cache.Domain. The location domain holds no copies
// of place or collection data.
func (i *Inspector) Invalidate(ctx context.Context, entity cache.Entity) {}

// ClearOwner implements cache.Domain.
func (i *Inspector) ClearOwner(ctx context.Context, owner string) {
	i.cache.ClearAll(ctx, owner)
}

// Stats implements cache.Domain.
func (i *Inspector) Stats(ctx context.Context) []cache.Stats {
	return []cache.Stats{i.cache.Stats(ctx)}
}

// Sweep removes expired cached fixes, returning how many entries were
// dropped.
func (i *Inspector) Sweep(ctx context.Context) int {
	return i.cache.Sweep(ctx)
}
