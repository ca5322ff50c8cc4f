package cache

import (
	"context"
	"sync"

	"github.com/placeloop/go-common/logger"
)

// Entity types routed by the Coordinator.
const (
	EntityPlace      = "place"
	EntityCollection = "collection"
)

// Entity names one logical record that may be denormalized across domains.
type Entity struct {
	Type string
	ID   string
}

// Domain is one registered domain cache. Implementations are fail-open:
// they log their own failures and never return errors, so one domain cannot
// stop a fan-out.
type Domain interface {
	// Name identifies the domain for stats and logs.
	Name() string
	// Invalidate purges every copy of entity the domain holds. Domains
	// holding no copies of entity's type do nothing.
	Invalidate(ctx context.Context, entity Entity)
	// ClearOwner removes all entries belonging to owner. Unscoped
	// domains do nothing.
	ClearOwner(ctx context.Context, owner string)
	// Stats reports the domain's entry counts.
	Stats(ctx context.Context) []Stats
}

// Coordinator routes invalidation and sign-out fan-out across every
// registered domain cache. It owns no TTL policy of its own.
type Coordinator struct {
	mutex   sync.RWMutex
	domains []Domain
	log     logger.Logger
}

// NewCoordinator returns an empty registry.
func NewCoordinator(log logger.Logger) *Coordinator {
	return &Coordinator{log: log.WithPrefix("[coordinator]")}
}

// Register adds domains to the registry. Meant to be called once at startup
// with every domain cache, so nothing hides in package-level state.
func (co *Coordinator) Register(domains ...Domain) {
	co.mutex.Lock()
	defer co.mutex.Unlock()
	co.domains = append(co.domains, domains...)
}

func (co *Coordinator) registered() []Domain {
	co.mutex.RLock()
	defer co.mutex.RUnlock()
	out := make([]Domain, len(co.domains))
	copy(out, co.domains)
	return out
}

// Invalidate purges every denormalized copy of the entity across all
// registered domains.
func (co *Coordinator) Invalidate(ctx context.Context, entityType, entityID string) {
	entity := Entity{Type: entityType, ID: entityID}
	co.log.Debug("invalidating %s %s", entityType, entityID)
	for _, domain := range co.registered() {
		domain.Invalidate(ctx, entity)
	}
}

// ClearAllForUser removes every entry belonging to owner in every domain.
// This is the sign-out path.
func (co *Coordinator) ClearAllForUser(ctx context.Context, owner string) {
	co.log.Info("clearing all cached data for user")
	for _, domain := range co.registered() {
		domain.ClearOwner(ctx, owner)
	}
}

// Stats aggregates per-domain statistics for diagnostics.
func (co *Coordinator) Stats(ctx context.Context) []Stats {
	var out []Stats
	for _, domain := range co.registered() {
		out = append(out, domain.Stats(ctx)...)
	}
	return out
}
