// Package collection caches a user's place collections in front of the
// relational store. Listings are cached per owner and details per
// collection; optimistic edits patch both caches in place without
// resetting their freshness.
package collection

import (
	"context"
	"errors"
	"time"

	"github.com/placeloop/go-common/cache"
	"github.com/placeloop/go-common/kv"
	"github.com/placeloop/go-common/logger"
	"github.com/placeloop/go-common/slice"
	"github.com/placeloop/go-common/store"
)

const (
	softTTL = 30 * time.Minute
	hardTTL = 60 * time.Minute
)

// Service serves collection listings and details through the domain caches,
// falling back to the relational store on a miss. All entries are
// owner-scoped.
type Service struct {
	log   logger.Logger
	store store.CollectionStore
	now   func() time.Time

	listing *cache.Cache[[]store.Collection]
	detail  *cache.Cache[store.Collection]
}

var _ cache.Domain = (*Service)(nil)

type serviceOptions struct {
	log            logger.Logger
	flight         *cache.Flight
	now            func() time.Time
	storageTimeout time.Duration
}

type ServiceOption func(*serviceOptions)

// WithLogger sets the logger. Defaults to a console logger.
func WithLogger(log logger.Logger) ServiceOption {
	return func(o *serviceOptions) { o.log = log }
}

// WithFlight shares an in-flight table with other domains.
func WithFlight(f *cache.Flight) ServiceOption {
	return func(o *serviceOptions) { o.flight = f }
}

// WithNowFunc overrides the clock used for freshness decisions and
// collection timestamps.
func WithNowFunc(now func() time.Time) ServiceOption {
	return func(o *serviceOptions) { o.now = now }
}

// WithStorageTimeout bounds each durable-store call across the domain's
// caches.
func WithStorageTimeout(d time.Duration) ServiceOption {
	return func(o *serviceOptions) { o.storageTimeout = d }
}

// NewService builds the collection domain caches on top of base.
func NewService(base kv.Store, cs store.CollectionStore, opts ...ServiceOption) *Service {
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

	common := []cache.Option{
		cache.WithLogger(o.log),
		cache.WithFlight(o.flight),
		cache.WithNowFunc(o.now),
	}

	return &Service{
		log:   o.log.With(map[string]interface{}{"component": "collection"}),
		store: cs,
		now:   o.now,
		listing: cache.New[[]store.Collection](base, cache.Config{
			Name:           "collection.list",
			Schema:         "collection.list.v1",
			SoftTTL:        softTTL,
			HardTTL:        hardTTL,
			StorageTimeout: o.storageTimeout,
		}, append(common, cache.WithPrefix("collection:list:"))...),
		detail: cache.New[store.Collection](base, cache.Config{
			Name:           "collection.detail",
			Schema:         "collection.detail.v1",
			SoftTTL:        softTTL,
			HardTTL:        hardTTL,
			StorageTimeout: o.storageTimeout,
		}, append(common, cache.WithPrefix("collection:detail:"))...),
	}
}

// Listing returns owner's collections, newest first.
func (s *Service) Listing(ctx context.Context, owner string) ([]store.Collection, error) {
	list, _, err := cache.Through(ctx, s.listing, owner, owner, func(ctx context.Context) ([]store.Collection, error) {
		return s.store.CollectionsByOwner(ctx, owner)
	})
	return list, err
}

// Detail returns one collection. Collections belonging to another owner are
// reported as absent.
func (s *Service) Detail(ctx context.Context, owner, id string) (store.Collection, error) {
	c, _, err := cache.Through(ctx, s.detail, id, owner, func(ctx context.Context) (store.Collection, error) {
		c, err := s.store.CollectionByID(ctx, id)
		if err != nil {
			return store.Collection{}, err
		}
		if c.OwnerID != owner {
			return store.Collection{}, store.ErrNotFound
		}
		return *c, nil
	})
	return c, err
}

// Create persists a new collection and seeds the caches so the next listing
// read shows it immediately.
func (s *Service) Create(ctx context.Context, c *store.Collection) error {
	now := s.now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if err := s.store.SaveCollection(ctx, c); err != nil {
		return err
	}
	s.detail.Save(ctx, c.ID, c.OwnerID, *c)
	s.listing.Update(ctx, c.OwnerID, c.OwnerID, func(list []store.Collection) []store.Collection {
		return append([]store.Collection{*c}, list...)
	}, true)
	return nil
}

// Rename changes a collection's name. The store is written first; both
// caches are then patched optimistically so the rename shows up without
// resetting their freshness.
func (s *Service) Rename(ctx context.Context, owner, id, name string) error {
	return s.edit(ctx, owner, id, func(c *store.Collection) bool {
		if c.Name == name {
			return false
		}
		c.Name = name
		return true
	})
}

// AddPlace appends a place to the collection's membership. Adding a place
// that is already a member is a no-op.
func (s *Service) AddPlace(ctx context.Context, owner, id, placeID string) error {
	return s.edit(ctx, owner, id, func(c *store.Collection) bool {
		if slice.Contains(c.PlaceIDs, placeID) {
			return false
		}
		c.PlaceIDs = append(c.PlaceIDs, placeID)
		return true
	})
}

// RemovePlace drops a place from the collection's membership. Removing a
// non-member is a no-op.
func (s *Service) RemovePlace(ctx context.Context, owner, id, placeID string) error {
	return s.edit(ctx, owner, id, func(c *store.Collection) bool {
		if !slice.Contains(c.PlaceIDs, placeID) {
			return false
		}
		c.PlaceIDs = slice.Omit(c.PlaceIDs, placeID)
		return true
	})
}

// edit loads the canonical record, applies mutate, persists it and patches
// the caches in place. mutate reports whether anything changed.
func (s *Service) edit(ctx context.Context, owner, id string, mutate func(*store.Collection) bool) error {
	c, err := s.store.CollectionByID(ctx, id)
	if err != nil {
		return err
	}
	if c.OwnerID != owner {
		return store.ErrNotFound
	}
	if !mutate(c) {
		return nil
	}
	c.UpdatedAt = s.now()
	if err := s.store.SaveCollection(ctx, c); err != nil {
		return err
	}

	s.detail.Update(ctx, id, owner, func(store.Collection) store.Collection {
		return *c
	}, true)
	s.listing.Update(ctx, owner, owner, func(list []store.Collection) []store.Collection {
		for i := range list {
			if list[i].ID == id {
				list[i] = *c
			}
		}
		return list
	}, true)
	return nil
}

// Delete removes a collection from the store and drops it from both caches.
func (s *Service) Delete(ctx context.Context, owner, id string) error {
	c, err := s.store.CollectionByID(ctx, id)
	if err != nil {
		return err
	}
	if c.OwnerID != owner {
		return store.ErrNotFound
	}
	if err := s.store.DeleteCollection(ctx, id); err != nil {
		return err
	}
	s.detail.Clear(ctx, id)
	s.listing.Update(ctx, owner, owner, func(list []store.Collection) []store.Collection {
		kept := list[:0]
		for _, c := range list {
			if c.ID != id {
				kept = append(kept, c)
			}
		}
		return kept
	}, true)
	return nil
}

// Invalidate implements cache.Domain. The owning listing is found through
// the relational store; when the record is already gone every listing is
// dropped instead, since the one that contained it cannot be identified.
func (s *Service) Invalidate(ctx context.Context, entity cache.Entity) {
	if entity.Type != cache.EntityCollection {
		return
	}
	s.detail.Clear(ctx, entity.ID)

	c, err := s.store.CollectionByID(ctx, entity.ID)
	if err == nil {
		s.listing.Clear(ctx, c.OwnerID)
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.log.Warn("owner lookup failed for collection %s: %s", entity.ID, err)
	}
	s.log.Debug("dropping all listings to invalidate collection %s", entity.ID)
	s.listing.ClearAll(ctx, "")
}

// ClearOwner implements cache.Domain.
func (s *Service) ClearOwner(ctx context.Context, owner string) {
	s.listing.ClearAll(ctx, owner)
	s.detail.ClearAll(ctx, owner)
}

// Name implements cache.Domain.
func (s *Service) Name() string {
	return "collection"
}

// Stats implements cache.Domain.
func (s *Service) Stats(ctx context.Context) []cache.Stats {
	return []cache.Stats{
		s.listing.Stats(ctx),
		s.detail.Stats(ctx),
	}
}

// Sweep removes expired and undecodable entries across the collection
// caches, returning how many were dropped.
func (s *Service) Sweep(ctx context.Context) int {
	return s.listing.Sweep(ctx) + s.detail.Sweep(ctx)
}
