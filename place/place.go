// Package place owns the three place-facing domain caches: raw provider
// responses (long retention, metered upstream), the composed detail view and
// viewport search results. It registers with the cache coordinator so place
// invalidation reaches every denormalized copy, search listings included.
package place

import (
	"context"
	"sync"
	"time"

	"github.com/placeloop/go-common/cache"
	"github.com/placeloop/go-common/kv"
	"github.com/placeloop/go-common/logger"
	"github.com/placeloop/go-common/provider"
	"github.com/placeloop/go-common/store"
)

// DefaultProviderTTL is how long raw provider records are retained. Provider
// terms allow caching place data for up to 90 days.
const DefaultProviderTTL = 90 * 24 * time.Hour

const (
	detailSoftTTL = 12 * time.Hour
	detailHardTTL = 24 * time.Hour
	searchSoftTTL = 5 * time.Minute
	searchHardTTL = 15 * time.Minute

	defaultOverlayCapacity = 4 << 20
)

// Origins for a composed Detail.
const (
	OriginProvider = "provider"
	OriginLocal    = "local"
)

// Detail is the composed place view served to detail screens.
type Detail struct {
	Place       provider.Place `json:"place" msgpack:"place"`
	Origin      string         `json:"origin" msgpack:"origin"`
	AssembledAt time.Time      `json:"assembledAt" msgpack:"assembledAt"`
}

// Source is the slice of the provider client the place service needs.
type Source interface {
	PlaceByID(ctx context.Context, id string) (*provider.Place, error)
	SearchViewport(ctx context.Context, q provider.Query) ([]provider.Place, error)
}

// Service serves place data through the domain caches. Provider records are
// shared across users; details and search results are owner-scoped.
type Service struct {
	log    logger.Logger
	source Source
	places store.PlaceStore

	provider *cache.Cache[provider.Place]
	detail   *cache.Cache[Detail]
	search   *cache.Cache[[]provider.Place]

	// reverse index place id -> search keys whose results contain it
	index *cache.Cache[[]string]
	ixMu  sync.Mutex
}

var _ cache.Domain = (*Service)(nil)

type serviceOptions struct {
	log             logger.Logger
	flight          *cache.Flight
	now             func() time.Time
	providerTTL     time.Duration
	overlayCapacity int64
	storageTimeout  time.Duration
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

// WithNowFunc overrides the clock used for freshness decisions.
func WithNowFunc(now func() time.Time) ServiceOption {
	return func(o *serviceOptions) { o.now = now }
}

// WithProviderTTL overrides the provider-record retention.
func WithProviderTTL(d time.Duration) ServiceOption {
	return func(o *serviceOptions) { o.providerTTL = d }
}

// WithOverlayCapacity bounds the in-memory overlay in front of the durable
// store for search results.
func WithOverlayCapacity(n int64) ServiceOption {
	return func(o *serviceOptions) { o.overlayCapacity = n }
}

// WithStorageTimeout bounds each durable-store call across the domain's
// caches.
func WithStorageTimeout(d time.Duration) ServiceOption {
	return func(o *serviceOptions) { o.storageTimeout = d }
}

// NewService builds the place domain caches on top of base.
func NewService(base kv.Store, source Source, places store.PlaceStore, opts ...ServiceOption) *Service {
	o := serviceOptions{
		providerTTL:     DefaultProviderTTL,
		overlayCapacity: defaultOverlayCapacity,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.NewConsoleLogger()
	}
	if o.flight == nil {
		o.flight = cache.NewFlight()
	}

	common := []cache.Option{cache.WithLogger(o.log), cache.WithFlight(o.flight)}
	if o.now != nil {
		common = append(common, cache.WithNowFunc(o.now))
	}

	// Search reads are absorbed by a bounded memory overlay; writes go
	// through to the durable layer.
	searchStore := kv.NewComposite(kv.NewMemory(kv.WithMaxBytes(o.overlayCapacity)), base)

	return &Service{
		log:    o.log.With(map[string]interface{}{"component": "place"}),
		source: source,
		places: places,
		provider: cache.New[provider.Place](base, cache.Config{
			Name:           "place.provider",
			Schema:         "place.provider.v1",
			SoftTTL:        o.providerTTL,
			HardTTL:        o.providerTTL,
			StorageTimeout: o.storageTimeout,
		}, append(common, cache.WithPrefix("place:provider:"))...),
		detail: cache.New[Detail](base, cache.Config{
			Name:           "place.detail",
			Schema:         "place.detail.v1",
			SoftTTL:        detailSoftTTL,
			HardTTL:        detailHardTTL,
			StorageTimeout: o.storageTimeout,
		}, append(common, cache.WithPrefix("place:detail:"))...),
		search: cache.New[[]provider.Place](searchStore, cache.Config{
			Name:           "place.search",
			Schema:         "place.search.v1",
			SoftTTL:        searchSoftTTL,
			HardTTL:        searchHardTTL,
			StorageTimeout: o.storageTimeout,
		}, append(common, cache.WithPrefix("place:search:"))...),
		index: cache.New[[]string](searchStore, cache.Config{
			Name:           "place.searchix",
			Schema:         "place.searchix.v1",
			SoftTTL:        searchHardTTL,
			HardTTL:        searchHardTTL,
			StorageTimeout: o.storageTimeout,
		}, append(common, cache.WithPrefix("place:searchix:"))...),
	}
}

// ProviderRecord returns the raw provider record for a place, served from the
// long-retention provider-response cache. Records are shared across users, so
// the entries are unowned.
func (s *Service) ProviderRecord(ctx context.Context, id string) (provider.Place, error) {
	rec, _, err := cache.Through(ctx, s.provider, id, "", func(ctx context.Context) (provider.Place, error) {
		p, err := s.source.PlaceByID(ctx, id)
		if err != nil {
			return provider.Place{}, err
		}
		return *p, nil
	})
	return rec, err
}

// Detail returns the composed detail view for a place. The provider record
// flows through the provider-response cache; when the upstream cannot be
// reached at all, the locally persisted snapshot fills in.
func (s *Service) Detail(ctx context.Context, owner, id string) (Detail, error) {
	d, _, err := cache.Through(ctx, s.detail, id, owner, func(ctx context.Context) (Detail, error) {
		return s.assemble(ctx, id)
	})
	return d, err
}

func (s *Service) assemble(ctx context.Context, id string) (Detail, error) {
	rec, err := s.ProviderRecord(ctx, id)
	if err == nil {
		s.snapshot(ctx, rec)
		return Detail{Place: rec, Origin: OriginProvider, AssembledAt: time.Now()}, nil
	}

	snap, serr := s.places.PlaceByID(ctx, id)
	if serr != nil {
		return Detail{}, err
	}
	s.log.Debug("assembling %s from local snapshot: %s", id, err)
	return Detail{
		Place: provider.Place{
			ID:        snap.ID,
			Name:      snap.Name,
			Address:   snap.Address,
			Latitude:  snap.Latitude,
			Longitude: snap.Longitude,
			UpdatedAt: snap.UpdatedAt,
		},
		Origin:      OriginLocal,
		AssembledAt: time.Now(),
	}, nil
}

// snapshot persists the slim offline copy of a provider record.
func (s *Service) snapshot(ctx context.Context, rec provider.Place) {
	err := s.places.UpsertPlace(ctx, &store.Place{
		ID:        rec.ID,
		Name:      rec.Name,
		Address:   rec.Address,
		Latitude:  rec.Latitude,
		Longitude: rec.Longitude,
		UpdatedAt: rec.UpdatedAt,
	})
	if err != nil {
		s.log.Warn("failed to persist place snapshot %s: %s", rec.ID, err)
	}
}

// Sweep removes expired and undecodable entries across the place caches,
// returning how many were dropped.
func (s *Service) Sweep(ctx context.Context) int {
	n := s.provider.Sweep(ctx)
	n += s.detail.Sweep(ctx)
	n += s.search.Sweep(ctx)
	n += s.index.Sweep(ctx)
	return n
}
