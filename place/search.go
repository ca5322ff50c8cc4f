package place

import (
	"context"

	"github.com/placeloop/go-common/cache"
	"github.com/placeloop/go-common/provider"
	"github.com/placeloop/go-common/slice"
)

// Search returns the places matching q, keyed by the query's signature so the
// raw query text never becomes a storage key. Stale results are served
// instantly while one background refresh runs; a cold miss fetches inline.
func (s *Service) Search(ctx context.Context, owner string, q provider.Query) ([]provider.Place, error) {
	sig := q.Signature()
	results, _, err := cache.Revalidate(ctx, s.search, sig, owner, func(ctx context.Context) ([]provider.Place, error) {
		found, err := s.source.SearchViewport(ctx, q)
		if err != nil {
			return nil, err
		}
		s.link(ctx, sig, found)
		return found, nil
	})
	return results, err
}

// link records sig under every result place so Invalidate can purge the
// listings that contain a changed place. The index is unowned: a place edit
// outdates that listing for every user.
func (s *Service) link(ctx context.Context, sig string, results []provider.Place) {
	s.ixMu.Lock()
	defer s.ixMu.Unlock()
	for _, p := range results {
		keys, _, _ := s.index.Get(ctx, p.ID, "", true)
		if slice.Contains(keys, sig) {
			continue
		}
		s.index.Save(ctx, p.ID, "", append(keys, sig))
	}
}

// Invalidate implements cache.Domain. It drops the provider record, the
// composed detail and, via the reverse index, every search listing that
// contained the place.
func (s *Service) Invalidate(ctx context.Context, entity cache.Entity) {
	if entity.Type != cache.EntityPlace {
		return
	}
	s.provider.Clear(ctx, entity.ID)
	s.detail.Clear(ctx, entity.ID)

	s.ixMu.Lock()
	defer s.ixMu.Unlock()
	keys, _, ok := s.index.Get(ctx, entity.ID, "", true)
	if ok {
		for _, sig := range keys {
			s.search.Clear(ctx, sig)
		}
		s.log.Debug("purged %d search listings containing %s", len(keys), entity.ID)
	}
	s.index.Clear(ctx, entity.ID)
}

// ClearOwner implements cache.Domain. Details and search results belong to
// the owner; provider records and the reverse index are shared and stay.
func (s *Service) ClearOwner(ctx context.Context, owner string) {
	s.detail.ClearAll(ctx, owner)
	s.search.ClearAll(ctx, owner)
}

// Name implements cache.Domain.
func (s *Service) Name() string {
	return "place"
}

// Stats implements cache.Domain.
func (s *Service) Stats(ctx context.Context) []cache.Stats {
	return []cache.Stats{
		s.provider.Stats(ctx),
		s.detail.Stats(ctx),
		s.search.Stats(ctx),
	}
}
