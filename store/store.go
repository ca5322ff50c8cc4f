// Package store is the relational source of truth backing the cache layer.
// Collections live here; places are locally persisted snapshots used as a
// fallback when the upstream provider is unreachable. Cache entries are
// derived from this data, never the other way around.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Place is the locally persisted snapshot of a place.
type Place struct {
	ID        string    `json:"id" msgpack:"id"`
	Name      string    `json:"name" msgpack:"name"`
	Address   string    `json:"address,omitempty" msgpack:"address,omitempty"`
	Latitude  float64   `json:"latitude" msgpack:"latitude"`
	Longitude float64   `json:"longitude" msgpack:"longitude"`
	UpdatedAt time.Time `json:"updatedAt" msgpack:"updatedAt"`
}

// Collection is a user-curated list of places.
type Collection struct {
	ID        string    `json:"id" msgpack:"id"`
	OwnerID   string    `json:"ownerId" msgpack:"ownerId"`
	Name      string    `json:"name" msgpack:"name"`
	PlaceIDs  []string  `json:"placeIds,omitempty" msgpack:"placeIds,omitempty"`
	CreatedAt time.Time `json:"createdAt" msgpack:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" msgpack:"updatedAt"`
}

type PlaceStore interface {
	// PlaceByID returns the snapshot for id, or ErrNotFound.
	PlaceByID(ctx context.Context, id string) (*Place, error)
	// UpsertPlace inserts or replaces the snapshot.
	UpsertPlace(ctx context.Context, p *Place) error
}

type CollectionStore interface {
	// CollectionsByOwner returns the owner's collections, most recently
	// updated first.
	CollectionsByOwner(ctx context.Context, owner string) ([]Collection, error)
	// CollectionByID returns one collection, or ErrNotFound.
	CollectionByID(ctx context.Context, id string) (*Collection, error)
	// SaveCollection inserts or replaces a collection and its membership.
	SaveCollection(ctx context.Context, c *Collection) error
	// DeleteCollection removes a collection, or returns ErrNotFound.
	DeleteCollection(ctx context.Context, id string) error
}
