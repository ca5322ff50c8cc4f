package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/placeloop/go-common/logger"
)

func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "test.db"), logger.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPlaceRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := &Place{
		ID:        "p1",
		Name:      "Tartine",
		Address:   "600 Guerrero St",
		Latitude:  37.7614,
		Longitude: -122.4241,
		UpdatedAt: time.Now(),
	}
	require.NoError(t, s.UpsertPlace(ctx, p))

	got, err := s.PlaceByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Tartine", got.Name)
	assert.Equal(t, "600 Guerrero St", got.Address)
	assert.InDelta(t, 37.7614, got.Latitude, 0.00001)
	assert.WithinDuration(t, p.UpdatedAt, got.UpdatedAt, time.Millisecond)
}

func TestPlaceUpsertOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertPlace(ctx, &Place{ID: "p1", Name: "Old Name"}))
	require.NoError(t, s.UpsertPlace(ctx, &Place{ID: "p1", Name: "New Name", Address: "somewhere"}))

	got, err := s.PlaceByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "New Name", got.Name)
	assert.Equal(t, "somewhere", got.Address)
}

func TestPlaceNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.PlaceByID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCollectionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	c := &Collection{
		ID:       "c1",
		OwnerID:  "user-1",
		Name:     "Coffee Spots",
		PlaceIDs: []string{"p3", "p1", "p2"},
	}
	require.NoError(t, s.SaveCollection(ctx, c))

	got, err := s.CollectionByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.OwnerID)
	assert.Equal(t, "Coffee Spots", got.Name)
	assert.Equal(t, []string{"p3", "p1", "p2"}, got.PlaceIDs, "membership order must survive")
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSaveCollectionReplacesMembership(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCollection(ctx, &Collection{ID: "c1", OwnerID: "u", Name: "n", PlaceIDs: []string{"p1", "p2"}}))
	require.NoError(t, s.SaveCollection(ctx, &Collection{ID: "c1", OwnerID: "u", Name: "n", PlaceIDs: []string{"p9"}}))

	got, err := s.CollectionByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p9"}, got.PlaceIDs)
}

func TestCollectionsByOwner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	require.NoError(t, s.SaveCollection(ctx, &Collection{ID: "c1", OwnerID: "alice", Name: "First", UpdatedAt: older, PlaceIDs: []string{"p1"}}))
	require.NoError(t, s.SaveCollection(ctx, &Collection{ID: "c2", OwnerID: "alice", Name: "Second", UpdatedAt: newer, PlaceIDs: []string{"p2", "p3"}}))
	require.NoError(t, s.SaveCollection(ctx, &Collection{ID: "c3", OwnerID: "bob", Name: "Not Alice's"}))

	got, err := s.CollectionsByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Most recently updated first, memberships attached.
	assert.Equal(t, "c2", got[0].ID)
	assert.Equal(t, []string{"p2", "p3"}, got[0].PlaceIDs)
	assert.Equal(t, "c1", got[1].ID)
	assert.Equal(t, []string{"p1"}, got[1].PlaceIDs)
}

func TestCollectionsByOwnerEmpty(t *testing.T) {
	s := openTestStore(t)

	got, err := s.CollectionsByOwner(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDeleteCollection(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveCollection(ctx, &Collection{ID: "c1", OwnerID: "u", Name: "n", PlaceIDs: []string{"p1"}}))
	require.NoError(t, s.DeleteCollection(ctx, "c1"))

	_, err := s.CollectionByID(ctx, "c1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, s.DeleteCollection(ctx, "c1"), ErrNotFound)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.db")
	ctx := context.Background()

	s, err := OpenSQLite(path, logger.NewTestLogger())
	require.NoError(t, err)
	require.NoError(t, s.UpsertPlace(ctx, &Place{ID: "p1", Name: "Persisted"}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(path, logger.NewTestLogger())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.PlaceByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Persisted", got.Name)
}

func TestInMemoryMode(t *testing.T) {
	s, err := OpenSQLite("", logger.NewTestLogger())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.UpsertPlace(ctx, &Place{ID: "p1", Name: "Ephemeral"}))
	got, err := s.PlaceByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Ephemeral", got.Name)
}
