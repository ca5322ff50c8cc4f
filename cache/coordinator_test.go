package cache

import (
	"context"
	"testing"
	"time"

	"github.com/placeloop/go-common/logger"
	"github.com/stretchr/testify/assert"
)

type recordingDomain struct {
	name         string
	invalidated  []Entity
	clearedOwner []string
	stats        []Stats
}

func (d *recordingDomain) Name() string { return d.name }

func (d *recordingDomain) Invalidate(_ context.Context, entity Entity) {
	d.invalidated = append(d.invalidated, entity)
}

func (d *recordingDomain) ClearOwner(_ context.Context, owner string) {
	d.clearedOwner = append(d.clearedOwner, owner)
}

func (d *recordingDomain) Stats(_ context.Context) []Stats {
	return d.stats
}

func TestCoordinatorInvalidateFansOut(t *testing.T) {
	ctx := context.Background()
	a := &recordingDomain{name: "place.detail"}
	b := &recordingDomain{name: "collection.listing"}

	co := NewCoordinator(logger.NewTestLogger())
	co.Register(a, b)

	co.Invalidate(ctx, EntityPlace, "p-123")

	want := Entity{Type: EntityPlace, ID: "p-123"}
	assert.Equal(t, []Entity{want}, a.invalidated)
	assert.Equal(t, []Entity{want}, b.invalidated)
}

func TestCoordinatorClearAllForUser(t *testing.T) {
	ctx := context.Background()
	a := &recordingDomain{name: "a"}
	b := &recordingDomain{name: "b"}

	co := NewCoordinator(logger.NewTestLogger())
	co.Register(a, b)

	co.ClearAllForUser(ctx, "user-1")

	assert.Equal(t, []string{"user-1"}, a.clearedOwner)
	assert.Equal(t, []string{"user-1"}, b.clearedOwner)
}

func TestCoordinatorStatsAggregation(t *testing.T) {
	ctx := context.Background()
	a := &recordingDomain{name: "a", stats: []Stats{{Name: "a", Entries: 3, OldestAge: time.Hour}}}
	b := &recordingDomain{name: "b", stats: []Stats{
		{Name: "b.listing", Entries: 1},
		{Name: "b.detail", Entries: 2},
	}}

	co := NewCoordinator(logger.NewTestLogger())
	co.Register(a, b)

	stats := co.Stats(ctx)
	assert.Len(t, stats, 3)
	assert.Equal(t, "a", stats[0].Name)
	assert.Equal(t, 3, stats[0].Entries)
	assert.Equal(t, "b.detail", stats[2].Name)
}

func TestCoordinatorEmptyRegistry(t *testing.T) {
	ctx := context.Background()
	co := NewCoordinator(logger.NewTestLogger())

	// nothing registered is not an error
	co.Invalidate(ctx, EntityCollection, "c-1")
	co.ClearAllForUser(ctx, "user-1")
	assert.Empty(t, co.Stats(ctx))
}
