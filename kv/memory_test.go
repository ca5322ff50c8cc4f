package kv

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMemorySetGet(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	err := m.Set(ctx, "place:detail:abc", []byte("hello"))
	assert.NoError(t, err)

	val, found, err := m.Get(ctx, "place:detail:abc")
	assert.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("hello"), val)

	_, found, err = m.Get(ctx, "place:detail:missing")
	assert.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	assert.NoError(t, m.Set(ctx, "k", []byte("abc")))
	val, _, _ := m.Get(ctx, "k")
	val[0] = 'z'

	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), again)
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	assert.NoError(t, m.Set(ctx, "k", []byte("v")))
	assert.NoError(t, m.Delete(ctx, "k"))

	_, found, err := m.Get(ctx, "k")
	assert.NoError(t, err)
	assert.False(t, found)

	// deleting an absent key is not an error
	assert.NoError(t, m.Delete(ctx, "k"))
}

func TestMemoryKeysPrefix(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defer m.Close()

	assert.NoError(t, m.Set(ctx, "place:detail:a", []byte("1")))
	assert.NoError(t, m.Set(ctx, "place:detail:b", []byte("2")))
	assert.NoError(t, m.Set(ctx, "collection:list:u1", []byte("3")))

	keys, err := m.Keys(ctx, "place:detail:")
	assert.NoError(t, err)
	assert.Len(t, keys, 2)
	assert.ElementsMatch(t, []string{"place:detail:a", "place:detail:b"}, keys)

	all, err := m.Keys(ctx, "")
	assert.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(WithMaxBytes(30))
	defer m.Close()

	for i := 0; i < 3; i++ {
		assert.NoError(t, m.Set(ctx, fmt.Sprintf("k%d", i), make([]byte, 10)))
	}
	assert.Equal(t, 3, m.Len())

	// touch k0 so k1 becomes the eviction candidate
	_, found, _ := m.Get(ctx, "k0")
	assert.True(t, found)

	assert.NoError(t, m.Set(ctx, "k3", make([]byte, 10)))

	_, found, _ = m.Get(ctx, "k1")
	assert.False(t, found)
	_, found, _ = m.Get(ctx, "k0")
	assert.True(t, found)
	_, found, _ = m.Get(ctx, "k3")
	assert.True(t, found)
}

func TestMemoryClosed(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	assert.NoError(t, m.Close())

	err := m.Set(ctx, "k", []byte("v"))
	assert.ErrorIs(t, err, ErrClosed)
	_, _, err = m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
}
