package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestThroughMissFetchesAndSaves(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(t, detailConfig())

	var calls int32
	fetch := func(ctx context.Context) (testPayload, error) {
		atomic.AddInt32(&calls, 1)
		return testPayload{A: 7}, nil
	}

	got, isStale, err := Through(ctx, c, "abc", "user-1", fetch)
	assert.NoError(t, err)
	assert.False(t, isStale)
	assert.Equal(t, 7, got.A)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// second read is a fresh hit, no fetch
	got, _, err = Through(ctx, c, "abc", "user-1", fetch)
	assert.NoError(t, err)
	assert.Equal(t, 7, got.A)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestThroughFetchFailureServesStale(t *testing.T) {
	ctx := context.Background()
	c, _, clk := newTestCache(t, detailConfig())

	c.Save(ctx, "abc", "", testPayload{A: 1})
	clk.Advance(13 * time.Hour) // stale, not expired

	fetch := func(ctx context.Context) (testPayload, error) {
		return testPayload{}, errors.New("upstream down")
	}

	got, isStale, err := Through(ctx, c, "abc", "", fetch)
	assert.NoError(t, err)
	assert.True(t, isStale)
	assert.Equal(t, 1, got.A)
}

func TestThroughFetchFailureNoFallback(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(t, detailConfig())

	upstreamErr := errors.New("upstream down")
	_, _, err := Through(ctx, c, "abc", "", func(ctx context.Context) (testPayload, error) {
		return testPayload{}, upstreamErr
	})
	assert.ErrorIs(t, err, upstreamErr)
}

func TestThroughSingleFlight(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(t, detailConfig())

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (testPayload, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		return testPayload{A: 42}, nil
	}

	const concurrency = 5
	var wg sync.WaitGroup
	results := make([]testPayload, concurrency)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got, _, err := Through(ctx, c, "abc", "", fetch)
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}

	<-started
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "concurrent misses must share one fetch")
	for _, r := range results {
		assert.Equal(t, 42, r.A)
	}
}

func TestRevalidateFreshHitSkipsFetch(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(t, detailConfig())

	c.Save(ctx, "abc", "", testPayload{A: 1})

	var calls int32
	got, isStale, err := Revalidate(ctx, c, "abc", "", func(ctx context.Context) (testPayload, error) {
		atomic.AddInt32(&calls, 1)
		return testPayload{}, nil
	})
	assert.NoError(t, err)
	assert.False(t, isStale)
	assert.Equal(t, 1, got.A)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestRevalidateStaleReturnsImmediatelyAndRefreshes(t *testing.T) {
	ctx := context.Background()
	c, _, clk := newTestCache(t, detailConfig())

	c.Save(ctx, "abc", "", testPayload{A: 1})
	clk.Advance(13 * time.Hour)

	var calls int32
	fetch := func(ctx context.Context) (testPayload, error) {
		atomic.AddInt32(&calls, 1)
		return testPayload{A: 2}, nil
	}

	got, isStale, err := Revalidate(ctx, c, "abc", "", fetch)
	assert.NoError(t, err)
	assert.True(t, isStale, "stale value is served instantly")
	assert.Equal(t, 1, got.A)

	// the background refresh lands a fresh entry
	assert.Eventually(t, func() bool {
		got, isStale, ok := c.Get(ctx, "abc", "", false)
		return ok && !isStale && got.A == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRevalidateConcurrentStaleReadsOneRefetch(t *testing.T) {
	ctx := context.Background()
	c, _, clk := newTestCache(t, detailConfig())

	c.Save(ctx, "abc", "", testPayload{A: 1})
	clk.Advance(13 * time.Hour)

	var calls int32
	started := make(chan struct{})
	release := make(chan struct{})
	fetch := func(ctx context.Context) (testPayload, error) {
		atomic.AddInt32(&calls, 1)
		close(started)
		<-release
		return testPayload{A: 2}, nil
	}

	got1, stale1, err1 := Revalidate(ctx, c, "abc", "", fetch)
	<-started // first refresh is now holding the flight slot
	got2, stale2, err2 := Revalidate(ctx, c, "abc", "", fetch)
	close(release)

	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.True(t, stale1)
	assert.True(t, stale2)
	assert.Equal(t, 1, got1.A)
	assert.Equal(t, 1, got2.A)

	assert.Eventually(t, func() bool {
		got, _, ok := c.Get(ctx, "abc", "", false)
		return ok && got.A == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "only one background refetch may run")
}

func TestRevalidateRefreshFailureLeavesStaleServable(t *testing.T) {
	ctx := context.Background()
	c, _, clk := newTestCache(t, detailConfig())

	c.Save(ctx, "abc", "", testPayload{A: 1})
	clk.Advance(13 * time.Hour)

	done := make(chan struct{})
	fetch := func(ctx context.Context) (testPayload, error) {
		defer close(done)
		return testPayload{}, errors.New("upstream down")
	}

	got, isStale, err := Revalidate(ctx, c, "abc", "", fetch)
	assert.NoError(t, err, "refresh failures never surface to the caller")
	assert.True(t, isStale)
	assert.Equal(t, 1, got.A)

	<-done
	// still servable as stale for the next caller
	got, isStale, ok := c.Get(ctx, "abc", "", true)
	assert.True(t, ok)
	assert.True(t, isStale)
	assert.Equal(t, 1, got.A)
}

func TestRevalidateMissFetchesLikeThrough(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newTestCache(t, detailConfig())

	got, isStale, err := Revalidate(ctx, c, "abc", "", func(ctx context.Context) (testPayload, error) {
		return testPayload{A: 5}, nil
	})
	assert.NoError(t, err)
	assert.False(t, isStale)
	assert.Equal(t, 5, got.A)
}

func TestClearForgetsInflightKey(t *testing.T) {
	f := NewFlight()
	var calls int32

	_, _, _ = f.Do("k", func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return 1, nil
	})
	f.Forget("k")
	_, _, _ = f.Do("k", func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return 2, nil
	})

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}
