package cache

import (
	"context"
	"time"

	"github.com/placeloop/go-common/sys"
)

// refreshBudget bounds a detached background refresh, fetch included.
const refreshBudget = 30 * time.Second

// Through is the fetch-on-miss read path. A fresh hit returns immediately.
// On a miss the fetch runs through the in-flight table, its result is saved
// and returned. When the fetch fails, a stale entry is served as a fallback
// (isStale=true); with no fallback the fetch error propagates.
func Through[T any](ctx context.Context, c *Cache[T], key, owner string, fetch Fetcher[T]) (data T, isStale bool, err error) {
	if data, _, ok := c.Get(ctx, key, owner, false); ok {
		return data, false, nil
	}
	v, err, _ := c.flight.Do(c.storeKey(key), func() (interface{}, error) {
		// a waiter queued behind another caller may find the entry
		// already written by the time it gets here
		if data, _, ok := c.Get(ctx, key, owner, false); ok {
			return data, nil
		}
		data, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.Save(ctx, key, owner, data)
		return data, nil
	})
	if err != nil {
		if stale, isStale, ok := c.Get(ctx, key, owner, true); ok {
			c.log.Debug("serving stale %s after fetch failure: %s", key, err)
			return stale, isStale, nil
		}
		var zero T
		return zero, false, err
	}
	return v.(T), false, nil
}

// Revalidate is the stale-while-revalidate read path. A fresh hit returns
// immediately. A stale hit also returns immediately but triggers one
// asynchronous refresh through the in-flight table; refresh failures are
// swallowed and simply retried on the next stale access. A full miss
// behaves like Through.
func Revalidate[T any](ctx context.Context, c *Cache[T], key, owner string, fetch Fetcher[T]) (data T, isStale bool, err error) {
	if data, stale, ok := c.Get(ctx, key, owner, true); ok {
		if stale {
			refreshAsync(c, key, owner, fetch)
		}
		return data, stale, nil
	}
	return Through(ctx, c, key, owner, fetch)
}

// refreshAsync refetches key in the background, detached from the caller's
// context. The flight table guarantees at most one refresh per key at a time.
func refreshAsync[T any](c *Cache[T], key, owner string, fetch Fetcher[T]) {
	go func() {
		defer sys.RecoverPanic(c.log)
		ctx, cancel := context.WithTimeout(context.Background(), refreshBudget)
		defer cancel()
		_, err, _ := c.flight.Do(c.storeKey(key), func() (interface{}, error) {
			// another caller may have refreshed the entry already
			if data, stale, ok := c.Get(ctx, key, owner, true); ok && !stale {
				return data, nil
			}
			data, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			c.Save(ctx, key, owner, data)
			return data, nil
		})
		if err != nil {
			c.log.Debug("background refresh failed for %s: %s", key, err)
		}
	}()
}
