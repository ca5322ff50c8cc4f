package cache

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Flight collapses concurrent fetches for the same key into one in-flight
// call whose result every waiter shares. One Flight is meant to be shared
// by all domain caches so the whole subsystem has a single in-flight table;
// keys are already namespaced by domain prefix so they cannot collide.
type Flight struct {
	group singleflight.Group
}

// NewFlight returns an empty in-flight table.
func NewFlight() *Flight {
	return &Flight{}
}

// Do runs fn for key unless a call for key is already in flight, in which
// case it waits for that call and shares its result. shared reports whether
// the result was shared with other callers.
func (f *Flight) Do(key string, fn func() (interface{}, error)) (v interface{}, err error, shared bool) {
	return f.group.Do(key, fn)
}

// Forget drops any in-flight record for key so the next Do runs fn again.
// Clearing a key forgets it, otherwise a fetch started before the clear
// could hand waiters data that was just invalidated.
func (f *Flight) Forget(key string) {
	f.group.Forget(key)
}

// Fetcher produces a value from the domain's external collaborator (the
// upstream provider or the relational store).
type Fetcher[T any] func(ctx context.Context) (T, error)
