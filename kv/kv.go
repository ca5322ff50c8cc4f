// Package kv provides the durable key-value stores the cache layer persists
// envelopes into. Stores hold opaque bytes and know nothing about TTLs or
// staleness. Implementations must be safe for concurrent use.
package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a store after Close.
var ErrClosed = errors.New("kv: store is closed")

// Store is a durable byte-oriented key-value store.
type Store interface {
	// Get returns the value for key. The second return is false when the
	// key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set writes the value for key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys returns every key starting with prefix. An empty prefix
	// returns all keys.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// Close releases any resources held by the store.
	Close() error
}
