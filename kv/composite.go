package kv

import "context"

type composite struct {
	stores []Store
}

var _ Store = (*composite)(nil)

// NewComposite returns a Store that chains multiple stores together.
// Get checks stores in order and returns the first hit.
// Set and Delete write through every store.
// Keys merges the keys of every store.
// At least one store must be provided; panics if empty.
func NewComposite(stores ...Store) Store {
	if len(stores) == 0 {
		panic("kv: NewComposite requires at least one store")
	}
	return &composite{stores: stores}
}

func (c *composite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	for _, store := range c.stores {
		value, found, err := store.Get(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if found {
			return value, true, nil
		}
	}
	return nil, false, nil
}

func (c *composite) Set(ctx context.Context, key string, value []byte) error {
	var firstErr error
	for _, store := range c.stores {
		if err := store.Set(ctx, key, value); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *composite) Delete(ctx context.Context, key string) error {
	var firstErr error
	for _, store := range c.stores {
		if err := store.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *composite) Keys(ctx context.Context, prefix string) ([]string, error) {
	seen := make(map[string]bool)
	var keys []string
	for _, store := range c.stores {
		storeKeys, err := store.Keys(ctx, prefix)
		if err != nil {
			return nil, err
		}
		for _, key := range storeKeys {
			if !seen[key] {
				seen[key] = true
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

func (c *composite) Close() error {
	var firstErr error
	for _, store := range c.stores {
		if err := store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
