package cache

import (
	"context"
	"time"

	"github.com/placeloop/go-common/kv"
	"github.com/placeloop/go-common/logger"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultStorageTimeout is the per-operation budget against the durable
// store. A store that hangs past it is treated as a miss rather than
// blocking the caller.
const DefaultStorageTimeout = 5 * time.Second

// Config holds a domain cache's identity and TTL policy.
type Config struct {
	// Name identifies the domain in logs, stats and key namespacing,
	// e.g. "place.detail". Required.
	Name string
	// Schema is the versioned payload tag, e.g. "place.detail.v1".
	// Entries with a different tag are discarded on read. Required.
	Schema string
	// SoftTTL is the age past which entries are stale. Zero or anything
	// above HardTTL means entries go straight from fresh to expired.
	SoftTTL time.Duration
	// HardTTL is the age past which entries are never served. Required.
	HardTTL time.Duration
	// StorageTimeout bounds each durable-store call. Defaults to
	// DefaultStorageTimeout.
	StorageTimeout time.Duration
}

// miss reasons, logged so degraded reads are diagnosable without
// ever surfacing an error to the caller
const (
	missReadError      = "read_error"
	missTimeout        = "timeout"
	missCorrupt        = "corrupt"
	missSchemaMismatch = "schema_mismatch"
	missOwnerMismatch  = "owner_mismatch"
	missExpired        = "expired"
)

type options struct {
	log    logger.Logger
	now    func() time.Time
	flight *Flight
	prefix string
}

// Option configures a Cache.
type Option func(*options)

// WithLogger sets the logger. Defaults to a console logger.
func WithLogger(log logger.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithNowFunc overrides the clock, for tests that need to age entries
// without sleeping.
func WithNowFunc(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithFlight sets the in-flight fetch table. Pass the same Flight to every
// domain cache so the whole subsystem shares one table.
func WithFlight(f *Flight) Option {
	return func(o *options) { o.flight = f }
}

// WithPrefix overrides the key namespace. Defaults to Name + ":".
func WithPrefix(p string) Option {
	return func(o *options) { o.prefix = p }
}

// Stats describes one domain cache for diagnostics.
type Stats struct {
	Name      string
	Entries   int
	OldestAge time.Duration
}

// Cache is a generic fail-open cache over a durable key-value store.
// Every operation degrades to a miss on internal failure; none of them
// return errors. Safe for concurrent use.
type Cache[T any] struct {
	store  kv.Store
	cfg    Config
	log    logger.Logger
	now    func() time.Time
	flight *Flight
	prefix string
}

// New returns a Cache for one domain. It panics when Name, Schema or
// HardTTL are missing, since those are construction-time programmer errors.
func New[T any](store kv.Store, cfg Config, opts ...Option) *Cache[T] {
	if cfg.Name == "" {
		panic("cache: Config.Name is required")
	}
	if cfg.Schema == "" {
		panic("cache: Config.Schema is required")
	}
	if cfg.HardTTL <= 0 {
		panic("cache: Config.HardTTL is required")
	}
	if cfg.SoftTTL <= 0 || cfg.SoftTTL > cfg.HardTTL {
		cfg.SoftTTL = cfg.HardTTL
	}
	if cfg.StorageTimeout <= 0 {
		cfg.StorageTimeout = DefaultStorageTimeout
	}
	o := &options{
		now:    time.Now,
		prefix: cfg.Name + ":",
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.NewConsoleLogger()
	}
	if o.flight == nil {
		o.flight = NewFlight()
	}
	return &Cache[T]{
		store:  store,
		cfg:    cfg,
		log:    o.log.With(map[string]interface{}{"domain": cfg.Name}),
		now:    o.now,
		flight: o.flight,
		prefix: o.prefix,
	}
}

// Name returns the domain name.
func (c *Cache[T]) Name() string {
	return c.cfg.Name
}

func (c *Cache[T]) storeKey(key string) string {
	return c.prefix + key
}

func (c *Cache[T]) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.cfg.StorageTimeout)
}

// Save wraps data in an envelope stamped with the current time and writes
// it. Writes are best-effort; failures are logged and swallowed.
func (c *Cache[T]) Save(ctx context.Context, key, owner string, data T) {
	payload, err := msgpack.Marshal(data)
	if err != nil {
		c.log.Warn("failed to encode cache payload for %s: %s", key, err)
		return
	}
	raw, err := encodeEnvelope(c.cfg.Schema, owner, c.now(), payload)
	if err != nil {
		c.log.Warn("failed to encode cache envelope for %s: %s", key, err)
		return
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	if err := c.store.Set(qctx, c.storeKey(key), raw); err != nil {
		c.log.Warn("cache write failed for %s: %s", key, err)
	}
}

// read loads and validates the envelope for key. It returns nil when the
// entry is absent or unusable; unusable entries are purged.
func (c *Cache[T]) read(ctx context.Context, key, owner string) *Envelope {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	raw, found, err := c.store.Get(qctx, c.storeKey(key))
	if err != nil {
		reason := missReadError
		if qctx.Err() != nil {
			reason = missTimeout
		}
		c.log.Warn("cache read degraded to miss for %s (%s): %s", key, reason, err)
		return nil
	}
	if !found {
		return nil
	}
	env, err := decodeEnvelope(raw)
	if err != nil {
		c.log.Warn("cache read degraded to miss for %s (%s): %s", key, missCorrupt, err)
		c.purge(ctx, key)
		return nil
	}
	if env.Schema != c.cfg.Schema {
		c.log.Debug("discarding cache entry %s (%s): have %q want %q", key, missSchemaMismatch, env.Schema, c.cfg.Schema)
		c.purge(ctx, key)
		return nil
	}
	if env.Owner != owner {
		c.log.Debug("discarding cache entry %s (%s)", key, missOwnerMismatch)
		c.purge(ctx, key)
		return nil
	}
	return env
}

func (c *Cache[T]) decode(ctx context.Context, key string, env *Envelope) (T, bool) {
	var data T
	if err := msgpack.Unmarshal(env.Payload, &data); err != nil {
		c.log.Warn("cache payload undecodable for %s (%s): %s", key, missCorrupt, err)
		c.purge(ctx, key)
		var zero T
		return zero, false
	}
	return data, true
}

// Get reads the entry for key. ok is false when the entry is missing,
// corrupted, owned by someone else, expired, or the store misbehaves.
// A stale entry is returned with isStale=true only when allowStale is set.
func (c *Cache[T]) Get(ctx context.Context, key, owner string, allowStale bool) (data T, isStale bool, ok bool) {
	env := c.read(ctx, key, owner)
	if env == nil {
		var zero T
		return zero, false, false
	}
	switch env.State(c.now(), c.cfg.SoftTTL, c.cfg.HardTTL) {
	case StateExpired:
		c.log.Trace("cache entry %s is %s", key, missExpired)
		c.purge(ctx, key)
		var zero T
		return zero, false, false
	case StateStale:
		if !allowStale {
			var zero T
			return zero, false, false
		}
		data, decoded := c.decode(ctx, key, env)
		return data, decoded, decoded
	default:
		data, decoded := c.decode(ctx, key, env)
		return data, false, decoded
	}
}

// HasValid reports whether a fresh entry exists for key. It never decodes
// the payload.
func (c *Cache[T]) HasValid(ctx context.Context, key, owner string) bool {
	env := c.read(ctx, key, owner)
	if env == nil {
		return false
	}
	return env.State(c.now(), c.cfg.SoftTTL, c.cfg.HardTTL) == StateFresh
}

// Update applies mutate to the stored payload and writes it back. Absent
// (or expired) entries are left alone. With preserveTimestamp the original
// CachedAt survives, so optimistic edits do not reset freshness.
func (c *Cache[T]) Update(ctx context.Context, key, owner string, mutate func(T) T, preserveTimestamp bool) {
	env := c.read(ctx, key, owner)
	if env == nil {
		return
	}
	if env.State(c.now(), c.cfg.SoftTTL, c.cfg.HardTTL) == StateExpired {
		return
	}
	data, decoded := c.decode(ctx, key, env)
	if !decoded {
		return
	}
	payload, err := msgpack.Marshal(mutate(data))
	if err != nil {
		c.log.Warn("failed to encode updated payload for %s: %s", key, err)
		return
	}
	cachedAt := env.CachedAt
	if !preserveTimestamp {
		cachedAt = c.now()
	}
	raw, err := encodeEnvelope(c.cfg.Schema, owner, cachedAt, payload)
	if err != nil {
		c.log.Warn("failed to encode cache envelope for %s: %s", key, err)
		return
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	if err := c.store.Set(qctx, c.storeKey(key), raw); err != nil {
		c.log.Warn("cache write failed for %s: %s", key, err)
	}
}

// Clear removes the entry for key.
func (c *Cache[T]) Clear(ctx context.Context, key string) {
	c.purge(ctx, key)
	c.flight.Forget(c.storeKey(key))
}

func (c *Cache[T]) purge(ctx context.Context, key string) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	if err := c.store.Delete(qctx, c.storeKey(key)); err != nil {
		c.log.Warn("cache delete failed for %s: %s", key, err)
	}
}

// ClearAll removes every entry belonging to owner, or every entry in the
// domain when owner is empty. Used on sign-out.
func (c *Cache[T]) ClearAll(ctx context.Context, owner string) {
	keys, err := c.keys(ctx)
	if err != nil {
		c.log.Warn("cache enumeration failed: %s", err)
		return
	}
	for _, storeKey := range keys {
		if owner != "" {
			raw, found, err := c.storeGet(ctx, storeKey)
			if err != nil || !found {
				continue
			}
			env, err := decodeEnvelope(raw)
			if err == nil && env.Owner != owner {
				continue
			}
			// corrupt entries fall through and are removed
		}
		qctx, cancel := c.queryCtx(ctx)
		if err := c.store.Delete(qctx, storeKey); err != nil {
			c.log.Warn("cache delete failed for %s: %s", storeKey, err)
		}
		cancel()
	}
}

// Stats counts the domain's stored entries and the age of the oldest one.
func (c *Cache[T]) Stats(ctx context.Context) Stats {
	stats := Stats{Name: c.cfg.Name}
	keys, err := c.keys(ctx)
	if err != nil {
		c.log.Warn("cache enumeration failed: %s", err)
		return stats
	}
	now := c.now()
	for _, storeKey := range keys {
		raw, found, err := c.storeGet(ctx, storeKey)
		if err != nil || !found {
			continue
		}
		env, err := decodeEnvelope(raw)
		if err != nil {
			continue
		}
		stats.Entries++
		if age := env.Age(now); age > stats.OldestAge {
			stats.OldestAge = age
		}
	}
	return stats
}

// Sweep removes hard-expired and undecodable entries, returning how many
// it removed.
func (c *Cache[T]) Sweep(ctx context.Context) int {
	keys, err := c.keys(ctx)
	if err != nil {
		c.log.Warn("cache enumeration failed: %s", err)
		return 0
	}
	now := c.now()
	removed := 0
	for _, storeKey := range keys {
		raw, found, err := c.storeGet(ctx, storeKey)
		if err != nil || !found {
			continue
		}
		env, err := decodeEnvelope(raw)
		if err == nil && env.State(now, c.cfg.SoftTTL, c.cfg.HardTTL) != StateExpired {
			continue
		}
		qctx, cancel := c.queryCtx(ctx)
		if err := c.store.Delete(qctx, storeKey); err != nil {
			c.log.Warn("cache delete failed for %s: %s", storeKey, err)
		} else {
			removed++
		}
		cancel()
	}
	if removed > 0 {
		c.log.Debug("swept %d expired entries", removed)
	}
	return removed
}

func (c *Cache[T]) keys(ctx context.Context) ([]string, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	return c.store.Keys(qctx, c.prefix)
}

func (c *Cache[T]) storeGet(ctx context.Context, storeKey string) ([]byte, bool, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	return c.store.Get(qctx, storeKey)
}
