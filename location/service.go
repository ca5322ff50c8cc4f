package location

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/placeloop/go-common/cache"
	"github.com/placeloop/go-common/kv"
	"github.com/placeloop/go-common/logger"
	"github.com/placeloop/go-common/pubsub"
)

// Service owns the device position. It hydrates from the location cache,
// falls back to a configured default when the sensor cannot deliver, and
// keeps retrying in the background with a bounded attempt budget. All
// methods are safe for concurrent use.
type Service struct {
	log   logger.Logger
	fixer Fixer
	owner string
	cfg   Config
	cache *cache.Cache[Position]
	topic *pubsub.Topic[Update]
	clock func() time.Time

	mu          sync.Mutex
	position    *Position
	source      Source
	retryCount  int
	lastRetryAt time.Time
	retrying    bool
	closed      bool

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

var _ cache.Domain = (*Service)(nil)

type serviceOptions struct {
	log            logger.Logger
	flight         *cache.Flight
	now            func() time.Time
	storageTimeout time.Duration
}

type ServiceOption func(*serviceOptions)

// WithLogger sets the logger. Defaults to a console logger.
func WithLogger(log logger.Logger) ServiceOption {
	return func(o *serviceOptions) { o.log = log }
}

// WithFlight shares an in-flight table with other domains.
func WithFlight(f *cache.Flight) ServiceOption {
	return func(o *serviceOptions) { o.flight = f }
}

// WithNowFunc overrides the clock used for freshness decisions and retry
// spacing.
func WithNowFunc(now func() time.Time) ServiceOption {
	return func(o *serviceOptions) { o.now = now }
}

// WithStorageTimeout bounds each durable-store call of the position cache.
func WithStorageTimeout(d time.Duration) ServiceOption {
	return func(o *serviceOptions) { o.storageTimeout = d }
}

// NewService builds the freshness service for owner and starts its
// background loop. Callers must Close it when the session ends.
func NewService(base kv.Store, owner string, fixer Fixer, cfg Config, opts ...ServiceOption) *Service {
	cfg.defaults()

	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.NewConsoleLogger()
	}
	if o.flight == nil {
		o.flight = cache.NewFlight()
	}
	if o.now == nil {
		o.now = time.Now
	}

	log := o.log.With(map[string]interface{}{"component": "location"})
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		log:    log,
		fixer:  fixer,
		owner:  owner,
		cfg:    cfg,
		clock:  o.now,
		cache:  newPositionCache(base, &o),
		topic:  pubsub.NewTopic[Update](pubsub.WithLogger(log), pubsub.WithReplayLast()),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.run(ctx)
	return s
}

func newPositionCache(base kv.Store, o *serviceOptions) *cache.Cache[Position] {
	return cache.New[Position](base, cache.Config{
		Name:           "location",
		Schema:         "location.v1",
		SoftTTL:        cacheTTL,
		HardTTL:        cacheTTL,
		StorageTimeout: o.storageTimeout,
	}, cache.WithLogger(o.log), cache.WithFlight(o.flight), cache.WithNowFunc(o.now), cache.WithPrefix("location:"))
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.bootstrap(ctx)

	retry := time.NewTicker(s.cfg.RetryInterval)
	defer retry.Stop()
	refresh := time.NewTicker(s.cfg.RefreshInterval)
	defer refresh.Stop()

	// one early retry after entering fallback, ahead of the first tick
	var immediate <-chan time.Time
	if s.UsingFallback() {
		immediate = time.After(s.cfg.MinRetryDelay)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-immediate:
			immediate = nil
			s.retryTick(ctx)
		case <-retry.C:
			s.retryTick(ctx)
		case <-refresh.C:
			s.refreshTick(ctx)
		}
	}
}

// bootstrap establishes the initial position: a cached fix if one is still
// valid, otherwise one sensor attempt, otherwise the fallback.
func (s *Service) bootstrap(ctx context.Context) {
	if pos, _, ok := s.cache.Get(ctx, cacheKey, s.owner, false); ok {
		s.log.Debug("hydrated position from cache")
		s.mu.Lock()
		p := pos
		s.position = &p
		s.source = SourceReal
		s.mu.Unlock()
		s.topic.Publish(Update{Position: pos, Source: SourceReal})
		return
	}
	pos, err := s.fix(ctx)
	if err == nil {
		s.accept(ctx, pos)
		return
	}
	s.log.Warn("initial location fix failed: %s", err)
	s.enterFallback()
}

// fix runs one bounded sensor call and applies the confidence check.
func (s *Service) fix(ctx context.Context) (Position, error) {
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FixTimeout)
	defer cancel()
	pos, err := s.fixer.Fix(fctx)
	if err != nil {
		return Position{}, err
	}
	if s.cfg.AccuracyLimit > 0 && pos.Accuracy > s.cfg.AccuracyLimit {
		return Position{}, fmt.Errorf("%w: ±%.0fm", ErrLowConfidence, pos.Accuracy)
	}
	return pos, nil
}

// accept installs a real fix: state moves to using-real, the retry budget
// resets, the fix is written through the cache and subscribers are told.
func (s *Service) accept(ctx context.Context, pos Position) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	p := pos
	s.position = &p
	s.source = SourceReal
	s.retryCount = 0
	s.mu.Unlock()

	s.cache.Save(ctx, cacheKey, s.owner, pos)
	s.log.Debug("location fix accepted (±%.0fm)", pos.Accuracy)
	s.topic.Publish(Update{Position: pos, Source: SourceReal})
}

// enterFallback serves the configured default position. Reachable only
// before any position is held; a real fix is never downgraded.
func (s *Service) enterFallback() {
	s.mu.Lock()
	if s.closed || s.position != nil {
		s.mu.Unlock()
		return
	}
	p := s.cfg.Fallback
	s.position = &p
	s.source = SourceFallback
	s.mu.Unlock()

	s.log.Warn("no location fix available, serving fallback position")
	s.topic.Publish(Update{Position: p, Source: SourceFallback})
}

// retryTick attempts one background upgrade from fallback to a real fix.
// The tick is skipped when not in fallback, the attempt budget is spent,
// an attempt is in flight, or the previous attempt was too recent.
func (s *Service) retryTick(ctx context.Context) {
	s.mu.Lock()
	now := s.clock()
	switch {
	case s.closed || s.position == nil || s.source != SourceFallback:
		s.mu.Unlock()
		return
	case s.retryCount >= s.cfg.MaxRetryAttempts:
		s.mu.Unlock()
		return
	case s.retrying:
		s.mu.Unlock()
		return
	case !s.lastRetryAt.IsZero() && now.Sub(s.lastRetryAt) < s.cfg.MinRetryDelay:
		s.mu.Unlock()
		return
	}
	s.retryCount++
	s.lastRetryAt = now
	s.retrying = true
	attempt := s.retryCount
	s.mu.Unlock()

	s.log.Debug("retrying location fix (attempt %d/%d)", attempt, s.cfg.MaxRetryAttempts)
	pos, err := s.fix(ctx)

	s.mu.Lock()
	s.retrying = false
	s.mu.Unlock()

	if err != nil {
		if attempt >= s.cfg.MaxRetryAttempts {
			s.log.Warn("giving up on a real fix after %d attempts, keeping fallback until reset", attempt)
		} else {
			s.log.Debug("retry attempt %d failed: %s", attempt, err)
		}
		return
	}
	s.accept(ctx, pos)
}

// refreshTick keeps a held real fix from hard-expiring in the cache. A
// failed refresh is ignored; the last good fix wins.
func (s *Service) refreshTick(ctx context.Context) {
	s.mu.Lock()
	ok := !s.closed && s.position != nil && s.source == SourceReal
	s.mu.Unlock()
	if !ok {
		return
	}
	pos, err := s.fix(ctx)
	if err != nil {
		s.log.Debug("background refresh failed, keeping last fix: %s", err)
		return
	}
	s.accept(ctx, pos)
}

// Subscribe registers fn for position updates. The current position, if
// any, is replayed immediately so late subscribers never wait for the next
// sensor event. The returned function unsubscribes.
func (s *Service) Subscribe(fn func(Update)) func() {
	return s.topic.Subscribe(fn)
}

// Current returns the position being served, if any.
func (s *Service) Current() (Position, Source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.position == nil {
		return Position{}, "", false
	}
	return *s.position, s.source, true
}

// UsingFallback reports whether the fallback position is being served.
func (s *Service) UsingFallback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position != nil && s.source == SourceFallback
}

// ForceRetry attempts one fix immediately, bypassing the tick schedule and
// the spent attempt budget, and reports whether a real fix was obtained.
// The budget is re-armed so background retries resume afterwards.
func (s *Service) ForceRetry(ctx context.Context) bool {
	s.mu.Lock()
	if s.closed || s.retrying {
		s.mu.Unlock()
		return false
	}
	s.retryCount = 0
	s.lastRetryAt = s.clock()
	s.retrying = true
	s.mu.Unlock()

	s.log.Debug("forced location retry")
	pos, err := s.fix(ctx)

	s.mu.Lock()
	s.retrying = false
	s.mu.Unlock()

	if err != nil {
		s.log.Debug("forced retry failed: %s", err)
		return false
	}
	s.accept(ctx, pos)
	return true
}

// Reset clears the retry budget so background retries resume.
func (s *Service) Reset() {
	s.mu.Lock()
	s.retryCount = 0
	s.lastRetryAt = time.Time{}
	s.mu.Unlock()
	s.log.Debug("retry budget reset")
}

// Close stops the background loop and the notifier. Idempotent.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
		s.cancel()
		<-s.done
		s.topic.Close()
		s.log.Debug("location service closed")
	})
	return nil
}

// Invalidate implements cache.Domain. The location domain holds no copies
// of place or collection data.
func (s *Service) Invalidate(ctx context.Context, entity cache.Entity) {}

// ClearOwner implements cache.Domain. The in-memory position is left to
// Close; sign-out tears the owning session down anyway.
func (s *Service) ClearOwner(ctx context.Context, owner string) {
	s.cache.ClearAll(ctx, owner)
}

// Name implements cache.Domain.
func (s *Service) Name() string {
	return "location"
}

// Stats implements cache.Domain.
func (s *Service) Stats(ctx context.Context) []cache.Stats {
	return []cache.Stats{s.cache.Stats(ctx)}
}

// Sweep removes an expired cached fix, returning how many entries were
// dropped.
func (s *Service) Sweep(ctx context.Context) int {
	return s.cache.Sweep(ctx)
}
