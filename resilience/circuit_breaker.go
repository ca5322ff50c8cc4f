package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/placeloop/go-common/logger"
)

// ErrBreakerOpen is returned by Execute when the breaker is rejecting calls.
var ErrBreakerOpen = errors.New("circuit breaker is open")

// State represents the state of a circuit breaker.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF_OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// BreakerConfig defines the trip and recovery thresholds of a Breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int

	// CoolOff is how long the circuit stays open before probing the upstream again.
	CoolOff time.Duration

	// SuccessThreshold is the number of consecutive half-open successes needed to close.
	SuccessThreshold int

	// MaxProbes is the number of concurrent calls allowed while half-open.
	MaxProbes int
}

// DefaultBreakerConfig returns the thresholds used when a zero config is given.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxFailures:      5,
		CoolOff:          30 * time.Second,
		SuccessThreshold: 3,
		MaxProbes:        1,
	}
}

// Breaker fails calls fast once the upstream has proven unhealthy, and probes
// it again after a cool-off. Use one Breaker per upstream.
type Breaker struct {
	cfg BreakerConfig
	log logger.Logger
	now func() time.Time

	mutex     sync.Mutex
	state     State
	failures  int
	successes int
	probes    int
	openedAt  time.Time
}

type BreakerOption func(*Breaker)

// WithBreakerLogger sets the logger used for state transitions.
func WithBreakerLogger(log logger.Logger) BreakerOption {
	return func(b *Breaker) { b.log = log }
}

// NewBreaker creates a closed Breaker. Zero config fields take their defaults.
func NewBreaker(cfg BreakerConfig, opts ...BreakerOption) *Breaker {
	def := DefaultBreakerConfig()
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.CoolOff <= 0 {
		cfg.CoolOff = def.CoolOff
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = def.SuccessThreshold
	}
	if cfg.MaxProbes <= 0 {
		cfg.MaxProbes = def.MaxProbes
	}
	b := &Breaker{
		cfg:   cfg,
		state: StateClosed,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.log == nil {
		b.log = logger.NewConsoleLogger()
	}
	return b
}

// Execute runs fn unless the circuit is open, in which case it fails fast
// with ErrBreakerOpen. The outcome of fn feeds the breaker: nil counts as a
// success, context.Canceled counts as neither, everything else as a failure.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	switch {
	case err == nil:
		b.recordSuccess()
	case errors.Is(err, context.Canceled):
		b.recordAbandoned()
	default:
		b.recordFailure()
	}
	return err
}

// State returns the current state of the circuit breaker.
func (b *Breaker) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

// BreakerStats is a snapshot of the breaker's counters.
type BreakerStats struct {
	State     State
	Failures  int
	Successes int
	Probes    int
}

// Stats returns a snapshot of the breaker's counters.
func (b *Breaker) Stats() BreakerStats {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return BreakerStats{
		State:     b.state,
		Failures:  b.failures,
		Successes: b.successes,
		Probes:    b.probes,
	}
}

// Reset forces the breaker back to closed, clearing all counters.
func (b *Breaker) Reset() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.transition(StateClosed)
}

func (b *Breaker) allow() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.state == StateOpen {
		if b.now().Sub(b.openedAt) < b.cfg.CoolOff {
			return ErrBreakerOpen
		}
		b.transition(StateHalfOpen)
	}
	if b.state == StateHalfOpen {
		if b.probes >= b.cfg.MaxProbes {
			return ErrBreakerOpen
		}
		b.probes++
	}
	return nil
}

func (b *Breaker) recordSuccess() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.probes--
		b.successes++
		if b.successes >= b.cfg.SuccessThreshold {
			b.transition(StateClosed)
		}
	}
}

func (b *Breaker) recordFailure() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.MaxFailures {
			b.openedAt = b.now()
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		b.probes--
		b.openedAt = b.now()
		b.transition(StateOpen)
	}
}

// recordAbandoned releases a half-open probe slot when the caller gave up
// before the upstream could render a verdict.
func (b *Breaker) recordAbandoned() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.state == StateHalfOpen && b.probes > 0 {
		b.probes--
	}
}

func (b *Breaker) transition(next State) {
	if b.state == next {
		return
	}
	prev := b.state
	switch next {
	case StateOpen:
		b.log.Warn("circuit %s -> %s after %d consecutive failures", prev, next, b.failures)
	case StateHalfOpen:
		b.log.Debug("circuit %s -> %s, probing upstream", prev, next)
	case StateClosed:
		b.log.Info("circuit %s -> %s", prev, next)
	}
	b.state = next
	switch next {
	case StateClosed:
		b.failures = 0
		b.successes = 0
		b.probes = 0
	case StateHalfOpen:
		b.successes = 0
		b.probes = 0
	}
}
