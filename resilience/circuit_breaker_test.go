package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/placeloop/go-common/logger"
)

var errUpstream = errors.New("upstream unavailable")

func newTestBreaker(cfg BreakerConfig) *Breaker {
	return NewBreaker(cfg, WithBreakerLogger(logger.NewTestLogger()))
}

func TestBreaker_InitialState(t *testing.T) {
	b := newTestBreaker(DefaultBreakerConfig())

	if b.State() != StateClosed {
		t.Errorf("Expected initial state CLOSED, got %s", b.State())
	}
}

func TestBreaker_SuccessfulExecution(t *testing.T) {
	b := newTestBreaker(DefaultBreakerConfig())

	called := false
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})
	if err != nil {
		t.Errorf("Expected success, got error: %v", err)
	}
	if !called {
		t.Error("Expected function to be called")
	}
	if b.State() != StateClosed {
		t.Errorf("Expected state CLOSED, got %s", b.State())
	}
	if stats := b.Stats(); stats.Failures != 0 {
		t.Errorf("Expected 0 failures, got %d", stats.Failures)
	}
}

func TestBreaker_FailuresLeadToOpen(t *testing.T) {
	b := newTestBreaker(BreakerConfig{MaxFailures: 3})

	for i := 0; i < 3; i++ {
		b.Execute(context.Background(), func(ctx context.Context) error {
			return errUpstream
		})
	}

	if b.State() != StateOpen {
		t.Fatalf("Expected state OPEN after 3 failures, got %s", b.State())
	}

	invoked := false
	err := b.Execute(context.Background(), func(ctx context.Context) error {
		invoked = true
		return nil
	})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("Expected ErrBreakerOpen, got %v", err)
	}
	if invoked {
		t.Error("Expected fn not to run while circuit is open")
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := newTestBreaker(BreakerConfig{MaxFailures: 2})

	b.Execute(context.Background(), func(ctx context.Context) error { return errUpstream })
	b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	b.Execute(context.Background(), func(ctx context.Context) error { return errUpstream })

	if b.State() != StateClosed {
		t.Errorf("Expected state CLOSED, got %s", b.State())
	}
}

func TestBreaker_OpenToHalfOpenAfterCoolOff(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(BreakerConfig{MaxFailures: 1, CoolOff: 30 * time.Second, SuccessThreshold: 2})
	b.now = func() time.Time { return now }

	b.Execute(context.Background(), func(ctx context.Context) error { return errUpstream })
	if b.State() != StateOpen {
		t.Fatalf("Expected state OPEN, got %s", b.State())
	}

	// Still cooling off.
	err := b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("Expected ErrBreakerOpen during cool-off, got %v", err)
	}

	now = now.Add(31 * time.Second)
	err = b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	if err != nil {
		t.Errorf("Expected probe to run after cool-off, got %v", err)
	}
	if b.State() != StateHalfOpen {
		t.Errorf("Expected state HALF_OPEN after one probe success, got %s", b.State())
	}
}

func TestBreaker_HalfOpenToClosed(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(BreakerConfig{MaxFailures: 1, CoolOff: time.Second, SuccessThreshold: 2})
	b.now = func() time.Time { return now }

	b.Execute(context.Background(), func(ctx context.Context) error { return errUpstream })
	now = now.Add(2 * time.Second)

	for i := 0; i < 2; i++ {
		if err := b.Execute(context.Background(), func(ctx context.Context) error { return nil }); err != nil {
			t.Fatalf("Probe %d failed: %v", i, err)
		}
	}

	if b.State() != StateClosed {
		t.Errorf("Expected state CLOSED after 2 successes, got %s", b.State())
	}
}

func TestBreaker_HalfOpenFailureReopens(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(BreakerConfig{MaxFailures: 1, CoolOff: time.Second})
	b.now = func() time.Time { return now }

	b.Execute(context.Background(), func(ctx context.Context) error { return errUpstream })
	now = now.Add(2 * time.Second)

	b.Execute(context.Background(), func(ctx context.Context) error { return errUpstream })
	if b.State() != StateOpen {
		t.Fatalf("Expected state OPEN after failed probe, got %s", b.State())
	}

	// The failed probe restarts the cool-off clock.
	err := b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("Expected ErrBreakerOpen, got %v", err)
	}
}

func TestBreaker_MaxProbes(t *testing.T) {
	now := time.Now()
	b := newTestBreaker(BreakerConfig{MaxFailures: 1, CoolOff: time.Second, SuccessThreshold: 2, MaxProbes: 1})
	b.now = func() time.Time { return now }

	b.Execute(context.Background(), func(ctx context.Context) error { return errUpstream })
	now = now.Add(2 * time.Second)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- b.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()

	<-started
	err := b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("Expected second concurrent probe to be rejected, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Errorf("Expected first probe to succeed, got %v", err)
	}
}

func TestBreaker_CanceledCallsDoNotTrip(t *testing.T) {
	b := newTestBreaker(BreakerConfig{MaxFailures: 2})

	for i := 0; i < 5; i++ {
		b.Execute(context.Background(), func(ctx context.Context) error {
			return context.Canceled
		})
	}

	if b.State() != StateClosed {
		t.Errorf("Expected state CLOSED, got %s", b.State())
	}
	if stats := b.Stats(); stats.Failures != 0 {
		t.Errorf("Expected 0 failures, got %d", stats.Failures)
	}
}

func TestBreaker_Reset(t *testing.T) {
	b := newTestBreaker(BreakerConfig{MaxFailures: 1})

	b.Execute(context.Background(), func(ctx context.Context) error { return errUpstream })
	if b.State() != StateOpen {
		t.Fatalf("Expected state OPEN, got %s", b.State())
	}

	b.Reset()
	if b.State() != StateClosed {
		t.Errorf("Expected state CLOSED after reset, got %s", b.State())
	}

	err := b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	if err != nil {
		t.Errorf("Expected call to run after reset, got %v", err)
	}
}

func TestBreaker_Stats(t *testing.T) {
	b := newTestBreaker(BreakerConfig{MaxFailures: 5})

	b.Execute(context.Background(), func(ctx context.Context) error { return errUpstream })
	b.Execute(context.Background(), func(ctx context.Context) error { return errUpstream })

	stats := b.Stats()
	if stats.State != StateClosed {
		t.Errorf("Expected state CLOSED, got %s", stats.State)
	}
	if stats.Failures != 2 {
		t.Errorf("Expected 2 failures, got %d", stats.Failures)
	}
}

func TestBreaker_ZeroConfigDefaults(t *testing.T) {
	b := newTestBreaker(BreakerConfig{})

	if b.cfg.MaxFailures != 5 {
		t.Errorf("Expected default MaxFailures 5, got %d", b.cfg.MaxFailures)
	}
	if b.cfg.CoolOff != 30*time.Second {
		t.Errorf("Expected default CoolOff 30s, got %v", b.cfg.CoolOff)
	}
	if b.cfg.SuccessThreshold != 3 {
		t.Errorf("Expected default SuccessThreshold 3, got %d", b.cfg.SuccessThreshold)
	}
	if b.cfg.MaxProbes != 1 {
		t.Errorf("Expected default MaxProbes 1, got %d", b.cfg.MaxProbes)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateClosed, "CLOSED"},
		{StateHalfOpen, "HALF_OPEN"},
		{StateOpen, "OPEN"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
