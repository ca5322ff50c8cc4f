// Package location layers a bounded background-retry state machine on top
// of the device location cache. A low-quality fallback position is served
// immediately and upgraded in the background; subscribers are notified of
// every accepted change and a failed fix never surfaces as an error.
package location

import (
	"context"
	"errors"
	"time"
)

// ErrLowConfidence marks a fix whose reported accuracy is too poor to accept.
var ErrLowConfidence = errors.New("location: fix below confidence threshold")

// Positions older than the hard TTL are never served; the refresh interval
// keeps the cached fix inside it while the service runs.
const (
	cacheTTL = 3 * time.Minute
	cacheKey = "last"
)

// Defaults for the retry state machine.
const (
	DefaultMaxRetryAttempts = 8
	DefaultRetryInterval    = 30 * time.Second
	DefaultMinRetryDelay    = 5 * time.Second
	DefaultRefreshInterval  = 2 * time.Minute
	DefaultFixTimeout       = 10 * time.Second
	DefaultAccuracyLimit    = 100.0
)

// Source tells subscribers where a position came from.
type Source string

const (
	// SourceReal is a high-confidence fix from the platform sensor.
	SourceReal Source = "real"
	// SourceFallback is the configured default position, served while no
	// real fix is available.
	SourceFallback Source = "fallback"
)

// Position is a geographic fix. Accuracy is the sensor's error radius in
// meters; zero means unknown.
type Position struct {
	Latitude  float64   `json:"latitude" msgpack:"latitude"`
	Longitude float64   `json:"longitude" msgpack:"longitude"`
	Accuracy  float64   `json:"accuracy" msgpack:"accuracy"`
	FixedAt   time.Time `json:"fixedAt" msgpack:"fixedAt"`
}

// Update is delivered to subscribers on every accepted position change.
type Update struct {
	Position Position
	Source   Source
}

// Fixer obtains a position from the platform sensor. A Fixer reporting an
// error or a low-confidence fix never downgrades an already-held real fix.
type Fixer interface {
	Fix(ctx context.Context) (Position, error)
}

// Config tunes the retry state machine. Zero fields take the package
// defaults; Fallback should be a sensible region center for the app.
type Config struct {
	// MaxRetryAttempts bounds background retries after entering fallback.
	// Once reached, retrying stops until Reset or ForceRetry.
	MaxRetryAttempts int
	// RetryInterval is the period of the background retry tick.
	RetryInterval time.Duration
	// MinRetryDelay is the minimum spacing between two attempts, and the
	// delay before the first retry after entering fallback.
	MinRetryDelay time.Duration
	// RefreshInterval re-requests a fix while a real position is held so
	// the cached fix never hard-expires.
	RefreshInterval time.Duration
	// FixTimeout bounds a single sensor call.
	FixTimeout time.Duration
	// AccuracyLimit is the worst acceptable error radius in meters.
	// Fixes above it count as failures. Negative disables the check.
	AccuracyLimit float64
	// Fallback is served when no fix can be obtained at all.
	Fallback Position
}

func (c *Config) defaults() {
	if c.MaxRetryAttempts <= 0 {
		c.MaxRetryAttempts = DefaultMaxRetryAttempts
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.MinRetryDelay <= 0 {
		c.MinRetryDelay = DefaultMinRetryDelay
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.FixTimeout <= 0 {
		c.FixTimeout = DefaultFixTimeout
	}
	if c.AccuracyLimit == 0 {
		c.AccuracyLimit = DefaultAccuracyLimit
	}
}
