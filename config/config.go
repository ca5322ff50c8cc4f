// Package config loads the cache layer's configuration from a YAML file
// with PLACELOOP_* environment overrides layered on top.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/xhit/go-str2duration/v2"
	yc "github.com/zijiren233/yaml-comment"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/api/resource"

	cstr "github.com/placeloop/go-common/string"
	"github.com/placeloop/go-common/sys"
)

// ErrNotFound is returned when the named config file does not exist.
var ErrNotFound = errors.New("config file not found")

// Duration accepts str2duration forms, so retention periods can be written
// as "90d" or "1w2d" rather than hour counts.
type Duration time.Duration

// Std returns the plain time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return str2duration.String(time.Duration(d))
}

// UnmarshalText implements encoding.TextUnmarshaler for env overrides.
func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := str2duration.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Provider configures the upstream place-data client.
type Provider struct {
	BaseURL   string            `json:"base_url" yaml:"base_url" env:"PLACELOOP_PROVIDER_BASE_URL" hc:"The base URL of the place-data provider"`
	APIKey    cstr.MaskedString `json:"api_key" yaml:"api_key" env:"PLACELOOP_PROVIDER_API_KEY" hc:"The provider API key"`
	Retention Duration          `json:"retention" yaml:"retention" env:"PLACELOOP_PROVIDER_RETENTION" hc:"How long provider responses may be cached"`
}

// Cache configures the generic cache engine.
type Cache struct {
	StorageTimeout Duration `json:"storage_timeout" yaml:"storage_timeout" env:"PLACELOOP_CACHE_STORAGE_TIMEOUT" hc:"Per-call budget for the durable store before a read degrades to a miss"`
	Overlay        string   `json:"overlay" yaml:"overlay" env:"PLACELOOP_CACHE_OVERLAY" hc:"In-memory overlay capacity for search results"`

	OverlayQuantity resource.Quantity `json:"-" yaml:"-" env:"-"`
}

// Storage names the durable stores.
type Storage struct {
	BoltPath  string `json:"bolt_path" yaml:"bolt_path" env:"PLACELOOP_STORAGE_BOLT_PATH" hc:"Path of the bolt cache file"`
	SQLiteDSN string `json:"sqlite_dsn" yaml:"sqlite_dsn" env:"PLACELOOP_STORAGE_SQLITE_DSN" hc:"DSN of the relational store"`
	RedisURL  string `json:"redis_url" yaml:"redis_url" env:"PLACELOOP_STORAGE_REDIS_URL" hc:"Optional redis URL for a server-side cache tier"`
}

// Location configures the freshness service's retry machine.
type Location struct {
	MaxRetryAttempts  int      `json:"max_retry_attempts" yaml:"max_retry_attempts" env:"PLACELOOP_LOCATION_MAX_RETRY_ATTEMPTS" hc:"Background retry budget after entering fallback"`
	RetryInterval     Duration `json:"retry_interval" yaml:"retry_interval" env:"PLACELOOP_LOCATION_RETRY_INTERVAL" hc:"Period of the background retry tick"`
	MinRetryDelay     Duration `json:"min_retry_delay" yaml:"min_retry_delay" env:"PLACELOOP_LOCATION_MIN_RETRY_DELAY" hc:"Minimum spacing between two attempts"`
	RefreshInterval   Duration `json:"refresh_interval" yaml:"refresh_interval" env:"PLACELOOP_LOCATION_REFRESH_INTERVAL" hc:"How often a held fix is re-requested"`
	FallbackLatitude  float64  `json:"fallback_latitude" yaml:"fallback_latitude" env:"PLACELOOP_LOCATION_FALLBACK_LATITUDE" hc:"Latitude served when no fix can be obtained"`
	FallbackLongitude float64  `json:"fallback_longitude" yaml:"fallback_longitude" env:"PLACELOOP_LOCATION_FALLBACK_LONGITUDE" hc:"Longitude served when no fix can be obtained"`
}

// Telemetry configures logging and trace export.
type Telemetry struct {
	LogLevel string `json:"log_level" yaml:"log_level" env:"PLACELOOP_LOG_LEVEL" hc:"trace, debug, info, warn or error"`
	OTLPURL  string `json:"otlp_url" yaml:"otlp_url" env:"PLACELOOP_OTLP_URL" hc:"Optional OTLP endpoint for logs and traces"`
}

// Config is the full configuration of the cache layer.
type Config struct {
	Provider  Provider  `json:"provider" yaml:"provider"`
	Cache     Cache     `json:"cache" yaml:"cache"`
	Storage   Storage   `json:"storage" yaml:"storage"`
	Location  Location  `json:"location" yaml:"location"`
	Telemetry Telemetry `json:"telemetry" yaml:"telemetry"`
}

// Default returns the configuration used when no file and no environment
// overrides are present.
func Default() *Config {
	return &Config{
		Provider: Provider{
			Retention: Duration(90 * 24 * time.Hour),
		},
		Cache: Cache{
			StorageTimeout: Duration(2 * time.Second),
			Overlay:        "4Mi",
		},
		Storage: Storage{
			BoltPath:  "placeloop.cache.db",
			SQLiteDSN: "placeloop.db",
		},
		Location: Location{
			MaxRetryAttempts: 8,
			RetryInterval:    Duration(30 * time.Second),
			MinRetryDelay:    Duration(5 * time.Second),
			RefreshInterval:  Duration(2 * time.Minute),
			// Union Square, San Francisco
			FallbackLatitude:  37.7880,
			FallbackLongitude: -122.4075,
		},
		Telemetry: Telemetry{
			LogLevel: "info",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is empty, no file is read), then PLACELOOP_* environment overrides.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		if !sys.Exists(path) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		of, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %s. %w", path, err)
		}
		defer of.Close()
		if err := yaml.NewDecoder(of).Decode(c); err != nil {
			return nil, fmt.Errorf("failed to decode YAML config file: %s. %w", path, err)
		}
	}

	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks cross-field constraints and parses derived values.
func (c *Config) Validate() error {
	if c.Provider.Retention <= 0 {
		return fmt.Errorf("provider.retention must be positive, got %s", c.Provider.Retention)
	}
	if c.Cache.StorageTimeout <= 0 {
		return fmt.Errorf("cache.storage_timeout must be positive, got %s", c.Cache.StorageTimeout)
	}
	if c.Location.MaxRetryAttempts <= 0 {
		return fmt.Errorf("location.max_retry_attempts must be positive, got %d", c.Location.MaxRetryAttempts)
	}
	if c.Location.MinRetryDelay > c.Location.RetryInterval {
		return fmt.Errorf("location.min_retry_delay %s exceeds location.retry_interval %s", c.Location.MinRetryDelay, c.Location.RetryInterval)
	}
	switch c.Telemetry.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid telemetry.log_level value: %s", c.Telemetry.LogLevel)
	}

	if c.Cache.Overlay != "" {
		val, err := resource.ParseQuantity(c.Cache.Overlay)
		if err != nil {
			return fmt.Errorf("error validating cache.overlay value '%s'. %w", c.Cache.Overlay, err)
		}
		if val.Sign() < 0 {
			return fmt.Errorf("cache.overlay must be >= 0, got '%s'", c.Cache.Overlay)
		}
		c.Cache.OverlayQuantity = val
	}
	return nil
}

// Save writes the configuration as commented YAML.
func (c *Config) Save(path string) error {
	of, err := os.Create(path)
	if err != nil {
		return err
	}
	defer of.Close()
	of.WriteString("# PlaceLoop cache layer configuration\n")
	of.WriteString("# Every value can be overridden with a PLACELOOP_* environment variable\n")
	of.WriteString("\n")
	enc := yaml.NewEncoder(of)
	enc.SetIndent(2)
	yenc := yc.NewEncoder(enc)
	return yenc.Encode(c)
}
