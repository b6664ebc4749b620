// Package config loads the TOML configuration for a connection pool and
// the backend it connects to.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	apperrors "github.com/go-i2p/connpool/lib/errors"
	"github.com/go-i2p/connpool/lib/pool"
	"github.com/go-i2p/connpool/lib/resilience"
	"github.com/go-i2p/connpool/lib/validation"
)

// Target kinds understood by the factory builders.
const (
	KindTCP   = "tcp"
	KindRedis = "redis"
	KindMySQL = "mysql"
)

// Default configuration values
const (
	DefaultTargetKind    = KindTCP
	DefaultTargetAddress = "127.0.0.1:6379"
	DefaultDialTimeout   = 5 * time.Second
)

// Duration is a time.Duration that reads and writes as a string such as
// "30s" in TOML. A bare integer is read as seconds.
type Duration time.Duration

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := parseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, apperrors.ErrInvalidInput)
	}
	return v, nil
}

// Config holds all configuration for a pool and its backend.
type Config struct {
	Pool    PoolConfig    `toml:"pool"`
	Target  TargetConfig  `toml:"target"`
	Breaker BreakerConfig `toml:"breaker"`
}

// PoolConfig mirrors pool.Options.
type PoolConfig struct {
	MinIdle               int      `toml:"min_idle"`
	MaxOpen               int      `toml:"max_open"`
	AcquireTimeout        Duration `toml:"acquire_timeout"`
	IdleTimeout           Duration `toml:"idle_timeout"`
	MaxLifetime           Duration `toml:"max_lifetime"`
	ValidateOnBorrow      bool     `toml:"validate_on_borrow"`
	ValidateOnReturn      bool     `toml:"validate_on_return"`
	MaxValidationAttempts int      `toml:"max_validation_attempts"`
	ReapInterval          Duration `toml:"reap_interval"`
}

// TargetConfig describes the backend connections are opened to.
type TargetConfig struct {
	// Kind selects the factory: "tcp", "redis" or "mysql"
	Kind string `toml:"kind"`
	// Address is host:port for tcp and redis targets
	Address string `toml:"address,omitempty"`
	// DSN is the data source name for mysql targets
	DSN string `toml:"dsn,omitempty"`
	// Password authenticates redis targets
	Password string `toml:"password,omitempty"`
	// DB selects the redis database
	DB int `toml:"db"`
	// DialTimeout bounds a single connection attempt
	DialTimeout Duration `toml:"dial_timeout"`
	// CreateRate caps new connections per second; 0 means unlimited
	CreateRate float64 `toml:"create_rate"`
	// CreateBurst is the number of connections that may be opened at once
	// before CreateRate applies
	CreateBurst int `toml:"create_burst"`
}

// BreakerConfig configures the circuit breaker and health monitor that
// guard connection creation.
type BreakerConfig struct {
	Enabled          bool     `toml:"enabled"`
	FailureThreshold int      `toml:"failure_threshold"`
	SuccessThreshold int      `toml:"success_threshold"`
	OpenTimeout      Duration `toml:"open_timeout"`
	MaxProbes        int      `toml:"max_probes"`
	// MonitorInterval enables background probing of the target when
	// positive. A recovery detected by the monitor invalidates the pool.
	MonitorInterval Duration `toml:"monitor_interval"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	opts := pool.DefaultOptions()
	br := resilience.DefaultConfig()

	return &Config{
		Pool: PoolConfig{
			MinIdle:               opts.MinIdle,
			MaxOpen:               opts.MaxOpen,
			AcquireTimeout:        Duration(opts.AcquireTimeout),
			IdleTimeout:           Duration(opts.IdleTimeout),
			MaxLifetime:           Duration(opts.MaxLifetime),
			MaxValidationAttempts: opts.MaxValidationAttempts,
			ReapInterval:          Duration(opts.ReapInterval),
		},
		Target: TargetConfig{
			Kind:        DefaultTargetKind,
			Address:     DefaultTargetAddress,
			DialTimeout: Duration(DefaultDialTimeout),
			CreateBurst: 1,
		},
		Breaker: BreakerConfig{
			Enabled:          false,
			FailureThreshold: br.FailureThreshold,
			SuccessThreshold: br.SuccessThreshold,
			OpenTimeout:      Duration(br.OpenTimeout),
			MaxProbes:        br.MaxProbes,
		},
	}
}

// LoadConfig reads configuration from a TOML file and applies CONNPOOL_*
// environment overrides. If the file doesn't exist, the defaults are used.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case os.IsNotExist(err):
		log.WithField("path", path).Debug("config file not found, using defaults")
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveConfig writes the configuration to a TOML file.
// It creates the parent directory if it doesn't exist.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.PoolOptions().Validate(); err != nil {
		return err
	}

	var errs validation.Errors
	t := c.Target
	errs.Add(validation.OneOf("target.kind", t.Kind, KindTCP, KindRedis, KindMySQL))
	switch t.Kind {
	case KindTCP, KindRedis:
		errs.Add(validation.HostPort("target.address", t.Address))
	case KindMySQL:
		errs.Add(validation.Required("target.dsn", t.DSN))
	}
	errs.Add(validation.NonNegativeDuration("target.dial_timeout", time.Duration(t.DialTimeout)))
	errs.Add(validation.NonNegative("target.create_rate", t.CreateRate))
	if t.CreateRate > 0 {
		errs.Add(validation.AtLeast("target.create_burst", t.CreateBurst, 1))
	}

	b := c.Breaker
	if b.Enabled {
		errs.Add(validation.AtLeast("breaker.failure_threshold", b.FailureThreshold, 1))
		errs.Add(validation.AtLeast("breaker.success_threshold", b.SuccessThreshold, 1))
		errs.Add(validation.AtLeast("breaker.max_probes", b.MaxProbes, 1))
		errs.Add(validation.PositiveDuration("breaker.open_timeout", time.Duration(b.OpenTimeout)))
	}
	errs.Add(validation.NonNegativeDuration("breaker.monitor_interval", time.Duration(b.MonitorInterval)))

	if errs.HasErrors() {
		return fmt.Errorf("%w: %w", errs, apperrors.ErrConfiguration)
	}
	return nil
}

// PoolOptions converts the [pool] section to pool.Options.
func (c *Config) PoolOptions() pool.Options {
	p := c.Pool
	return pool.Options{
		MinIdle:               p.MinIdle,
		MaxOpen:               p.MaxOpen,
		AcquireTimeout:        time.Duration(p.AcquireTimeout),
		IdleTimeout:           time.Duration(p.IdleTimeout),
		MaxLifetime:           time.Duration(p.MaxLifetime),
		ValidateOnBorrow:      p.ValidateOnBorrow,
		ValidateOnReturn:      p.ValidateOnReturn,
		MaxValidationAttempts: p.MaxValidationAttempts,
		ReapInterval:          time.Duration(p.ReapInterval),
	}
}

// BreakerOptions converts the [breaker] section to resilience.Config.
func (c *Config) BreakerOptions() resilience.Config {
	b := c.Breaker
	return resilience.Config{
		FailureThreshold: b.FailureThreshold,
		SuccessThreshold: b.SuccessThreshold,
		OpenTimeout:      time.Duration(b.OpenTimeout),
		MaxProbes:        b.MaxProbes,
	}
}

// MonitorOptions returns the monitor configuration for the target.
func (c *Config) MonitorOptions() resilience.MonitorConfig {
	return resilience.MonitorConfig{
		Interval:     time.Duration(c.Breaker.MonitorInterval),
		ProbeTimeout: time.Duration(c.Target.DialTimeout),
	}
}
