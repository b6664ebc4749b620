package config

import (
	"fmt"
	"os"
	"strconv"

	apperrors "github.com/go-i2p/connpool/lib/errors"
)

// EnvPrefix is the prefix of environment variables that override
// configuration file values.
const EnvPrefix = "CONNPOOL_"

// applyEnvOverrides overrides cfg with any CONNPOOL_* variables that are set.
// Durations accept Go syntax ("30s") or a bare number of seconds.
func applyEnvOverrides(cfg *Config) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %q is not an integer: %w", EnvPrefix, key, v, apperrors.ErrInvalidInput))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %q is not a number: %w", EnvPrefix, key, v, apperrors.ErrInvalidInput))
				return
			}
			*dst = f
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %q is not a boolean: %w", EnvPrefix, key, v, apperrors.ErrInvalidInput))
				return
			}
			*dst = b
		}
	}
	duration := func(key string, dst *Duration) {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			d, err := parseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = Duration(d)
		}
	}

	integer("MIN_IDLE", &cfg.Pool.MinIdle)
	integer("MAX_OPEN", &cfg.Pool.MaxOpen)
	duration("ACQUIRE_TIMEOUT", &cfg.Pool.AcquireTimeout)
	duration("IDLE_TIMEOUT", &cfg.Pool.IdleTimeout)
	duration("MAX_LIFETIME", &cfg.Pool.MaxLifetime)
	boolean("VALIDATE_ON_BORROW", &cfg.Pool.ValidateOnBorrow)
	boolean("VALIDATE_ON_RETURN", &cfg.Pool.ValidateOnReturn)
	integer("MAX_VALIDATION_ATTEMPTS", &cfg.Pool.MaxValidationAttempts)
	duration("REAP_INTERVAL", &cfg.Pool.ReapInterval)

	str("TARGET_KIND", &cfg.Target.Kind)
	str("TARGET_ADDRESS", &cfg.Target.Address)
	str("TARGET_DSN", &cfg.Target.DSN)
	str("TARGET_PASSWORD", &cfg.Target.Password)
	integer("TARGET_DB", &cfg.Target.DB)
	duration("DIAL_TIMEOUT", &cfg.Target.DialTimeout)
	float("CREATE_RATE", &cfg.Target.CreateRate)
	integer("CREATE_BURST", &cfg.Target.CreateBurst)

	boolean("BREAKER_ENABLED", &cfg.Breaker.Enabled)
	integer("BREAKER_FAILURE_THRESHOLD", &cfg.Breaker.FailureThreshold)
	duration("BREAKER_OPEN_TIMEOUT", &cfg.Breaker.OpenTimeout)
	duration("MONITOR_INTERVAL", &cfg.Breaker.MonitorInterval)

	return apperrors.Join(errs...)
}
