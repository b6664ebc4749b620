package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperrors "github.com/go-i2p/connpool/lib/errors"
	"github.com/go-i2p/connpool/lib/pool"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	got, want := cfg.PoolOptions(), pool.DefaultOptions()
	if got.MaxOpen != want.MaxOpen || got.AcquireTimeout != want.AcquireTimeout ||
		got.IdleTimeout != want.IdleTimeout || got.MaxLifetime != want.MaxLifetime ||
		got.ReapInterval != want.ReapInterval || got.MaxValidationAttempts != want.MaxValidationAttempts {
		t.Errorf("default pool section should match pool.DefaultOptions, got %+v", got)
	}
	if cfg.Target.Kind != KindTCP {
		t.Errorf("default target kind should be tcp, got %q", cfg.Target.Kind)
	}
	if cfg.Breaker.Enabled {
		t.Error("breaker should be disabled by default")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid default config", func(c *Config) {}, false},
		{"zero max open", func(c *Config) { c.Pool.MaxOpen = 0 }, true},
		{"min idle above max open", func(c *Config) { c.Pool.MinIdle = 20 }, true},
		{"negative acquire timeout", func(c *Config) { c.Pool.AcquireTimeout = Duration(-time.Second) }, true},
		{"unknown kind", func(c *Config) { c.Target.Kind = "ftp" }, true},
		{"tcp without address", func(c *Config) { c.Target.Address = "" }, true},
		{"mysql without dsn", func(c *Config) { c.Target.Kind = KindMySQL }, true},
		{"mysql with dsn", func(c *Config) {
			c.Target.Kind = KindMySQL
			c.Target.DSN = "user:pass@tcp(127.0.0.1:3306)/app"
		}, false},
		{"redis", func(c *Config) { c.Target.Kind = KindRedis }, false},
		{"negative create rate", func(c *Config) { c.Target.CreateRate = -1 }, true},
		{"rate without burst", func(c *Config) { c.Target.CreateRate = 5; c.Target.CreateBurst = 0 }, true},
		{"negative dial timeout", func(c *Config) { c.Target.DialTimeout = Duration(-time.Second) }, true},
		{"breaker zero threshold", func(c *Config) { c.Breaker.Enabled = true; c.Breaker.FailureThreshold = 0 }, true},
		{"breaker zero open timeout", func(c *Config) { c.Breaker.Enabled = true; c.Breaker.OpenTimeout = 0 }, true},
		{"disabled breaker ignores thresholds", func(c *Config) { c.Breaker.FailureThreshold = 0 }, false},
		{"negative monitor interval", func(c *Config) { c.Breaker.MonitorInterval = Duration(-time.Second) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, apperrors.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestLoadConfig_DefaultsWhenMissing(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Pool.MaxOpen != DefaultConfig().Pool.MaxOpen {
		t.Errorf("expected default max open, got %d", cfg.Pool.MaxOpen)
	}
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connpool.toml")

	cfg := DefaultConfig()
	cfg.Pool.MinIdle = 2
	cfg.Pool.MaxOpen = 8
	cfg.Pool.AcquireTimeout = Duration(1500 * time.Millisecond)
	cfg.Pool.ValidateOnBorrow = true
	cfg.Target.Kind = KindRedis
	cfg.Target.Address = "10.0.0.5:6379"
	cfg.Target.CreateRate = 2.5
	cfg.Breaker.Enabled = true
	cfg.Breaker.MonitorInterval = Duration(10 * time.Second)

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved config: %v", err)
	}
	if !strings.Contains(string(data), `acquire_timeout = '1.5s'`) && !strings.Contains(string(data), `acquire_timeout = "1.5s"`) {
		t.Errorf("durations should be written as strings:\n%s", data)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", loaded, cfg)
	}
}

func TestLoadConfig_Partial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connpool.toml")
	content := `
[pool]
max_open = 4
idle_timeout = "90s"
reap_interval = 15

[target]
kind = "mysql"
dsn = "app@tcp(db:3306)/app"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	opts := cfg.PoolOptions()
	if opts.MaxOpen != 4 {
		t.Errorf("MaxOpen = %d, want 4", opts.MaxOpen)
	}
	if opts.IdleTimeout != 90*time.Second {
		t.Errorf("IdleTimeout = %v, want 90s", opts.IdleTimeout)
	}
	if opts.ReapInterval != 15*time.Second {
		t.Errorf("ReapInterval = %v, want 15s", opts.ReapInterval)
	}
	if opts.AcquireTimeout != pool.DefaultOptions().AcquireTimeout {
		t.Errorf("unset fields should keep defaults, got AcquireTimeout %v", opts.AcquireTimeout)
	}
	if cfg.Target.Kind != KindMySQL || cfg.Target.DSN != "app@tcp(db:3306)/app" {
		t.Errorf("unexpected target: %+v", cfg.Target)
	}
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[pool\nmax_open = "), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[pool]\nidle_timeout = \"soon\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[pool]\nmax_open = 0\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(path)
	if !errors.Is(err, apperrors.ErrConfiguration) {
		t.Errorf("expected ErrConfiguration, got %v", err)
	}
}

func TestSaveConfig_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "connpool.toml")
	if err := SaveConfig(DefaultConfig(), path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30s", 30 * time.Second, false},
		{"1m30s", 90 * time.Second, false},
		{"45", 45 * time.Second, false},
		{"0", 0, false},
		{"later", 0, true},
	}
	for _, tt := range tests {
		var d Duration
		err := d.UnmarshalText([]byte(tt.in))
		if (err != nil) != tt.wantErr {
			t.Errorf("UnmarshalText(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && time.Duration(d) != tt.want {
			t.Errorf("UnmarshalText(%q) = %v, want %v", tt.in, time.Duration(d), tt.want)
		}
	}

	text, _ := Duration(2 * time.Minute).MarshalText()
	if string(text) != "2m0s" {
		t.Errorf("MarshalText = %q, want 2m0s", text)
	}
}

func TestBreakerAndMonitorOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Breaker.FailureThreshold = 7
	cfg.Breaker.OpenTimeout = Duration(time.Minute)
	cfg.Breaker.MonitorInterval = Duration(5 * time.Second)
	cfg.Target.DialTimeout = Duration(2 * time.Second)

	br := cfg.BreakerOptions()
	if br.FailureThreshold != 7 || br.OpenTimeout != time.Minute {
		t.Errorf("unexpected breaker options: %+v", br)
	}
	mon := cfg.MonitorOptions()
	if mon.Interval != 5*time.Second || mon.ProbeTimeout != 2*time.Second {
		t.Errorf("unexpected monitor options: %+v", mon)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(*testing.T, *Config)
	}{
		{
			name: "pool overrides",
			envVars: map[string]string{
				"CONNPOOL_MIN_IDLE":           "1",
				"CONNPOOL_MAX_OPEN":           "20",
				"CONNPOOL_ACQUIRE_TIMEOUT":    "2s",
				"CONNPOOL_IDLE_TIMEOUT":       "60",
				"CONNPOOL_VALIDATE_ON_BORROW": "true",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Pool.MinIdle != 1 || cfg.Pool.MaxOpen != 20 {
					t.Errorf("sizes = %d/%d, want 1/20", cfg.Pool.MinIdle, cfg.Pool.MaxOpen)
				}
				if time.Duration(cfg.Pool.AcquireTimeout) != 2*time.Second {
					t.Errorf("AcquireTimeout = %v, want 2s", time.Duration(cfg.Pool.AcquireTimeout))
				}
				if time.Duration(cfg.Pool.IdleTimeout) != time.Minute {
					t.Errorf("IdleTimeout = %v, want 1m", time.Duration(cfg.Pool.IdleTimeout))
				}
				if !cfg.Pool.ValidateOnBorrow {
					t.Error("ValidateOnBorrow should be true")
				}
			},
		},
		{
			name: "target overrides",
			envVars: map[string]string{
				"CONNPOOL_TARGET_KIND":    "redis",
				"CONNPOOL_TARGET_ADDRESS": "cache:6379",
				"CONNPOOL_TARGET_DB":      "3",
				"CONNPOOL_CREATE_RATE":    "0.5",
			},
			validate: func(t *testing.T, cfg *Config) {
				if cfg.Target.Kind != KindRedis || cfg.Target.Address != "cache:6379" || cfg.Target.DB != 3 {
					t.Errorf("unexpected target: %+v", cfg.Target)
				}
				if cfg.Target.CreateRate != 0.5 {
					t.Errorf("CreateRate = %v, want 0.5", cfg.Target.CreateRate)
				}
			},
		},
		{
			name: "breaker overrides",
			envVars: map[string]string{
				"CONNPOOL_BREAKER_ENABLED":  "1",
				"CONNPOOL_MONITOR_INTERVAL": "10s",
			},
			validate: func(t *testing.T, cfg *Config) {
				if !cfg.Breaker.Enabled {
					t.Error("breaker should be enabled")
				}
				if time.Duration(cfg.Breaker.MonitorInterval) != 10*time.Second {
					t.Errorf("MonitorInterval = %v, want 10s", time.Duration(cfg.Breaker.MonitorInterval))
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}
			cfg := DefaultConfig()
			if err := applyEnvOverrides(cfg); err != nil {
				t.Fatalf("applyEnvOverrides failed: %v", err)
			}
			tt.validate(t, cfg)
		})
	}
}

func TestApplyEnvOverrides_InvalidValues(t *testing.T) {
	t.Setenv("CONNPOOL_MAX_OPEN", "many")
	t.Setenv("CONNPOOL_ACQUIRE_TIMEOUT", "soon")

	err := applyEnvOverrides(DefaultConfig())
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if !strings.Contains(err.Error(), "CONNPOOL_MAX_OPEN") || !strings.Contains(err.Error(), "CONNPOOL_ACQUIRE_TIMEOUT") {
		t.Errorf("error should name every bad variable: %v", err)
	}
}

func TestLoadConfig_WithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "connpool.toml")
	if err := os.WriteFile(path, []byte("[pool]\nmax_open = 4\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONNPOOL_MAX_OPEN", "6")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Pool.MaxOpen != 6 {
		t.Errorf("environment should win over the file, got MaxOpen %d", cfg.Pool.MaxOpen)
	}
}

func TestConfig_ValidateReportsEveryField(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Target.Address = "no-port"
	cfg.Target.CreateRate = -1
	cfg.Breaker.MonitorInterval = Duration(-time.Second)

	err := cfg.Validate()
	if !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
	for _, field := range []string{"target.address", "target.create_rate", "breaker.monitor_interval"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error should name %s: %v", field, err)
		}
	}
}
