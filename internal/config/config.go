// Package config loads the application configuration: everything except
// strategy definitions, which live in their own operator-edited file (see
// internal/strategy). Precedence is defaults < yaml file < SIGNALRUN_* env.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration tree.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Provider  ProviderConfig  `yaml:"provider"`
	Cooldown  CooldownConfig  `yaml:"cooldown"`
	Journal   JournalConfig   `yaml:"journal"`
	HTTP      HTTPConfig      `yaml:"http"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Scan      ScanConfig      `yaml:"scan"`
}

// ProviderConfig selects and tunes the market-data source.
type ProviderConfig struct {
	// Fake switches the engine onto the deterministic synthetic provider;
	// no network traffic at all.
	Fake     bool  `yaml:"fake"`
	FakeSeed int64 `yaml:"fake_seed"`

	BaseURL           string        `yaml:"base_url"`
	Category          string        `yaml:"category"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`

	// RedisAddr enables the shared Redis response cache; empty keeps the
	// in-process TTL cache.
	RedisAddr string `yaml:"redis_addr"`
}

// CooldownConfig selects the cooldown store backend.
type CooldownConfig struct {
	// RedisAddr enables the persistent store so windows survive restarts;
	// empty keeps cooldowns in memory.
	RedisAddr string `yaml:"redis_addr"`
}

// JournalConfig configures the optional Postgres signal sink.
type JournalConfig struct {
	DSN string `yaml:"dsn"` // empty disables journaling
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SchedulerConfig configures the loop command.
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Jitter   time.Duration `yaml:"jitter"`
}

// ScanConfig tunes scan execution across all strategies.
type ScanConfig struct {
	StrategiesFile string        `yaml:"strategies_file"` // optional preset overrides
	Strategies     []string      `yaml:"strategies"`      // names to run
	Workers        int           `yaml:"workers"`
	SymbolTimeout  time.Duration `yaml:"symbol_timeout"`
	SampleSize     int           `yaml:"sample_size"` // 0 disables downsampling
	SampleSeed     int64         `yaml:"sample_seed"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		LogLevel: "info",
		Provider: ProviderConfig{
			FakeSeed:          42,
			Category:          "spot",
			RequestsPerSecond: 5,
			Burst:             10,
			Timeout:           10 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Interval: 5 * time.Minute,
			Jitter:   30 * time.Second,
		},
		Scan: ScanConfig{
			Strategies:    []string{"classic_v2"},
			Workers:       8,
			SymbolTimeout: 10 * time.Second,
		},
	}
}

// Load reads the yaml file at path over the defaults, then applies env
// overrides. A missing file is fine when path is empty; a named file that
// cannot be read is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(&cfg)

	if issues := cfg.Validate(); len(issues) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %v", issues)
	}
	return cfg, nil
}

// applyEnv overrides settings operators most often flip per deployment
// without editing the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SIGNALRUN_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SIGNALRUN_FAKE"); v != "" {
		cfg.Provider.Fake = v == "1" || v == "true"
	}
	if v := os.Getenv("SIGNALRUN_PROVIDER_REDIS_ADDR"); v != "" {
		cfg.Provider.RedisAddr = v
	}
	if v := os.Getenv("SIGNALRUN_COOLDOWN_REDIS_ADDR"); v != "" {
		cfg.Cooldown.RedisAddr = v
	}
	if v := os.Getenv("SIGNALRUN_JOURNAL_DSN"); v != "" {
		cfg.Journal.DSN = v
	}
	if v := os.Getenv("SIGNALRUN_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("SIGNALRUN_SCAN_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scan.Workers = n
		}
	}
	if v := os.Getenv("SIGNALRUN_SCAN_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Scheduler.Interval = d
		}
	}
}

// Validate returns every issue found; a non-empty result is fatal at
// startup.
func (c Config) Validate() []string {
	var issues []string
	if c.Provider.RequestsPerSecond <= 0 {
		issues = append(issues, "provider.requests_per_second must be positive")
	}
	if c.Provider.Burst <= 0 {
		issues = append(issues, "provider.burst must be positive")
	}
	if c.Provider.Timeout <= 0 {
		issues = append(issues, "provider.timeout must be positive")
	}
	if c.HTTP.Addr == "" {
		issues = append(issues, "http.addr is required")
	}
	if c.HTTP.ShutdownTimeout <= 0 {
		issues = append(issues, "http.shutdown_timeout must be positive")
	}
	if c.Scheduler.Interval <= 0 {
		issues = append(issues, "scheduler.interval must be positive")
	}
	if c.Scheduler.Jitter < 0 {
		issues = append(issues, "scheduler.jitter must be >= 0")
	}
	if c.Scheduler.Jitter >= c.Scheduler.Interval {
		issues = append(issues, "scheduler.jitter must be below scheduler.interval")
	}
	if c.Scan.Workers <= 0 {
		issues = append(issues, "scan.workers must be positive")
	}
	if c.Scan.SymbolTimeout <= 0 {
		issues = append(issues, "scan.symbol_timeout must be positive")
	}
	if c.Scan.SampleSize < 0 {
		issues = append(issues, "scan.sample_size must be >= 0")
	}
	if len(c.Scan.Strategies) == 0 {
		issues = append(issues, "scan.strategies must name at least one strategy")
	}
	return issues
}
