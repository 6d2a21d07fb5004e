// Package config defines the gateway configuration.
//
// DESIGN: Config is immutable for a session. Users supply a Partial (every field
// optional); Merge overlays it on Default() and Validate rejects out-of-range
// values instead of coercing them.
//
// FILES:
//   - config.go:   Config/Partial types, Merge, Validate
//   - defaults.go: Default constants
//   - loader.go:   YAML + .env loading
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the fully-resolved gateway configuration.
type Config struct {
	Enabled          bool            `yaml:"enabled"`
	RequestTimeoutMs int             `yaml:"request_timeout_ms"`
	Backend          BackendConfig   `yaml:"backend"`
	Cache            CacheConfig     `yaml:"cache"`
	RateLimit        RateLimitConfig `yaml:"rate_limit"`
	Queue            QueueConfig     `yaml:"queue"`
	Privacy          PrivacyConfig   `yaml:"privacy"`
	Log              LogConfig       `yaml:"log"`
}

// BackendConfig locates the intelligence backend.
type BackendConfig struct {
	BaseURL         string `yaml:"base_url"`
	APIKey          string `yaml:"api_key"`
	Command         string `yaml:"command"` // HTTP client executable (default: curl)
	HealthTimeoutMs int    `yaml:"health_timeout_ms"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled    bool `yaml:"enabled"`
	TTLSeconds int  `yaml:"ttl_seconds"`
	MaxEntries int  `yaml:"max_entries"`
}

// RateLimitConfig controls the sliding-window limiter.
type RateLimitConfig struct {
	MaxRequestsPerWindow int `yaml:"max_requests_per_window"`
	WindowSeconds        int `yaml:"window_seconds"`
	BurstSize            int `yaml:"burst_size"` // accepted, not consulted by admission
}

// QueueConfig controls the backpressure queue.
type QueueConfig struct {
	Enabled       bool `yaml:"enabled"`
	MaxSize       int  `yaml:"max_size"`
	BackoffBaseMs int  `yaml:"backoff_base_ms"`
	BackoffMaxMs  int  `yaml:"backoff_max_ms"`
	MaxWaitMs     int  `yaml:"max_wait_ms"` // 0 = items wait indefinitely
}

// PrivacyConfig controls what leaves the machine.
type PrivacyConfig struct {
	RedactSecrets   bool `yaml:"redact_secrets"`
	MaxPayloadBytes int  `yaml:"max_payload_bytes"`
	SendFilePaths   bool `yaml:"send_file_paths"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Enabled:          true,
		RequestTimeoutMs: DefaultRequestTimeoutMs,
		Backend: BackendConfig{
			BaseURL:         DefaultBaseURL,
			Command:         DefaultCommand,
			HealthTimeoutMs: DefaultHealthTimeoutMs,
		},
		Cache: CacheConfig{
			Enabled:    true,
			TTLSeconds: DefaultCacheTTLSeconds,
			MaxEntries: DefaultCacheMaxEntries,
		},
		RateLimit: RateLimitConfig{
			MaxRequestsPerWindow: DefaultMaxRequestsPerWindow,
			WindowSeconds:        DefaultWindowSeconds,
			BurstSize:            DefaultBurstSize,
		},
		Queue: QueueConfig{
			Enabled:       true,
			MaxSize:       DefaultQueueMaxSize,
			BackoffBaseMs: DefaultBackoffBaseMs,
			BackoffMaxMs:  DefaultBackoffMaxMs,
		},
		Privacy: PrivacyConfig{
			RedactSecrets:   true,
			MaxPayloadBytes: DefaultMaxPayloadBytes,
			SendFilePaths:   false,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// Partial config (user overrides)
// =============================================================================

// Partial mirrors Config with optional fields. Nil means "use the default".
type Partial struct {
	Enabled          *bool             `yaml:"enabled"`
	RequestTimeoutMs *int              `yaml:"request_timeout_ms"`
	Backend          *PartialBackend   `yaml:"backend"`
	Cache            *PartialCache     `yaml:"cache"`
	RateLimit        *PartialRateLimit `yaml:"rate_limit"`
	Queue            *PartialQueue     `yaml:"queue"`
	Privacy          *PartialPrivacy   `yaml:"privacy"`
	Log              *PartialLog       `yaml:"log"`
}

// PartialBackend is the optional form of BackendConfig.
type PartialBackend struct {
	BaseURL         *string `yaml:"base_url"`
	APIKey          *string `yaml:"api_key"`
	Command         *string `yaml:"command"`
	HealthTimeoutMs *int    `yaml:"health_timeout_ms"`
}

// PartialCache is the optional form of CacheConfig.
type PartialCache struct {
	Enabled    *bool `yaml:"enabled"`
	TTLSeconds *int  `yaml:"ttl_seconds"`
	MaxEntries *int  `yaml:"max_entries"`
}

// PartialRateLimit is the optional form of RateLimitConfig.
type PartialRateLimit struct {
	MaxRequestsPerWindow *int `yaml:"max_requests_per_window"`
	WindowSeconds        *int `yaml:"window_seconds"`
	BurstSize            *int `yaml:"burst_size"`
}

// PartialQueue is the optional form of QueueConfig.
type PartialQueue struct {
	Enabled       *bool `yaml:"enabled"`
	MaxSize       *int  `yaml:"max_size"`
	BackoffBaseMs *int  `yaml:"backoff_base_ms"`
	BackoffMaxMs  *int  `yaml:"backoff_max_ms"`
	MaxWaitMs     *int  `yaml:"max_wait_ms"`
}

// PartialPrivacy is the optional form of PrivacyConfig.
type PartialPrivacy struct {
	RedactSecrets   *bool `yaml:"redact_secrets"`
	MaxPayloadBytes *int  `yaml:"max_payload_bytes"`
	SendFilePaths   *bool `yaml:"send_file_paths"`
}

// PartialLog is the optional form of LogConfig.
type PartialLog struct {
	Level  *string `yaml:"level"`
	Pretty *bool   `yaml:"pretty"`
}

// Merge overlays p on base and returns the result. base is not modified.
func Merge(base Config, p Partial) Config {
	out := base
	set(&out.Enabled, p.Enabled)
	set(&out.RequestTimeoutMs, p.RequestTimeoutMs)

	if b := p.Backend; b != nil {
		set(&out.Backend.BaseURL, b.BaseURL)
		set(&out.Backend.APIKey, b.APIKey)
		set(&out.Backend.Command, b.Command)
		set(&out.Backend.HealthTimeoutMs, b.HealthTimeoutMs)
	}
	if c := p.Cache; c != nil {
		set(&out.Cache.Enabled, c.Enabled)
		set(&out.Cache.TTLSeconds, c.TTLSeconds)
		set(&out.Cache.MaxEntries, c.MaxEntries)
	}
	if r := p.RateLimit; r != nil {
		set(&out.RateLimit.MaxRequestsPerWindow, r.MaxRequestsPerWindow)
		set(&out.RateLimit.WindowSeconds, r.WindowSeconds)
		set(&out.RateLimit.BurstSize, r.BurstSize)
	}
	if q := p.Queue; q != nil {
		set(&out.Queue.Enabled, q.Enabled)
		set(&out.Queue.MaxSize, q.MaxSize)
		set(&out.Queue.BackoffBaseMs, q.BackoffBaseMs)
		set(&out.Queue.BackoffMaxMs, q.BackoffMaxMs)
		set(&out.Queue.MaxWaitMs, q.MaxWaitMs)
	}
	if pr := p.Privacy; pr != nil {
		set(&out.Privacy.RedactSecrets, pr.RedactSecrets)
		set(&out.Privacy.MaxPayloadBytes, pr.MaxPayloadBytes)
		set(&out.Privacy.SendFilePaths, pr.SendFilePaths)
	}
	if l := p.Log; l != nil {
		set(&out.Log.Level, l.Level)
		set(&out.Log.Pretty, l.Pretty)
	}
	return out
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks every limit. All errors are reported together.
func (c Config) Validate() error {
	var errs []error
	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}

	positive("request_timeout_ms", c.RequestTimeoutMs)
	positive("backend.health_timeout_ms", c.Backend.HealthTimeoutMs)
	positive("cache.ttl_seconds", c.Cache.TTLSeconds)
	positive("cache.max_entries", c.Cache.MaxEntries)
	positive("rate_limit.max_requests_per_window", c.RateLimit.MaxRequestsPerWindow)
	positive("rate_limit.window_seconds", c.RateLimit.WindowSeconds)
	positive("rate_limit.burst_size", c.RateLimit.BurstSize)
	positive("queue.max_size", c.Queue.MaxSize)
	positive("queue.backoff_base_ms", c.Queue.BackoffBaseMs)
	positive("queue.backoff_max_ms", c.Queue.BackoffMaxMs)
	positive("privacy.max_payload_bytes", c.Privacy.MaxPayloadBytes)

	if c.Queue.MaxWaitMs < 0 {
		errs = append(errs, fmt.Errorf("queue.max_wait_ms must not be negative, got %d", c.Queue.MaxWaitMs))
	}
	if c.Queue.BackoffBaseMs > c.Queue.BackoffMaxMs {
		errs = append(errs, fmt.Errorf("queue.backoff_base_ms (%d) must not exceed queue.backoff_max_ms (%d)",
			c.Queue.BackoffBaseMs, c.Queue.BackoffMaxMs))
	}
	if strings.TrimSpace(c.Backend.Command) == "" {
		errs = append(errs, errors.New("backend.command is required"))
	}
	if u, err := url.Parse(c.Backend.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend.base_url is not an absolute URL: %q", c.Backend.BaseURL))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Errorf("backend.base_url scheme must be http or https, got %q", u.Scheme))
	}

	return errors.Join(errs...)
}

// =============================================================================
// Durations
// =============================================================================

// RequestTimeout returns RequestTimeoutMs as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// HealthTimeout returns the health probe timeout.
func (c Config) HealthTimeout() time.Duration {
	return time.Duration(c.Backend.HealthTimeoutMs) * time.Millisecond
}

// CacheTTL returns the cache entry lifetime.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// Window returns the rate limit window.
func (c Config) Window() time.Duration {
	return time.Duration(c.RateLimit.WindowSeconds) * time.Second
}
