package goRefresh

import (
	"bytes"
	"fmt"
	"time"
)

const (
	minRefreshHashSecret   = 32
	maxIssueAttemptsCap    = 10
	defaultIssueAttempts   = 5
	defaultSessionPageSize = 20
	maxSessionPageSizeCap  = 500
)

// Config is the full engine configuration. It is cloned at Build time and
// treated as immutable afterwards.
type Config struct {
	JWT      JWTConfig
	Refresh  RefreshConfig
	Sessions SessionsConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// JWTConfig configures the access token codec.
type JWTConfig struct {
	AccessTTL     time.Duration
	MaxAccessTTL  time.Duration
	SigningMethod string // "hs256" (default) or "ed25519"
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

// RefreshConfig configures refresh token issuance and the backing store.
type RefreshConfig struct {
	// TTL is the default lifetime of a refresh token; MaxTTL caps
	// caller-supplied overrides.
	TTL    time.Duration
	MaxTTL time.Duration

	// HashSecret keys the HMAC applied to raw refresh tokens before
	// persistence. It must be at least 32 bytes and must differ from the JWT
	// signing key.
	HashSecret []byte

	// MaxIssueAttempts bounds the regenerate-and-retry loop on token hash
	// collisions. Zero selects the default of 5.
	MaxIssueAttempts int

	// RetentionWindow controls how long consumed and expired records stay
	// queryable after their expiry, which is what makes reuse detection able
	// to tell a replayed token from garbage.
	RetentionWindow time.Duration

	// RedisPrefix namespaces all keys of the Redis-backed store.
	RedisPrefix string

	// Throttle bounds Login and Refresh attempts per caller. Off by default.
	Throttle ThrottleConfig
}

// ThrottleConfig is a fixed-window attempt budget, counted in Redis. It needs
// the builder to have a Redis client even when the token store is elsewhere.
type ThrottleConfig struct {
	Enabled     bool
	MaxAttempts int
	Window      time.Duration
}

// SessionsConfig bounds the session listing surface.
type SessionsConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the configuration the Builder starts from. Key
// material is intentionally absent.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			MaxAccessTTL:  time.Hour,
			SigningMethod: "hs256",
			Leeway:        30 * time.Second,
		},
		Refresh: RefreshConfig{
			TTL:              30 * 24 * time.Hour,
			MaxTTL:           90 * 24 * time.Hour,
			MaxIssueAttempts: defaultIssueAttempts,
			RetentionWindow:  24 * time.Hour,
			RedisPrefix:      "grt",
		},
		Sessions: SessionsConfig{
			DefaultPageSize: defaultSessionPageSize,
			MaxPageSize:     100,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate checks the startup-class invariants. Every failure wraps
// [ErrConfiguration]; none of these conditions are recoverable per-request.
func (c *Config) Validate() error {
	if c.JWT.AccessTTL <= 0 {
		return fmt.Errorf("%w: JWT.AccessTTL must be positive", ErrConfiguration)
	}
	if c.JWT.MaxAccessTTL < c.JWT.AccessTTL {
		return fmt.Errorf("%w: JWT.MaxAccessTTL must be >= JWT.AccessTTL", ErrConfiguration)
	}
	if c.Refresh.TTL <= 0 {
		return fmt.Errorf("%w: Refresh.TTL must be positive", ErrConfiguration)
	}
	if c.Refresh.MaxTTL < c.Refresh.TTL {
		return fmt.Errorf("%w: Refresh.MaxTTL must be >= Refresh.TTL", ErrConfiguration)
	}
	if len(c.Refresh.HashSecret) < minRefreshHashSecret {
		return fmt.Errorf("%w: Refresh.HashSecret must be at least %d bytes", ErrConfiguration, minRefreshHashSecret)
	}
	if len(c.JWT.PrivateKey) > 0 && bytes.Equal(c.Refresh.HashSecret, c.JWT.PrivateKey) {
		return fmt.Errorf("%w: Refresh.HashSecret must differ from JWT.PrivateKey", ErrConfiguration)
	}
	if c.Refresh.MaxIssueAttempts < 0 || c.Refresh.MaxIssueAttempts > maxIssueAttemptsCap {
		return fmt.Errorf("%w: Refresh.MaxIssueAttempts out of range [0, %d]", ErrConfiguration, maxIssueAttemptsCap)
	}
	if c.Refresh.RetentionWindow < 0 {
		return fmt.Errorf("%w: Refresh.RetentionWindow must not be negative", ErrConfiguration)
	}
	if c.Refresh.Throttle.Enabled {
		if c.Refresh.Throttle.MaxAttempts <= 0 {
			return fmt.Errorf("%w: Refresh.Throttle.MaxAttempts must be positive", ErrConfiguration)
		}
		if c.Refresh.Throttle.Window <= 0 {
			return fmt.Errorf("%w: Refresh.Throttle.Window must be positive", ErrConfiguration)
		}
	}
	if c.Sessions.MaxPageSize <= 0 || c.Sessions.MaxPageSize > maxSessionPageSizeCap {
		return fmt.Errorf("%w: Sessions.MaxPageSize out of range (0, %d]", ErrConfiguration, maxSessionPageSizeCap)
	}
	if c.Sessions.DefaultPageSize <= 0 || c.Sessions.DefaultPageSize > c.Sessions.MaxPageSize {
		return fmt.Errorf("%w: Sessions.DefaultPageSize out of range (0, MaxPageSize]", ErrConfiguration)
	}
	return nil
}

func (c *Config) issueAttempts() int {
	if c.Refresh.MaxIssueAttempts <= 0 {
		return defaultIssueAttempts
	}
	return c.Refresh.MaxIssueAttempts
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Refresh.HashSecret = cloneBytes(cfg.Refresh.HashSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
