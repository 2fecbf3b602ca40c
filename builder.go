package goRefresh

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/goRefresh/internal"
	"github.com/MrEthical07/goRefresh/jwt"
	"github.com/MrEthical07/goRefresh/refresh"
)

// Builder assembles an Engine. Configure, then call Build exactly once.
type Builder struct {
	config Config

	redis  redis.UniversalClient
	store  refresh.Store
	sink   AuditSink
	logger *slog.Logger
	secret SecretSource

	built bool
}

// New returns a Builder preloaded with defaults. Key material has no
// default; Build fails until it is supplied.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis selects a Redis-backed refresh token store built from client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithStore injects a refresh token store directly, overriding WithRedis.
// Use this for the Postgres store or a custom backend.
func (b *Builder) WithStore(store refresh.Store) *Builder {
	b.store = store
	return b
}

// WithAuditSink sets the destination for audit events. Only consulted when
// Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the engine's structured logger. Defaults to slog.Default.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithSecretSource overrides the refresh secret generator. Production code
// should never need this; tests use it for deterministic tokens.
func (b *Builder) WithSecretSource(src SecretSource) *Builder {
	b.secret = src
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles latency histogram recording.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires the store and token codec, and
// returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, fmt.Errorf("%w: builder already used", ErrConfiguration)
	}
	b.built = true

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := b.store
	if store == nil {
		if b.redis == nil {
			return nil, fmt.Errorf("%w: a store or redis client is required", ErrConfiguration)
		}
		store = refresh.NewRedisStore(b.redis, cfg.Refresh.RedisPrefix, cfg.Refresh.RetentionWindow)
	}

	method := jwt.MethodHS256
	if cfg.JWT.SigningMethod != "" {
		method = jwt.SigningMethod(cfg.JWT.SigningMethod)
	}
	manager, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		MaxAccessTTL:  cfg.JWT.MaxAccessTTL,
		SigningMethod: method,
		PrivateKey:    cfg.JWT.PrivateKey,
		PublicKey:     cfg.JWT.PublicKey,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	var throttle *rotationThrottle
	if cfg.Refresh.Throttle.Enabled {
		if b.redis == nil {
			return nil, fmt.Errorf("%w: the throttle requires a redis client", ErrConfiguration)
		}
		throttle = newRotationThrottle(b.redis, cfg.Refresh.RedisPrefix, cfg.Refresh.Throttle)
	}

	secret := b.secret
	if secret == nil {
		secret = func() ([32]byte, error) {
			s, err := internal.NewTokenSecret()
			return [32]byte(s), err
		}
	}

	engine := &Engine{
		config:   cfg,
		jwt:      manager,
		store:    store,
		metrics:  NewMetrics(cfg.Metrics),
		audit:    newAuditDispatcher(cfg.Audit, b.sink),
		logger:   logger,
		secrets:  secret,
		throttle: throttle,
		ready:    true,
	}

	if pg, ok := store.(*refresh.PostgresStore); ok {
		pg.SetDegradedHook(func() {
			engine.metricInc(MetricDegradedFallback)
			engine.emitAudit(context.Background(), AuditEvent{
				EventType: AuditDegradedMode,
				Success:   true,
			})
		})
	}

	return engine, nil
}
