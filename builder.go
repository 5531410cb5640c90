package tokenlife

import (
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokenlife/tokenlife/family"
	"github.com/tokenlife/tokenlife/internal/rate"
	"github.com/tokenlife/tokenlife/internal/stores"
	"github.com/tokenlife/tokenlife/token"
)

// Builder assembles a Service. Construction is allocation-only; no I/O
// happens until the first Service method call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	auditSink AuditSink
	clock     func() time.Time

	built bool
}

// New returns a Builder preloaded with default configuration.
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

// WithSecrets sets the two signing secrets without touching the rest of
// the configuration.
func (b *Builder) WithSecrets(accessSecret, refreshSecret []byte) *Builder {
	b.config.Token.AccessSecret = append([]byte(nil), accessSecret...)
	b.config.Token.RefreshSecret = append([]byte(nil), refreshSecret...)
	return b
}

// WithRedis sets the key-value store client. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithAuditSink sets the audit event destination. Ignored unless
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithClock substitutes the time source, for tests. The same clock drives
// claim expiry, TTL computation, and verification.
func (b *Builder) WithClock(clock func() time.Time) *Builder {
	b.clock = clock
	return b
}

// Build validates the configuration and wires the Service.
func (b *Builder) Build() (*Service, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clock := b.clock
	if clock == nil {
		clock = time.Now
	}

	codec, err := token.NewCodec(token.Config{
		AccessSecret:  cfg.Token.AccessSecret,
		RefreshSecret: cfg.Token.RefreshSecret,
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
		TimeFunc:      clock,
	})
	if err != nil {
		return nil, err
	}

	var throttle *rate.Limiter
	if cfg.Limits.EnableRefreshThrottle {
		throttle = rate.New(b.redis, rate.Config{
			MaxRefreshAttempts: cfg.Limits.MaxRefreshAttempts,
			RefreshCooldown:    cfg.Limits.RefreshCooldown,
		})
	}

	svc := &Service{
		config:      cfg,
		codec:       codec,
		families:    family.NewStore(b.redis, cfg.Store.RedisPrefix),
		revocations: stores.NewRevocationStore(b.redis, cfg.Store.RedisPrefix),
		throttle:    throttle,
		audit:       newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:     newMetrics(cfg.Metrics),
		now:         clock,
	}

	b.built = true
	return svc, nil
}
