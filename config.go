package tokenlife

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config defines the Service configuration. It is copied on Build and
// treated as immutable afterwards.
type Config struct {
	Token   TokenConfig
	Store   StoreConfig
	Limits  LimitsConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig holds signing secrets, lifetimes, and claim constraints.
// Access and refresh secrets must differ: that is what keeps an access
// token from ever being replayed as a refresh token.
type TokenConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreConfig holds key-value store tuning. Every store call carries
// OpTimeout; expiry is treated as store-unavailable and fails closed.
type StoreConfig struct {
	RedisPrefix string
	OpTimeout   time.Duration
}

/*
====================================
LIMITS CONFIG
====================================
*/

// LimitsConfig bounds family lifetime and refresh pressure.
type LimitsConfig struct {
	// MaxGenerations caps successful rotations per family; exceeding it
	// revokes the family.
	MaxGenerations int

	EnableRefreshThrottle bool
	MaxRefreshAttempts    int
	RefreshCooldown       time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls async audit event dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
		},
		Store: StoreConfig{
			RedisPrefix: "tl",
			OpTimeout:   3 * time.Second,
		},
		Limits: LimitsConfig{
			MaxGenerations:        50,
			EnableRefreshThrottle: false,
			MaxRefreshAttempts:    30,
			RefreshCooldown:       time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Token.AccessSecret = append([]byte(nil), cfg.Token.AccessSecret...)
	out.Token.RefreshSecret = append([]byte(nil), cfg.Token.RefreshSecret...)
	return out
}

// Validate checks the configuration for contradictions before Build wires
// anything.
func (c *Config) Validate() error {
	if len(c.Token.AccessSecret) == 0 {
		return errors.New("access secret required")
	}
	if len(c.Token.RefreshSecret) == 0 {
		return errors.New("refresh secret required")
	}
	if string(c.Token.AccessSecret) == string(c.Token.RefreshSecret) {
		return errors.New("access and refresh secrets must differ")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("invalid TTL configuration")
	}
	if c.Token.Leeway < 0 || c.Token.Leeway > 2*time.Minute {
		return errors.New("invalid leeway configuration")
	}
	if c.Limits.MaxGenerations < 1 {
		return errors.New("MaxGenerations must be at least 1")
	}
	if c.Limits.EnableRefreshThrottle {
		if c.Limits.MaxRefreshAttempts <= 0 || c.Limits.RefreshCooldown <= 0 {
			return errors.New("refresh throttle requires positive attempts and cooldown")
		}
	}
	if c.Store.OpTimeout <= 0 {
		return errors.New("store OpTimeout must be positive")
	}
	return nil
}

// ParseExpiry parses a duration string in time.ParseDuration syntax,
// extended with a day suffix: "30d" is 30*24h. The same parsed value
// drives both the token's exp claim and the matching store record TTL, so
// the two can never drift apart.
func ParseExpiry(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New("empty duration")
	}
	if strings.HasSuffix(s, "d") {
		days, err := strconv.ParseFloat(strings.TrimSuffix(s, "d"), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		if days <= 0 {
			return 0, fmt.Errorf("non-positive duration %q", s)
		}
		return time.Duration(days * float64(24*time.Hour)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %q", s)
	}
	return d, nil
}
