package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRevocationRedisUnavailable wraps transport-level Redis failures.
// Callers treat it as "assume revoked" on read paths: availability is
// secondary to never skipping a security check.
var ErrRevocationRedisUnavailable = errors.New("revocation redis unavailable")

// RevocationStore tracks two kinds of per-JTI markers:
//
//   - revocation records: this token was explicitly invalidated
//   - used markers: this refresh token was already consumed by a rotation
//
// Both auto-expire with the remaining lifetime of the token they shadow,
// which bounds store growth without any cleanup job.
type RevocationStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRevocationStore returns a store using the given key prefix
// (default "tlr").
func NewRevocationStore(redisClient redis.UniversalClient, prefix string) *RevocationStore {
	if prefix == "" {
		prefix = "tlr"
	}
	return &RevocationStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *RevocationStore) revokedKey(jti string) string {
	return s.prefix + ":jti:" + jti
}

// UsedKey composes the used-marker key for jti. The marker itself is
// written by the family registry's rotation script, which needs the key to
// make consume-and-advance one atomic step.
func (s *RevocationStore) UsedKey(jti string) string {
	return s.prefix + ":used:" + jti
}

// MarkRevoked writes a revocation record for jti lasting ttl. A
// non-positive ttl means the token is already expired and needs no record.
// Idempotent.
func (s *RevocationStore) MarkRevoked(ctx context.Context, jti string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.revokedKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether a revocation record exists for jti.
func (s *RevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRevocationRedisUnavailable, err)
	}
	return n > 0, nil
}

// IsUsed reports whether a used marker exists for jti.
func (s *RevocationStore) IsUsed(ctx context.Context, jti string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.UsedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRevocationRedisUnavailable, err)
	}
	return n > 0, nil
}
