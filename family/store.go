package family

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no record exists for a family id.
var ErrNotFound = errors.New("token family not found")

// ErrRevoked is returned when the family carries a revocation tombstone.
// A revoked family can never be reactivated.
var ErrRevoked = errors.New("token family revoked")

// ErrGenerationCap is returned when a family has already rotated the
// configured maximum number of times. The store revokes the family as a
// side effect. Generation starts at 1, so a cap of N permits exactly N
// successful rotations.
var ErrGenerationCap = errors.New("token family generation cap exceeded")

// ErrReused is returned when the rotation's used-marker write loses the
// set-if-not-exists race: some other rotation already consumed the token.
var ErrReused = errors.New("refresh token already consumed")

// ErrCorrupt is returned when a stored family record cannot be decoded.
var ErrCorrupt = errors.New("token family record corrupt")

// ErrRedisUnavailable wraps transport-level Redis failures.
var ErrRedisUnavailable = errors.New("family redis unavailable")

const (
	advanceStatusNotFound    int64 = 0
	advanceStatusRevoked     int64 = 1
	advanceStatusCapExceeded int64 = 2
	advanceStatusAdvanced    int64 = 3
	advanceStatusCorrupt     int64 = 4
	advanceStatusReused      int64 = 5
)

// advanceScript performs the consume / load / cap-check / increment /
// persist sequence of a rotation as one atomic step. The used-marker SET NX
// and the family advance must not be two separate round trips: a concurrent
// loser revokes the family on reuse, and a winner whose advance ran after
// that revocation would be rejected even though it consumed the token
// first. Cap breach deletes the record and writes the tombstone inside the
// same script.
const advanceScript = `
local used_key = KEYS[1]
local fam_key = KEYS[2]
local tomb_key = KEYS[3]
local used_ttl_ms = tonumber(ARGV[1])
local max_gen = tonumber(ARGV[2])
local now_unix = tonumber(ARGV[3])
local fam_ttl_ms = tonumber(ARGV[4])
local tomb_ttl_ms = tonumber(ARGV[5])

if not redis.call("SET", used_key, "1", "NX", "PX", used_ttl_ms) then
  return {5}
end

if redis.call("EXISTS", tomb_key) == 1 then
  return {1}
end

local data = redis.call("GET", fam_key)
if not data then
  return {0}
end

local ok, fam = pcall(cjson.decode, data)
if not ok or type(fam) ~= "table" or not fam.generation then
  return {4}
end

if fam.generation > max_gen then
  redis.call("DEL", fam_key)
  redis.call("SET", tomb_key, "1", "PX", tomb_ttl_ms)
  return {2}
end

fam.generation = fam.generation + 1
fam.lastRefresh = now_unix
local encoded = cjson.encode(fam)
redis.call("SET", fam_key, encoded, "PX", fam_ttl_ms)
return {3, encoded}
`

var advanceLua = redis.NewScript(advanceScript)

// revokeScript deletes the family record and plants the tombstone in one
// step. Idempotent: revoking an absent or already-revoked family succeeds.
const revokeScript = `
redis.call("DEL", KEYS[1])
redis.call("SET", KEYS[2], "1", "PX", tonumber(ARGV[1]))
return 1
`

var revokeLua = redis.NewScript(revokeScript)

// Store is the family registry: a Redis adapter keyed by family id.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore returns a registry using the given key prefix (default "tlf").
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "tlf"
	}
	return &Store{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *Store) key(familyID string) string {
	return s.prefix + ":fam:" + familyID
}

func (s *Store) tombstoneKey(familyID string) string {
	return s.prefix + ":rvk:" + familyID
}

// Create persists a brand-new family record with the given TTL (the refresh
// token lifetime). It refuses to overwrite an existing or revoked family:
// family ids are random and never reused.
func (s *Store) Create(ctx context.Context, fam *Family, ttl time.Duration) error {
	if fam == nil || fam.FamilyID == "" {
		return errors.New("family id required")
	}

	encoded, err := json.Marshal(fam)
	if err != nil {
		return err
	}

	ok, err := s.redis.SetNX(ctx, s.key(fam.FamilyID), encoded, ttl).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if !ok {
		return errors.New("family id collision")
	}
	return nil
}

// Get loads a family record. Revocation wins over existence: a tombstoned
// family reports ErrRevoked even if a record were somehow still present.
func (s *Store) Get(ctx context.Context, familyID string) (*Family, error) {
	revoked, err := s.IsRevoked(ctx, familyID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRevoked
	}

	data, err := s.redis.Get(ctx, s.key(familyID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	fam := &Family{}
	if err := json.Unmarshal(data, fam); err != nil {
		return nil, ErrCorrupt
	}
	return fam, nil
}

// IsRevoked reports whether the family carries a revocation tombstone.
func (s *Store) IsRevoked(ctx context.Context, familyID string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.tombstoneKey(familyID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return n > 0, nil
}

// Revoke destroys the family and plants a tombstone for tombstoneTTL (the
// window in which an outstanding refresh token could still be presented).
// Idempotent.
func (s *Store) Revoke(ctx context.Context, familyID string, tombstoneTTL time.Duration) error {
	if tombstoneTTL <= 0 {
		tombstoneTTL = time.Minute
	}
	err := revokeLua.Run(ctx, s.redis,
		[]string{s.key(familyID), s.tombstoneKey(familyID)},
		tombstoneTTL.Milliseconds(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ConsumeAndAdvance is the commit point of a rotation: it writes the
// used-marker for the consumed jti (SET NX; losing means reuse), then
// increments the family generation and stamps the rotation time, enforcing
// the generation cap, all in one atomic step. On cap breach the family is
// revoked inside the same step and ErrGenerationCap is returned; a lost
// used-marker race returns ErrReused with no family mutation.
//
// usedKey is composed by the revocation store; this store only takes it
// along so the two writes share one script.
func (s *Store) ConsumeAndAdvance(
	ctx context.Context,
	familyID string,
	usedKey string,
	usedTTL time.Duration,
	maxGenerations int64,
	now time.Time,
	ttl time.Duration,
	tombstoneTTL time.Duration,
) (*Family, error) {
	if tombstoneTTL <= 0 {
		tombstoneTTL = ttl
	}
	if usedTTL <= 0 {
		usedTTL = time.Minute
	}

	raw, err := advanceLua.Run(ctx, s.redis,
		[]string{usedKey, s.key(familyID), s.tombstoneKey(familyID)},
		usedTTL.Milliseconds(),
		maxGenerations,
		now.Unix(),
		ttl.Milliseconds(),
		tombstoneTTL.Milliseconds(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) == 0 {
		return nil, ErrCorrupt
	}
	status, ok := reply[0].(int64)
	if !ok {
		return nil, ErrCorrupt
	}

	switch status {
	case advanceStatusReused:
		return nil, ErrReused
	case advanceStatusNotFound:
		return nil, ErrNotFound
	case advanceStatusRevoked:
		return nil, ErrRevoked
	case advanceStatusCapExceeded:
		return nil, ErrGenerationCap
	case advanceStatusCorrupt:
		return nil, ErrCorrupt
	case advanceStatusAdvanced:
		if len(reply) < 2 {
			return nil, ErrCorrupt
		}
		encoded, ok := reply[1].(string)
		if !ok {
			return nil, ErrCorrupt
		}
		fam := &Family{}
		if err := json.Unmarshal([]byte(encoded), fam); err != nil {
			return nil, ErrCorrupt
		}
		return fam, nil
	default:
		return nil, ErrCorrupt
	}
}

// Ping reports store reachability and round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}
