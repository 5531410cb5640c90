package tokenlife

import (
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// testClock is a manually advanced time source shared by the codec and
// every TTL computation, so expiry tests never sleep.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func serviceTestConfig() Config {
	cfg := defaultConfig()
	cfg.Token.AccessSecret = []byte("test-access-secret-0123456789")
	cfg.Token.RefreshSecret = []byte("test-refresh-secret-987654321")
	cfg.Token.Issuer = "tokenlife-test"
	cfg.Token.Audience = "test-api"
	return cfg
}

func newTestService(t *testing.T, cfg Config) (*Service, *miniredis.Miniredis, *testClock, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)
	clock := newTestClock()

	svc, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithClock(clock.Now).
		Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return svc, mr, clock, func() {
		svc.Close()
		_ = rdb.Close()
		mr.Close()
	}
}

func testIdentity() Identity {
	return Identity{
		UserID:      "u1",
		Email:       "alice@example.com",
		Roles:       []string{"member", "admin"},
		TenantID:    "t1",
		Permissions: []string{"doc.read", "doc.write"},
	}
}
