package tokenlife

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tokenlife/tokenlife/family"
	"github.com/tokenlife/tokenlife/internal/flows"
	"github.com/tokenlife/tokenlife/internal/rate"
	"github.com/tokenlife/tokenlife/internal/stores"
	"github.com/tokenlife/tokenlife/token"
)

// Service is the token-lifecycle engine: it issues paired access/refresh
// tokens, validates them, rotates refresh tokens with reuse detection, and
// revokes tokens or whole families on demand.
//
// A Service is stateless across requests; all durable state lives in the
// backing key-value store, which may be shared by many Service instances.
// Methods are safe for concurrent use after Build.
type Service struct {
	config      Config
	codec       *token.Codec
	families    *family.Store
	revocations *stores.RevocationStore
	throttle    *rate.Limiter
	audit       *auditDispatcher
	metrics     *Metrics
	now         func() time.Time
}

// Close flushes and stops the audit dispatcher. The Service must not be
// used afterwards.
func (s *Service) Close() {
	if s == nil {
		return
	}
	if s.audit != nil {
		s.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the
// dispatch buffer was full.
func (s *Service) AuditDropped() uint64 {
	if s == nil || s.audit == nil {
		return 0
	}
	return s.audit.Dropped()
}

// MetricsSnapshot copies the current counter values.
func (s *Service) MetricsSnapshot() MetricsSnapshot {
	if s == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return s.metrics.Snapshot()
}

// Ping reports backing-store reachability and round-trip latency.
func (s *Service) Ping(ctx context.Context) (time.Duration, error) {
	if s == nil {
		return 0, ErrServiceNotReady
	}
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	latency, err := s.families.Ping(ctx)
	if err != nil {
		return 0, ErrStoreUnavailable
	}
	return latency, nil
}

// opContext bounds every store-touching operation. A timed-out store call
// surfaces as store-unavailable and fails closed.
func (s *Service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.config.Store.OpTimeout)
}

func (s *Service) metricInc(id MetricID) {
	if s == nil {
		return
	}
	s.metrics.Inc(id)
}

func (s *Service) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID, familyID, jti string,
	opErr error,
	metadata func() map[string]string,
) {
	if s == nil || s.audit == nil {
		return
	}

	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: s.now(),
		EventType: eventType,
		UserID:    userID,
		FamilyID:  familyID,
		JTI:       jti,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	if metadata != nil {
		event.Metadata = metadata()
	}

	s.audit.Emit(ctx, event)
}

// signAccessForIdentity adapts the codec to the issue flow's signature.
func (s *Service) signAccessForIdentity(opts token.SignOptions) func(flows.Identity, string, string, time.Duration) (string, time.Time, error) {
	return func(id flows.Identity, familyID, jti string, ttl time.Duration) (string, time.Time, error) {
		return s.codec.SignAccess(id.UserID, id.Email, id.Roles, id.TenantID, id.Permissions, familyID, jti, ttl, opts)
	}
}

// signAccessForFamily adapts the codec to the refresh flow's signature:
// rotated access tokens reuse the identity snapshot captured at issuance.
func (s *Service) signAccessForFamily(opts token.SignOptions) func(*family.Family, string, time.Duration) (string, time.Time, error) {
	return func(fam *family.Family, jti string, ttl time.Duration) (string, time.Time, error) {
		return s.codec.SignAccess(fam.UserID, fam.Email, fam.Roles, fam.TenantID, fam.Permissions, fam.FamilyID, jti, ttl, opts)
	}
}

func (s *Service) signRefresh(opts token.SignOptions) func(string, string, string, string, time.Duration) (string, time.Time, error) {
	return func(userID, email, familyID, jti string, ttl time.Duration) (string, time.Time, error) {
		return s.codec.SignRefresh(userID, email, familyID, jti, ttl, opts)
	}
}

func (s *Service) parseAccess(opts token.ParseOptions) func(string, bool) (*token.AccessClaims, error) {
	return func(tokenStr string, ignoreExpiration bool) (*token.AccessClaims, error) {
		o := opts
		o.IgnoreExpiration = ignoreExpiration
		return s.codec.ParseAccess(tokenStr, o)
	}
}

func (s *Service) parseRefresh(opts token.ParseOptions) func(string, bool) (*token.RefreshClaims, error) {
	return func(tokenStr string, ignoreExpiration bool) (*token.RefreshClaims, error) {
		o := opts
		o.IgnoreExpiration = ignoreExpiration
		return s.codec.ParseRefresh(tokenStr, o)
	}
}
