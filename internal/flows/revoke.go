package flows

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tokenlife/tokenlife/token"
)

// RevokeFailureKind classifies revocation failures for root-level mapping.
type RevokeFailureKind int

const (
	RevokeFailureNone RevokeFailureKind = iota
	RevokeFailureMalformed
	RevokeFailureSignature
	RevokeFailureStore
)

// RevokeResult reports what was invalidated.
type RevokeResult struct {
	Failure RevokeFailureKind
	Err     error

	TokenType token.Type
	JTI       string
	UserID    string
	FamilyID  string
	RevokedAt time.Time
}

// RevokeDeps captures revocation flow dependencies.
type RevokeDeps struct {
	ParseAccess  func(tokenStr string, ignoreExpiration bool) (*token.AccessClaims, error)
	ParseRefresh func(tokenStr string, ignoreExpiration bool) (*token.RefreshClaims, error)
	Now          func() time.Time

	TombstoneTTL time.Duration

	Revocations RevocationWriter
	Families    FamilyRegistry
}

// RunRevokeAccess invalidates a single access token by writing a
// revocation record for its jti. Expired tokens are a no-op success, and
// revoking twice is idempotent.
func RunRevokeAccess(ctx context.Context, tokenStr string, deps RevokeDeps) RevokeResult {
	claims, err := deps.ParseAccess(tokenStr, true)
	if err != nil {
		return classifyRevokeParse(err)
	}

	now := deps.Now()
	result := RevokeResult{
		TokenType: token.TypeAccess,
		JTI:       claims.ID,
		UserID:    claims.UserID,
		FamilyID:  claims.FamilyID,
		RevokedAt: now,
	}

	if err := deps.Revocations.MarkRevoked(ctx, claims.ID, revocationTTL(claims.ExpiresAt, now)); err != nil {
		result.Failure = RevokeFailureStore
		result.Err = err
		return result
	}
	return result
}

// RunRevokeRefresh invalidates a refresh token and its entire family:
// the family tombstone kills every descendant, and the jti record plus
// used-marker close out the presented token itself.
func RunRevokeRefresh(ctx context.Context, tokenStr string, deps RevokeDeps) RevokeResult {
	claims, err := deps.ParseRefresh(tokenStr, true)
	if err != nil {
		return classifyRevokeParse(err)
	}

	now := deps.Now()
	result := RevokeResult{
		TokenType: token.TypeRefresh,
		JTI:       claims.ID,
		UserID:    claims.UserID,
		FamilyID:  claims.FamilyID,
		RevokedAt: now,
	}

	if err := deps.Families.Revoke(ctx, claims.FamilyID, deps.TombstoneTTL); err != nil {
		result.Failure = RevokeFailureStore
		result.Err = err
		return result
	}

	if err := deps.Revocations.MarkRevoked(ctx, claims.ID, revocationTTL(claims.ExpiresAt, now)); err != nil {
		result.Failure = RevokeFailureStore
		result.Err = err
		return result
	}
	return result
}

// revocationTTL returns how long the revocation record must outlive the
// token. An already-expired token still gets a short-lived record:
// validation with IgnoreExpiration can resurrect it, and the record must
// win that race.
func revocationTTL(expiresAt *jwt.NumericDate, now time.Time) time.Duration {
	const floor = time.Minute
	if expiresAt == nil {
		return floor
	}
	if remaining := expiresAt.Time.Sub(now); remaining > floor {
		return remaining
	}
	return floor
}

func classifyRevokeParse(err error) RevokeResult {
	if errors.Is(err, token.ErrMalformed) || errors.Is(err, token.ErrWrongType) {
		return RevokeResult{Failure: RevokeFailureMalformed, Err: err}
	}
	return RevokeResult{Failure: RevokeFailureSignature, Err: err}
}
