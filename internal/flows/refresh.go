package flows

import (
	"context"
	"errors"
	"time"

	"github.com/tokenlife/tokenlife/family"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureMalformed
	RefreshFailureRateLimited
	RefreshFailureReuse
	RefreshFailureSignature
	RefreshFailureExpired
	RefreshFailureRevokedToken
	RefreshFailureRevokedFamily
	RefreshFailureFamilyNotFound
	RefreshFailureGenerationCap
	RefreshFailureStore
	RefreshFailureRandom
	RefreshFailureSign
)

// RefreshResult carries either the rotated pair or failure metadata.
type RefreshResult struct {
	Failure RefreshFailureKind
	Err     error

	FamilyID string
	UserID   string
	JTI      string
	Family   *family.Family

	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	DecodeJTI func(tokenStr string) (jti, familyID string, expiresAt time.Time, err error)
	Validate  func(ctx context.Context, tokenStr string) ValidateResult
	NewJTI    func() (string, error)
	Now       func() time.Time

	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	TombstoneTTL   time.Duration
	MaxGenerations int64
	RotateRefresh  bool

	SignAccess  func(fam *family.Family, jti string, ttl time.Duration) (string, time.Time, error)
	SignRefresh func(userID, email, familyID, jti string, ttl time.Duration) (string, time.Time, error)

	Throttle    RefreshThrottle
	Revocations RevocationWriter
	Families    FamilyRegistry

	Warn func(format string, args ...any)
}

// RunRefresh executes the rotate-or-reject protocol on one refresh attempt.
//
// The ordering is load-bearing and must not be rearranged:
//
//  1. decode unverified, cheaply extracting jti and family id
//  2. reuse pre-check against the used-marker store; a hit revokes the
//     whole family and rejects, even if the token would still verify
//  3. full verification (signature, expiry, jti revocation, family tombstone)
//  4. consume-and-advance: one atomic store step that writes the SET NX
//     used-marker before any new token exists and advances the family
//     (existence, generation cap, increment, persist); losing the
//     used-marker race is treated exactly like step 2's reuse
//  5. sign the new access token, and optionally the replacement refresh
//     token plus an explicit revocation record for the consumed jti
//
// Family revocations triggered by attack signals are committed even though
// the overall attempt fails.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	jti, familyID, expiresAt, err := deps.DecodeJTI(refreshToken)
	if err != nil || jti == "" || familyID == "" {
		return RefreshResult{Failure: RefreshFailureMalformed, Err: err}
	}

	if deps.Throttle != nil {
		if err := deps.Throttle.CheckRefresh(ctx, familyID); err != nil {
			return RefreshResult{
				Failure:  RefreshFailureRateLimited,
				Err:      err,
				FamilyID: familyID,
				JTI:      jti,
			}
		}
	}

	// Reuse pre-check. Must run before full validation: the used-marker and
	// the revocation record are separate mechanisms, and a replayed token
	// can still carry a valid signature and an unrevoked jti.
	used, err := deps.Revocations.IsUsed(ctx, jti)
	if err != nil {
		return RefreshResult{
			Failure:  RefreshFailureStore,
			Err:      err,
			FamilyID: familyID,
			JTI:      jti,
		}
	}
	if used {
		deps.revokeFamily(ctx, familyID)
		return RefreshResult{
			Failure:  RefreshFailureReuse,
			FamilyID: familyID,
			JTI:      jti,
		}
	}

	vres := deps.Validate(ctx, refreshToken)
	if !vres.Valid() {
		return RefreshResult{
			Failure:  mapValidateFailure(vres.Failure),
			Err:      vres.Err,
			FamilyID: familyID,
			JTI:      jti,
		}
	}
	userID := vres.RefreshClaims.UserID

	// Consume the token and advance the family in one atomic store step.
	// The used-marker is written before any new token exists; SET NX
	// closes the window in which two concurrent attempts could both
	// rotate the token.
	remaining := expiresAt.Sub(deps.Now())
	fam, err := deps.Families.ConsumeAndAdvance(
		ctx, familyID,
		deps.Revocations.UsedKey(jti), remaining,
		deps.MaxGenerations, deps.Now(), deps.RefreshTTL, deps.TombstoneTTL,
	)
	if err != nil {
		switch {
		case errors.Is(err, family.ErrReused):
			deps.revokeFamily(ctx, familyID)
			return RefreshResult{
				Failure:  RefreshFailureReuse,
				FamilyID: familyID,
				UserID:   userID,
				JTI:      jti,
			}
		case errors.Is(err, family.ErrNotFound):
			// Structurally valid token for an absent family is an attack
			// signal; plant the tombstone defensively.
			deps.revokeFamily(ctx, familyID)
			return RefreshResult{
				Failure:  RefreshFailureFamilyNotFound,
				Err:      err,
				FamilyID: familyID,
				UserID:   userID,
				JTI:      jti,
			}
		case errors.Is(err, family.ErrRevoked):
			return RefreshResult{
				Failure:  RefreshFailureRevokedFamily,
				Err:      err,
				FamilyID: familyID,
				UserID:   userID,
				JTI:      jti,
			}
		case errors.Is(err, family.ErrGenerationCap):
			return RefreshResult{
				Failure:  RefreshFailureGenerationCap,
				Err:      err,
				FamilyID: familyID,
				UserID:   userID,
				JTI:      jti,
			}
		default:
			return RefreshResult{
				Failure:  RefreshFailureStore,
				Err:      err,
				FamilyID: familyID,
				UserID:   userID,
				JTI:      jti,
			}
		}
	}

	accessJTI, err := deps.NewJTI()
	if err != nil {
		return RefreshResult{
			Failure:  RefreshFailureRandom,
			Err:      err,
			FamilyID: familyID,
			UserID:   userID,
			JTI:      jti,
			Family:   fam,
		}
	}
	access, accessExp, err := deps.SignAccess(fam, accessJTI, deps.AccessTTL)
	if err != nil {
		return RefreshResult{
			Failure:  RefreshFailureSign,
			Err:      err,
			FamilyID: familyID,
			UserID:   userID,
			JTI:      jti,
			Family:   fam,
		}
	}

	result := RefreshResult{
		Failure:         RefreshFailureNone,
		FamilyID:        familyID,
		UserID:          userID,
		JTI:             jti,
		Family:          fam,
		AccessToken:     access,
		AccessExpiresAt: accessExp,
	}

	if deps.RotateRefresh {
		refreshJTI, err := deps.NewJTI()
		if err != nil {
			result.Failure = RefreshFailureRandom
			result.Err = err
			return result
		}
		refresh, refreshExp, err := deps.SignRefresh(fam.UserID, fam.Email, familyID, refreshJTI, deps.RefreshTTL)
		if err != nil {
			result.Failure = RefreshFailureSign
			result.Err = err
			return result
		}
		result.RefreshToken = refresh
		result.RefreshExpiresAt = refreshExp

		// Defense in depth alongside the used-marker: an explicit
		// revocation record for the consumed jti. Best effort; the
		// used-marker already guards correctness.
		if err := deps.Revocations.MarkRevoked(ctx, jti, remaining); err != nil && deps.Warn != nil {
			deps.Warn("tokenlife: revocation record for rotated jti failed")
		}
	}

	return result
}

func (d RefreshDeps) revokeFamily(ctx context.Context, familyID string) {
	if err := d.Families.Revoke(ctx, familyID, d.TombstoneTTL); err != nil && d.Warn != nil {
		d.Warn("tokenlife: family revocation on attack signal failed")
	}
}

func mapValidateFailure(kind ValidateFailureKind) RefreshFailureKind {
	switch kind {
	case ValidateFailureMalformed:
		return RefreshFailureMalformed
	case ValidateFailureExpired:
		return RefreshFailureExpired
	case ValidateFailureRevokedToken:
		return RefreshFailureRevokedToken
	case ValidateFailureRevokedFamily:
		return RefreshFailureRevokedFamily
	case ValidateFailureStore:
		return RefreshFailureStore
	default:
		return RefreshFailureSignature
	}
}
