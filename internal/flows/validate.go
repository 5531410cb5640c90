package flows

import (
	"context"
	"errors"
	"time"

	"github.com/tokenlife/tokenlife/token"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureMalformed
	ValidateFailureSignature
	ValidateFailureExpired
	ValidateFailureRevokedToken
	ValidateFailureRevokedFamily
	ValidateFailureStore
)

// ValidateResult carries the verified claims or a classified failure.
// Exactly one of AccessClaims/RefreshClaims is set on success.
type ValidateResult struct {
	Failure ValidateFailureKind
	Err     error

	Expired       bool
	ExpiresAt     time.Time
	AccessClaims  *token.AccessClaims
	RefreshClaims *token.RefreshClaims
}

// Valid reports whether the token passed every check.
func (r ValidateResult) Valid() bool {
	return r.Failure == ValidateFailureNone
}

// JTI returns the verified token id, if any.
func (r ValidateResult) JTI() string {
	switch {
	case r.AccessClaims != nil:
		return r.AccessClaims.ID
	case r.RefreshClaims != nil:
		return r.RefreshClaims.ID
	default:
		return ""
	}
}

// FamilyID returns the verified family id, if any.
func (r ValidateResult) FamilyID() string {
	switch {
	case r.AccessClaims != nil:
		return r.AccessClaims.FamilyID
	case r.RefreshClaims != nil:
		return r.RefreshClaims.FamilyID
	default:
		return ""
	}
}

// ValidateDeps captures validation flow dependencies.
type ValidateDeps struct {
	ParseAccess  func(tokenStr string, ignoreExpiration bool) (*token.AccessClaims, error)
	ParseRefresh func(tokenStr string, ignoreExpiration bool) (*token.RefreshClaims, error)

	Revocations RevocationChecker
	Families    interface {
		IsRevoked(ctx context.Context, familyID string) (bool, error)
	}
}

// RunValidate verifies signature and expiry, then cross-checks revocation
// state: the individual JTI record first, then the family tombstone for any
// token that names a family. Store failures classify as ValidateFailureStore
// so the root can fail closed. No side effects.
func RunValidate(
	ctx context.Context,
	tokenStr string,
	typ token.Type,
	ignoreExpiration bool,
	deps ValidateDeps,
) ValidateResult {
	var (
		jti      string
		familyID string
		result   ValidateResult
	)

	switch typ {
	case token.TypeAccess:
		claims, err := deps.ParseAccess(tokenStr, ignoreExpiration)
		if err != nil {
			return classifyParseFailure(err)
		}
		jti = claims.ID
		familyID = claims.FamilyID
		result.AccessClaims = claims
		if claims.ExpiresAt != nil {
			result.ExpiresAt = claims.ExpiresAt.Time
		}
	case token.TypeRefresh:
		claims, err := deps.ParseRefresh(tokenStr, ignoreExpiration)
		if err != nil {
			return classifyParseFailure(err)
		}
		jti = claims.ID
		familyID = claims.FamilyID
		result.RefreshClaims = claims
		if claims.ExpiresAt != nil {
			result.ExpiresAt = claims.ExpiresAt.Time
		}
	default:
		return ValidateResult{Failure: ValidateFailureMalformed, Err: token.ErrWrongType}
	}

	if jti != "" {
		revoked, err := deps.Revocations.IsRevoked(ctx, jti)
		if err != nil {
			result.Failure = ValidateFailureStore
			result.Err = err
			return result
		}
		if revoked {
			result.Failure = ValidateFailureRevokedToken
			return result
		}
	}

	if familyID != "" {
		revoked, err := deps.Families.IsRevoked(ctx, familyID)
		if err != nil {
			result.Failure = ValidateFailureStore
			result.Err = err
			return result
		}
		if revoked {
			result.Failure = ValidateFailureRevokedFamily
			return result
		}
	}

	result.Failure = ValidateFailureNone
	return result
}

func classifyParseFailure(err error) ValidateResult {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ValidateResult{Failure: ValidateFailureExpired, Err: err, Expired: true}
	case errors.Is(err, token.ErrMalformed), errors.Is(err, token.ErrWrongType):
		return ValidateResult{Failure: ValidateFailureMalformed, Err: err}
	default:
		return ValidateResult{Failure: ValidateFailureSignature, Err: err}
	}
}
