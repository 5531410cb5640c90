package flows

import (
	"context"
	"errors"
	"time"

	"github.com/tokenlife/tokenlife/family"
	"github.com/tokenlife/tokenlife/token"
)

// InfoResult carries unverified token metadata for introspection. It must
// never feed an authorization decision.
type InfoResult struct {
	Failure ValidateFailureKind
	Err     error

	TokenType token.Type
	IssuedAt  time.Time
	ExpiresAt time.Time
	Expired   bool
	Audience  []string
	Issuer    string
	Payload   *token.Unverified
}

// InfoDeps captures introspection dependencies.
type InfoDeps struct {
	DecodeUnverified func(tokenStr string) (*token.Unverified, error)
	Now              func() time.Time
}

// RunTokenInfo decodes a token without verifying it and reports its shape.
func RunTokenInfo(tokenStr string, includePayload bool, deps InfoDeps) InfoResult {
	decoded, err := deps.DecodeUnverified(tokenStr)
	if err != nil {
		return InfoResult{Failure: ValidateFailureMalformed, Err: err}
	}

	result := InfoResult{
		TokenType: decoded.TokenType,
		IssuedAt:  decoded.IssuedAt,
		ExpiresAt: decoded.ExpiresAt,
		Expired:   !decoded.ExpiresAt.IsZero() && !decoded.ExpiresAt.After(deps.Now()),
		Audience:  decoded.Audience,
		Issuer:    decoded.Issuer,
	}
	if includePayload {
		result.Payload = decoded
	}
	return result
}

// FamilyFailureKind classifies family audit failures for root-level mapping.
type FamilyFailureKind int

const (
	FamilyFailureNone FamilyFailureKind = iota
	FamilyFailureMalformed
	FamilyFailureSignature
	FamilyFailureExpired
	FamilyFailureNotFound
	FamilyFailureRevoked
	FamilyFailureStore
)

// FamilyInfoResult reports the audited family state.
type FamilyInfoResult struct {
	Failure FamilyFailureKind
	Err     error

	Family *family.Family
}

// FamilyInfoDeps captures family audit dependencies.
type FamilyInfoDeps struct {
	ParseRefresh func(tokenStr string, ignoreExpiration bool) (*token.RefreshClaims, error)
	Families     FamilyRegistry
}

// RunValidateFamily confirms that the family referenced by a refresh token
// exists, is not revoked, and belongs to userID. An owner mismatch reports
// not-found: the caller learns nothing about other users' families.
func RunValidateFamily(ctx context.Context, refreshToken, userID string, deps FamilyInfoDeps) FamilyInfoResult {
	claims, err := deps.ParseRefresh(refreshToken, false)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			return FamilyInfoResult{Failure: FamilyFailureExpired, Err: err}
		case errors.Is(err, token.ErrMalformed), errors.Is(err, token.ErrWrongType):
			return FamilyInfoResult{Failure: FamilyFailureMalformed, Err: err}
		default:
			return FamilyInfoResult{Failure: FamilyFailureSignature, Err: err}
		}
	}

	fam, err := deps.Families.Get(ctx, claims.FamilyID)
	if err != nil {
		switch {
		case errors.Is(err, family.ErrRevoked):
			return FamilyInfoResult{Failure: FamilyFailureRevoked, Err: err}
		case errors.Is(err, family.ErrNotFound):
			return FamilyInfoResult{Failure: FamilyFailureNotFound, Err: err}
		default:
			return FamilyInfoResult{Failure: FamilyFailureStore, Err: err}
		}
	}

	if userID == "" || fam.UserID != userID {
		return FamilyInfoResult{Failure: FamilyFailureNotFound}
	}

	return FamilyInfoResult{Family: fam}
}
