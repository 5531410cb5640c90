package tokenlife

import (
	"context"

	"github.com/tokenlife/tokenlife/internal/flows"
	"github.com/tokenlife/tokenlife/token"
)

// GetTokenInfo decodes a token without verifying its signature and reports
// its shape: type, timestamps, expiry state, and optionally the identity
// payload. Informational only; never use it for authorization decisions.
func (s *Service) GetTokenInfo(ctx context.Context, tokenStr string, includePayload bool) (*TokenInfo, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}

	result := flows.RunTokenInfo(tokenStr, includePayload, flows.InfoDeps{
		DecodeUnverified: s.codec.DecodeUnverified,
		Now:              s.now,
	})
	if result.Failure != flows.ValidateFailureNone {
		return nil, ErrTokenMalformed
	}

	info := &TokenInfo{
		TokenType: TokenType(result.TokenType),
		IssuedAt:  result.IssuedAt,
		ExpiresAt: result.ExpiresAt,
		Expired:   result.Expired,
		Audience:  result.Audience,
		Issuer:    result.Issuer,
	}
	if result.Payload != nil {
		info.Payload = &TokenPayload{
			Identity: Identity{
				UserID: result.Payload.UserID,
				Email:  result.Payload.Email,
			},
			JTI:      result.Payload.JTI,
			FamilyID: result.Payload.FamilyID,
		}
	}
	return info, nil
}

// ValidateTokenFamily confirms that the family a refresh token references
// exists, is not revoked, and belongs to userID. Intended for out-of-band
// security audits, not the hot request path. An owner mismatch reports
// ErrFamilyNotFound rather than confirming the family exists.
func (s *Service) ValidateTokenFamily(ctx context.Context, refreshToken, userID string) (*FamilyInfo, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	result := flows.RunValidateFamily(ctx, refreshToken, userID, flows.FamilyInfoDeps{
		ParseRefresh: s.parseRefresh(token.ParseOptions{}),
		Families:     s.families,
	})

	switch result.Failure {
	case flows.FamilyFailureNone:
	case flows.FamilyFailureMalformed:
		return nil, ErrTokenMalformed
	case flows.FamilyFailureExpired:
		return nil, ErrTokenExpired
	case flows.FamilyFailureNotFound:
		return nil, ErrFamilyNotFound
	case flows.FamilyFailureRevoked:
		return nil, ErrFamilyRevoked
	case flows.FamilyFailureStore:
		s.metricInc(MetricStoreUnavailable)
		return nil, ErrStoreUnavailable
	default:
		return nil, ErrSignatureInvalid
	}

	fam := result.Family
	return &FamilyInfo{
		Valid:       true,
		FamilyID:    fam.FamilyID,
		Generation:  fam.Generation,
		LastRefresh: fam.LastRefreshTime(),
		CreatedAt:   fam.CreatedTime(),
	}, nil
}
