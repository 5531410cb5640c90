package tokenlife

import (
	"context"
	"errors"
	"log"
	"strconv"
	"time"

	"github.com/tokenlife/tokenlife/internal"
	"github.com/tokenlife/tokenlife/internal/flows"
	"github.com/tokenlife/tokenlife/internal/rate"
	"github.com/tokenlife/tokenlife/token"
)

// RefreshTokens executes the rotate-or-reject protocol on a refresh token.
// On success the family generation advances by exactly one and a new
// access token (plus, by default, a replacement refresh token) is issued.
//
// Presenting an already-consumed refresh token revokes the entire family
// and fails with ErrReuseDetected; that revocation is committed even
// though the call fails.
func (s *Service) RefreshTokens(ctx context.Context, refreshToken string, opts *RefreshOptions) (*TokenPairResult, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}

	rotate := true
	maxGenerations := int64(s.config.Limits.MaxGenerations)
	if opts != nil {
		if opts.NewRefreshToken != nil {
			rotate = *opts.NewRefreshToken
		}
		if opts.MaxGenerations > 0 {
			maxGenerations = int64(opts.MaxGenerations)
		}
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	var throttle flows.RefreshThrottle
	if s.throttle != nil {
		throttle = s.throttle
	}

	result := flows.RunRefresh(ctx, refreshToken, flows.RefreshDeps{
		DecodeJTI: func(tokenStr string) (string, string, time.Time, error) {
			decoded, err := s.codec.DecodeUnverified(tokenStr)
			if err != nil {
				return "", "", time.Time{}, err
			}
			return decoded.JTI, decoded.FamilyID, decoded.ExpiresAt, nil
		},
		Validate: func(ctx context.Context, tokenStr string) flows.ValidateResult {
			return flows.RunValidate(ctx, tokenStr, token.TypeRefresh, false, flows.ValidateDeps{
				ParseAccess:  s.parseAccess(token.ParseOptions{}),
				ParseRefresh: s.parseRefresh(token.ParseOptions{}),
				Revocations:  s.revocations,
				Families:     s.families,
			})
		},
		NewJTI:         internal.NewJTI,
		Now:            s.now,
		AccessTTL:      s.config.Token.AccessTTL,
		RefreshTTL:     s.config.Token.RefreshTTL,
		TombstoneTTL:   s.config.Token.RefreshTTL,
		MaxGenerations: maxGenerations,
		RotateRefresh:  rotate,
		SignAccess:     s.signAccessForFamily(token.SignOptions{}),
		SignRefresh:    s.signRefresh(token.SignOptions{}),
		Throttle:       throttle,
		Revocations:    s.revocations,
		Families:       s.families,
		Warn:           log.Printf,
	})

	switch result.Failure {
	case flows.RefreshFailureNone:
	case flows.RefreshFailureRateLimited:
		s.metricInc(MetricRefreshRateLimited)
		s.emitAudit(ctx, auditEventRefreshRateLimited, false, result.UserID, result.FamilyID, result.JTI, ErrRefreshRateLimited, nil)
		if result.Err != nil && !isRateLimited(result.Err) {
			// Throttle backend unreachable: fail closed as unavailable,
			// not as a rate-limit verdict.
			s.metricInc(MetricStoreUnavailable)
			return nil, ErrStoreUnavailable
		}
		return nil, ErrRefreshRateLimited
	case flows.RefreshFailureReuse:
		s.metricInc(MetricRefreshReuseDetected)
		s.metricInc(MetricFamilyRevoked)
		s.emitAudit(ctx, auditEventRefreshReuseDetected, false, result.UserID, result.FamilyID, result.JTI, ErrReuseDetected, nil)
		s.emitAudit(ctx, auditEventFamilyRevoked, true, result.UserID, result.FamilyID, "", nil, func() map[string]string {
			return map[string]string{"reason": "reuse_detected"}
		})
		return nil, ErrReuseDetected
	case flows.RefreshFailureFamilyNotFound:
		s.metricInc(MetricRefreshFailure)
		s.emitAudit(ctx, auditEventRefreshInvalid, false, result.UserID, result.FamilyID, result.JTI, ErrFamilyNotFound, func() map[string]string {
			return map[string]string{"reason": "family_not_found"}
		})
		return nil, ErrFamilyNotFound
	case flows.RefreshFailureGenerationCap:
		s.metricInc(MetricRefreshFailure)
		s.metricInc(MetricGenerationCapHit)
		s.metricInc(MetricFamilyRevoked)
		s.emitAudit(ctx, auditEventFamilyRevoked, true, result.UserID, result.FamilyID, "", nil, func() map[string]string {
			return map[string]string{"reason": "generation_cap"}
		})
		return nil, ErrGenerationCapExceeded
	case flows.RefreshFailureStore:
		s.metricInc(MetricRefreshFailure)
		s.metricInc(MetricStoreUnavailable)
		s.emitAudit(ctx, auditEventRefreshInvalid, false, result.UserID, result.FamilyID, result.JTI, result.Err, func() map[string]string {
			return map[string]string{"reason": "store_unavailable"}
		})
		return nil, ErrStoreUnavailable
	default:
		err := refreshFailureError(result.Failure)
		s.metricInc(MetricRefreshFailure)
		s.emitAudit(ctx, auditEventRefreshInvalid, false, result.UserID, result.FamilyID, result.JTI, err, nil)
		return nil, err
	}

	s.metricInc(MetricRefreshSuccess)
	s.emitAudit(ctx, auditEventRefreshSuccess, true, result.UserID, result.FamilyID, result.JTI, nil, func() map[string]string {
		return map[string]string{
			"generation": strconv.FormatInt(result.Family.Generation, 10),
		}
	})

	return &TokenPairResult{
		AccessToken:        result.AccessToken,
		RefreshToken:       result.RefreshToken,
		AccessTokenExpiry:  result.AccessExpiresAt,
		RefreshTokenExpiry: result.RefreshExpiresAt,
		TokenType:          "Bearer",
		FamilyID:           result.FamilyID,
	}, nil
}

func refreshFailureError(kind flows.RefreshFailureKind) error {
	switch kind {
	case flows.RefreshFailureMalformed:
		return ErrTokenMalformed
	case flows.RefreshFailureExpired:
		return ErrTokenExpired
	case flows.RefreshFailureRevokedToken:
		return ErrTokenRevoked
	case flows.RefreshFailureRevokedFamily:
		return ErrFamilyRevoked
	default:
		return ErrSignatureInvalid
	}
}

func isRateLimited(err error) bool {
	return errors.Is(err, rate.ErrRateLimited)
}
