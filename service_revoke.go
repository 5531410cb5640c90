package tokenlife

import (
	"context"

	"github.com/tokenlife/tokenlife/internal/flows"
	"github.com/tokenlife/tokenlife/token"
)

// RevokeToken explicitly invalidates a token. ScopeAccess writes a
// revocation record for the access token's jti; ScopeRefresh revokes the
// refresh token's whole family; ScopeAll accepts either kind and takes the
// widest action its claims allow. Revoking twice is a no-op success.
func (s *Service) RevokeToken(ctx context.Context, tokenStr string, scope RevocationScope) (*RevocationResult, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	deps := flows.RevokeDeps{
		ParseAccess:  s.parseAccess(token.ParseOptions{}),
		ParseRefresh: s.parseRefresh(token.ParseOptions{}),
		Now:          s.now,
		TombstoneTTL: s.config.Token.RefreshTTL,
		Revocations:  s.revocations,
		Families:     s.families,
	}

	var result flows.RevokeResult
	switch scope {
	case ScopeAccess:
		result = flows.RunRevokeAccess(ctx, tokenStr, deps)
	case ScopeRefresh:
		result = flows.RunRevokeRefresh(ctx, tokenStr, deps)
	case ScopeAll:
		// A refresh token gets the family-wide treatment; anything that
		// fails refresh parsing is retried as an access token.
		result = flows.RunRevokeRefresh(ctx, tokenStr, deps)
		if result.Failure != flows.RevokeFailureNone && result.Failure != flows.RevokeFailureStore {
			result = flows.RunRevokeAccess(ctx, tokenStr, deps)
		}
	default:
		return nil, ErrInvalidScope
	}

	switch result.Failure {
	case flows.RevokeFailureNone:
	case flows.RevokeFailureMalformed:
		return nil, ErrTokenMalformed
	case flows.RevokeFailureStore:
		s.metricInc(MetricStoreUnavailable)
		return nil, ErrStoreUnavailable
	default:
		return nil, ErrSignatureInvalid
	}

	if result.TokenType == token.TypeRefresh {
		s.metricInc(MetricFamilyRevoked)
		s.emitAudit(ctx, auditEventFamilyRevoked, true, result.UserID, result.FamilyID, result.JTI, nil, func() map[string]string {
			return map[string]string{"reason": "explicit_revoke"}
		})
	}
	s.metricInc(MetricTokenRevoked)
	s.emitAudit(ctx, auditEventTokenRevoked, true, result.UserID, result.FamilyID, result.JTI, nil, func() map[string]string {
		return map[string]string{"scope": string(scope)}
	})

	return &RevocationResult{
		Revoked:   true,
		TokenType: TokenType(result.TokenType),
		RevokedAt: result.RevokedAt,
	}, nil
}
