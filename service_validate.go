package tokenlife

import (
	"context"

	"github.com/tokenlife/tokenlife/internal/flows"
	"github.com/tokenlife/tokenlife/token"
)

// ValidateToken verifies a token's signature and expiry, then cross-checks
// revocation state. This is the call resource servers make on every
// protected request.
//
// An invalid token returns a non-nil ValidationResult (Valid=false,
// Expired set when applicable) together with the classifying error. Store
// failures during revocation checks fail closed: the token is reported
// invalid with ErrStoreUnavailable.
func (s *Service) ValidateToken(ctx context.Context, tokenStr string, typ TokenType, opts *ValidateOptions) (*ValidationResult, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}

	parseOpts := token.ParseOptions{}
	ignoreExpiration := false
	if opts != nil {
		parseOpts.Audience = opts.Audience
		parseOpts.Issuer = opts.Issuer
		ignoreExpiration = opts.IgnoreExpiration
	}

	var tokenType token.Type
	switch typ {
	case TokenTypeAccess:
		tokenType = token.TypeAccess
	case TokenTypeRefresh:
		tokenType = token.TypeRefresh
	default:
		return &ValidationResult{}, ErrInvalidScope
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	result := flows.RunValidate(ctx, tokenStr, tokenType, ignoreExpiration, flows.ValidateDeps{
		ParseAccess:  s.parseAccess(parseOpts),
		ParseRefresh: s.parseRefresh(parseOpts),
		Revocations:  s.revocations,
		Families:     s.families,
	})

	out := &ValidationResult{
		Valid:     result.Valid(),
		Expired:   result.Expired,
		ExpiresAt: result.ExpiresAt,
	}

	if result.Valid() {
		out.Payload = payloadFromClaims(result)
		s.metricInc(MetricValidateSuccess)
		return out, nil
	}

	err := validateFailureError(result.Failure)
	s.metricInc(MetricValidateFailure)
	if result.Failure == flows.ValidateFailureStore {
		s.metricInc(MetricStoreUnavailable)
	}
	s.emitAudit(ctx, auditEventValidateFailure, false, "", result.FamilyID(), result.JTI(), err, func() map[string]string {
		return map[string]string{
			"token_type": string(typ),
		}
	})
	return out, err
}

func payloadFromClaims(result flows.ValidateResult) *TokenPayload {
	switch {
	case result.AccessClaims != nil:
		c := result.AccessClaims
		return &TokenPayload{
			Identity: Identity{
				UserID:      c.UserID,
				Email:       c.Email,
				Roles:       c.Roles,
				TenantID:    c.TenantID,
				Permissions: c.Permissions,
			},
			JTI:      c.ID,
			FamilyID: c.FamilyID,
		}
	case result.RefreshClaims != nil:
		c := result.RefreshClaims
		return &TokenPayload{
			Identity: Identity{
				UserID: c.UserID,
				Email:  c.Email,
			},
			JTI:      c.ID,
			FamilyID: c.FamilyID,
		}
	default:
		return nil
	}
}

func validateFailureError(kind flows.ValidateFailureKind) error {
	switch kind {
	case flows.ValidateFailureMalformed:
		return ErrTokenMalformed
	case flows.ValidateFailureExpired:
		return ErrTokenExpired
	case flows.ValidateFailureRevokedToken:
		return ErrTokenRevoked
	case flows.ValidateFailureRevokedFamily:
		return ErrFamilyRevoked
	case flows.ValidateFailureStore:
		return ErrStoreUnavailable
	default:
		return ErrSignatureInvalid
	}
}
