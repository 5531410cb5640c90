package tokenlife

import (
	"context"

	"github.com/tokenlife/tokenlife/internal"
	"github.com/tokenlife/tokenlife/internal/flows"
	"github.com/tokenlife/tokenlife/token"
)

// GenerateTokens mints a new token family and its initial access/refresh
// pair for an externally verified identity. UserID and Email are required.
//
// Exactly one family record is written; if that write fails, nothing is
// issued.
func (s *Service) GenerateTokens(ctx context.Context, identity Identity, opts *GenerateOptions) (*TokenPairResult, error) {
	if s == nil {
		return nil, ErrServiceNotReady
	}

	accessTTL := s.config.Token.AccessTTL
	refreshTTL := s.config.Token.RefreshTTL
	signOpts := token.SignOptions{}
	if opts != nil {
		if opts.AccessTokenExpiry != "" {
			d, err := ParseExpiry(opts.AccessTokenExpiry)
			if err != nil {
				return nil, ErrTokenMalformed
			}
			accessTTL = d
		}
		if opts.RefreshTokenExpiry != "" {
			d, err := ParseExpiry(opts.RefreshTokenExpiry)
			if err != nil {
				return nil, ErrTokenMalformed
			}
			refreshTTL = d
		}
		signOpts.Audience = opts.Audience
		signOpts.Issuer = opts.Issuer
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	result := flows.RunIssue(ctx, flows.Identity{
		UserID:      identity.UserID,
		Email:       identity.Email,
		Roles:       identity.Roles,
		TenantID:    identity.TenantID,
		Permissions: identity.Permissions,
	}, flows.IssueDeps{
		NewFamilyID: func() (string, error) {
			fid, err := internal.NewFamilyID()
			if err != nil {
				return "", err
			}
			return fid.String(), nil
		},
		NewJTI:      internal.NewJTI,
		Now:         s.now,
		AccessTTL:   accessTTL,
		RefreshTTL:  refreshTTL,
		SignAccess:  s.signAccessForIdentity(signOpts),
		SignRefresh: s.signRefresh(signOpts),
		Families:    s.families,
	})

	switch result.Failure {
	case flows.IssueFailureNone:
	case flows.IssueFailureMissingFields:
		s.metricInc(MetricIssueFailure)
		s.emitAudit(ctx, auditEventIssueInvalid, false, identity.UserID, "", "", ErrMissingFields, nil)
		return nil, ErrMissingFields
	case flows.IssueFailureStore:
		s.metricInc(MetricIssueFailure)
		s.metricInc(MetricStoreUnavailable)
		s.emitAudit(ctx, auditEventIssueInvalid, false, identity.UserID, result.FamilyID, "", result.Err, nil)
		return nil, ErrStoreUnavailable
	default:
		s.metricInc(MetricIssueFailure)
		s.emitAudit(ctx, auditEventIssueInvalid, false, identity.UserID, result.FamilyID, "", result.Err, nil)
		return nil, ErrInternal
	}

	s.metricInc(MetricIssueSuccess)
	s.emitAudit(ctx, auditEventTokensIssued, true, identity.UserID, result.FamilyID, "", nil, nil)

	return &TokenPairResult{
		AccessToken:        result.AccessToken,
		RefreshToken:       result.RefreshToken,
		AccessTokenExpiry:  result.AccessExpiresAt,
		RefreshTokenExpiry: result.RefreshExpiresAt,
		TokenType:          "Bearer",
		FamilyID:           result.FamilyID,
	}, nil
}
