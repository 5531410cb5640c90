package flows

import (
	"context"
	"time"

	"github.com/tokenlife/tokenlife/family"
)

// IssueFailureKind classifies issuance failures for root-level mapping.
type IssueFailureKind int

const (
	IssueFailureNone IssueFailureKind = iota
	IssueFailureMissingFields
	IssueFailureRandom
	IssueFailureStore
	IssueFailureSign
)

// IssueResult carries either the issued pair or failure metadata.
type IssueResult struct {
	Failure IssueFailureKind
	Err     error

	FamilyID         string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// IssueDeps captures issuance flow dependencies.
type IssueDeps struct {
	NewFamilyID func() (string, error)
	NewJTI      func() (string, error)
	Now         func() time.Time

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	SignAccess  func(identity Identity, familyID, jti string, ttl time.Duration) (string, time.Time, error)
	SignRefresh func(userID, email, familyID, jti string, ttl time.Duration) (string, time.Time, error)

	Families FamilyRegistry
}

// RunIssue mints a new token family plus its initial access/refresh pair.
// The family record is persisted before any token is signed: a token
// without a backing family must never exist.
func RunIssue(ctx context.Context, identity Identity, deps IssueDeps) IssueResult {
	if identity.UserID == "" || identity.Email == "" {
		return IssueResult{Failure: IssueFailureMissingFields}
	}

	familyID, err := deps.NewFamilyID()
	if err != nil {
		return IssueResult{Failure: IssueFailureRandom, Err: err}
	}
	accessJTI, err := deps.NewJTI()
	if err != nil {
		return IssueResult{Failure: IssueFailureRandom, Err: err}
	}
	refreshJTI, err := deps.NewJTI()
	if err != nil {
		return IssueResult{Failure: IssueFailureRandom, Err: err}
	}

	now := deps.Now()
	fam := &family.Family{
		FamilyID:    familyID,
		UserID:      identity.UserID,
		Email:       identity.Email,
		Roles:       identity.Roles,
		TenantID:    identity.TenantID,
		Permissions: identity.Permissions,
		Generation:  1,
		LastRefresh: now.Unix(),
		CreatedAt:   now.Unix(),
	}
	if err := deps.Families.Create(ctx, fam, deps.RefreshTTL); err != nil {
		return IssueResult{Failure: IssueFailureStore, Err: err, FamilyID: familyID}
	}

	access, accessExp, err := deps.SignAccess(identity, familyID, accessJTI, deps.AccessTTL)
	if err != nil {
		return IssueResult{Failure: IssueFailureSign, Err: err, FamilyID: familyID}
	}
	refresh, refreshExp, err := deps.SignRefresh(identity.UserID, identity.Email, familyID, refreshJTI, deps.RefreshTTL)
	if err != nil {
		return IssueResult{Failure: IssueFailureSign, Err: err, FamilyID: familyID}
	}

	return IssueResult{
		Failure:          IssueFailureNone,
		FamilyID:         familyID,
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}
}
