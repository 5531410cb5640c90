package flows

import (
	"context"
	"time"

	"github.com/tokenlife/tokenlife/family"
)

// Identity is the externally verified caller identity a flow issues
// tokens for. Credential and MFA checks happen outside this module.
type Identity struct {
	UserID      string
	Email       string
	Roles       []string
	TenantID    string
	Permissions []string
}

// FamilyRegistry is the slice of the family store the flows depend on.
type FamilyRegistry interface {
	Create(ctx context.Context, fam *family.Family, ttl time.Duration) error
	Get(ctx context.Context, familyID string) (*family.Family, error)
	IsRevoked(ctx context.Context, familyID string) (bool, error)
	Revoke(ctx context.Context, familyID string, tombstoneTTL time.Duration) error
	ConsumeAndAdvance(ctx context.Context, familyID, usedKey string, usedTTL time.Duration, maxGenerations int64, now time.Time, ttl, tombstoneTTL time.Duration) (*family.Family, error)
}

// RevocationChecker is the read side of the revocation store.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
	IsUsed(ctx context.Context, jti string) (bool, error)
}

// RevocationWriter is the write side of the revocation store. The
// used-marker write itself happens inside the family registry's rotation
// script; UsedKey hands it the key to write.
type RevocationWriter interface {
	RevocationChecker
	MarkRevoked(ctx context.Context, jti string, ttl time.Duration) error
	UsedKey(jti string) string
}

// RefreshThrottle bounds refresh attempts per family.
type RefreshThrottle interface {
	CheckRefresh(ctx context.Context, familyID string) error
}
