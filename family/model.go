package family

import "time"

// Family is one continuous login lineage: the chain of refresh tokens
// descending from a single authentication. It is created once per login,
// advanced on every successful rotation, and destroyed the moment it is
// revoked.
//
// The identity snapshot (email, roles, tenant, permissions) is captured at
// issuance so rotation can mint access tokens without re-deriving identity
// from an external user store.
type Family struct {
	FamilyID    string   `json:"familyId"`
	UserID      string   `json:"userId"`
	Email       string   `json:"email,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	TenantID    string   `json:"tenantId,omitempty"`
	Permissions []string `json:"permissions,omitempty"`

	// Generation starts at 1 and is incremented exactly once per rotation.
	// It never decreases; a configured cap forces revocation.
	Generation  int64 `json:"generation"`
	LastRefresh int64 `json:"lastRefresh"`
	CreatedAt   int64 `json:"createdAt"`
}

// LastRefreshTime returns LastRefresh as a time.Time.
func (f *Family) LastRefreshTime() time.Time {
	return time.Unix(f.LastRefresh, 0).UTC()
}

// CreatedTime returns CreatedAt as a time.Time.
func (f *Family) CreatedTime() time.Time {
	return time.Unix(f.CreatedAt, 0).UTC()
}
