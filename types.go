package tokenlife

import "time"

// TokenType selects which secret and claim shape a validation runs against.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// RevocationScope selects the blast radius of RevokeToken.
type RevocationScope string

const (
	// ScopeAccess invalidates only the presented access token.
	ScopeAccess RevocationScope = "access"
	// ScopeRefresh invalidates the presented refresh token and its whole family.
	ScopeRefresh RevocationScope = "refresh"
	// ScopeAll invalidates the presented token and, when it names a family,
	// the whole family.
	ScopeAll RevocationScope = "all"
)

// Identity is the externally verified caller identity tokens are minted
// for. Credential, password, and MFA verification happen outside this
// module; the Service trusts what it is handed.
type Identity struct {
	UserID      string   `json:"userId"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles,omitempty"`
	TenantID    string   `json:"tenantId,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// GenerateOptions overrides issuance defaults for a single call. Expiry
// strings accept time.ParseDuration syntax plus a day suffix ("30d").
type GenerateOptions struct {
	AccessTokenExpiry  string
	RefreshTokenExpiry string
	Audience           string
	Issuer             string
}

// ValidateOptions tunes a single validation call.
type ValidateOptions struct {
	// IgnoreExpiration accepts an expired token whose signature still
	// verifies. Revocation checks still apply.
	IgnoreExpiration bool
	Audience         string
	Issuer           string
}

// RefreshOptions tunes a single rotation call.
type RefreshOptions struct {
	// NewRefreshToken controls whether the rotation also issues a
	// replacement refresh token. Defaults to true.
	NewRefreshToken *bool
	// MaxGenerations overrides the configured family generation cap when
	// positive.
	MaxGenerations int
}

// TokenPairResult is returned by GenerateTokens and RefreshTokens. After a
// rotation that did not request a new refresh token, RefreshToken is empty
// and RefreshTokenExpiry is zero.
type TokenPairResult struct {
	AccessToken        string    `json:"accessToken"`
	RefreshToken       string    `json:"refreshToken,omitempty"`
	AccessTokenExpiry  time.Time `json:"accessTokenExpiry"`
	RefreshTokenExpiry time.Time `json:"refreshTokenExpiry,omitzero"`
	TokenType          string    `json:"tokenType"`
	FamilyID           string    `json:"-"`
}

// TokenPayload is the verified identity payload of a validated token.
type TokenPayload struct {
	Identity
	JTI      string `json:"jti"`
	FamilyID string `json:"familyId,omitempty"`
}

// ValidationResult is returned by ValidateToken. When Valid is false, the
// accompanying error carries the reason.
type ValidationResult struct {
	Valid     bool          `json:"valid"`
	Expired   bool          `json:"expired"`
	ExpiresAt time.Time     `json:"expiresAt,omitzero"`
	Payload   *TokenPayload `json:"payload,omitempty"`
}

// RevocationResult is returned by RevokeToken.
type RevocationResult struct {
	Revoked   bool      `json:"revoked"`
	TokenType TokenType `json:"tokenType"`
	RevokedAt time.Time `json:"revokedAt"`
}

// TokenInfo is returned by GetTokenInfo. It is decoded without signature
// verification and must never feed an authorization decision.
type TokenInfo struct {
	TokenType TokenType     `json:"tokenType"`
	IssuedAt  time.Time     `json:"issuedAt,omitzero"`
	ExpiresAt time.Time     `json:"expiresAt,omitzero"`
	Expired   bool          `json:"expired"`
	Audience  []string      `json:"audience,omitempty"`
	Issuer    string        `json:"issuer,omitempty"`
	Payload   *TokenPayload `json:"payload,omitempty"`
}

// FamilyInfo is returned by ValidateTokenFamily.
type FamilyInfo struct {
	Valid       bool      `json:"valid"`
	FamilyID    string    `json:"familyId"`
	Generation  int64     `json:"generationCount"`
	LastRefresh time.Time `json:"lastRefresh"`
	CreatedAt   time.Time `json:"createdAt"`
}
