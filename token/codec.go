package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Type discriminates the two token kinds carried in the "type" claim.
type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

var (
	// ErrSignatureInvalid is returned when a token fails HMAC verification
	// or carries claims that contradict the configured audience/issuer.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrExpired is returned when a structurally valid token is past its exp claim.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned when the input is not a three-part signed token.
	ErrMalformed = errors.New("token malformed")
	// ErrWrongType is returned when a verified token carries the wrong "type" claim,
	// e.g. an access token presented where a refresh token is expected.
	ErrWrongType = errors.New("token type mismatch")
)

// Config holds the two signing secrets and the default verification
// constraints. Access and refresh tokens are signed with distinct secrets
// so one can never be replayed as the other.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	TimeFunc      func() time.Time
}

// Codec signs and verifies token strings. It is pure: no I/O, no
// revocation knowledge, safe for concurrent use.
type Codec struct {
	config Config
}

// AccessClaims is the payload of a short-lived access token. FamilyID ties
// the token back to the login lineage that minted it so that revoking a
// family also kills its outstanding access tokens.
type AccessClaims struct {
	UserID      string   `json:"userId"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles,omitempty"`
	TenantID    string   `json:"tenantId,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	FamilyID    string   `json:"familyId,omitempty"`
	TokenType   Type     `json:"type"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload of a long-lived refresh token. It always
// belongs to exactly one token family.
type RefreshClaims struct {
	UserID    string `json:"userId"`
	Email     string `json:"email"`
	FamilyID  string `json:"familyId"`
	TokenType Type   `json:"type"`
	jwt.RegisteredClaims
}

// Unverified carries claims decoded without signature verification.
// Informational only: never authorize anything from it.
type Unverified struct {
	TokenType Type
	JTI       string
	UserID    string
	Email     string
	FamilyID  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Audience  []string
	Issuer    string
}

// NewCodec validates the configuration and returns an immutable Codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("both access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.TimeFunc == nil {
		cfg.TimeFunc = time.Now
	}
	return &Codec{config: cfg}, nil
}

// SignOptions overrides the configured audience/issuer for a single token.
type SignOptions struct {
	Audience string
	Issuer   string
}

func (c *Codec) issuerFor(opts SignOptions) string {
	return firstNonEmpty(opts.Issuer, c.config.Issuer)
}

func (c *Codec) audienceFor(opts SignOptions) string {
	return firstNonEmpty(opts.Audience, c.config.Audience)
}

// SignAccess mints an access token for the given identity fields.
func (c *Codec) SignAccess(
	userID, email string,
	roles []string,
	tenantID string,
	permissions []string,
	familyID, jti string,
	ttl time.Duration,
	opts SignOptions,
) (string, time.Time, error) {
	now := c.config.TimeFunc()
	expiresAt := now.Add(ttl)

	claims := AccessClaims{
		UserID:      userID,
		Email:       email,
		Roles:       roles,
		TenantID:    tenantID,
		Permissions: permissions,
		FamilyID:    familyID,
		TokenType:   TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    c.issuerFor(opts),
		},
	}
	if aud := c.audienceFor(opts); aud != "" {
		claims.Audience = jwt.ClaimStrings{aud}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.AccessSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// SignRefresh mints a refresh token bound to familyID.
func (c *Codec) SignRefresh(
	userID, email, familyID, jti string,
	ttl time.Duration,
	opts SignOptions,
) (string, time.Time, error) {
	now := c.config.TimeFunc()
	expiresAt := now.Add(ttl)

	claims := RefreshClaims{
		UserID:    userID,
		Email:     email,
		FamilyID:  familyID,
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    c.issuerFor(opts),
		},
	}
	if aud := c.audienceFor(opts); aud != "" {
		claims.Audience = jwt.ClaimStrings{aud}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.RefreshSecret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseOptions tunes a single verification call.
type ParseOptions struct {
	Audience string
	Issuer   string
	// IgnoreExpiration still verifies the signature but accepts an expired token.
	IgnoreExpiration bool
}

// ParseAccess verifies tokenStr against the access secret and returns its
// claims. Errors are one of ErrSignatureInvalid, ErrExpired, ErrMalformed,
// ErrWrongType.
func (c *Codec) ParseAccess(tokenStr string, opts ParseOptions) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.parse(tokenStr, claims, c.config.AccessSecret, opts); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeAccess {
		return nil, ErrWrongType
	}
	return claims, nil
}

// ParseRefresh verifies tokenStr against the refresh secret and returns its
// claims.
func (c *Codec) ParseRefresh(tokenStr string, opts ParseOptions) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.parse(tokenStr, claims, c.config.RefreshSecret, opts); err != nil {
		return nil, err
	}
	if claims.TokenType != TypeRefresh {
		return nil, ErrWrongType
	}
	return claims, nil
}

func (c *Codec) parse(tokenStr string, claims jwt.Claims, secret []byte, opts ParseOptions) error {
	_, err := c.parser(opts, false).ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err == nil {
		return nil
	}
	if opts.IgnoreExpiration && errors.Is(err, jwt.ErrTokenExpired) {
		// Signature is still enforced; only claim validation is skipped.
		_, reErr := c.parser(opts, true).ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
			}
			return secret, nil
		})
		if reErr != nil {
			return classify(reErr)
		}
		// WithoutClaimsValidation skips issuer/audience too, so an
		// expired token only gets the expiry waived, nothing else.
		return c.checkConstraints(claims, opts)
	}
	return classify(err)
}

func (c *Codec) checkConstraints(claims jwt.Claims, opts ParseOptions) error {
	if iss := firstNonEmpty(opts.Issuer, c.config.Issuer); iss != "" {
		got, err := claims.GetIssuer()
		if err != nil || got != iss {
			return ErrSignatureInvalid
		}
	}
	if aud := firstNonEmpty(opts.Audience, c.config.Audience); aud != "" {
		got, err := claims.GetAudience()
		if err != nil {
			return ErrSignatureInvalid
		}
		match := false
		for _, a := range got {
			if a == aud {
				match = true
				break
			}
		}
		if !match {
			return ErrSignatureInvalid
		}
	}
	return nil
}

func (c *Codec) parser(opts ParseOptions, skipClaims bool) *jwt.Parser {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.config.TimeFunc),
	}
	if skipClaims {
		options = append(options, jwt.WithoutClaimsValidation())
		return jwt.NewParser(options...)
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if iss := firstNonEmpty(opts.Issuer, c.config.Issuer); iss != "" {
		options = append(options, jwt.WithIssuer(iss))
	}
	if aud := firstNonEmpty(opts.Audience, c.config.Audience); aud != "" {
		options = append(options, jwt.WithAudience(aud))
	}
	return jwt.NewParser(options...)
}

// DecodeUnverified extracts claims without checking the signature. Used for
// the cheap pre-checks of the refresh protocol and for token introspection.
func (c *Codec) DecodeUnverified(tokenStr string) (*Unverified, error) {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims)
	if err != nil {
		return nil, ErrMalformed
	}

	out := &Unverified{}
	if v, ok := claims["type"].(string); ok {
		out.TokenType = Type(v)
	}
	if v, ok := claims["jti"].(string); ok {
		out.JTI = v
	}
	if v, ok := claims["userId"].(string); ok {
		out.UserID = v
	}
	if v, ok := claims["email"].(string); ok {
		out.Email = v
	}
	if v, ok := claims["familyId"].(string); ok {
		out.FamilyID = v
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		out.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.ExpiresAt = exp.Time
	}
	if aud, err := claims.GetAudience(); err == nil {
		out.Audience = aud
	}
	if iss, err := claims.GetIssuer(); err == nil {
		out.Issuer = iss
	}
	return out, nil
}

// Now reports the codec's clock. The service shares it so claim expiry and
// store record TTLs never drift apart.
func (c *Codec) Now() time.Time {
	return c.config.TimeFunc()
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrMalformed
	default:
		return ErrSignatureInvalid
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
