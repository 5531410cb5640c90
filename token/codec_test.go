package token

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testCodec(t *testing.T, at time.Time) *Codec {
	t.Helper()

	c, err := NewCodec(Config{
		AccessSecret:  []byte("codec-test-access-secret-0123"),
		RefreshSecret: []byte("codec-test-refresh-secret-456"),
		Issuer:        "codec-test",
		Audience:      "codec-api",
		TimeFunc:      func() time.Time { return at },
	})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return c
}

func TestNewCodecRejectsBadConfig(t *testing.T) {
	base := Config{
		AccessSecret:  []byte("a-secret"),
		RefreshSecret: []byte("r-secret"),
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing access secret", func(c *Config) { c.AccessSecret = nil }},
		{"missing refresh secret", func(c *Config) { c.RefreshSecret = nil }},
		{"identical secrets", func(c *Config) { c.RefreshSecret = c.AccessSecret }},
		{"negative leeway", func(c *Config) { c.Leeway = -time.Second }},
		{"excessive leeway", func(c *Config) { c.Leeway = time.Hour }},
	}
	for _, tc := range cases {
		cfg := base
		tc.mutate(&cfg)
		if _, err := NewCodec(cfg); err == nil {
			t.Fatalf("%s: expected NewCodec to fail", tc.name)
		}
	}
}

func TestCodecAccessRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := testCodec(t, now)

	signed, exp, err := c.SignAccess(
		"u1", "alice@example.com",
		[]string{"member"}, "t1", []string{"doc.read"},
		"fam-1", "jti-1", 15*time.Minute, SignOptions{},
	)
	if err != nil {
		t.Fatalf("SignAccess failed: %v", err)
	}
	if !exp.Equal(now.Add(15 * time.Minute)) {
		t.Fatalf("unexpected expiry %s", exp)
	}

	claims, err := c.ParseAccess(signed, ParseOptions{})
	if err != nil {
		t.Fatalf("ParseAccess failed: %v", err)
	}
	if claims.UserID != "u1" || claims.Email != "alice@example.com" {
		t.Fatalf("unexpected identity: %+v", claims)
	}
	if claims.FamilyID != "fam-1" || claims.ID != "jti-1" {
		t.Fatalf("unexpected family/jti: %+v", claims)
	}
	if claims.TokenType != TypeAccess {
		t.Fatalf("unexpected type %q", claims.TokenType)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "member" {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
}

func TestCodecSecretsIsolateTokenKinds(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := testCodec(t, now)

	access, _, err := c.SignAccess("u1", "a@b.c", nil, "", nil, "fam-1", "jti-1", time.Minute, SignOptions{})
	if err != nil {
		t.Fatalf("SignAccess failed: %v", err)
	}
	refresh, _, err := c.SignRefresh("u1", "a@b.c", "fam-1", "jti-2", time.Hour, SignOptions{})
	if err != nil {
		t.Fatalf("SignRefresh failed: %v", err)
	}

	if _, err := c.ParseRefresh(access, ParseOptions{}); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for access-as-refresh, got %v", err)
	}
	if _, err := c.ParseAccess(refresh, ParseOptions{}); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid for refresh-as-access, got %v", err)
	}
}

func TestCodecExpiryAndIgnoreExpiration(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := testCodec(t, now)

	signed, _, err := c.SignAccess("u1", "a@b.c", nil, "", nil, "fam-1", "jti-1", time.Second, SignOptions{})
	if err != nil {
		t.Fatalf("SignAccess failed: %v", err)
	}

	late := testCodec(t, now.Add(time.Minute))
	if _, err := late.ParseAccess(signed, ParseOptions{}); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	claims, err := late.ParseAccess(signed, ParseOptions{IgnoreExpiration: true})
	if err != nil {
		t.Fatalf("expected IgnoreExpiration to accept the token, got %v", err)
	}
	if claims.UserID != "u1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	// IgnoreExpiration never waives the signature.
	tampered := signed[:len(signed)-3] + "aaa"
	if _, err := late.ParseAccess(tampered, ParseOptions{IgnoreExpiration: true}); err == nil {
		t.Fatal("expected a tampered token to fail even with IgnoreExpiration")
	}

	// Nor the audience and issuer constraints.
	foreign, _, err := c.SignAccess("u1", "a@b.c", nil, "", nil, "fam-1", "jti-2", time.Second, SignOptions{
		Audience: "other-api",
	})
	if err != nil {
		t.Fatalf("SignAccess failed: %v", err)
	}
	if _, err := late.ParseAccess(foreign, ParseOptions{IgnoreExpiration: true}); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected audience mismatch to fail with IgnoreExpiration, got %v", err)
	}
	if _, err := late.ParseAccess(signed, ParseOptions{IgnoreExpiration: true, Issuer: "someone-else"}); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected issuer mismatch to fail with IgnoreExpiration, got %v", err)
	}
}

func TestCodecSignOptionsFallBackToConfig(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := testCodec(t, now)

	signed, _, err := c.SignAccess("u1", "a@b.c", nil, "", nil, "fam-1", "jti-1", time.Minute, SignOptions{})
	if err != nil {
		t.Fatalf("SignAccess failed: %v", err)
	}
	decoded, err := c.DecodeUnverified(signed)
	if err != nil {
		t.Fatalf("DecodeUnverified failed: %v", err)
	}
	if decoded.Issuer != "codec-test" {
		t.Fatalf("expected configured issuer, got %q", decoded.Issuer)
	}
	if len(decoded.Audience) != 1 || decoded.Audience[0] != "codec-api" {
		t.Fatalf("expected configured audience, got %v", decoded.Audience)
	}

	overridden, _, err := c.SignRefresh("u1", "a@b.c", "fam-1", "jti-2", time.Hour, SignOptions{
		Issuer:   "other-issuer",
		Audience: "other-api",
	})
	if err != nil {
		t.Fatalf("SignRefresh failed: %v", err)
	}
	decoded, err = c.DecodeUnverified(overridden)
	if err != nil {
		t.Fatalf("DecodeUnverified failed: %v", err)
	}
	if decoded.Issuer != "other-issuer" {
		t.Fatalf("expected issuer override, got %q", decoded.Issuer)
	}
	if len(decoded.Audience) != 1 || decoded.Audience[0] != "other-api" {
		t.Fatalf("expected audience override, got %v", decoded.Audience)
	}
}

func TestCodecRejectsTamperedAndMalformed(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := testCodec(t, now)

	signed, _, err := c.SignAccess("u1", "a@b.c", nil, "", nil, "fam-1", "jti-1", time.Minute, SignOptions{})
	if err != nil {
		t.Fatalf("SignAccess failed: %v", err)
	}

	parts := strings.Split(signed, ".")
	tampered := parts[0] + "." + parts[1] + ".AAAA" + parts[2][4:]
	if _, err := c.ParseAccess(tampered, ParseOptions{}); !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("expected ErrSignatureInvalid, got %v", err)
	}

	for _, bad := range []string{"", "x", "x.y", "x.y.z.w"} {
		if _, err := c.ParseAccess(bad, ParseOptions{}); !errors.Is(err, ErrMalformed) {
			t.Fatalf("input %q: expected ErrMalformed, got %v", bad, err)
		}
	}
}

func TestCodecAudienceAndIssuerConstraints(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := testCodec(t, now)

	signed, _, err := c.SignAccess("u1", "a@b.c", nil, "", nil, "fam-1", "jti-1", time.Minute, SignOptions{
		Audience: "other-api",
	})
	if err != nil {
		t.Fatalf("SignAccess failed: %v", err)
	}

	// Configured audience does not match the token's.
	if _, err := c.ParseAccess(signed, ParseOptions{}); err == nil {
		t.Fatal("expected audience mismatch to fail")
	}
	// Matching override succeeds.
	if _, err := c.ParseAccess(signed, ParseOptions{Audience: "other-api"}); err != nil {
		t.Fatalf("expected matching audience override to pass, got %v", err)
	}
	// Unknown issuer fails.
	if _, err := c.ParseAccess(signed, ParseOptions{Audience: "other-api", Issuer: "someone-else"}); err == nil {
		t.Fatal("expected issuer mismatch to fail")
	}
}

func TestCodecDecodeUnverified(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := testCodec(t, now)

	signed, _, err := c.SignRefresh("u1", "alice@example.com", "fam-1", "jti-9", time.Hour, SignOptions{})
	if err != nil {
		t.Fatalf("SignRefresh failed: %v", err)
	}

	decoded, err := c.DecodeUnverified(signed)
	if err != nil {
		t.Fatalf("DecodeUnverified failed: %v", err)
	}
	if decoded.TokenType != TypeRefresh || decoded.JTI != "jti-9" || decoded.FamilyID != "fam-1" {
		t.Fatalf("unexpected decoded claims: %+v", decoded)
	}
	if decoded.Issuer != "codec-test" {
		t.Fatalf("unexpected issuer %q", decoded.Issuer)
	}
	if !decoded.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected expiry %s", decoded.ExpiresAt)
	}

	if _, err := c.DecodeUnverified("junk"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
