package flows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tokenlife/tokenlife/family"
	"github.com/tokenlife/tokenlife/token"
)

// fakeFamilies scripts the family registry and records every call.
type fakeFamilies struct {
	calls []string

	fam        *family.Family
	advanceErr error
	revokeErr  error
}

func (f *fakeFamilies) Create(ctx context.Context, fam *family.Family, ttl time.Duration) error {
	f.calls = append(f.calls, "create")
	return nil
}

func (f *fakeFamilies) Get(ctx context.Context, familyID string) (*family.Family, error) {
	f.calls = append(f.calls, "get")
	return f.fam, nil
}

func (f *fakeFamilies) IsRevoked(ctx context.Context, familyID string) (bool, error) {
	f.calls = append(f.calls, "isRevoked")
	return false, nil
}

func (f *fakeFamilies) Revoke(ctx context.Context, familyID string, tombstoneTTL time.Duration) error {
	f.calls = append(f.calls, "revoke")
	return f.revokeErr
}

func (f *fakeFamilies) ConsumeAndAdvance(ctx context.Context, familyID, usedKey string, usedTTL time.Duration, maxGenerations int64, now time.Time, ttl, tombstoneTTL time.Duration) (*family.Family, error) {
	f.calls = append(f.calls, "consumeAndAdvance")
	if f.advanceErr != nil {
		return nil, f.advanceErr
	}
	return f.fam, nil
}

// fakeRevocations scripts the revocation store reads.
type fakeRevocations struct {
	calls []string

	used    bool
	usedErr error
	revoked bool

	markedTTL time.Duration
}

func (f *fakeRevocations) IsRevoked(ctx context.Context, jti string) (bool, error) {
	f.calls = append(f.calls, "isRevoked")
	return f.revoked, nil
}

func (f *fakeRevocations) IsUsed(ctx context.Context, jti string) (bool, error) {
	f.calls = append(f.calls, "isUsed")
	return f.used, f.usedErr
}

func (f *fakeRevocations) MarkRevoked(ctx context.Context, jti string, ttl time.Duration) error {
	f.calls = append(f.calls, "markRevoked")
	f.markedTTL = ttl
	return nil
}

func (f *fakeRevocations) UsedKey(jti string) string {
	return "used:" + jti
}

func fixedNow() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func testRefreshDeps(families *fakeFamilies, revocations *fakeRevocations, validated *bool) RefreshDeps {
	return RefreshDeps{
		DecodeJTI: func(string) (string, string, time.Time, error) {
			return "jti-1", "fam-1", fixedNow().Add(time.Hour), nil
		},
		Validate: func(ctx context.Context, tokenStr string) ValidateResult {
			if validated != nil {
				*validated = true
			}
			return ValidateResult{
				RefreshClaims: &token.RefreshClaims{
					UserID:   "u1",
					FamilyID: "fam-1",
				},
			}
		},
		NewJTI: func() (string, error) { return "jti-new", nil },
		Now:    fixedNow,

		AccessTTL:      15 * time.Minute,
		RefreshTTL:     time.Hour,
		TombstoneTTL:   time.Hour,
		MaxGenerations: 50,
		RotateRefresh:  true,

		SignAccess: func(fam *family.Family, jti string, ttl time.Duration) (string, time.Time, error) {
			return "signed-access", fixedNow().Add(ttl), nil
		},
		SignRefresh: func(userID, email, familyID, jti string, ttl time.Duration) (string, time.Time, error) {
			return "signed-refresh", fixedNow().Add(ttl), nil
		},

		Revocations: revocations,
		Families:    families,
	}
}

func TestRunRefreshReusePrecheckShortCircuits(t *testing.T) {
	families := &fakeFamilies{}
	revocations := &fakeRevocations{used: true}
	validated := false

	result := RunRefresh(context.Background(), "tok", testRefreshDeps(families, revocations, &validated))

	if result.Failure != RefreshFailureReuse {
		t.Fatalf("expected reuse failure, got %v", result.Failure)
	}
	// The pre-check must fire before any verification: a replayed token
	// with a still-valid signature is the attack this defends against.
	if validated {
		t.Fatal("validation must not run after a reuse hit")
	}
	if len(families.calls) != 1 || families.calls[0] != "revoke" {
		t.Fatalf("expected exactly one family revocation, got %v", families.calls)
	}
}

func TestRunRefreshHappyPathOrder(t *testing.T) {
	families := &fakeFamilies{fam: &family.Family{
		FamilyID:   "fam-1",
		UserID:     "u1",
		Email:      "alice@example.com",
		Generation: 2,
	}}
	revocations := &fakeRevocations{}

	result := RunRefresh(context.Background(), "tok", testRefreshDeps(families, revocations, nil))

	if result.Failure != RefreshFailureNone {
		t.Fatalf("expected success, got %v (%v)", result.Failure, result.Err)
	}
	if result.AccessToken != "signed-access" || result.RefreshToken != "signed-refresh" {
		t.Fatalf("unexpected tokens: %+v", result)
	}
	if result.Family.Generation != 2 {
		t.Fatalf("expected advanced family in result, got %+v", result.Family)
	}

	if len(revocations.calls) != 2 || revocations.calls[0] != "isUsed" || revocations.calls[1] != "markRevoked" {
		t.Fatalf("unexpected revocation call order: %v", revocations.calls)
	}
	if len(families.calls) != 1 || families.calls[0] != "consumeAndAdvance" {
		t.Fatalf("unexpected family call order: %v", families.calls)
	}
}

func TestRunRefreshConsumeRaceLossIsReuse(t *testing.T) {
	families := &fakeFamilies{advanceErr: family.ErrReused}
	revocations := &fakeRevocations{}

	result := RunRefresh(context.Background(), "tok", testRefreshDeps(families, revocations, nil))

	if result.Failure != RefreshFailureReuse {
		t.Fatalf("expected reuse failure, got %v", result.Failure)
	}
	if families.calls[len(families.calls)-1] != "revoke" {
		t.Fatalf("expected losing the consume race to revoke the family, got %v", families.calls)
	}
}

func TestRunRefreshMissingFamilyRevokesDefensively(t *testing.T) {
	families := &fakeFamilies{advanceErr: family.ErrNotFound}
	revocations := &fakeRevocations{}

	result := RunRefresh(context.Background(), "tok", testRefreshDeps(families, revocations, nil))

	if result.Failure != RefreshFailureFamilyNotFound {
		t.Fatalf("expected family-not-found, got %v", result.Failure)
	}
	if families.calls[len(families.calls)-1] != "revoke" {
		t.Fatalf("expected a defensive revocation, got %v", families.calls)
	}
}

func TestRunRefreshStoreErrorFailsClosed(t *testing.T) {
	families := &fakeFamilies{}
	revocations := &fakeRevocations{usedErr: errors.New("redis gone")}

	result := RunRefresh(context.Background(), "tok", testRefreshDeps(families, revocations, nil))

	if result.Failure != RefreshFailureStore {
		t.Fatalf("expected store failure, got %v", result.Failure)
	}
	if len(families.calls) != 0 {
		t.Fatalf("no family mutation may happen on a store failure, got %v", families.calls)
	}
}

func TestRunRefreshWithoutRotationSkipsRefreshToken(t *testing.T) {
	families := &fakeFamilies{fam: &family.Family{FamilyID: "fam-1", UserID: "u1", Generation: 2}}
	revocations := &fakeRevocations{}

	deps := testRefreshDeps(families, revocations, nil)
	deps.RotateRefresh = false

	result := RunRefresh(context.Background(), "tok", deps)

	if result.Failure != RefreshFailureNone {
		t.Fatalf("expected success, got %v", result.Failure)
	}
	if result.RefreshToken != "" {
		t.Fatal("expected no replacement refresh token")
	}
	for _, call := range revocations.calls {
		if call == "markRevoked" {
			t.Fatal("old jti revocation belongs to the rotating path only")
		}
	}
}
