package tokenlife

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	svc, _, _, done := newTestService(t, serviceTestConfig())
	defer done()

	ctx := context.Background()
	pair, err := svc.GenerateTokens(ctx, testIdentity(), nil)
	if err != nil {
		t.Fatalf("GenerateTokens failed: %v", err)
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.RefreshTokens(ctx, pair.RefreshToken, nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	fail := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		// Most losers see the reuse verdict; one that validated after a
		// sibling already burned the family sees the revocation instead.
		if errors.Is(err, ErrReuseDetected) || errors.Is(err, ErrFamilyRevoked) {
			fail++
			continue
		}
		t.Fatalf("unexpected refresh error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d rejections, got %d", n-1, fail)
	}
}
