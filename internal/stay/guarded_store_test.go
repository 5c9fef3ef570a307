package stay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hospital-billing/internal/resilience"
)

type flakyStore struct {
	*MemoryStore
	down  bool
	calls int
}

func (f *flakyStore) ListPending(ctx context.Context, subjectID string) ([]*Charge, error) {
	f.calls++
	if f.down {
		return nil, errors.New("dial tcp: connection refused")
	}
	return f.MemoryStore.ListPending(ctx, subjectID)
}

func TestGuardedStoreContract(t *testing.T) {
	store := NewGuardedStore(NewMemoryStore(), resilience.NewBreaker(5, 0.5, time.Minute))
	storeContract(t, store)
	concurrentMarkBilled(t, NewGuardedStore(NewMemoryStore(), resilience.NewBreaker(5, 0.5, time.Minute)))
}

func TestGuardedStoreIgnoresNotFound(t *testing.T) {
	breaker := resilience.NewBreaker(1, 0.5, time.Minute)
	store := NewGuardedStore(NewMemoryStore(), breaker)
	for i := 0; i < 3; i++ {
		_, err := store.Get(context.Background(), "missing")
		require.ErrorIs(t, err, ErrNotFound)
	}
	require.Equal(t, resilience.Closed, breaker.State())
}

func TestGuardedStoreFailsFastWhenOpen(t *testing.T) {
	flaky := &flakyStore{MemoryStore: NewMemoryStore(), down: true}
	breaker := resilience.NewBreaker(2, 0.5, time.Minute)
	store := NewGuardedStore(flaky, breaker)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := store.ListPending(ctx, "S1")
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrStoreUnavailable)
	}
	require.Equal(t, resilience.Open, breaker.State())

	_, err := store.ListPending(ctx, "S1")
	require.ErrorIs(t, err, ErrStoreUnavailable)
	require.Equal(t, 2, flaky.calls)
}
