package stay

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hospital-billing/internal/migrations"
)

func newRedisStore(t *testing.T) RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return RedisStore{R: client}
}

func storeContract(t *testing.T, store Store) {
	ctx := context.Background()
	day1 := time.Date(2025, 12, 19, 8, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	later := newTestCharge(t, "S1", day2)
	earlier := newTestCharge(t, "S1", day1)
	other := newTestCharge(t, "S2", day1)
	for _, c := range []*Charge{later, earlier, other} {
		require.NoError(t, store.InsertPending(ctx, c))
	}
	require.ErrorIs(t, store.InsertPending(ctx, earlier), ErrInvalidInput)

	pending, err := store.ListPending(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, earlier.ID(), pending[0].ID())
	require.Equal(t, later.ID(), pending[1].ID())

	at := fixedNow.Add(time.Hour)
	changed, err := store.MarkBilled(ctx, earlier.ID(), at)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = store.MarkBilled(ctx, earlier.ID(), at.Add(time.Hour))
	require.NoError(t, err)
	require.False(t, changed)

	got, err := store.Get(ctx, earlier.ID())
	require.NoError(t, err)
	require.Equal(t, StatusBilled, got.Status())
	require.True(t, at.Equal(got.BilledAt()))
	require.Equal(t, earlier.TotalAmount(), got.TotalAmount())

	pending, err = store.ListPending(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, later.ID(), pending[0].ID())

	empty, err := store.ListPending(ctx, "nobody")
	require.NoError(t, err)
	require.Empty(t, empty)

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.MarkBilled(ctx, "missing", at)
	require.ErrorIs(t, err, ErrNotFound)

	billed := newTestCharge(t, "S1", day1)
	billed.MarkBilled(at)
	require.ErrorIs(t, store.InsertPending(ctx, billed), ErrInvalidInput)
}

func concurrentMarkBilled(t *testing.T, store Store) {
	ctx := context.Background()
	c := newTestCharge(t, "S9", time.Date(2025, 12, 19, 8, 0, 0, 0, time.UTC))
	require.NoError(t, store.InsertPending(ctx, c))

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			changed, err := store.MarkBilled(ctx, c.ID(), fixedNow)
			if err == nil && changed {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins.Load())
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore())
	concurrentMarkBilled(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	c := newTestCharge(t, "S1", fixedNow)
	require.NoError(t, store.InsertPending(context.Background(), c))
	c.MarkBilled(fixedNow)

	got, err := store.Get(context.Background(), c.ID())
	require.NoError(t, err)
	require.True(t, got.Pending())
}

func TestRedisStore(t *testing.T) {
	storeContract(t, newRedisStore(t))
	concurrentMarkBilled(t, newRedisStore(t))
}

func TestRedisStoreInsertLeavesNothingBehindOnIndexFailure(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	c := newTestCharge(t, "S1", fixedNow)
	require.NoError(t, store.R.Set(ctx, store.pendingKey("S1"), "not-a-set", 0).Err())

	require.Error(t, store.InsertPending(ctx, c))
	_, err := store.Get(ctx, c.ID())
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.R.Del(ctx, store.pendingKey("S1")).Err())
	require.NoError(t, store.InsertPending(ctx, c))
	pending, err := store.ListPending(ctx, "S1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestRedisStoreUnconfigured(t *testing.T) {
	_, err := RedisStore{}.Get(context.Background(), "x")
	require.Error(t, err)
}

func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}
	require.NoError(t, migrations.Up(dsn))
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	_, err = pool.Exec(ctx, `TRUNCATE stay_charges`)
	require.NoError(t, err)

	store := NewPostgresStore(pool)
	storeContract(t, store)
	concurrentMarkBilled(t, store)
}

func TestPostgresStoreUnavailable(t *testing.T) {
	var store *PostgresStore
	_, err := store.ListPending(context.Background(), "S1")
	require.ErrorIs(t, err, ErrStoreUnavailable)
}
