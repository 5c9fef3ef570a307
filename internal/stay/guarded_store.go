package stay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/hospital-billing/internal/resilience"
)

// GuardedStore wraps a Store with a circuit breaker so an unreachable backend
// fails fast with ErrStoreUnavailable instead of stalling every request.
type GuardedStore struct {
	Store   Store
	Breaker *resilience.Breaker
}

// NewGuardedStore wraps store with breaker and installs the failure predicate
// that ignores caller errors.
func NewGuardedStore(store Store, breaker *resilience.Breaker) *GuardedStore {
	breaker.WithFailurePredicate(isBackendFailure)
	return &GuardedStore{Store: store, Breaker: breaker}
}

func isBackendFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrNotFound):
		return false
	case errors.Is(err, context.Canceled):
		return false
	default:
		return true
	}
}

func (g *GuardedStore) do(ctx context.Context, fn func(context.Context) error) error {
	err := g.Breaker.Do(ctx, fn)
	if errors.Is(err, resilience.ErrOpenCircuit) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}

func (g *GuardedStore) InsertPending(ctx context.Context, c *Charge) error {
	return g.do(ctx, func(ctx context.Context) error {
		return g.Store.InsertPending(ctx, c)
	})
}

func (g *GuardedStore) ListPending(ctx context.Context, subjectID string) ([]*Charge, error) {
	var out []*Charge
	err := g.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.Store.ListPending(ctx, subjectID)
		return err
	})
	return out, err
}

func (g *GuardedStore) Get(ctx context.Context, id string) (*Charge, error) {
	var out *Charge
	err := g.do(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.Store.Get(ctx, id)
		return err
	})
	return out, err
}

func (g *GuardedStore) MarkBilled(ctx context.Context, id string, at time.Time) (bool, error) {
	var won bool
	err := g.do(ctx, func(ctx context.Context) error {
		var err error
		won, err = g.Store.MarkBilled(ctx, id, at)
		return err
	})
	return won, err
}

var _ Store = (*GuardedStore)(nil)
