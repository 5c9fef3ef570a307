package stay

import (
	"context"
	"time"
)

// Store persists stay charges. Implementations must serialise status updates
// per charge so concurrent billers cannot both observe a pending record and
// flip it.
type Store interface {
	InsertPending(ctx context.Context, c *Charge) error
	ListPending(ctx context.Context, subjectID string) ([]*Charge, error)
	Get(ctx context.Context, id string) (*Charge, error)
	// MarkBilled transitions the charge to billed and reports whether this
	// call performed the transition. Already billed charges return false, nil.
	MarkBilled(ctx context.Context, id string, at time.Time) (bool, error)
}
