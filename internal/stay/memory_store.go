package stay

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store guarded by a single RWMutex.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*Charge
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]*Charge)}
}

// InsertPending stores a new pending charge.
func (m *MemoryStore) InsertPending(_ context.Context, c *Charge) error {
	if c == nil || c.ID() == "" {
		return fmt.Errorf("%w: charge without id", ErrInvalidInput)
	}
	if !c.Pending() {
		return fmt.Errorf("%w: charge %s is not pending", ErrInvalidInput, c.ID())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[c.ID()]; ok {
		return fmt.Errorf("%w: duplicate charge %s", ErrInvalidInput, c.ID())
	}
	m.data[c.ID()] = c.Clone()
	return nil
}

// ListPending returns the subject's pending charges ordered by transfer date.
func (m *MemoryStore) ListPending(_ context.Context, subjectID string) ([]*Charge, error) {
	m.mu.RLock()
	out := make([]*Charge, 0)
	for _, c := range m.data {
		if c.SubjectID() == subjectID && c.Pending() {
			out = append(out, c.Clone())
		}
	}
	m.mu.RUnlock()
	sortCharges(out)
	return out, nil
}

// Get loads a charge by id.
func (m *MemoryStore) Get(_ context.Context, id string) (*Charge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

// MarkBilled flips a pending charge to billed under the write lock.
func (m *MemoryStore) MarkBilled(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data[id]
	if !ok {
		return false, ErrNotFound
	}
	return c.MarkBilled(at), nil
}

func sortCharges(charges []*Charge) {
	sort.SliceStable(charges, func(i, j int) bool {
		a, b := charges[i], charges[j]
		if !a.TransferDate().Equal(b.TransferDate()) {
			return a.TransferDate().Before(b.TransferDate())
		}
		return a.ID() < b.ID()
	})
}
