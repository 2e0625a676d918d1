package audit

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory append-only repository useful for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	nextID  int64
	changes []TierChange
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, c TierChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	c.ID = r.nextID
	r.changes = append(r.changes, c)
	return nil
}

func (r *MemoryRepo) ListByCustomer(ctx context.Context, customerID int64, limit int) ([]TierChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TierChange
	for i := len(r.changes) - 1; i >= 0 && len(out) < limit; i-- {
		if r.changes[i].CustomerID == customerID {
			out = append(out, r.changes[i])
		}
	}
	return out, nil
}

func (r *MemoryRepo) Changes() []TierChange {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TierChange, len(r.changes))
	copy(out, r.changes)
	return out
}
