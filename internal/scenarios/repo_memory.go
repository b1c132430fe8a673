package scenarios

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores scenarios in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]Scenario
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]Scenario)}
}

// Create stores the scenario.
func (r *MemoryRepo) Create(ctx context.Context, scenario Scenario) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[scenario.ID] = scenario
	return nil
}

// GetByID returns a scenario by its ID.
func (r *MemoryRepo) GetByID(ctx context.Context, scenarioID string) (Scenario, error) {
	if err := ctx.Err(); err != nil {
		return Scenario{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	scenario, ok := r.byID[scenarioID]
	if !ok {
		return Scenario{}, ErrNotFound
	}
	return scenario, nil
}

// ListByOwner returns scenarios for a principal, newest first.
func (r *MemoryRepo) ListByOwner(ctx context.Context, ownerID string) ([]Scenario, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Scenario, 0)
	for _, s := range r.byID {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a scenario.
func (r *MemoryRepo) Delete(ctx context.Context, scenarioID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[scenarioID]; !ok {
		return ErrNotFound
	}
	delete(r.byID, scenarioID)
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
