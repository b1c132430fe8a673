package analyses

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo stores analysis records in memory and is safe for concurrent
// use. It honors the same freshness rules as the Postgres repo: expired
// records are skipped on reads and the newest non-expired record wins.
type MemoryRepo struct {
	mu sync.RWMutex
	// items maps scenarioID -> fingerprint -> itemID so duplicate texts
	// within a scenario share one item.
	items   map[string]map[string]string
	records []Record

	// Now is overridable for expiry tests.
	Now func() time.Time
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		items: make(map[string]map[string]string),
		Now:   time.Now,
	}
}

// Lookup returns the newest non-expired record for a fingerprint.
func (r *MemoryRepo) Lookup(ctx context.Context, scenarioID, fingerprint string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.Now()
	var (
		best  Record
		found bool
	)
	for _, rec := range r.records {
		if rec.ScenarioID != scenarioID || rec.Fingerprint != fingerprint {
			continue
		}
		if !rec.ExpiresAt.After(now) {
			continue
		}
		if !found || rec.CreatedAt.After(best.CreatedAt) {
			best = rec
			found = true
		}
	}
	if !found {
		return Record{}, ErrNotFound
	}
	return best, nil
}

// InsertBatch appends records for every item, reusing item identity for
// duplicate fingerprints within the scenario. The in-memory form is
// all-or-nothing by construction since nothing here can fail partway.
func (r *MemoryRepo) InsertBatch(ctx context.Context, scenarioID string, items []BatchItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	byHash, ok := r.items[scenarioID]
	if !ok {
		byHash = make(map[string]string)
		r.items[scenarioID] = byHash
	}
	for _, item := range items {
		rec := item.Record
		itemID, exists := byHash[item.Fingerprint]
		if !exists {
			itemID = rec.ItemID
			byHash[item.Fingerprint] = itemID
		}
		rec.ItemID = itemID
		rec.ScenarioID = scenarioID
		rec.Fingerprint = item.Fingerprint
		r.records = append(r.records, rec)
	}
	return nil
}

// ListByScenario returns the newest non-expired record per item.
func (r *MemoryRepo) ListByScenario(ctx context.Context, scenarioID string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := r.Now()
	byItem := make(map[string]Record)
	for _, rec := range r.records {
		if rec.ScenarioID != scenarioID || !rec.ExpiresAt.After(now) {
			continue
		}
		best, ok := byItem[rec.ItemID]
		if !ok || rec.CreatedAt.After(best.CreatedAt) {
			byItem[rec.ItemID] = rec
		}
	}
	out := make([]Record, 0, len(byItem))
	for _, rec := range byItem {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteByScenario removes all items and records for a scenario.
func (r *MemoryRepo) DeleteByScenario(ctx context.Context, scenarioID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.items, scenarioID)
	kept := r.records[:0]
	for _, rec := range r.records {
		if rec.ScenarioID != scenarioID {
			kept = append(kept, rec)
		}
	}
	r.records = kept
	return nil
}

var _ Repo = (*MemoryRepo)(nil)
