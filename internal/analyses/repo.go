package analyses

import "context"

// Repo defines persistence operations for analysis records.
type Repo interface {
	// Lookup returns the most recent non-expired record for the fingerprint
	// within the scenario, or ErrNotFound on a miss.
	Lookup(ctx context.Context, scenarioID, fingerprint string) (Record, error)
	// InsertBatch writes item rows (reusing existing rows for duplicate
	// fingerprints within the scenario) and one analysis row per item, all
	// in a single transaction. Any failure rolls back the whole batch.
	InsertBatch(ctx context.Context, scenarioID string, items []BatchItem) error
	// ListByScenario returns the live record for every item in the scenario.
	ListByScenario(ctx context.Context, scenarioID string) ([]Record, error)
	// DeleteByScenario clears all items and records for a scenario. This is
	// the only deletion path; lookups never delete.
	DeleteByScenario(ctx context.Context, scenarioID string) error
}
