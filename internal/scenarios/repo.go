package scenarios

import "context"

// Repo defines persistence operations for scenarios.
type Repo interface {
	Create(ctx context.Context, scenario Scenario) error
	GetByID(ctx context.Context, scenarioID string) (Scenario, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Scenario, error)
	Delete(ctx context.Context, scenarioID string) error
}
