package scenarios

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"feedback-backend/internal/shared/telemetry"
)

// Service contains business logic for scenarios, including the ownership
// guard consulted before any cache read or write.
type Service struct {
	Repo Repo
}

// NewService constructs a Service.
func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// Create registers a new scenario owned by principal.
func (s *Service) Create(ctx context.Context, principal, title string) (Scenario, error) {
	if principal == "" {
		return Scenario{}, errors.New("principal is required")
	}
	scenario := Scenario{
		ID:        uuid.NewString(),
		OwnerID:   principal,
		Title:     strings.TrimSpace(title),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Repo.Create(ctx, scenario); err != nil {
		return Scenario{}, err
	}
	return scenario, nil
}

// Get returns a scenario if principal owns it.
func (s *Service) Get(ctx context.Context, scenarioID, principal string) (Scenario, error) {
	scenario, err := s.Repo.GetByID(ctx, scenarioID)
	if err != nil {
		return Scenario{}, err
	}
	if scenario.OwnerID != principal {
		return Scenario{}, ErrAccessDenied
	}
	return scenario, nil
}

// List returns scenarios owned by principal, newest first.
func (s *Service) List(ctx context.Context, principal string) ([]Scenario, error) {
	if principal == "" {
		return nil, errors.New("principal is required")
	}
	return s.Repo.ListByOwner(ctx, principal)
}

// Delete removes a scenario if principal owns it.
func (s *Service) Delete(ctx context.Context, scenarioID, principal string) error {
	if err := s.AssertOwnership(ctx, scenarioID, principal); err != nil {
		return err
	}
	return s.Repo.Delete(ctx, scenarioID)
}

// AssertOwnership verifies that principal owns the scenario. It fails closed:
// a lookup error or a missing row is a denial, never an implicit allow.
func (s *Service) AssertOwnership(ctx context.Context, scenarioID, principal string) error {
	if scenarioID == "" || principal == "" {
		return ErrAccessDenied
	}
	scenario, err := s.Repo.GetByID(ctx, scenarioID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			telemetry.Error("scenario.ownership_lookup", map[string]any{
				"scenario_id": scenarioID,
				"error":       err.Error(),
			})
		}
		return ErrAccessDenied
	}
	if scenario.OwnerID != principal {
		return ErrAccessDenied
	}
	return nil
}
