package analyses

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seedRecord(id, itemID, fingerprint string, createdAt, expiresAt time.Time) BatchItem {
	return BatchItem{
		Content:     "text for " + fingerprint,
		Fingerprint: fingerprint,
		Record: Record{
			ID:         id,
			ItemID:     itemID,
			Sentiment:  "positive",
			Confidence: 0.8,
			CreatedAt:  createdAt,
			ExpiresAt:  expiresAt,
		},
	}
}

func TestMemoryRepoLookupMiss(t *testing.T) {
	repo := NewMemoryRepo()

	_, err := repo.Lookup(context.Background(), "scn-1", "fp-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryRepoLookupSkipsExpired(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Now().UTC()
	repo.Now = func() time.Time { return now }

	item := seedRecord("rec-1", "item-1", "fp-1", now.Add(-2*time.Hour), now.Add(-time.Minute))
	if err := repo.InsertBatch(context.Background(), "scn-1", []BatchItem{item}); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	_, err := repo.Lookup(context.Background(), "scn-1", "fp-1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected expired record to be a miss, got %v", err)
	}
}

func TestMemoryRepoLookupExpiryBoundary(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Now().UTC()
	repo.Now = func() time.Time { return now }

	// Expiring exactly now is already expired; one nanosecond later is live.
	expiredNow := seedRecord("rec-1", "item-1", "fp-exact", now.Add(-time.Hour), now)
	live := seedRecord("rec-2", "item-2", "fp-live", now.Add(-time.Hour), now.Add(time.Nanosecond))
	if err := repo.InsertBatch(context.Background(), "scn-1", []BatchItem{expiredNow, live}); err != nil {
		t.Fatalf("InsertBatch: %v", err)
	}

	if _, err := repo.Lookup(context.Background(), "scn-1", "fp-exact"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected record expiring now to be a miss, got %v", err)
	}
	if _, err := repo.Lookup(context.Background(), "scn-1", "fp-live"); err != nil {
		t.Fatalf("expected record expiring later to be a hit, got %v", err)
	}
}

func TestMemoryRepoNewestRecordWins(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Now().UTC()
	repo.Now = func() time.Time { return now }

	older := seedRecord("rec-old", "item-1", "fp-1", now.Add(-2*time.Hour), now.Add(time.Hour))
	newer := seedRecord("rec-new", "item-1", "fp-1", now.Add(-time.Hour), now.Add(time.Hour))
	if err := repo.InsertBatch(context.Background(), "scn-1", []BatchItem{older}); err != nil {
		t.Fatalf("InsertBatch older: %v", err)
	}
	if err := repo.InsertBatch(context.Background(), "scn-1", []BatchItem{newer}); err != nil {
		t.Fatalf("InsertBatch newer: %v", err)
	}

	rec, err := repo.Lookup(context.Background(), "scn-1", "fp-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec.ID != "rec-new" {
		t.Fatalf("expected newest record, got %s", rec.ID)
	}

	list, err := repo.ListByScenario(context.Background(), "scn-1")
	if err != nil {
		t.Fatalf("ListByScenario: %v", err)
	}
	if len(list) != 1 || list[0].ID != "rec-new" {
		t.Fatalf("expected one newest record per item, got %+v", list)
	}
}

func TestMemoryRepoDuplicateFingerprintSharesItem(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Now().UTC()
	repo.Now = func() time.Time { return now }

	first := seedRecord("rec-1", "item-1", "fp-1", now.Add(-time.Hour), now.Add(time.Hour))
	second := seedRecord("rec-2", "item-ignored", "fp-1", now, now.Add(time.Hour))
	if err := repo.InsertBatch(context.Background(), "scn-1", []BatchItem{first}); err != nil {
		t.Fatalf("InsertBatch first: %v", err)
	}
	if err := repo.InsertBatch(context.Background(), "scn-1", []BatchItem{second}); err != nil {
		t.Fatalf("InsertBatch second: %v", err)
	}

	rec, err := repo.Lookup(context.Background(), "scn-1", "fp-1")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if rec.ItemID != "item-1" {
		t.Fatalf("expected duplicate fingerprint to reuse item identity, got %s", rec.ItemID)
	}
}

func TestMemoryRepoDeleteByScenario(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Now().UTC()
	repo.Now = func() time.Time { return now }

	keep := seedRecord("rec-keep", "item-1", "fp-1", now, now.Add(time.Hour))
	drop := seedRecord("rec-drop", "item-2", "fp-2", now, now.Add(time.Hour))
	if err := repo.InsertBatch(context.Background(), "scn-keep", []BatchItem{keep}); err != nil {
		t.Fatalf("InsertBatch keep: %v", err)
	}
	if err := repo.InsertBatch(context.Background(), "scn-drop", []BatchItem{drop}); err != nil {
		t.Fatalf("InsertBatch drop: %v", err)
	}

	if err := repo.DeleteByScenario(context.Background(), "scn-drop"); err != nil {
		t.Fatalf("DeleteByScenario: %v", err)
	}

	if _, err := repo.Lookup(context.Background(), "scn-drop", "fp-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected cleared scenario to miss, got %v", err)
	}
	if _, err := repo.Lookup(context.Background(), "scn-keep", "fp-1"); err != nil {
		t.Fatalf("expected other scenario to survive, got %v", err)
	}
}
