package analyses

import (
	"context"
	"errors"
	"testing"
	"time"

	"feedback-backend/internal/analyzer"
	"feedback-backend/internal/scenarios"
)

type allowGuard struct{}

func (allowGuard) AssertOwnership(ctx context.Context, scenarioID, principal string) error {
	return nil
}

type denyGuard struct{}

func (denyGuard) AssertOwnership(ctx context.Context, scenarioID, principal string) error {
	return scenarios.ErrAccessDenied
}

// stubAnalyzer records every call and answers with one labeled result per
// input text.
type stubAnalyzer struct {
	calls     [][]string
	err       error
	labels    map[string]string
	badLength bool
}

func (s *stubAnalyzer) AnalyzeTexts(ctx context.Context, texts []string) (analyzer.BatchOutput, error) {
	copied := make([]string, len(texts))
	copy(copied, texts)
	s.calls = append(s.calls, copied)
	if s.err != nil {
		return analyzer.BatchOutput{}, s.err
	}

	out := analyzer.BatchOutput{
		Themes: []analyzer.Theme{{Theme: "service", Count: len(texts), Sentiment: "neutral"}},
	}
	for _, text := range texts {
		label := "positive"
		if s.labels != nil && s.labels[text] != "" {
			label = s.labels[text]
		}
		out.Analyses = append(out.Analyses, analyzer.Result{
			Sentiment:  label,
			Confidence: 0.9,
		})
	}
	if s.badLength && len(out.Analyses) > 0 {
		out.Analyses = out.Analyses[:len(out.Analyses)-1]
	}
	return out, nil
}

func newTestService(repo Repo, client analyzer.Client) *Service {
	return NewService(repo, allowGuard{}, client, time.Hour)
}

func TestAnalyzePersistsAndReturnsInOrder(t *testing.T) {
	repo := NewMemoryRepo()
	stub := &stubAnalyzer{labels: map[string]string{"slow checkout": "negative"}}
	svc := newTestService(repo, stub)

	texts := []string{"great service", "slow checkout", "nice staff"}
	result, err := svc.Analyze(context.Background(), "scn-1", "user-1", texts)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("expected 1 analyzer call, got %d", len(stub.calls))
	}
	if result.TotalItems != 3 || len(result.IndividualResults) != 3 {
		t.Fatalf("expected 3 results, got %+v", result)
	}
	if result.IndividualResults[1].Sentiment != "negative" {
		t.Fatalf("expected input order preserved, got %+v", result.IndividualResults)
	}
	if result.SentimentDistribution["positive"] != 2 || result.SentimentDistribution["negative"] != 1 {
		t.Fatalf("unexpected distribution %+v", result.SentimentDistribution)
	}

	stored, err := repo.ListByScenario(context.Background(), "scn-1")
	if err != nil {
		t.Fatalf("ListByScenario: %v", err)
	}
	if len(stored) != 3 {
		t.Fatalf("expected 3 persisted records, got %d", len(stored))
	}
}

func TestAnalyzeFullyCachedMakesNoAnalyzerCall(t *testing.T) {
	repo := NewMemoryRepo()
	stub := &stubAnalyzer{}
	svc := newTestService(repo, stub)

	texts := []string{"first", "second"}
	if _, err := svc.Analyze(context.Background(), "scn-1", "user-1", texts); err != nil {
		t.Fatalf("first Analyze: %v", err)
	}

	result, err := svc.Analyze(context.Background(), "scn-1", "user-1", texts)
	if err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("expected no second analyzer call, got %d calls", len(stub.calls))
	}
	if result.TotalItems != 2 {
		t.Fatalf("expected 2 results, got %d", result.TotalItems)
	}
	if len(result.Themes) != 0 {
		t.Fatalf("expected no themes on a fully cached batch, got %+v", result.Themes)
	}
}

func TestAnalyzePartialHitSendsOnlyMisses(t *testing.T) {
	repo := NewMemoryRepo()
	stub := &stubAnalyzer{}
	svc := newTestService(repo, stub)

	if _, err := svc.Analyze(context.Background(), "scn-1", "user-1", []string{"cached one"}); err != nil {
		t.Fatalf("seed Analyze: %v", err)
	}

	texts := []string{"fresh one", "cached one", "fresh two"}
	result, err := svc.Analyze(context.Background(), "scn-1", "user-1", texts)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(stub.calls) != 2 {
		t.Fatalf("expected 2 analyzer calls total, got %d", len(stub.calls))
	}
	second := stub.calls[1]
	if len(second) != 2 || second[0] != "fresh one" || second[1] != "fresh two" {
		t.Fatalf("expected only misses in analyzer call, got %v", second)
	}
	if result.TotalItems != 3 {
		t.Fatalf("expected 3 merged results, got %d", result.TotalItems)
	}
}

func TestAnalyzeDeduplicatesRepeatedTexts(t *testing.T) {
	repo := NewMemoryRepo()
	stub := &stubAnalyzer{labels: map[string]string{"bad support": "negative"}}
	svc := newTestService(repo, stub)

	texts := []string{"love it", "bad support", "love it"}
	result, err := svc.Analyze(context.Background(), "scn-1", "user-1", texts)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(stub.calls) != 1 || len(stub.calls[0]) != 2 {
		t.Fatalf("expected one analyzer call with 2 unique texts, got %v", stub.calls)
	}
	if result.TotalItems != 3 {
		t.Fatalf("expected 3 merged results, got %d", result.TotalItems)
	}
	if result.SentimentDistribution["positive"] != 2 || result.SentimentDistribution["negative"] != 1 {
		t.Fatalf("unexpected distribution %+v", result.SentimentDistribution)
	}

	stored, err := repo.ListByScenario(context.Background(), "scn-1")
	if err != nil {
		t.Fatalf("ListByScenario: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 persisted records for 2 unique texts, got %d", len(stored))
	}
}

func TestAnalyzeExpiredRecordTriggersReanalysis(t *testing.T) {
	repo := NewMemoryRepo()
	stub := &stubAnalyzer{}
	svc := newTestService(repo, stub)
	svc.TTL = time.Minute

	base := time.Now().UTC()
	svc.Now = func() time.Time { return base }
	repo.Now = func() time.Time { return base }

	if _, err := svc.Analyze(context.Background(), "scn-1", "user-1", []string{"aging text"}); err != nil {
		t.Fatalf("seed Analyze: %v", err)
	}

	// Just past expiry.
	later := base.Add(time.Minute + time.Second)
	svc.Now = func() time.Time { return later }
	repo.Now = func() time.Time { return later }

	if _, err := svc.Analyze(context.Background(), "scn-1", "user-1", []string{"aging text"}); err != nil {
		t.Fatalf("re-Analyze: %v", err)
	}
	if len(stub.calls) != 2 {
		t.Fatalf("expected expired record to be re-analyzed, got %d calls", len(stub.calls))
	}
}

func TestAnalyzeAccessDeniedBeforeAnalyzer(t *testing.T) {
	repo := NewMemoryRepo()
	stub := &stubAnalyzer{}
	svc := NewService(repo, denyGuard{}, stub, time.Hour)

	_, err := svc.Analyze(context.Background(), "scn-1", "user-2", []string{"anything"})
	if !errors.Is(err, scenarios.ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
	if len(stub.calls) != 0 {
		t.Fatalf("expected no analyzer calls on denial, got %d", len(stub.calls))
	}
}

func TestAnalyzeAnalyzerErrorFailsBatch(t *testing.T) {
	repo := NewMemoryRepo()
	stub := &stubAnalyzer{err: errors.New("model unavailable")}
	svc := newTestService(repo, stub)

	_, err := svc.Analyze(context.Background(), "scn-1", "user-1", []string{"text"})
	if !errors.Is(err, ErrAnalysisFailed) {
		t.Fatalf("expected ErrAnalysisFailed, got %v", err)
	}

	stored, err := repo.ListByScenario(context.Background(), "scn-1")
	if err != nil {
		t.Fatalf("ListByScenario: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("expected nothing persisted after analyzer failure, got %d", len(stored))
	}
}

func TestAnalyzeShapeMismatchFailsBatch(t *testing.T) {
	repo := NewMemoryRepo()
	stub := &stubAnalyzer{badLength: true}
	svc := newTestService(repo, stub)

	_, err := svc.Analyze(context.Background(), "scn-1", "user-1", []string{"one", "two"})
	if !errors.Is(err, ErrAnalysisFailed) {
		t.Fatalf("expected ErrAnalysisFailed on shape mismatch, got %v", err)
	}
}

type failingInsertRepo struct {
	Repo
}

func (r failingInsertRepo) InsertBatch(ctx context.Context, scenarioID string, items []BatchItem) error {
	return errors.New("write failed")
}

func TestAnalyzePersistenceFailureFailsClosed(t *testing.T) {
	repo := failingInsertRepo{Repo: NewMemoryRepo()}
	stub := &stubAnalyzer{}
	svc := newTestService(repo, stub)

	_, err := svc.Analyze(context.Background(), "scn-1", "user-1", []string{"text"})
	if !errors.Is(err, ErrPersistenceFailed) {
		t.Fatalf("expected ErrPersistenceFailed, got %v", err)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("expected the analyzer call to have happened, got %d", len(stub.calls))
	}
}

type failingLookupRepo struct {
	Repo
}

func (r failingLookupRepo) Lookup(ctx context.Context, scenarioID, fingerprint string) (Record, error) {
	return Record{}, errors.New("store flake")
}

func TestAnalyzeLookupErrorDegradesToMiss(t *testing.T) {
	repo := failingLookupRepo{Repo: NewMemoryRepo()}
	stub := &stubAnalyzer{}
	svc := newTestService(repo, stub)

	result, err := svc.Analyze(context.Background(), "scn-1", "user-1", []string{"text"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("expected a degraded lookup to cost an analyzer call, got %d", len(stub.calls))
	}
	if result.TotalItems != 1 {
		t.Fatalf("expected 1 result, got %d", result.TotalItems)
	}
}

func TestAnalyzeEmptyBatch(t *testing.T) {
	repo := NewMemoryRepo()
	stub := &stubAnalyzer{}
	svc := newTestService(repo, stub)

	result, err := svc.Analyze(context.Background(), "scn-1", "user-1", nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if result.TotalItems != 0 || len(stub.calls) != 0 {
		t.Fatalf("expected empty result and no analyzer calls, got %+v calls=%d", result, len(stub.calls))
	}
}

func TestAnalyzeCanceledContextHasNoSideEffects(t *testing.T) {
	repo := NewMemoryRepo()
	stub := &stubAnalyzer{}
	svc := newTestService(repo, stub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Analyze(ctx, "scn-1", "user-1", []string{"text"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(stub.calls) != 0 {
		t.Fatalf("expected no analyzer calls after cancellation, got %d", len(stub.calls))
	}
	stored, err := repo.ListByScenario(context.Background(), "scn-1")
	if err != nil {
		t.Fatalf("ListByScenario: %v", err)
	}
	if len(stored) != 0 {
		t.Fatalf("expected nothing persisted, got %d", len(stored))
	}
}

func TestAnalyzeScenarioIsolation(t *testing.T) {
	repo := NewMemoryRepo()
	stub := &stubAnalyzer{}
	svc := newTestService(repo, stub)

	if _, err := svc.Analyze(context.Background(), "scn-1", "user-1", []string{"shared text"}); err != nil {
		t.Fatalf("first Analyze: %v", err)
	}
	if _, err := svc.Analyze(context.Background(), "scn-2", "user-1", []string{"shared text"}); err != nil {
		t.Fatalf("second Analyze: %v", err)
	}
	if len(stub.calls) != 2 {
		t.Fatalf("expected a cache hit to stay scoped to its scenario, got %d calls", len(stub.calls))
	}
}

func TestResultsReturnsStoredAggregate(t *testing.T) {
	repo := NewMemoryRepo()
	stub := &stubAnalyzer{labels: map[string]string{"meh": "neutral"}}
	svc := newTestService(repo, stub)

	if _, err := svc.Analyze(context.Background(), "scn-1", "user-1", []string{"good", "meh"}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	result, err := svc.Results(context.Background(), "scn-1", "user-1")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if result.TotalItems != 2 {
		t.Fatalf("expected 2 stored results, got %d", result.TotalItems)
	}
	if result.SentimentDistribution["neutral"] != 1 {
		t.Fatalf("unexpected distribution %+v", result.SentimentDistribution)
	}
}

func TestClearRemovesScenarioData(t *testing.T) {
	repo := NewMemoryRepo()
	stub := &stubAnalyzer{}
	svc := newTestService(repo, stub)

	if _, err := svc.Analyze(context.Background(), "scn-1", "user-1", []string{"text"}); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if err := svc.Clear(context.Background(), "scn-1", "user-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}

	result, err := svc.Results(context.Background(), "scn-1", "user-1")
	if err != nil {
		t.Fatalf("Results: %v", err)
	}
	if result.TotalItems != 0 {
		t.Fatalf("expected empty scenario after Clear, got %d", result.TotalItems)
	}
}
