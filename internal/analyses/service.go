package analyses

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"feedback-backend/internal/analyzer"
	"feedback-backend/internal/shared/config"
	"feedback-backend/internal/shared/metrics"
	"feedback-backend/internal/shared/telemetry"
)

// OwnershipGuard authorizes access to a scenario's cache namespace before any
// read or write. A non-nil error denies the whole request.
type OwnershipGuard interface {
	AssertOwnership(ctx context.Context, scenarioID, principal string) error
}

// Service runs batched sentiment analysis over the content cache. Per batch
// it makes at most one analyzer call, covering exactly the deduplicated
// cache misses, and persists fresh results before returning them.
type Service struct {
	Repo     Repo
	Guard    OwnershipGuard
	Analyzer analyzer.Client
	TTL      time.Duration

	// Now is overridable for expiry tests.
	Now func() time.Time
}

// NewService constructs a Service. A non-positive ttl falls back to the
// default cache lifetime.
func NewService(repo Repo, guard OwnershipGuard, client analyzer.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = config.DefaultAnalysisTTL
	}
	return &Service{
		Repo:     repo,
		Guard:    guard,
		Analyzer: client,
		TTL:      ttl,
		Now:      time.Now,
	}
}

// Analyze resolves each text against the cache, analyzes the misses in a
// single analyzer call, persists the fresh results transactionally, and
// returns per-text results in input order plus batch aggregates.
//
// Failure is all-or-nothing: an analyzer or persistence error fails the whole
// batch and no partial results are returned.
func (s *Service) Analyze(ctx context.Context, scenarioID, principal string, texts []string) (BatchResult, error) {
	if err := s.Guard.AssertOwnership(ctx, scenarioID, principal); err != nil {
		return BatchResult{}, err
	}
	if len(texts) == 0 {
		return aggregate(nil, nil), nil
	}
	start := s.Now()

	resolutions := resolveBatch(ctx, s.Repo, scenarioID, texts)
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}

	// Deduplicate misses by fingerprint, preserving first appearance, so a
	// repeated text costs one analyzer item and one stored record.
	var (
		missOrder []string
		missText  = make(map[string]string)
		hits      int
	)
	for _, res := range resolutions {
		if res.Hit {
			hits++
			continue
		}
		if _, seen := missText[res.Fingerprint]; !seen {
			missOrder = append(missOrder, res.Fingerprint)
			missText[res.Fingerprint] = res.Content
		}
	}
	metrics.AddCacheHits(hits)
	metrics.AddCacheMisses(len(texts) - hits)

	var themes []analyzer.Theme
	fresh := make(map[string]Record, len(missOrder))
	if len(missOrder) > 0 {
		missTexts := make([]string, len(missOrder))
		for i, fp := range missOrder {
			missTexts[i] = missText[fp]
		}

		output, err := s.analyzeMisses(ctx, scenarioID, missTexts)
		if err != nil {
			return BatchResult{}, err
		}
		themes = output.Themes

		now := s.Now().UTC()
		items := make([]BatchItem, len(missOrder))
		for i, fp := range missOrder {
			res := output.Analyses[i]
			items[i] = BatchItem{
				Content:     missTexts[i],
				Fingerprint: fp,
				Record: Record{
					ID:                     uuid.NewString(),
					ItemID:                 uuid.NewString(),
					ScenarioID:             scenarioID,
					Fingerprint:            fp,
					Sentiment:              res.Sentiment,
					Confidence:             res.Confidence,
					ConfidenceDistribution: res.ConfidenceDistribution,
					Translation:            res.Translation,
					Highlights:             res.Highlights,
					TranslatedHighlights:   res.TranslatedHighlights,
					Reasoning:              res.Reasoning,
					Brief:                  res.Brief,
					ReplySuggestion:        res.ReplySuggestion,
					ExpiresAt:              now.Add(s.TTL),
					CreatedAt:              now,
				},
			}
		}

		if err := s.Repo.InsertBatch(ctx, scenarioID, items); err != nil {
			telemetry.Error("analyses.persist_failed", map[string]any{
				"scenario_id": scenarioID,
				"items":       len(items),
				"error":       err.Error(),
			})
			return BatchResult{}, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
		}
		metrics.AddResultsPersisted(len(items))

		for _, item := range items {
			fresh[item.Fingerprint] = item.Record
		}
	}

	// Merge cached and fresh results back into input order. A fingerprint
	// that missed is guaranteed a fresh record by the shape check above.
	merged := make([]Record, len(resolutions))
	for i, res := range resolutions {
		if res.Hit {
			merged[i] = res.Record
			continue
		}
		merged[i] = fresh[res.Fingerprint]
	}

	metrics.IncBatchAnalyzed()
	metrics.ObserveBatchDurationMs(float64(s.Now().Sub(start).Milliseconds()))
	telemetry.Info("analyses.batch", map[string]any{
		"scenario_id": scenarioID,
		"total":       len(texts),
		"cache_hits":  hits,
		"analyzed":    len(missOrder),
	})
	return aggregate(merged, themes), nil
}

// analyzeMisses makes the batch's single analyzer call and validates the
// response shape against the request.
func (s *Service) analyzeMisses(ctx context.Context, scenarioID string, texts []string) (analyzer.BatchOutput, error) {
	if s.Analyzer == nil {
		return analyzer.BatchOutput{}, fmt.Errorf("%w: %v", ErrAnalysisFailed, analyzer.ErrNotConfigured)
	}

	client := newRetryingAnalyzer(s.Analyzer, scenarioID)
	metrics.IncAnalyzerCall()
	callStart := s.Now()
	output, err := client.AnalyzeTexts(ctx, texts)
	metrics.ObserveAnalyzerDurationMs(float64(s.Now().Sub(callStart).Milliseconds()))
	if err != nil {
		metrics.IncAnalyzerFailure()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return analyzer.BatchOutput{}, ctxErr
		}
		telemetry.Error("analyses.analyzer_failed", map[string]any{
			"scenario_id": scenarioID,
			"texts":       len(texts),
			"error":       err.Error(),
		})
		return analyzer.BatchOutput{}, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	if err := output.Validate(len(texts)); err != nil {
		metrics.IncAnalyzerFailure()
		return analyzer.BatchOutput{}, fmt.Errorf("%w: %v", ErrAnalysisFailed, err)
	}
	return output, nil
}

// Results returns the stored live results for a scenario as a batch summary.
// Themes are request-scoped so the summary for stored results carries none.
func (s *Service) Results(ctx context.Context, scenarioID, principal string) (BatchResult, error) {
	if err := s.Guard.AssertOwnership(ctx, scenarioID, principal); err != nil {
		return BatchResult{}, err
	}
	records, err := s.Repo.ListByScenario(ctx, scenarioID)
	if err != nil {
		return BatchResult{}, err
	}
	return aggregate(records, nil), nil
}

// Clear removes all cached items and results for a scenario.
func (s *Service) Clear(ctx context.Context, scenarioID, principal string) error {
	if err := s.Guard.AssertOwnership(ctx, scenarioID, principal); err != nil {
		return err
	}
	return s.Repo.DeleteByScenario(ctx, scenarioID)
}
