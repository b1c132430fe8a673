package analyses

import (
	"context"
	"errors"
	"sync"

	"feedback-backend/internal/shared/telemetry"
	"feedback-backend/internal/shared/util"
)

const defaultLookupConcurrency = 8

// resolution is the per-text outcome of a cache pass, in input order.
type resolution struct {
	Content     string
	Fingerprint string
	Hit         bool
	Record      Record
}

// resolveBatch looks up every text concurrently and reports hits and misses
// in input order. Lookup errors degrade to misses so a flaky store costs an
// analyzer call instead of failing the batch; the error is logged.
func resolveBatch(ctx context.Context, repo Repo, scenarioID string, texts []string) []resolution {
	out := make([]resolution, len(texts))
	for i, text := range texts {
		out[i] = resolution{
			Content:     text,
			Fingerprint: util.Fingerprint(text),
		}
	}

	sem := make(chan struct{}, defaultLookupConcurrency)
	var wg sync.WaitGroup
	for i := range out {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			rec, err := repo.Lookup(ctx, scenarioID, out[i].Fingerprint)
			if err != nil {
				if !errors.Is(err, ErrNotFound) {
					telemetry.Error("analyses.lookup_degraded", map[string]any{
						"scenario_id": scenarioID,
						"fingerprint": out[i].Fingerprint,
						"error":       err.Error(),
					})
				}
				return
			}
			out[i].Hit = true
			out[i].Record = rec
		}(i)
	}
	wg.Wait()
	return out
}
