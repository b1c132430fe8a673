package analyses

import (
	"math"

	"feedback-backend/internal/analyzer"
)

// aggregate builds the batch summary from per-text records in input order.
// The sentiment label set is open: whatever labels the records carry become
// distribution keys.
func aggregate(records []Record, themes []analyzer.Theme) BatchResult {
	dist := make(map[string]int, 4)
	var confidenceSum float64
	for _, rec := range records {
		dist[rec.Sentiment]++
		confidenceSum += rec.Confidence
	}

	avg := 0.0
	if len(records) > 0 {
		avg = confidenceSum / float64(len(records))
		// Round to avoid float drift leaking into API responses.
		avg = math.Round(avg*10000) / 10000
	}

	return BatchResult{
		TotalItems:            len(records),
		SentimentDistribution: dist,
		Themes:                themes,
		AverageConfidence:     avg,
		IndividualResults:     records,
	}
}
