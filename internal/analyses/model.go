package analyses

import (
	"time"

	"feedback-backend/internal/analyzer"
)

// Record is the persisted outcome of analyzing one text. Records are
// insert-only: a record is never mutated, it just stops being returned by
// lookups once ExpiresAt passes.
type Record struct {
	ID                     string              `json:"id"`
	ItemID                 string              `json:"itemId"`
	ScenarioID             string              `json:"scenarioId"`
	Fingerprint            string              `json:"fingerprint"`
	Sentiment              string              `json:"sentiment"`
	Confidence             float64             `json:"confidence"`
	ConfidenceDistribution map[string]float64  `json:"confidenceDistribution,omitempty"`
	Translation            string              `json:"translation,omitempty"`
	Highlights             map[string][]string `json:"highlights,omitempty"`
	TranslatedHighlights   map[string][]string `json:"translatedHighlights,omitempty"`
	Reasoning              string              `json:"reasoning,omitempty"`
	Brief                  string              `json:"brief,omitempty"`
	ReplySuggestion        string              `json:"replySuggestion,omitempty"`
	ExpiresAt              time.Time           `json:"expiresAt"`
	CreatedAt              time.Time           `json:"createdAt"`
}

// BatchItem pairs a text with its fingerprint and freshly computed record for
// a single transactional insert.
type BatchItem struct {
	Content     string
	Fingerprint string
	Record      Record
}

// BatchResult is the request-scoped aggregate returned to the caller. It is
// never persisted as a unit; it is rebuilt per request from Records.
type BatchResult struct {
	TotalItems            int              `json:"totalItems"`
	SentimentDistribution map[string]int   `json:"sentimentDistribution"`
	Themes                []analyzer.Theme `json:"themes,omitempty"`
	AverageConfidence     float64          `json:"averageConfidence"`
	IndividualResults     []Record         `json:"individualResults"`
}
