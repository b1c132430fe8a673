package analyzer

import (
	"context"
	"errors"
	"fmt"
)

// Client abstracts the external LLM sentiment analyzer. Implementations must
// return one Result per input text, in input order.
type Client interface {
	AnalyzeTexts(ctx context.Context, texts []string) (BatchOutput, error)
}

// Result is the analyzer's verdict for a single text.
type Result struct {
	Sentiment              string              `json:"sentiment"`
	Confidence             float64             `json:"confidence"`
	ConfidenceDistribution map[string]float64  `json:"confidenceDistribution,omitempty"`
	Translation            string              `json:"translation,omitempty"`
	Highlights             map[string][]string `json:"highlights,omitempty"`
	TranslatedHighlights   map[string][]string `json:"translatedHighlights,omitempty"`
	Reasoning              string              `json:"reasoning,omitempty"`
	Brief                  string              `json:"brief,omitempty"`
	ReplySuggestion        string              `json:"replySuggestion,omitempty"`
}

// Theme is an optional cross-text grouping returned by the analyzer.
type Theme struct {
	Theme     string `json:"theme"`
	Count     int    `json:"count"`
	Sentiment string `json:"sentiment"`
}

// BatchOutput is the analyzer response for one batch call.
type BatchOutput struct {
	Analyses []Result `json:"analyses"`
	Themes   []Theme  `json:"themes,omitempty"`
}

// ErrNotConfigured is returned by the placeholder client.
var ErrNotConfigured = errors.New("analyzer not configured")

// Validate checks the response shape against the request size. A length
// mismatch means the analyzer output cannot be mapped back to its inputs.
func (o BatchOutput) Validate(want int) error {
	if len(o.Analyses) != want {
		return fmt.Errorf("analyzer returned %d analyses for %d texts", len(o.Analyses), want)
	}
	for i, res := range o.Analyses {
		if res.Sentiment == "" {
			return fmt.Errorf("analysis %d missing sentiment", i)
		}
		if res.Confidence < 0 || res.Confidence > 1 {
			return fmt.Errorf("analysis %d confidence %f out of range", i, res.Confidence)
		}
	}
	return nil
}

// PlaceholderClient is a stub implementation until provider wiring is added.
type PlaceholderClient struct{}

// AnalyzeTexts returns ErrNotConfigured.
func (PlaceholderClient) AnalyzeTexts(ctx context.Context, texts []string) (BatchOutput, error) {
	_ = ctx
	_ = texts
	return BatchOutput{}, ErrNotConfigured
}
