package analyses_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"feedback-backend/internal/analyzer"
	"feedback-backend/internal/bootstrap"
	"feedback-backend/internal/shared/config"
)

type scriptedAnalyzer struct {
	calls [][]string
	err   error
}

func (s *scriptedAnalyzer) AnalyzeTexts(ctx context.Context, texts []string) (analyzer.BatchOutput, error) {
	copied := make([]string, len(texts))
	copy(copied, texts)
	s.calls = append(s.calls, copied)
	if s.err != nil {
		return analyzer.BatchOutput{}, s.err
	}
	out := analyzer.BatchOutput{}
	for range texts {
		out.Analyses = append(out.Analyses, analyzer.Result{Sentiment: "positive", Confidence: 0.9})
	}
	return out, nil
}

func newTestApp(t *testing.T, stub analyzer.Client) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Port:            "0",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		Env:             "dev",
	}
	app, err := bootstrap.Build(context.Background(), cfg)
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	app.AnalysisService.Analyzer = stub
	return app
}

func addGuestHeader(req *http.Request, guestID string) {
	req.Header.Set("X-Guest-Id", guestID)
}

func createScenario(t *testing.T, app *bootstrap.App, guestID, title string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"title": title})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scenarios", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addGuestHeader(req, guestID)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected scenario id, got empty")
	}
	return created.ID
}

func postAnalyze(app *bootstrap.App, guestID, scenarioID string, texts []string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]any{"texts": texts})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scenarios/"+scenarioID+"/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	addGuestHeader(req, guestID)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	return resp
}

func TestAnalyzeEndpointReturnsBatchResult(t *testing.T) {
	stub := &scriptedAnalyzer{}
	app := newTestApp(t, stub)
	scenarioID := createScenario(t, app, "guest-1", "support tickets")

	resp := postAnalyze(app, "guest-1", scenarioID, []string{"fast delivery", "rude agent"})
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var result struct {
		TotalItems            int            `json:"totalItems"`
		SentimentDistribution map[string]int `json:"sentimentDistribution"`
		IndividualResults     []struct {
			Sentiment string `json:"sentiment"`
		} `json:"individualResults"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.TotalItems != 2 || len(result.IndividualResults) != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.SentimentDistribution["positive"] != 2 {
		t.Fatalf("unexpected distribution %+v", result.SentimentDistribution)
	}
}

func TestAnalyzeEndpointCachesAcrossRequests(t *testing.T) {
	stub := &scriptedAnalyzer{}
	app := newTestApp(t, stub)
	scenarioID := createScenario(t, app, "guest-1", "reviews")

	if resp := postAnalyze(app, "guest-1", scenarioID, []string{"same text"}); resp.Code != http.StatusOK {
		t.Fatalf("first analyze: %d", resp.Code)
	}
	if resp := postAnalyze(app, "guest-1", scenarioID, []string{"same text"}); resp.Code != http.StatusOK {
		t.Fatalf("second analyze: %d", resp.Code)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("expected 1 analyzer call across requests, got %d", len(stub.calls))
	}
}

func TestAnalyzeEndpointRejectsForeignScenario(t *testing.T) {
	stub := &scriptedAnalyzer{}
	app := newTestApp(t, stub)
	scenarioID := createScenario(t, app, "guest-owner", "private")

	resp := postAnalyze(app, "guest-intruder", scenarioID, []string{"text"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected status 403, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(stub.calls) != 0 {
		t.Fatalf("expected no analyzer calls for denied request, got %d", len(stub.calls))
	}
}

func TestAnalyzeEndpointValidation(t *testing.T) {
	stub := &scriptedAnalyzer{}
	app := newTestApp(t, stub)
	scenarioID := createScenario(t, app, "guest-1", "validation")

	if resp := postAnalyze(app, "guest-1", scenarioID, []string{}); resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty texts, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scenarios/"+scenarioID+"/analyze", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")
	addGuestHeader(req, "guest-1")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid body, got %d", resp.Code)
	}
}

func TestAnalyzeEndpointRequiresIdentity(t *testing.T) {
	stub := &scriptedAnalyzer{}
	app := newTestApp(t, stub)

	body, _ := json.Marshal(map[string]any{"texts": []string{"text"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scenarios/any/analyze", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity, got %d", resp.Code)
	}
}

func TestAnalyzeEndpointMapsAnalyzerFailure(t *testing.T) {
	stub := &scriptedAnalyzer{err: errors.New("model unavailable")}
	app := newTestApp(t, stub)
	scenarioID := createScenario(t, app, "guest-1", "failing")

	resp := postAnalyze(app, "guest-1", scenarioID, []string{"text"})
	if resp.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestResultsEndpointReturnsStoredResults(t *testing.T) {
	stub := &scriptedAnalyzer{}
	app := newTestApp(t, stub)
	scenarioID := createScenario(t, app, "guest-1", "history")

	if resp := postAnalyze(app, "guest-1", scenarioID, []string{"one", "two"}); resp.Code != http.StatusOK {
		t.Fatalf("analyze: %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/scenarios/"+scenarioID+"/results", nil)
	addGuestHeader(req, "guest-1")
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var result struct {
		TotalItems int `json:"totalItems"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.TotalItems != 2 {
		t.Fatalf("expected 2 stored results, got %d", result.TotalItems)
	}
}
