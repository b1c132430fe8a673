package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"feedback-backend/internal/analyzer"
)

const apiURL = "https://api.openai.com/v1/chat/completions"

const systemPrompt = `You are a sentiment analysis engine for customer feedback.
You receive a JSON array of texts. Respond with a single JSON object:
{"analyses":[...],"themes":[...]}
"analyses" must contain exactly one entry per input text, in the same order:
{"sentiment":"positive|negative|neutral|mixed","confidence":0.0-1.0,
"confidenceDistribution":{"positive":p,"negative":n,"neutral":u,"mixed":m},
"translation":"English translation of the text",
"highlights":{"<sentiment>":["substrings of the original text"]},
"translatedHighlights":{"<sentiment>":["substrings of the translation"]},
"reasoning":"one or two sentences","brief":"short summary",
"replySuggestion":"optional suggested reply"}
"themes" is optional: [{"theme":"...","count":n,"sentiment":"..."}].
Respond with JSON only.`

// Client implements analyzer.Client using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client.
func NewClient(apiKey, model string) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("ANALYZER_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	// The analyzer call is the dominant-latency step, so it gets its own
	// long timeout independent of database timeouts.
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: apiURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float32       `json:"temperature,omitempty"`
	ResponseFormat responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// AnalyzeTexts sends the whole batch in one chat completion and parses the
// structured response.
func (c *Client) AnalyzeTexts(ctx context.Context, texts []string) (analyzer.BatchOutput, error) {
	if len(texts) == 0 {
		return analyzer.BatchOutput{}, nil
	}

	payload, err := json.Marshal(texts)
	if err != nil {
		return analyzer.BatchOutput{}, err
	}

	temp := float32(0)
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(payload)},
		},
		Temperature:    &temp,
		ResponseFormat: responseFormat{Type: "json_object"},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return analyzer.BatchOutput{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return analyzer.BatchOutput{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return analyzer.BatchOutput{}, fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return analyzer.BatchOutput{}, fmt.Errorf("openai read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return analyzer.BatchOutput{}, fmt.Errorf("openai http status %d: %s", resp.StatusCode, truncate(string(raw), 300))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return analyzer.BatchOutput{}, fmt.Errorf("openai response parse: %w", err)
	}
	if parsed.Error != nil {
		return analyzer.BatchOutput{}, fmt.Errorf("openai error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return analyzer.BatchOutput{}, fmt.Errorf("openai response has no choices")
	}
	logUsage(c.model, len(texts), parsed.Usage)

	content := parsed.Choices[0].Message.Content
	var out analyzer.BatchOutput
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return analyzer.BatchOutput{}, fmt.Errorf("invalid JSON from OpenAI: %w", err)
	}
	return out, nil
}

func logUsage(model string, batchSize int, usage *struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}) {
	if usage == nil {
		return
	}
	log.Printf("openai usage model=%s batch=%d prompt_tokens=%d completion_tokens=%d total_tokens=%d",
		model, batchSize, usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
