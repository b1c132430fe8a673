package analyses

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"feedback-backend/internal/analyzer"
	"feedback-backend/internal/shared/telemetry"
)

const analyzerRetryBaseDelay = 300 * time.Millisecond

// retryingAnalyzer retries a single time on transient analyzer failures.
// Anything else (auth, malformed request, quota) fails immediately.
type retryingAnalyzer struct {
	base       analyzer.Client
	scenarioID string
}

func newRetryingAnalyzer(base analyzer.Client, scenarioID string) analyzer.Client {
	if base == nil {
		return nil
	}
	return retryingAnalyzer{base: base, scenarioID: scenarioID}
}

func (r retryingAnalyzer) AnalyzeTexts(ctx context.Context, texts []string) (analyzer.BatchOutput, error) {
	out, err := r.base.AnalyzeTexts(ctx, texts)
	if err == nil || !shouldRetryAnalyzer(err) {
		return out, err
	}

	telemetry.Error("analyzer.retry", map[string]any{
		"scenario_id": r.scenarioID,
		"error":       err.Error(),
	})
	select {
	case <-time.After(analyzerRetryBaseDelay):
	case <-ctx.Done():
		return analyzer.BatchOutput{}, ctx.Err()
	}

	return r.base.AnalyzeTexts(ctx, texts)
}

func shouldRetryAnalyzer(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "tls handshake timeout") ||
		strings.Contains(msg, "client.timeout") ||
		strings.Contains(msg, "eof") {
		return true
	}

	return false
}
