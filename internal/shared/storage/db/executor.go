package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"feedback-backend/internal/shared/telemetry"
)

// ErrQueryExhausted is returned after the retry budget is spent on transient
// store failures. It wraps the last observed error's message.
var ErrQueryExhausted = errors.New("query retries exhausted")

const (
	defaultMaxRetries  = 3
	defaultBaseBackoff = 200 * time.Millisecond
)

// Executor runs store operations with retry and pool recovery on transient
// failures. Non-transient errors are surfaced immediately without retry.
// Transactions must be opened and committed inside a single operation so a
// failed transaction is always rolled back and retried as a whole unit.
type Executor struct {
	Handle      *Handle
	MaxRetries  int
	BaseBackoff time.Duration
}

// NewExecutor constructs an Executor with default retry settings.
func NewExecutor(handle *Handle) *Executor {
	return &Executor{
		Handle:      handle,
		MaxRetries:  defaultMaxRetries,
		BaseBackoff: defaultBaseBackoff,
	}
}

// Do runs op, retrying on transient failures with a linearly growing backoff
// and a fresh pool per attempt.
func (e *Executor) Do(ctx context.Context, op func(sqlDB *sql.DB) error) error {
	maxRetries := e.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	base := e.BaseBackoff
	if base <= 0 {
		base = defaultBaseBackoff
	}

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		sqlDB := e.Handle.DB()
		if sqlDB == nil {
			if err := e.Handle.Reset(ctx); err != nil {
				lastErr = err
				continue
			}
			sqlDB = e.Handle.DB()
		}

		err := op(sqlDB)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err

		telemetry.Error("db.retry", map[string]any{
			"attempt":     attempt,
			"max_retries": maxRetries,
			"error":       err.Error(),
		})

		select {
		case <-time.After(base * time.Duration(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}

		if resetErr := e.Handle.Reset(ctx); resetErr != nil {
			telemetry.Error("db.reset_failed", map[string]any{
				"attempt": attempt,
				"error":   resetErr.Error(),
			})
		}
	}
	return fmt.Errorf("%w: %v", ErrQueryExhausted, lastErr)
}

// IsTransient reports whether err looks like a recoverable connection-level
// failure worth a pool reset and retry. Constraint violations, syntax and
// auth errors are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection closed") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "bad connection") ||
		strings.Contains(msg, "i/o timeout") {
		return true
	}
	// Postgres restart/termination notices surface as these server messages.
	if strings.Contains(msg, "the database system is shutting down") ||
		strings.Contains(msg, "the database system is starting up") ||
		strings.Contains(msg, "terminating connection due to administrator command") {
		return true
	}
	return false
}
