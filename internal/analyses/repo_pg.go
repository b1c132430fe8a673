package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"feedback-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres. All calls go through the resilient
// executor; InsertBatch opens its transaction inside a single executor
// operation so a retried attempt always reruns the whole batch.
type PGRepo struct {
	Exec *db.Executor
}

const recordColumns = `
ar.id, fi.id, ar.scenario_id, fi.content_hash,
ar.sentiment, ar.confidence, ar.confidence_distribution,
ar.translation, ar.highlights, ar.translated_highlights,
ar.reasoning, ar.brief, ar.reply_suggestion,
ar.expires_at, ar.created_at`

// Lookup returns the newest non-expired record for a fingerprint within a
// scenario. Expired rows are skipped, never deleted here.
func (r *PGRepo) Lookup(ctx context.Context, scenarioID, fingerprint string) (Record, error) {
	query := fmt.Sprintf(`
SELECT %s
FROM analysis_results ar
JOIN feedback_items fi ON fi.id = ar.item_id
WHERE ar.scenario_id = $1
  AND fi.content_hash = $2
  AND ar.expires_at > now()
ORDER BY ar.created_at DESC
LIMIT 1`, recordColumns)

	var rec Record
	err := r.Exec.Do(ctx, func(sqlDB *sql.DB) error {
		row := sqlDB.QueryRowContext(ctx, query, scenarioID, fingerprint)
		scanned, err := scanRecord(row)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		rec = scanned
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// InsertBatch writes every item and record in one transaction. Item rows are
// reused when the (scenario, fingerprint) pair already exists; record rows are
// always appended so the newest non-expired one wins on lookup.
func (r *PGRepo) InsertBatch(ctx context.Context, scenarioID string, items []BatchItem) error {
	if len(items) == 0 {
		return nil
	}
	const upsertItem = `
INSERT INTO feedback_items (id, scenario_id, content, content_hash, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (scenario_id, content_hash)
DO UPDATE SET content = EXCLUDED.content
RETURNING id`
	const insertResult = `
INSERT INTO analysis_results (
	id, item_id, scenario_id, sentiment, confidence, confidence_distribution,
	translation, highlights, translated_highlights,
	reasoning, brief, reply_suggestion, expires_at, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	return r.Exec.Do(ctx, func(sqlDB *sql.DB) error {
		tx, err := sqlDB.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		for _, item := range items {
			rec := item.Record
			var itemID string
			err := tx.QueryRowContext(ctx, upsertItem,
				rec.ItemID,
				scenarioID,
				item.Content,
				item.Fingerprint,
				rec.CreatedAt,
			).Scan(&itemID)
			if err != nil {
				return err
			}

			dist, err := jsonbArg(rec.ConfidenceDistribution)
			if err != nil {
				return err
			}
			highlights, err := jsonbArg(rec.Highlights)
			if err != nil {
				return err
			}
			translated, err := jsonbArg(rec.TranslatedHighlights)
			if err != nil {
				return err
			}

			_, err = tx.ExecContext(ctx, insertResult,
				rec.ID,
				itemID,
				scenarioID,
				rec.Sentiment,
				rec.Confidence,
				dist,
				nullString(rec.Translation),
				highlights,
				translated,
				nullString(rec.Reasoning),
				nullString(rec.Brief),
				nullString(rec.ReplySuggestion),
				rec.ExpiresAt,
				rec.CreatedAt,
			)
			if err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// ListByScenario returns the newest non-expired record per item in a scenario,
// oldest item first.
func (r *PGRepo) ListByScenario(ctx context.Context, scenarioID string) ([]Record, error) {
	query := fmt.Sprintf(`
SELECT DISTINCT ON (fi.id) %s
FROM analysis_results ar
JOIN feedback_items fi ON fi.id = ar.item_id
WHERE ar.scenario_id = $1
  AND ar.expires_at > now()
ORDER BY fi.id, ar.created_at DESC`, recordColumns)

	var out []Record
	err := r.Exec.Do(ctx, func(sqlDB *sql.DB) error {
		rows, err := sqlDB.QueryContext(ctx, query, scenarioID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = out[:0]
		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteByScenario removes all items and records for a scenario in one
// transaction.
func (r *PGRepo) DeleteByScenario(ctx context.Context, scenarioID string) error {
	return r.Exec.Do(ctx, func(sqlDB *sql.DB) error {
		tx, err := sqlDB.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			`DELETE FROM analysis_results WHERE scenario_id = $1`, scenarioID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM feedback_items WHERE scenario_id = $1`, scenarioID); err != nil {
			return err
		}
		return tx.Commit()
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec        Record
		dist       []byte
		highlights []byte
		translated []byte
		translation,
		reasoning,
		brief,
		reply sql.NullString
	)
	err := row.Scan(
		&rec.ID,
		&rec.ItemID,
		&rec.ScenarioID,
		&rec.Fingerprint,
		&rec.Sentiment,
		&rec.Confidence,
		&dist,
		&translation,
		&highlights,
		&translated,
		&reasoning,
		&brief,
		&reply,
		&rec.ExpiresAt,
		&rec.CreatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	rec.Translation = translation.String
	rec.Reasoning = reasoning.String
	rec.Brief = brief.String
	rec.ReplySuggestion = reply.String
	if len(dist) > 0 {
		if err := json.Unmarshal(dist, &rec.ConfidenceDistribution); err != nil {
			return Record{}, err
		}
	}
	if len(highlights) > 0 {
		if err := json.Unmarshal(highlights, &rec.Highlights); err != nil {
			return Record{}, err
		}
	}
	if len(translated) > 0 {
		if err := json.Unmarshal(translated, &rec.TranslatedHighlights); err != nil {
			return Record{}, err
		}
	}
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func jsonbArg(v any) (any, error) {
	switch t := v.(type) {
	case map[string]float64:
		if len(t) == 0 {
			return nil, nil
		}
	case map[string][]string:
		if len(t) == 0 {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Repo = (*PGRepo)(nil)
