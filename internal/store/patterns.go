package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/wlshlad85/adaptivealpha/internal/structmap"
)

// Pattern is a curated structural fingerprint with accumulation statistics.
// Occurrences, accuracy, and impact only ever increase; accuracy is capped
// at 1.0.
type Pattern struct {
	ID                  string
	PatternType         string
	Signature           structmap.Map
	Occurrences         int
	PredictionAccuracy  float64
	FutureImpactScore   float64
	LearnedOptimization string
	CreatedAt           int64
	LastSeen            int64
}

// UpsertPattern stores a curated pattern. Inserting an id that already
// exists increments occurrences, bumps last_seen, and keeps the previous
// learned optimization when the new one is empty. A zero ID gets a fresh
// UUID; a zero accuracy gets the 0.5 starting point.
func (db *DB) UpsertPattern(ctx context.Context, p *Pattern) error {
	if len(p.Signature) == 0 {
		return fmt.Errorf("pattern signature must not be empty")
	}
	sig, err := p.Signature.Canonical()
	if err != nil {
		return err
	}

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PredictionAccuracy == 0 {
		p.PredictionAccuracy = 0.5
	}
	now := nowMilli()

	_, err = db.ExecContext(ctx, `
		INSERT INTO patterns (id, pattern_type, signature, occurrences, prediction_accuracy,
			future_impact_score, learned_optimization, created_at, last_seen)
		VALUES (?, ?, ?, 1, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			occurrences = patterns.occurrences + 1,
			learned_optimization = CASE
				WHEN excluded.learned_optimization != '' THEN excluded.learned_optimization
				ELSE patterns.learned_optimization
			END,
			last_seen = excluded.last_seen
	`, p.ID, p.PatternType, string(sig), p.PredictionAccuracy,
		p.FutureImpactScore, p.LearnedOptimization, now, now)
	if err != nil {
		return fmt.Errorf("upsert pattern: %w", err)
	}
	return nil
}

// GetPattern returns a pattern by id, or nil if not found.
func (db *DB) GetPattern(ctx context.Context, id string) (*Pattern, error) {
	rows, err := db.QueryContext(ctx, patternSelect+" WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("get pattern: %w", err)
	}
	defer rows.Close()

	patterns, err := scanPatterns(rows)
	if err != nil {
		return nil, err
	}
	if len(patterns) == 0 {
		return nil, nil
	}
	return &patterns[0], nil
}

const patternSelect = `
	SELECT id, pattern_type, signature, occurrences, prediction_accuracy,
		future_impact_score, learned_optimization, created_at, last_seen
	FROM patterns`

// ListPatterns returns patterns with prediction_accuracy above minAccuracy.
// It takes a Querier so the accumulator can read the pattern set inside
// its transaction; pass the DB for plain queries and minAccuracy 0 for all.
func ListPatterns(ctx context.Context, q Querier, minAccuracy float64) ([]Pattern, error) {
	rows, err := q.QueryContext(ctx, patternSelect+`
		WHERE prediction_accuracy > ?
		ORDER BY prediction_accuracy DESC, occurrences DESC
	`, minAccuracy)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

// TopPatterns returns the most effective patterns: accuracy at or above
// minAccuracy, ranked by accuracy then occurrences.
func (db *DB) TopPatterns(ctx context.Context, minAccuracy float64, limit int) ([]Pattern, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.QueryContext(ctx, patternSelect+`
		WHERE prediction_accuracy >= ?
		ORDER BY prediction_accuracy DESC, occurrences DESC
		LIMIT ?
	`, minAccuracy, limit)
	if err != nil {
		return nil, fmt.Errorf("top patterns: %w", err)
	}
	defer rows.Close()

	return scanPatterns(rows)
}

// BumpPatternStats applies one accumulation step to an exactly-matched
// pattern: occurrences+1, last_seen=now, accuracy+0.02 capped at 1.0,
// impact+0.1. Runs on a Querier so it joins the accumulation transaction.
func BumpPatternStats(ctx context.Context, q Querier, id string, now int64) error {
	result, err := q.ExecContext(ctx, `
		UPDATE patterns SET
			occurrences = occurrences + 1,
			last_seen = ?,
			prediction_accuracy = MIN(prediction_accuracy + 0.02, 1.0),
			future_impact_score = future_impact_score + 0.1
		WHERE id = ?
	`, now, id)
	if err != nil {
		return fmt.Errorf("bump pattern stats: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("pattern %s not found", id)
	}
	return nil
}

func scanPatterns(rows *sql.Rows) ([]Pattern, error) {
	var patterns []Pattern
	for rows.Next() {
		var p Pattern
		var sig string
		if err := rows.Scan(&p.ID, &p.PatternType, &sig, &p.Occurrences, &p.PredictionAccuracy,
			&p.FutureImpactScore, &p.LearnedOptimization, &p.CreatedAt, &p.LastSeen); err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		if err := json.Unmarshal([]byte(sig), &p.Signature); err != nil {
			return nil, fmt.Errorf("decode signature %s: %w", p.ID, err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}
