package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/wlshlad85/adaptivealpha/internal/structmap"
)

// Interaction is a recorded context-plus-decision with its point-in-time
// intelligence delta. The delta is set once at creation and never revised.
type Interaction struct {
	ID                string
	CreatedAt         int64
	ContextHash       string
	Interaction       structmap.Map
	IntelligenceDelta float64
	CausalityChain    []string
}

// InsertInteraction persists a new interaction record. It takes a Querier
// so the accumulator can run it inside the same transaction that updates
// pattern statistics.
func InsertInteraction(ctx context.Context, q Querier, rec *Interaction) error {
	body, err := rec.Interaction.Canonical()
	if err != nil {
		return err
	}
	chain := rec.CausalityChain
	if chain == nil {
		chain = []string{}
	}
	chainJSON, err := json.Marshal(chain)
	if err != nil {
		return fmt.Errorf("marshal causality chain: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO interactions (id, created_at, context_hash, interaction, intelligence_delta, causality_chain)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.CreatedAt, rec.ContextHash, string(body), rec.IntelligenceDelta, string(chainJSON))
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// GetInteraction returns an interaction by id, or nil if not found.
func (db *DB) GetInteraction(ctx context.Context, id string) (*Interaction, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, created_at, context_hash, interaction, intelligence_delta, causality_chain
		FROM interactions WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get interaction: %w", err)
	}
	defer rows.Close()

	recs, err := scanInteractions(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	return &recs[0], nil
}

// ListInteractions returns interaction history, newest first. An empty
// contextHash returns all records; a non-empty one filters to that hash.
func (db *DB) ListInteractions(ctx context.Context, contextHash string, limit, offset int) ([]Interaction, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, created_at, context_hash, interaction, intelligence_delta, causality_chain
		FROM interactions
	`
	args := []any{}
	if contextHash != "" {
		query += " WHERE context_hash = ?"
		args = append(args, contextHash)
	}
	// rowid breaks same-millisecond ties by insertion order.
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// IntelligenceMetrics summarizes accumulated intelligence over a window.
type IntelligenceMetrics struct {
	TotalInteractions int     `json:"total_interactions"`
	AvgDelta          float64 `json:"avg_intelligence_gain"`
	MaxDelta          float64 `json:"max_intelligence_gain"`
	TotalDelta        float64 `json:"total_intelligence_accumulated"`
	UniqueContexts    int     `json:"unique_contexts"`
}

// GetIntelligenceMetrics aggregates interaction deltas recorded at or after
// the since timestamp (unix milliseconds).
func (db *DB) GetIntelligenceMetrics(ctx context.Context, since int64) (*IntelligenceMetrics, error) {
	var m IntelligenceMetrics
	err := db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(AVG(intelligence_delta), 0),
			COALESCE(MAX(intelligence_delta), 0),
			COALESCE(SUM(intelligence_delta), 0),
			COUNT(DISTINCT context_hash)
		FROM interactions
		WHERE created_at >= ?
	`, since).Scan(&m.TotalInteractions, &m.AvgDelta, &m.MaxDelta, &m.TotalDelta, &m.UniqueContexts)
	if err != nil {
		return nil, fmt.Errorf("intelligence metrics: %w", err)
	}
	return &m, nil
}

// PurgeInteractionsBefore deletes interaction records strictly older than
// the cutoff (unix milliseconds) and returns the count removed. Deleting
// by cutoff is idempotent: a retried purge removes nothing new.
func (db *DB) PurgeInteractionsBefore(ctx context.Context, cutoff int64) (int64, error) {
	result, err := db.ExecContext(ctx, `
		DELETE FROM interactions WHERE created_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge interactions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge rows affected: %w", err)
	}
	return n, nil
}

func scanInteractions(rows *sql.Rows) ([]Interaction, error) {
	var recs []Interaction
	for rows.Next() {
		var rec Interaction
		var body, chain string
		if err := rows.Scan(&rec.ID, &rec.CreatedAt, &rec.ContextHash, &body, &rec.IntelligenceDelta, &chain); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		if err := json.Unmarshal([]byte(body), &rec.Interaction); err != nil {
			return nil, fmt.Errorf("decode interaction %s: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(chain), &rec.CausalityChain); err != nil {
			return nil, fmt.Errorf("decode causality chain %s: %w", rec.ID, err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// nowMilli is the single clock used by store writes, separated for clarity.
func nowMilli() int64 { return time.Now().UnixMilli() }
