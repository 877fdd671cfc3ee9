package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/wlshlad85/adaptivealpha/internal/structmap"
)

// DecisionCascade is one edge of the decision graph. Chaining is by label:
// an immediate_impact carrying a "nextAction" value links to the cascade
// record whose decision label equals that value exactly.
type DecisionCascade struct {
	ID              string
	Decision        string
	ImmediateImpact structmap.Map
	ConfidenceScore float64
	Validated       bool
	CreatedAt       int64
}

// InsertDecision stores a decision edge with its predicted impact.
func (db *DB) InsertDecision(ctx context.Context, d *DecisionCascade) error {
	if d.Decision == "" {
		return fmt.Errorf("decision label must not be empty")
	}
	impact := d.ImmediateImpact
	if impact == nil {
		impact = structmap.Map{}
	}
	body, err := impact.Canonical()
	if err != nil {
		return err
	}

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	d.CreatedAt = nowMilli()

	validated := 0
	if d.Validated {
		validated = 1
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO decision_cascades (id, decision, immediate_impact, confidence_score, validated, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, d.ID, d.Decision, string(body), d.ConfidenceScore, validated, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

const cascadeSelect = `
	SELECT id, decision, immediate_impact, confidence_score, validated, created_at
	FROM decision_cascades`

// BestDecisionContaining returns the highest-confidence decision whose
// label contains the given text, compared case-insensitively. Ties resolve
// to the oldest record so traversal stays deterministic. Returns nil when
// nothing matches.
func (db *DB) BestDecisionContaining(ctx context.Context, label string) (*DecisionCascade, error) {
	row := db.QueryRowContext(ctx, cascadeSelect+`
		WHERE instr(lower(decision), lower(?)) > 0
		ORDER BY confidence_score DESC, created_at ASC, id ASC
		LIMIT 1
	`, label)
	return scanCascade(row)
}

// BestDecisionExact returns the highest-confidence decision whose label
// equals the given text exactly, or nil. Duplicate labels are legal; the
// highest confidence wins, oldest record breaking ties.
func (db *DB) BestDecisionExact(ctx context.Context, label string) (*DecisionCascade, error) {
	row := db.QueryRowContext(ctx, cascadeSelect+`
		WHERE decision = ?
		ORDER BY confidence_score DESC, created_at ASC, id ASC
		LIMIT 1
	`, label)
	return scanCascade(row)
}

// ListDecisions returns all decision edges, newest first.
func (db *DB) ListDecisions(ctx context.Context, limit int) ([]DecisionCascade, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, cascadeSelect+`
		ORDER BY created_at DESC, id LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionCascade
	for rows.Next() {
		d, err := scanCascadeRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanCascade(row *sql.Row) (*DecisionCascade, error) {
	var d DecisionCascade
	var impact string
	var validated int
	err := row.Scan(&d.ID, &d.Decision, &impact, &d.ConfidenceScore, &validated, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan decision: %w", err)
	}
	if err := json.Unmarshal([]byte(impact), &d.ImmediateImpact); err != nil {
		return nil, fmt.Errorf("decode impact %s: %w", d.ID, err)
	}
	d.Validated = validated != 0
	return &d, nil
}

func scanCascadeRow(rows *sql.Rows) (*DecisionCascade, error) {
	var d DecisionCascade
	var impact string
	var validated int
	if err := rows.Scan(&d.ID, &d.Decision, &impact, &d.ConfidenceScore, &validated, &d.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan decision: %w", err)
	}
	if err := json.Unmarshal([]byte(impact), &d.ImmediateImpact); err != nil {
		return nil, fmt.Errorf("decode impact %s: %w", d.ID, err)
	}
	d.Validated = validated != 0
	return &d, nil
}
