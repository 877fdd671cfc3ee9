package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/wlshlad85/adaptivealpha/internal/structmap"
)

// ErrorRecord tracks a recurring error context and, once known, its
// solution. Records are keyed by the digest of the error context, so the
// same failure reported twice lands on one row with a bumped count.
type ErrorRecord struct {
	ID                 string
	ErrorSignature     string
	ErrorContext       structmap.Map
	Solution           structmap.Map
	ResolutionTimeSecs *int64
	OccurrenceCount    int
	FirstOccurred      int64
	LastOccurred       int64
}

// LogError records an error occurrence. A repeat signature increments the
// occurrence count; a non-nil solution replaces a missing one but never
// erases a known solution.
func (db *DB) LogError(ctx context.Context, errCtx structmap.Map, solution structmap.Map, resolutionSecs *int64) (*ErrorRecord, error) {
	if len(errCtx) == 0 {
		return nil, fmt.Errorf("error context must not be empty")
	}
	signature, err := errCtx.Hash()
	if err != nil {
		return nil, err
	}
	body, err := errCtx.Canonical()
	if err != nil {
		return nil, err
	}

	var solJSON any
	if len(solution) > 0 {
		b, err := solution.Canonical()
		if err != nil {
			return nil, err
		}
		solJSON = string(b)
	}

	now := nowMilli()
	_, err = db.ExecContext(ctx, `
		INSERT INTO error_registry (id, error_signature, error_context, solution,
			resolution_time_seconds, occurrence_count, first_occurred, last_occurred)
		VALUES (?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (error_signature) DO UPDATE SET
			occurrence_count = error_registry.occurrence_count + 1,
			solution = COALESCE(excluded.solution, error_registry.solution),
			resolution_time_seconds = COALESCE(excluded.resolution_time_seconds, error_registry.resolution_time_seconds),
			last_occurred = excluded.last_occurred
	`, uuid.NewString(), signature, string(body), solJSON, resolutionSecs, now, now)
	if err != nil {
		return nil, fmt.Errorf("log error: %w", err)
	}

	return db.getErrorBySignature(ctx, signature)
}

// GetErrorSolution returns the known solution record for an error context,
// or nil when the error is unknown or still unsolved.
func (db *DB) GetErrorSolution(ctx context.Context, errCtx structmap.Map) (*ErrorRecord, error) {
	if len(errCtx) == 0 {
		return nil, fmt.Errorf("error context must not be empty")
	}
	signature, err := errCtx.Hash()
	if err != nil {
		return nil, err
	}

	rec, err := db.getErrorBySignature(ctx, signature)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.Solution == nil {
		return nil, nil
	}
	return rec, nil
}

func (db *DB) getErrorBySignature(ctx context.Context, signature string) (*ErrorRecord, error) {
	var rec ErrorRecord
	var body string
	var sol sql.NullString
	var resolution sql.NullInt64
	err := db.QueryRowContext(ctx, `
		SELECT id, error_signature, error_context, solution, resolution_time_seconds,
			occurrence_count, first_occurred, last_occurred
		FROM error_registry WHERE error_signature = ?
	`, signature).Scan(&rec.ID, &rec.ErrorSignature, &body, &sol, &resolution,
		&rec.OccurrenceCount, &rec.FirstOccurred, &rec.LastOccurred)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get error record: %w", err)
	}

	if err := json.Unmarshal([]byte(body), &rec.ErrorContext); err != nil {
		return nil, fmt.Errorf("decode error context %s: %w", rec.ID, err)
	}
	if sol.Valid {
		if err := json.Unmarshal([]byte(sol.String), &rec.Solution); err != nil {
			return nil, fmt.Errorf("decode error solution %s: %w", rec.ID, err)
		}
	}
	if resolution.Valid {
		rec.ResolutionTimeSecs = &resolution.Int64
	}
	return &rec, nil
}
