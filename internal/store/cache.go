package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/wlshlad85/adaptivealpha/internal/structmap"
)

// CacheEntry is a previously computed optimal solution keyed by the digest
// of its problem signature. Entries are never evicted; effectiveness and
// usage are advisory rankings for callers, not a size bound.
type CacheEntry struct {
	CacheKey           string
	ProblemSignature   structmap.Map
	OptimalSolution    structmap.Map
	PerformanceMetrics structmap.Map
	UsageCount         int
	EffectivenessScore float64
	CreatedAt          int64
	LastAccessed       int64
}

// PutCachedSolution inserts or overwrites the entry for the given cache
// key. Overwriting keeps the original created_at and usage count but
// replaces the solution and metrics.
func (db *DB) PutCachedSolution(ctx context.Context, entry *CacheEntry) error {
	sig, err := entry.ProblemSignature.Canonical()
	if err != nil {
		return err
	}
	sol, err := entry.OptimalSolution.Canonical()
	if err != nil {
		return err
	}
	metrics := entry.PerformanceMetrics
	if metrics == nil {
		metrics = structmap.Map{}
	}
	met, err := metrics.Canonical()
	if err != nil {
		return err
	}

	now := nowMilli()
	_, err = db.ExecContext(ctx, `
		INSERT INTO optimization_cache (cache_key, problem_signature, optimal_solution,
			performance_metrics, usage_count, effectiveness_score, created_at, last_accessed)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)
		ON CONFLICT (cache_key) DO UPDATE SET
			optimal_solution = excluded.optimal_solution,
			performance_metrics = excluded.performance_metrics,
			last_accessed = excluded.last_accessed
	`, entry.CacheKey, string(sig), string(sol), string(met),
		entry.EffectivenessScore, now, now)
	if err != nil {
		return fmt.Errorf("put cached solution: %w", err)
	}
	return nil
}

// TouchCachedSolution looks up an entry by key, increments its usage count,
// and folds the observed effectiveness outcome into a running mean over
// hits. Returns nil when the key has no entry. The read and bookkeeping
// update run in one transaction.
func (db *DB) TouchCachedSolution(ctx context.Context, key string, observed float64) (*CacheEntry, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin cache lookup: %w", err)
	}
	defer tx.Rollback()

	var entry CacheEntry
	var sig, sol, met string
	err = tx.QueryRowContext(ctx, `
		SELECT cache_key, problem_signature, optimal_solution, performance_metrics,
			usage_count, effectiveness_score, created_at, last_accessed
		FROM optimization_cache WHERE cache_key = ?
	`, key).Scan(&entry.CacheKey, &sig, &sol, &met,
		&entry.UsageCount, &entry.EffectivenessScore, &entry.CreatedAt, &entry.LastAccessed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached solution: %w", err)
	}

	if err := json.Unmarshal([]byte(sig), &entry.ProblemSignature); err != nil {
		return nil, fmt.Errorf("decode cache signature %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(sol), &entry.OptimalSolution); err != nil {
		return nil, fmt.Errorf("decode cache solution %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(met), &entry.PerformanceMetrics); err != nil {
		return nil, fmt.Errorf("decode cache metrics %s: %w", key, err)
	}

	// Running mean of observed outcomes across hits.
	hits := entry.UsageCount + 1
	entry.EffectivenessScore = (entry.EffectivenessScore*float64(entry.UsageCount) + observed) / float64(hits)
	entry.UsageCount = hits
	entry.LastAccessed = nowMilli()

	_, err = tx.ExecContext(ctx, `
		UPDATE optimization_cache SET usage_count = ?, effectiveness_score = ?, last_accessed = ?
		WHERE cache_key = ?
	`, entry.UsageCount, entry.EffectivenessScore, entry.LastAccessed, key)
	if err != nil {
		return nil, fmt.Errorf("touch cached solution: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cache lookup: %w", err)
	}
	return &entry, nil
}

// RankedCacheEntries lists entries by effectiveness then usage, advisory
// for callers choosing among near-duplicate signatures.
func (db *DB) RankedCacheEntries(ctx context.Context, limit int) ([]CacheEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
		SELECT cache_key, problem_signature, optimal_solution, performance_metrics,
			usage_count, effectiveness_score, created_at, last_accessed
		FROM optimization_cache
		ORDER BY effectiveness_score DESC, usage_count DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("ranked cache entries: %w", err)
	}
	defer rows.Close()

	var out []CacheEntry
	for rows.Next() {
		var entry CacheEntry
		var sig, sol, met string
		if err := rows.Scan(&entry.CacheKey, &sig, &sol, &met,
			&entry.UsageCount, &entry.EffectivenessScore, &entry.CreatedAt, &entry.LastAccessed); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		if err := json.Unmarshal([]byte(sig), &entry.ProblemSignature); err != nil {
			return nil, fmt.Errorf("decode cache signature %s: %w", entry.CacheKey, err)
		}
		if err := json.Unmarshal([]byte(sol), &entry.OptimalSolution); err != nil {
			return nil, fmt.Errorf("decode cache solution %s: %w", entry.CacheKey, err)
		}
		if err := json.Unmarshal([]byte(met), &entry.PerformanceMetrics); err != nil {
			return nil, fmt.Errorf("decode cache metrics %s: %w", entry.CacheKey, err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}
