package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "interactions: append-only interaction memory",
		SQL: `
CREATE TABLE interactions (
    id                  TEXT PRIMARY KEY,
    created_at          INTEGER NOT NULL,
    context_hash        TEXT NOT NULL,
    interaction         TEXT NOT NULL,
    intelligence_delta  REAL NOT NULL DEFAULT 0 CHECK (intelligence_delta BETWEEN 0 AND 100),
    causality_chain     TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX idx_interactions_created ON interactions(created_at DESC);
CREATE INDEX idx_interactions_hash    ON interactions(context_hash);
`,
	},
	{
		Version:     2,
		Description: "patterns: learned structural fingerprints with accuracy stats",
		SQL: `
CREATE TABLE patterns (
    id                    TEXT PRIMARY KEY,
    pattern_type          TEXT NOT NULL,
    signature             TEXT NOT NULL,
    occurrences           INTEGER NOT NULL DEFAULT 1,
    prediction_accuracy   REAL NOT NULL DEFAULT 0.5 CHECK (prediction_accuracy BETWEEN 0 AND 1),
    future_impact_score   REAL NOT NULL DEFAULT 0 CHECK (future_impact_score >= 0),
    learned_optimization  TEXT NOT NULL DEFAULT '',
    created_at            INTEGER NOT NULL,
    last_seen             INTEGER NOT NULL CHECK (last_seen >= created_at)
);

CREATE INDEX idx_patterns_accuracy ON patterns(prediction_accuracy DESC);
CREATE INDEX idx_patterns_type     ON patterns(pattern_type);
`,
	},
	{
		Version:     3,
		Description: "decision_cascades: decision edges keyed by label for cascade chaining",
		SQL: `
CREATE TABLE decision_cascades (
    id                TEXT PRIMARY KEY,
    decision          TEXT NOT NULL,
    immediate_impact  TEXT NOT NULL DEFAULT '{}',
    confidence_score  REAL NOT NULL DEFAULT 0.5 CHECK (confidence_score BETWEEN 0 AND 1),
    validated         INTEGER NOT NULL DEFAULT 0,
    created_at        INTEGER NOT NULL
);

CREATE INDEX idx_cascades_decision ON decision_cascades(decision);
`,
	},
	{
		Version:     4,
		Description: "optimization_cache: digest-keyed optimal solutions",
		SQL: `
CREATE TABLE optimization_cache (
    cache_key            TEXT PRIMARY KEY,
    problem_signature    TEXT NOT NULL,
    optimal_solution     TEXT NOT NULL,
    performance_metrics  TEXT NOT NULL DEFAULT '{}',
    usage_count          INTEGER NOT NULL DEFAULT 0,
    effectiveness_score  REAL NOT NULL DEFAULT 0,
    created_at           INTEGER NOT NULL,
    last_accessed        INTEGER NOT NULL
);
`,
	},
	{
		Version:     5,
		Description: "error_registry: digest-keyed error contexts with known solutions",
		SQL: `
CREATE TABLE error_registry (
    id                       TEXT PRIMARY KEY,
    error_signature          TEXT NOT NULL UNIQUE,
    error_context            TEXT NOT NULL,
    solution                 TEXT,
    resolution_time_seconds  INTEGER,
    occurrence_count         INTEGER NOT NULL DEFAULT 1,
    first_occurred           INTEGER NOT NULL,
    last_occurred            INTEGER NOT NULL
);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}
