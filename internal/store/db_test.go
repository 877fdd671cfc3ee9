package store

import (
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMemory(t *testing.T) {
	db := testDB(t)
	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 5 {
		t.Errorf("SchemaVersion = %d, want 5", v)
	}
}

func TestTablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"schema_versions", "interactions", "patterns", "decision_cascades", "optimization_cache", "error_registry"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestInteractionsConstraints(t *testing.T) {
	db := testDB(t)

	// Valid insert
	_, err := db.Exec(`
		INSERT INTO interactions (id, created_at, context_hash, interaction, intelligence_delta)
		VALUES ('i-1', 1000, 'abc', '{}', 50)
	`)
	if err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	// Delta above the 100 cap
	_, err = db.Exec(`
		INSERT INTO interactions (id, created_at, context_hash, interaction, intelligence_delta)
		VALUES ('i-2', 1000, 'abc', '{}', 101)
	`)
	if err == nil {
		t.Error("expected error for delta above 100, got nil")
	}

	// Negative delta
	_, err = db.Exec(`
		INSERT INTO interactions (id, created_at, context_hash, interaction, intelligence_delta)
		VALUES ('i-3', 1000, 'abc', '{}', -1)
	`)
	if err == nil {
		t.Error("expected error for negative delta, got nil")
	}
}

func TestPatternsConstraints(t *testing.T) {
	db := testDB(t)

	// Valid insert
	_, err := db.Exec(`
		INSERT INTO patterns (id, pattern_type, signature, created_at, last_seen)
		VALUES ('p-1', 'database', '{}', 1000, 1000)
	`)
	if err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	// Accuracy above 1
	_, err = db.Exec(`
		INSERT INTO patterns (id, pattern_type, signature, prediction_accuracy, created_at, last_seen)
		VALUES ('p-2', 'database', '{}', 1.5, 1000, 1000)
	`)
	if err == nil {
		t.Error("expected error for accuracy above 1, got nil")
	}

	// last_seen before created_at
	_, err = db.Exec(`
		INSERT INTO patterns (id, pattern_type, signature, created_at, last_seen)
		VALUES ('p-3', 'database', '{}', 1000, 500)
	`)
	if err == nil {
		t.Error("expected error for last_seen < created_at, got nil")
	}
}

func TestCascadesConstraints(t *testing.T) {
	db := testDB(t)

	// Valid insert
	_, err := db.Exec(`
		INSERT INTO decision_cascades (id, decision, confidence_score, created_at)
		VALUES ('d-1', 'add index', 0.92, 1000)
	`)
	if err != nil {
		t.Fatalf("valid insert failed: %v", err)
	}

	// Confidence out of range
	_, err = db.Exec(`
		INSERT INTO decision_cascades (id, decision, confidence_score, created_at)
		VALUES ('d-2', 'add index', 1.2, 1000)
	`)
	if err == nil {
		t.Error("expected error for confidence above 1, got nil")
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	db := testDB(t)

	// Running migrate again should be a no-op
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != 5 {
		t.Errorf("SchemaVersion after re-migrate = %d, want 5", v)
	}
}

func TestWALMode(t *testing.T) {
	db := testDB(t)

	var mode string
	err := db.QueryRow("PRAGMA journal_mode").Scan(&mode)
	if err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	// In-memory databases may use "memory" mode instead of WAL
	if mode != "wal" && mode != "memory" {
		t.Errorf("journal_mode = %q, want wal or memory", mode)
	}
}
