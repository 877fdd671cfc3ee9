package client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/wlshlad85/adaptivealpha/internal/config"
	"github.com/wlshlad85/adaptivealpha/internal/engine"
	"github.com/wlshlad85/adaptivealpha/internal/server"
	"github.com/wlshlad85/adaptivealpha/internal/store"
)

func testClient(t *testing.T) (*Client, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	eng := engine.New(db, nil)
	srv := httptest.NewServer(server.New(db, eng, config.Default(), nil, "test"))
	t.Cleanup(srv.Close)
	return New(srv.URL), db
}

func TestHealthy(t *testing.T) {
	c, _ := testClient(t)
	if !c.Healthy() {
		t.Error("Healthy() = false against a live server")
	}

	dead := New("http://127.0.0.1:1")
	if dead.Healthy() {
		t.Error("Healthy() = true against nothing")
	}
}

func TestRecordAndMatch(t *testing.T) {
	c, db := testClient(t)

	err := db.UpsertPattern(context.Background(), &store.Pattern{
		PatternType:        "workflow",
		Signature:          map[string]any{"task": "deploy", "env": "prod"},
		PredictionAccuracy: 0.8,
	})
	if err != nil {
		t.Fatalf("UpsertPattern: %v", err)
	}

	res, err := c.RecordInteraction(map[string]any{"task": "deploy", "env": "prod"}, 0, nil)
	if err != nil {
		t.Fatalf("RecordInteraction: %v", err)
	}
	if res.ID == "" || res.ContextHash == "" {
		t.Errorf("incomplete result: %+v", res)
	}
	if res.IntelligenceDelta != 0.2 {
		t.Errorf("delta = %v, want 0.2 for one exact match", res.IntelligenceDelta)
	}

	matches, err := c.MatchPatterns(map[string]any{"task": "x", "env": "y"}, 0.5, 0)
	if err != nil {
		t.Fatalf("MatchPatterns: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	if matches[0].SimilarityScore != 1.0 {
		t.Errorf("similarity = %v, want 1", matches[0].SimilarityScore)
	}
}

func TestRecordEmptyRejected(t *testing.T) {
	c, _ := testClient(t)
	if _, err := c.RecordInteraction(map[string]any{}, 0, nil); err == nil {
		t.Error("expected error for empty interaction")
	}
}

func TestPredictCascadeClient(t *testing.T) {
	c, db := testClient(t)

	decisions := []store.DecisionCascade{
		{Decision: "ship feature", ImmediateImpact: map[string]any{"nextAction": "monitor"}, ConfidenceScore: 0.9},
		{Decision: "monitor", ImmediateImpact: map[string]any{"alerts": "on"}, ConfidenceScore: 0.5},
	}
	for i := range decisions {
		if err := db.InsertDecision(context.Background(), &decisions[i]); err != nil {
			t.Fatalf("InsertDecision: %v", err)
		}
	}

	steps, err := c.PredictCascade("ship feature", 0)
	if err != nil {
		t.Fatalf("PredictCascade: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(steps))
	}
	if got := steps[1].CumulativeConfidence; got < 0.449 || got > 0.451 {
		t.Errorf("cumulative = %v, want 0.45", got)
	}

	steps, err = c.PredictCascade("never stored", 0)
	if err != nil {
		t.Fatalf("PredictCascade unknown: %v", err)
	}
	if len(steps) != 0 {
		t.Errorf("steps = %d, want 0 for unknown decision", len(steps))
	}
}
