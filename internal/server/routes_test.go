package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func doJSON(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestRecordInteraction(t *testing.T) {
	srv := testServer(t)

	body := `{"interaction":{"user_query":"how to deploy","decision":"use_docker"},"prior_delta":0}`
	w := doJSON(t, srv, "POST", "/api/interactions", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["id"] == "" || resp["id"] == nil {
		t.Errorf("expected generated id, got %v", resp["id"])
	}
	if resp["context_hash"] == "" || resp["context_hash"] == nil {
		t.Errorf("expected context hash, got %v", resp["context_hash"])
	}
	if resp["intelligence_delta"] != 0.0 {
		t.Errorf("intelligence_delta = %v, want 0 with no patterns stored", resp["intelligence_delta"])
	}
}

func TestRecordInteractionEmptyRejected(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/interactions", `{"interaction":{}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty interaction: status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = doJSON(t, srv, "POST", "/api/interactions", `{"prior_delta":1}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing interaction: status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = doJSON(t, srv, "POST", "/api/interactions", `not json`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad json: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHistoryFilterAndOrder(t *testing.T) {
	srv := testServer(t)

	for _, q := range []string{"alpha", "beta", "alpha"} {
		body := `{"interaction":{"user_query":"` + q + `"}}`
		w := doJSON(t, srv, "POST", "/api/interactions", body)
		if w.Code != http.StatusCreated {
			t.Fatalf("seed interaction: status = %d; body: %s", w.Code, w.Body.String())
		}
	}

	w := doJSON(t, srv, "GET", "/api/memory/history?limit=50", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		History []map[string]any `json:"history"`
		Count   int              `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 3 {
		t.Fatalf("count = %d, want 3", resp.Count)
	}

	// Same interaction body hashes to the same context.
	hash := resp.History[0]["context_hash"].(string)
	w = doJSON(t, srv, "GET", "/api/memory/history?context_hash="+hash, "")
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 2 {
		t.Errorf("filtered count = %d, want 2", resp.Count)
	}
}

func TestIntelligenceMetrics(t *testing.T) {
	srv := testServer(t)

	seed := `{"pattern_type":"workflow","signature":{"user_query":"x","decision":"y"},"prediction_accuracy":0.9}`
	if w := doJSON(t, srv, "POST", "/api/patterns", seed); w.Code != http.StatusCreated {
		t.Fatalf("seed pattern: status = %d; body: %s", w.Code, w.Body.String())
	}

	body := `{"interaction":{"user_query":"x","decision":"y","extra":1}}`
	if w := doJSON(t, srv, "POST", "/api/interactions", body); w.Code != http.StatusCreated {
		t.Fatalf("interaction: status = %d; body: %s", w.Code, w.Body.String())
	}

	w := doJSON(t, srv, "GET", "/api/analytics/intelligence?hours=1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		WindowHours int `json:"window_hours"`
		Metrics     struct {
			TotalInteractions int     `json:"total_interactions"`
			TotalDelta        float64 `json:"total_intelligence_accumulated"`
		} `json:"metrics"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.WindowHours != 1 {
		t.Errorf("window_hours = %d, want 1", resp.WindowHours)
	}
	if resp.Metrics.TotalInteractions != 1 {
		t.Errorf("total_interactions = %d, want 1", resp.Metrics.TotalInteractions)
	}
	// One exact match also shares keys, so it earns both weights.
	if resp.Metrics.TotalDelta != 0.2 {
		t.Errorf("total delta = %v, want 0.2", resp.Metrics.TotalDelta)
	}
}

func TestMatchPatternsEndpoint(t *testing.T) {
	srv := testServer(t)

	seed := `{"pattern_type":"workflow","signature":{"a":1,"b":2,"c":3},"prediction_accuracy":0.8}`
	if w := doJSON(t, srv, "POST", "/api/patterns", seed); w.Code != http.StatusCreated {
		t.Fatalf("seed pattern: status = %d; body: %s", w.Code, w.Body.String())
	}

	body := `{"context":{"a":9,"b":9,"c":9},"similarity_threshold":0.5}`
	w := doJSON(t, srv, "POST", "/api/patterns/search", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Patterns []map[string]any `json:"patterns"`
		Count    int              `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 1 {
		t.Fatalf("count = %d, want 1; body: %s", resp.Count, w.Body.String())
	}
	if resp.Patterns[0]["similarity_score"] != 1.0 {
		t.Errorf("similarity_score = %v, want 1", resp.Patterns[0]["similarity_score"])
	}

	// Disjoint key set stays below any positive threshold.
	w = doJSON(t, srv, "POST", "/api/patterns/search", `{"context":{"z":1}}`)
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 0 {
		t.Errorf("disjoint count = %d, want 0", resp.Count)
	}
}

func TestMatchPatternsBadThreshold(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/patterns/search", `{"context":{"a":1},"similarity_threshold":1.5}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestTopPatterns(t *testing.T) {
	srv := testServer(t)

	seeds := []string{
		`{"pattern_type":"workflow","signature":{"a":1},"prediction_accuracy":0.9}`,
		`{"pattern_type":"workflow","signature":{"b":1},"prediction_accuracy":0.6}`,
		`{"pattern_type":"workflow","signature":{"c":1},"prediction_accuracy":0.3}`,
	}
	for _, s := range seeds {
		if w := doJSON(t, srv, "POST", "/api/patterns", s); w.Code != http.StatusCreated {
			t.Fatalf("seed: status = %d; body: %s", w.Code, w.Body.String())
		}
	}

	w := doJSON(t, srv, "GET", "/api/patterns/top?min_accuracy=0.5&limit=10", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Patterns []map[string]any `json:"patterns"`
		Count    int              `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	if resp.Patterns[0]["prediction_accuracy"] != 0.9 {
		t.Errorf("top accuracy = %v, want 0.9", resp.Patterns[0]["prediction_accuracy"])
	}
}

func TestSeedPatternRejectsEmptySignature(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/patterns", `{"pattern_type":"workflow","signature":{}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestCascadePrediction(t *testing.T) {
	srv := testServer(t)

	decisions := []string{
		`{"decision":"adopt_caching","immediate_impact":{"latency":"down","nextAction":"tune_ttl"},"confidence_score":0.9}`,
		`{"decision":"tune_ttl","immediate_impact":{"hit_rate":"up"},"confidence_score":0.8}`,
	}
	for _, d := range decisions {
		if w := doJSON(t, srv, "POST", "/api/decisions", d); w.Code != http.StatusCreated {
			t.Fatalf("seed decision: status = %d; body: %s", w.Code, w.Body.String())
		}
	}

	w := doJSON(t, srv, "GET", "/api/decisions/cascades/adopt_caching", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Cascades []struct {
			Level                int     `json:"level"`
			Decision             string  `json:"decision"`
			CumulativeConfidence float64 `json:"cumulative_confidence"`
		} `json:"cascades"`
		Depth int `json:"depth"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Depth != 2 {
		t.Fatalf("depth = %d, want 2; body: %s", resp.Depth, w.Body.String())
	}
	if resp.Cascades[1].Decision != "tune_ttl" {
		t.Errorf("level 2 decision = %q, want tune_ttl", resp.Cascades[1].Decision)
	}
	if got := resp.Cascades[1].CumulativeConfidence; got < 0.719 || got > 0.721 {
		t.Errorf("cumulative confidence = %v, want 0.72", got)
	}
}

func TestCascadeUnknownDecision(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "GET", "/api/decisions/cascades/never_stored", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Cascades []any `json:"cascades"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Cascades) != 0 {
		t.Errorf("cascades = %v, want empty", resp.Cascades)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	srv := testServer(t)

	put := `{"signature":{"problem":"slow_query"},"solution":{"fix":"add_index"},"metrics":{"speedup":12}}`
	w := doJSON(t, srv, "POST", "/api/cache", put)
	if w.Code != http.StatusCreated {
		t.Fatalf("put: status = %d; body: %s", w.Code, w.Body.String())
	}
	var putResp map[string]string
	json.Unmarshal(w.Body.Bytes(), &putResp)
	if putResp["cache_key"] == "" {
		t.Fatal("expected cache_key in response")
	}

	lookup := `{"signature":{"problem":"slow_query"},"observed_score":1}`
	w = doJSON(t, srv, "POST", "/api/cache/lookup", lookup)
	if w.Code != http.StatusOK {
		t.Fatalf("lookup: status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["found"] != true {
		t.Fatalf("found = %v, want true", resp["found"])
	}
	if resp["cache_key"] != putResp["cache_key"] {
		t.Errorf("cache_key = %v, want %v", resp["cache_key"], putResp["cache_key"])
	}
	if resp["usage_count"] != 1.0 {
		t.Errorf("usage_count = %v, want 1", resp["usage_count"])
	}
}

func TestCacheLookupMiss(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/cache/lookup", `{"signature":{"problem":"unseen"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["found"] != false {
		t.Errorf("found = %v, want false", resp["found"])
	}
}

func TestCacheAnalytics(t *testing.T) {
	srv := testServer(t)

	puts := []string{
		`{"signature":{"problem":"a"},"solution":{"fix":"x"}}`,
		`{"signature":{"problem":"b"},"solution":{"fix":"y"}}`,
	}
	for _, p := range puts {
		if w := doJSON(t, srv, "POST", "/api/cache", p); w.Code != http.StatusCreated {
			t.Fatalf("put: status = %d; body: %s", w.Code, w.Body.String())
		}
	}
	// A strong observed outcome ranks entry b above a.
	if w := doJSON(t, srv, "POST", "/api/cache/lookup", `{"signature":{"problem":"b"},"observed_score":1}`); w.Code != http.StatusOK {
		t.Fatalf("lookup: status = %d", w.Code)
	}

	w := doJSON(t, srv, "GET", "/api/analytics/cache", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Entries []map[string]any `json:"entries"`
		Count   int              `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Count != 2 {
		t.Fatalf("count = %d, want 2", resp.Count)
	}
	if resp.Entries[0]["effectiveness_score"] != 1.0 {
		t.Errorf("top effectiveness = %v, want 1", resp.Entries[0]["effectiveness_score"])
	}
	if resp.Entries[1]["effectiveness_score"] != 0.5 {
		t.Errorf("untouched effectiveness = %v, want the 0.5 prior", resp.Entries[1]["effectiveness_score"])
	}
}

func TestErrorRegistryRoutes(t *testing.T) {
	srv := testServer(t)

	logBody := `{"context":{"error_type":"timeout","component":"db"},"solution":{"fix":"raise_deadline"}}`
	w := doJSON(t, srv, "POST", "/api/errors", logBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("log: status = %d; body: %s", w.Code, w.Body.String())
	}

	// Repeat occurrence bumps the count on the same row.
	w = doJSON(t, srv, "POST", "/api/errors", `{"context":{"error_type":"timeout","component":"db"}}`)
	var logResp map[string]any
	json.Unmarshal(w.Body.Bytes(), &logResp)
	if logResp["occurrence_count"] != 2.0 {
		t.Errorf("occurrence_count = %v, want 2", logResp["occurrence_count"])
	}

	w = doJSON(t, srv, "POST", "/api/errors/solution", `{"context":{"error_type":"timeout","component":"db"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("solution: status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["found"] != true {
		t.Fatalf("found = %v, want true", resp["found"])
	}
	sol, _ := resp["solution"].(map[string]any)
	if sol["fix"] != "raise_deadline" {
		t.Errorf("solution = %v, want fix=raise_deadline", resp["solution"])
	}
}

func TestErrorSolutionUnknown(t *testing.T) {
	srv := testServer(t)

	w := doJSON(t, srv, "POST", "/api/errors/solution", `{"context":{"error_type":"never_seen"}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["found"] != false {
		t.Errorf("found = %v, want false", resp["found"])
	}
}

func TestPurgeRoute(t *testing.T) {
	srv := testServer(t)

	if w := doJSON(t, srv, "POST", "/api/interactions", `{"interaction":{"q":"recent"}}`); w.Code != http.StatusCreated {
		t.Fatalf("seed: status = %d", w.Code)
	}

	w := doJSON(t, srv, "POST", "/api/retention/purge", `{"days":30}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["purged"] != 0.0 {
		t.Errorf("purged = %v, want 0 (record is recent)", resp["purged"])
	}

	w = doJSON(t, srv, "POST", "/api/retention/purge", `{"days":0}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("days=0: status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
