// Package client is a small HTTP client for the adaptivealpha API, used by
// the CLI commands that talk to a running server instead of opening the
// database directly.
package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"
)

const (
	defaultServerURL = "http://127.0.0.1:38311"
	httpTimeout      = 5 * time.Second
)

// Client talks to the adaptivealpha server.
type Client struct {
	http      *http.Client
	serverURL string
}

// New creates a client for the given base URL. An empty URL falls back to
// the ADAPTIVEALPHA_URL env var, then to http://127.0.0.1:38311.
func New(serverURL string) *Client {
	if serverURL == "" {
		serverURL = os.Getenv("ADAPTIVEALPHA_URL")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	return &Client{
		http:      &http.Client{Timeout: httpTimeout},
		serverURL: serverURL,
	}
}

// Post sends a POST request with a JSON body. Returns the response body.
func (c *Client) Post(path string, body []byte) ([]byte, error) {
	resp, err := c.http.Post(c.serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, data)
	}
	return data, nil
}

// Get sends a GET request. Returns the response body.
func (c *Client) Get(path string) ([]byte, error) {
	resp, err := c.http.Get(c.serverURL + path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, data)
	}
	return data, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy() bool {
	resp, err := c.http.Get(c.serverURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// InteractionResult is the server's response to a recorded interaction.
type InteractionResult struct {
	ID                string  `json:"id"`
	Timestamp         int64   `json:"timestamp"`
	ContextHash       string  `json:"context_hash"`
	IntelligenceDelta float64 `json:"intelligence_delta"`
}

// RecordInteraction posts an interaction for accumulation.
func (c *Client) RecordInteraction(interaction map[string]any, priorDelta float64, causalityChain []string) (*InteractionResult, error) {
	body, err := json.Marshal(map[string]any{
		"interaction":     interaction,
		"prior_delta":     priorDelta,
		"causality_chain": causalityChain,
	})
	if err != nil {
		return nil, err
	}
	data, err := c.Post("/api/interactions", body)
	if err != nil {
		return nil, err
	}
	var res InteractionResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode interaction result: %w", err)
	}
	return &res, nil
}

// PatternMatch is one ranked hit from a pattern search.
type PatternMatch struct {
	PatternID           string         `json:"pattern_id"`
	PatternType         string         `json:"pattern_type"`
	Signature           map[string]any `json:"signature"`
	SimilarityScore     float64        `json:"similarity_score"`
	Occurrences         int            `json:"occurrences"`
	PredictionAccuracy  float64        `json:"prediction_accuracy"`
	FutureImpactScore   float64        `json:"future_impact_score"`
	LearnedOptimization string         `json:"learned_optimization"`
}

// MatchPatterns searches stored patterns for structural similarity to the
// given context. A negative threshold uses the server default.
func (c *Client) MatchPatterns(contextMap map[string]any, threshold float64, limit int) ([]PatternMatch, error) {
	req := map[string]any{"context": contextMap}
	if threshold >= 0 {
		req["similarity_threshold"] = threshold
	}
	if limit > 0 {
		req["limit"] = limit
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	data, err := c.Post("/api/patterns/search", body)
	if err != nil {
		return nil, err
	}
	var res struct {
		Patterns []PatternMatch `json:"patterns"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode pattern matches: %w", err)
	}
	return res.Patterns, nil
}

// CascadeStep is one level of a predicted decision cascade.
type CascadeStep struct {
	Level                int            `json:"level"`
	Decision             string         `json:"decision"`
	Effect               map[string]any `json:"effect"`
	Probability          float64        `json:"probability"`
	CumulativeConfidence float64        `json:"cumulative_confidence"`
}

// PredictCascade fetches the predicted consequence chain for a decision.
// Depth 0 uses the server default.
func (c *Client) PredictCascade(decision string, depth int) ([]CascadeStep, error) {
	path := "/api/decisions/cascades/" + url.PathEscape(decision)
	if depth > 0 {
		path += "?depth=" + strconv.Itoa(depth)
	}
	data, err := c.Get(path)
	if err != nil {
		return nil, err
	}
	var res struct {
		Cascades []CascadeStep `json:"cascades"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("decode cascade: %w", err)
	}
	return res.Cascades, nil
}
