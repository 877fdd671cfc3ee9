package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wlshlad85/adaptivealpha/internal/engine"
	"github.com/wlshlad85/adaptivealpha/internal/store"
	"github.com/wlshlad85/adaptivealpha/internal/structmap"
)

func (s *Server) handleRecordInteraction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Interaction    map[string]any `json:"interaction" validate:"required,min=1"`
		PriorDelta     float64        `json:"prior_delta" validate:"gte=0"`
		CausalityChain []string       `json:"causality_chain"`
	}
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.engine.RecordInteraction(r.Context(), structmap.Map(req.Interaction), req.PriorDelta, req.CausalityChain)
	if err != nil {
		if errors.Is(err, engine.ErrEmptyInteraction) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":                 rec.ID,
		"timestamp":          rec.CreatedAt,
		"context_hash":       rec.ContextHash,
		"intelligence_delta": rec.IntelligenceDelta,
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	offset := queryInt(r, "offset", 0)
	contextHash := r.URL.Query().Get("context_hash")

	recs, err := s.db.ListInteractions(r.Context(), contextHash, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		items = append(items, map[string]any{
			"id":                 rec.ID,
			"timestamp":          rec.CreatedAt,
			"context_hash":       rec.ContextHash,
			"interaction":        rec.Interaction,
			"intelligence_delta": rec.IntelligenceDelta,
			"causality_chain":    rec.CausalityChain,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": items, "count": len(items)})
}

func (s *Server) handleIntelligenceMetrics(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 24)
	since := time.Now().Add(-time.Duration(hours) * time.Hour).UnixMilli()

	m, err := s.db.GetIntelligenceMetrics(r.Context(), since)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"window_hours": hours, "metrics": m})
}

func (s *Server) handleCacheAnalytics(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)

	entries, err := s.db.RankedCacheEntries(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		items = append(items, map[string]any{
			"cache_key":           e.CacheKey,
			"problem_signature":   e.ProblemSignature,
			"usage_count":         e.UsageCount,
			"effectiveness_score": e.EffectivenessScore,
			"last_accessed":       e.LastAccessed,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": items, "count": len(items)})
}

func (s *Server) handleMatchPatterns(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Context   map[string]any `json:"context" validate:"required,min=1"`
		Threshold *float64       `json:"similarity_threshold" validate:"omitempty,gte=0,lte=1"`
		Limit     int            `json:"limit" validate:"gte=0,lte=50"`
	}
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	threshold := s.cfg.Engine.SimilarityThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	limit := req.Limit
	if limit == 0 {
		limit = s.cfg.Engine.MatchLimit
	}

	matches, err := s.engine.MatchPatterns(r.Context(), structmap.Map(req.Context), threshold, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		items = append(items, map[string]any{
			"pattern_id":           m.Pattern.ID,
			"pattern_type":         m.Pattern.PatternType,
			"signature":            m.Pattern.Signature,
			"similarity_score":     m.Similarity,
			"occurrences":          m.Pattern.Occurrences,
			"prediction_accuracy":  m.Pattern.PredictionAccuracy,
			"future_impact_score":  m.Pattern.FutureImpactScore,
			"learned_optimization": m.Pattern.LearnedOptimization,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"patterns": items, "count": len(items)})
}

func (s *Server) handleTopPatterns(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	minAccuracy := queryFloat(r, "min_accuracy", 0.5)

	patterns, err := s.db.TopPatterns(r.Context(), minAccuracy, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]map[string]any, 0, len(patterns))
	for _, p := range patterns {
		items = append(items, map[string]any{
			"pattern_id":           p.ID,
			"pattern_type":         p.PatternType,
			"signature":            p.Signature,
			"occurrences":          p.Occurrences,
			"prediction_accuracy":  p.PredictionAccuracy,
			"future_impact_score":  p.FutureImpactScore,
			"learned_optimization": p.LearnedOptimization,
			"last_seen":            p.LastSeen,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"patterns": items, "count": len(items)})
}

func (s *Server) handleSeedPattern(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID                  string         `json:"id"`
		PatternType         string         `json:"pattern_type" validate:"required"`
		Signature           map[string]any `json:"signature" validate:"required,min=1"`
		PredictionAccuracy  float64        `json:"prediction_accuracy" validate:"gte=0,lte=1"`
		LearnedOptimization string         `json:"learned_optimization"`
	}
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := &store.Pattern{
		ID:                  req.ID,
		PatternType:         req.PatternType,
		Signature:           structmap.Map(req.Signature),
		PredictionAccuracy:  req.PredictionAccuracy,
		LearnedOptimization: req.LearnedOptimization,
	}
	if err := s.db.UpsertPattern(r.Context(), p); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"pattern_id": p.ID})
}

func (s *Server) handleStoreDecision(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Decision        string         `json:"decision" validate:"required,min=1"`
		ImmediateImpact map[string]any `json:"immediate_impact"`
		ConfidenceScore float64        `json:"confidence_score" validate:"gte=0,lte=1"`
		Validated       bool           `json:"validated"`
	}
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d := &store.DecisionCascade{
		Decision:        req.Decision,
		ImmediateImpact: structmap.Map(req.ImmediateImpact),
		ConfidenceScore: req.ConfidenceScore,
		Validated:       req.Validated,
	}
	if err := s.db.InsertDecision(r.Context(), d); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"decision_id": d.ID})
}

func (s *Server) handlePredictCascade(w http.ResponseWriter, r *http.Request) {
	decision := chi.URLParam(r, "decision")
	depth := queryInt(r, "depth", s.cfg.Engine.CascadeDepth)

	steps, err := s.engine.PredictCascade(r.Context(), decision, depth)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if steps == nil {
		steps = []engine.CascadeStep{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"decision": decision,
		"cascades": steps,
		"depth":    len(steps),
	})
}

func (s *Server) handleCacheLookup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Signature     map[string]any `json:"signature" validate:"required,min=1"`
		ObservedScore float64        `json:"observed_score" validate:"gte=0,lte=1"`
	}
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entry, err := s.engine.CachedSolution(r.Context(), structmap.Map(req.Signature), req.ObservedScore)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"found":               true,
		"cache_key":           entry.CacheKey,
		"optimal_solution":    entry.OptimalSolution,
		"performance_metrics": entry.PerformanceMetrics,
		"usage_count":         entry.UsageCount,
		"effectiveness_score": entry.EffectivenessScore,
	})
}

func (s *Server) handleCachePut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Signature map[string]any `json:"signature" validate:"required,min=1"`
		Solution  map[string]any `json:"solution" validate:"required,min=1"`
		Metrics   map[string]any `json:"metrics"`
	}
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := s.engine.CacheSolution(r.Context(), structmap.Map(req.Signature),
		structmap.Map(req.Solution), structmap.Map(req.Metrics))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"cache_key": key})
}

func (s *Server) handleLogError(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Context           map[string]any `json:"context" validate:"required,min=1"`
		Solution          map[string]any `json:"solution"`
		ResolutionSeconds *int64         `json:"resolution_seconds"`
	}
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.db.LogError(r.Context(), structmap.Map(req.Context), structmap.Map(req.Solution), req.ResolutionSeconds)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"error_id":         rec.ID,
		"error_signature":  rec.ErrorSignature,
		"occurrence_count": rec.OccurrenceCount,
	})
}

func (s *Server) handleErrorSolution(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Context map[string]any `json:"context" validate:"required,min=1"`
	}
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := s.db.GetErrorSolution(r.Context(), structmap.Map(req.Context))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, map[string]any{"found": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"found":            true,
		"solution":         rec.Solution,
		"occurrence_count": rec.OccurrenceCount,
		"resolution_time":  rec.ResolutionTimeSecs,
	})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Days int `json:"days" validate:"required,gt=0"`
	}
	if err := decodeValid(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	n, err := s.engine.PurgeOlderThan(r.Context(), req.Days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"purged": n, "days": req.Days})
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
