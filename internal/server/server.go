package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/wlshlad85/adaptivealpha/internal/config"
	"github.com/wlshlad85/adaptivealpha/internal/engine"
	"github.com/wlshlad85/adaptivealpha/internal/store"
)

// validate checks request payloads against their struct tags.
var validate = validator.New()

// Server is the adaptivealpha HTTP API server.
type Server struct {
	db      *store.DB
	engine  *engine.Engine
	cfg     config.Config
	log     *zap.Logger
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server.
func New(db *store.DB, eng *engine.Engine, cfg config.Config, log *zap.Logger, version string) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		db:      db,
		engine:  eng,
		cfg:     cfg,
		log:     log,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/interactions", s.handleRecordInteraction)
		r.Get("/memory/history", s.handleHistory)
		r.Get("/analytics/intelligence", s.handleIntelligenceMetrics)
		r.Get("/analytics/cache", s.handleCacheAnalytics)

		r.Post("/patterns/search", s.handleMatchPatterns)
		r.Get("/patterns/top", s.handleTopPatterns)
		r.Post("/patterns", s.handleSeedPattern)

		r.Post("/decisions", s.handleStoreDecision)
		r.Get("/decisions/cascades/{decision}", s.handlePredictCascade)

		r.Post("/cache/lookup", s.handleCacheLookup)
		r.Post("/cache", s.handleCachePut)

		r.Post("/errors", s.handleLogError)
		r.Post("/errors/solution", s.handleErrorSolution)

		r.Post("/retention/purge", s.handlePurge)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeValid decodes a JSON body into req and validates its struct tags.
func decodeValid(r *http.Request, req any) error {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		return err
	}
	return validate.Struct(req)
}
