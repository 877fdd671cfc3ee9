package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wlshlad85/adaptivealpha/internal/store"
)

// Tunables for pattern matching, accumulation, and cascade prediction.
// The accumulation weights are inherited constants, kept as-is rather
// than re-derived.
const (
	DefaultSimilarityThreshold = 0.7
	DefaultCascadeDepth        = 5
	DefaultMatchLimit          = 10

	accuracyFloor = 0.3
	pruneFloor    = 0.1
	exactWeight   = 0.15
	fuzzyWeight   = 0.05
	maxDelta      = 100.0

	defaultSweepInterval = 24 * time.Hour
)

// Engine is the intelligence-accumulation and pattern-cascade engine.
// It holds no mutable state between calls: every operation reads current
// store state and writes results back, so concurrency safety rests on the
// store's per-record atomicity.
type Engine struct {
	DB     *store.DB
	Log    *zap.Logger
	stopCh chan struct{}
}

// New creates a new Engine.
func New(db *store.DB, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		DB:     db,
		Log:    log,
		stopCh: make(chan struct{}),
	}
}

// StartRetentionTimer runs the retention sweep on startup and then on the
// given interval, purging interactions older than retentionDays. A zero
// or negative retentionDays disables the sweep.
func (e *Engine) StartRetentionTimer(retentionDays int, interval time.Duration) {
	if retentionDays <= 0 {
		return
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	sweep := func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if n, err := e.PurgeOlderThan(ctx, retentionDays); err != nil {
			e.Log.Warn("retention sweep failed", zap.Error(err))
		} else if n > 0 {
			e.Log.Info("retention sweep", zap.Int64("purged", n), zap.Int("days", retentionDays))
		}
	}

	// Run once at startup
	sweep()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				sweep()
			case <-e.stopCh:
				return
			}
		}
	}()
}

// Stop shuts down the engine's background goroutines.
func (e *Engine) Stop() {
	close(e.stopCh)
}
