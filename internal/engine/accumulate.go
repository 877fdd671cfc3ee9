package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wlshlad85/adaptivealpha/internal/store"
	"github.com/wlshlad85/adaptivealpha/internal/structmap"
)

// ErrEmptyInteraction rejects interactions with no structural content.
var ErrEmptyInteraction = errors.New("interaction must not be empty")

// RecordInteraction stores a new interaction and accumulates intelligence
// from it, synchronously, before the record is visible to readers:
//
//  1. hash the interaction's canonical serialization
//  2. count exact matches (pattern signature is a structural subset)
//  3. count fuzzy matches (pattern shares at least one key)
//  4. delta = 0.15*exact + 0.05*fuzzy + priorDelta, capped at 100
//  5. bump statistics on every exactly-matched pattern
//  6. persist the record
//
// Steps 2–6 run in one transaction so concurrent interactions matching
// the same pattern cannot lose updates. The computed delta is a
// point-in-time snapshot: later pattern changes never revise it. If the
// transaction aborts the whole call fails and may be retried; the same
// interaction recomputes the same delta against an unchanged pattern set.
func (e *Engine) RecordInteraction(ctx context.Context, interaction structmap.Map, priorDelta float64, causalityChain []string) (*store.Interaction, error) {
	if len(interaction) == 0 {
		return nil, ErrEmptyInteraction
	}
	if priorDelta < 0 {
		return nil, fmt.Errorf("prior delta %f must be non-negative", priorDelta)
	}

	contextHash, err := interaction.Hash()
	if err != nil {
		return nil, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin accumulation: %w", err)
	}
	defer tx.Rollback()

	patterns, err := store.ListPatterns(ctx, tx, 0)
	if err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	var exact, fuzzy int
	for _, p := range patterns {
		// Exact and fuzzy are counted independently: a pattern whose
		// signature is contained in the interaction also shares its keys,
		// so it contributes to both counts.
		if p.Signature.Subset(interaction) {
			exact++
			if err := store.BumpPatternStats(ctx, tx, p.ID, now); err != nil {
				return nil, err
			}
		}
		if p.Signature.SharesKey(interaction) {
			fuzzy++
		}
	}

	delta := float64(exact)*exactWeight + float64(fuzzy)*fuzzyWeight + priorDelta
	if delta > maxDelta {
		delta = maxDelta
	}

	rec := &store.Interaction{
		ID:                uuid.NewString(),
		CreatedAt:         now,
		ContextHash:       contextHash,
		Interaction:       interaction,
		IntelligenceDelta: delta,
		CausalityChain:    causalityChain,
	}
	if err := store.InsertInteraction(ctx, tx, rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit accumulation: %w", err)
	}

	e.Log.Debug("interaction recorded",
		zap.String("id", rec.ID),
		zap.Float64("delta", delta),
		zap.Int("exact_matches", exact),
		zap.Int("fuzzy_matches", fuzzy),
	)
	return rec, nil
}
