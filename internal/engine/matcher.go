package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/wlshlad85/adaptivealpha/internal/store"
	"github.com/wlshlad85/adaptivealpha/internal/structmap"
)

// PatternMatch pairs a pattern with its similarity to the queried context.
type PatternMatch struct {
	Pattern    store.Pattern
	Similarity float64
}

// MatchPatterns returns the top patterns whose signature key set is at
// least threshold-similar to the input context, ranked by similarity then
// prediction accuracy, both descending. Patterns at or below the 0.3
// accuracy floor are never candidates. Similarity is Jaccard over key
// sets only; value content is ignored. Pure query, no side effects.
func (e *Engine) MatchPatterns(ctx context.Context, input structmap.Map, threshold float64, limit int) ([]PatternMatch, error) {
	if threshold < 0 {
		threshold = DefaultSimilarityThreshold
	}
	if threshold > 1 {
		return nil, fmt.Errorf("similarity threshold %f out of range [0,1]", threshold)
	}
	if limit <= 0 {
		limit = DefaultMatchLimit
	}

	patterns, err := store.ListPatterns(ctx, e.DB, accuracyFloor)
	if err != nil {
		return nil, err
	}

	matches := make([]PatternMatch, 0, len(patterns))
	for _, p := range patterns {
		sim, ok := p.Signature.Jaccard(input)
		if !ok {
			// Empty key-set union: similarity undefined, candidate excluded.
			continue
		}
		if sim < threshold {
			continue
		}
		matches = append(matches, PatternMatch{Pattern: p, Similarity: sim})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Pattern.PredictionAccuracy > matches[j].Pattern.PredictionAccuracy
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}
