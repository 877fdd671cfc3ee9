package engine

import (
	"context"
	"errors"

	"github.com/wlshlad85/adaptivealpha/internal/store"
	"github.com/wlshlad85/adaptivealpha/internal/structmap"
)

// ErrEmptySignature rejects cache operations with no problem signature.
var ErrEmptySignature = errors.New("problem signature must not be empty")

// CacheSolution stores an optimal solution keyed by the deterministic
// digest of the problem signature, overwriting any previous entry for
// the same signature. Returns the cache key.
func (e *Engine) CacheSolution(ctx context.Context, signature, solution, metrics structmap.Map) (string, error) {
	if len(signature) == 0 {
		return "", ErrEmptySignature
	}
	if len(solution) == 0 {
		return "", errors.New("solution must not be empty")
	}

	key, err := signature.Hash()
	if err != nil {
		return "", err
	}

	// Fresh entries start at the 0.5 uninformative prior, like pattern
	// accuracy. Overwrites keep the accumulated score.
	entry := &store.CacheEntry{
		CacheKey:           key,
		ProblemSignature:   signature,
		OptimalSolution:    solution,
		PerformanceMetrics: metrics,
		EffectivenessScore: 0.5,
	}
	if err := e.DB.PutCachedSolution(ctx, entry); err != nil {
		return "", err
	}
	return key, nil
}

// CachedSolution returns the cached entry whose problem signature equals
// the lookup signature exactly, by digest equality rather than similarity. A hit
// increments the usage count and folds the caller's observed outcome into
// the effectiveness score; a miss returns nil.
func (e *Engine) CachedSolution(ctx context.Context, signature structmap.Map, observed float64) (*store.CacheEntry, error) {
	if len(signature) == 0 {
		return nil, ErrEmptySignature
	}

	key, err := signature.Hash()
	if err != nil {
		return nil, err
	}
	return e.DB.TouchCachedSolution(ctx, key, observed)
}
