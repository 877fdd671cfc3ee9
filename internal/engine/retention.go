package engine

import (
	"context"
	"fmt"
	"time"
)

// PurgeOlderThan deletes interaction records strictly older than now minus
// the given number of days and returns the count removed. This is the only
// deletion path in the system. The delete is by cutoff timestamp, so a
// retried purge after a partial failure removes only what remains.
func (e *Engine) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, fmt.Errorf("retention days %d must be positive", days)
	}
	cutoff := time.Now().AddDate(0, 0, -days).UnixMilli()
	return e.DB.PurgeInteractionsBefore(ctx, cutoff)
}
