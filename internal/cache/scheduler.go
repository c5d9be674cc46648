package cache

import (
	"context"
	"time"

	"github.com/bassista/snapgram/internal/logger"
	"golang.org/x/sync/errgroup"
)

// StartRefreshScheduler runs a goroutine that periodically refetches stale
// entries, at most concurrency at a time. Entries never read with a fetcher,
// and entries with a write in flight, are skipped.
// Returns a channel that is closed when the scheduler has stopped.
func StartRefreshScheduler(ctx context.Context, c *Coordinator, interval time.Duration, concurrency int) <-chan struct{} {
	done := make(chan struct{})
	logger.WithComponent("refresh").Debugf("starting refresh scheduler with interval: %v", interval)
	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				logger.WithComponent("refresh").Info("refresh scheduler stopped")
				return
			case <-ticker.C:
				logger.WithComponent("refresh").Tracef("refresh scheduler tick")
				RefreshStale(ctx, c, concurrency)
			}
		}
	}()
	return done
}

// RefreshStale refetches every refetchable stale entry and returns how many
// refetches succeeded.
func RefreshStale(ctx context.Context, c *Coordinator, concurrency int) int {
	stale := c.staleEntries()
	if len(stale) == 0 {
		return 0
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]bool, len(stale))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, ref := range stale {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			results[i] = c.refetch(gctx, ref.entry, ref.generation) == nil
			return nil
		})
	}
	_ = g.Wait()

	ok := 0
	for _, r := range results {
		if r {
			ok++
		}
	}
	logger.WithComponent("refresh").Debugf("refreshed %d of %d stale entries", ok, len(stale))
	return ok
}
