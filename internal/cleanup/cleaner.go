package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/Chandra-cc/personalized-learning/internal/metrics"
	"github.com/Chandra-cc/personalized-learning/internal/storage"
)

// Pruner removes progress records that no longer fit the owner's path
type Pruner interface {
	DeleteStaleProgress(ctx context.Context) ([]storage.StaleProgress, error)
}

// Cleaner handles periodic pruning of stale progress records. Records go
// stale when a regenerated path is shorter than the one they were written
// against.
type Cleaner struct {
	pruner   Pruner
	interval time.Duration
}

// NewCleaner creates a new cleanup worker
func NewCleaner(pruner Pruner, interval time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	return &Cleaner{
		pruner:   pruner,
		interval: interval,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.cleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.cleanup(ctx)
		}
	}
}

// cleanup runs one pruning cycle and returns the number of removed records
func (c *Cleaner) cleanup(ctx context.Context) int64 {
	slog.Debug("running cleanup cycle")

	removed, err := c.pruner.DeleteStaleProgress(ctx)
	if err != nil {
		slog.Error("failed to prune stale progress", "error", err)
		return 0
	}

	var total int64
	for _, r := range removed {
		slog.Info("pruned stale progress",
			"user_id", r.UserID,
			"removed", r.Removed,
		)
		total += r.Removed
	}

	if total == 0 {
		slog.Debug("no stale progress found")
		return 0
	}

	metrics.StaleProgressPruned.Add(float64(total))
	return total
}
