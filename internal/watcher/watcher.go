// Package watcher polls inventory for low stock on a fixed interval.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"medpos/backend/internal/domain"
)

const Source = "watcher"

// Lister is satisfied by *inventory.Store, which also logs and notifies.
type Lister interface {
	ListLowStock(ctx context.Context, threshold int, source string) ([]domain.InventoryItem, error)
}

type Watcher struct {
	lister    Lister
	threshold int
	interval  time.Duration
	logger    *slog.Logger
}

func New(lister Lister, threshold int, interval time.Duration, logger *slog.Logger) *Watcher {
	return &Watcher{
		lister:    lister,
		threshold: threshold,
		interval:  interval,
		logger:    logger.With("component", "watcher"),
	}
}

// Run checks once immediately and then on every tick until ctx is done.
// Failed checks are logged and the loop keeps going.
func (w *Watcher) Run(ctx context.Context) error {
	if w.interval <= 0 {
		return errors.New("watcher interval must be positive")
	}
	w.logger.InfoContext(ctx, "low stock watcher started", "threshold", w.threshold, "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.check(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(context.WithoutCancel(ctx), "low stock watcher stopped")
			return nil
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *Watcher) check(ctx context.Context) {
	items, err := w.lister.ListLowStock(ctx, w.threshold, Source)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.ErrorContext(ctx, "low stock check failed", "error", err)
		}
		return
	}
	w.logger.DebugContext(ctx, "low stock check", "count", len(items))
}
