// Package inventory guards stock levels: availability checks, atomic
// adjustments and low-stock reporting.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"medpos/backend/internal/alert"
	"medpos/backend/internal/auth"
	"medpos/backend/internal/domain"
	"medpos/backend/internal/store"
	"medpos/backend/internal/xid"
)

const (
	CheckoutThreshold = 5
	WatcherThreshold  = 10
)

type Store struct {
	repo     store.InventoryRepository
	logs     store.LogRepository
	notifier alert.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func New(repo store.InventoryRepository, logs store.LogRepository, notifier alert.Notifier, logger *slog.Logger) *Store {
	if notifier == nil {
		notifier = alert.Fanout{}
	}
	return &Store{
		repo:     repo,
		logs:     logs,
		notifier: notifier,
		logger:   logger.With("component", "inventory"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: item id is required", store.ErrInvalidInput)
	}
	return s.repo.GetItem(ctx, id)
}

// CheckAvailability is read only; it reports whether requested units are on
// hand and how many there are.
func (s *Store) CheckAvailability(ctx context.Context, id string, requested int) (bool, int, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return false, 0, err
	}
	return requested <= item.Quantity, item.Quantity, nil
}

// AdjustQuantity applies delta atomically and returns the new on-hand count.
func (s *Store) AdjustQuantity(ctx context.Context, id string, delta int) (int, error) {
	if delta == 0 {
		item, err := s.GetItem(ctx, id)
		if err != nil {
			return 0, err
		}
		return item.Quantity, nil
	}

	qty, err := store.Retry(ctx, s.logger, "adjust quantity", func(ctx context.Context) (int, error) {
		return s.repo.AdjustQuantity(ctx, id, delta)
	})
	if err != nil {
		return 0, err
	}

	s.audit(ctx, "stock_adjust", fmt.Sprintf("item=%s delta=%d quantity=%d", id, delta, qty))
	return qty, nil
}

// ListLowStock returns items at or below threshold. A non-empty result is
// written to the audit log and pushed to the notifier; neither failure is
// returned to the caller.
func (s *Store) ListLowStock(ctx context.Context, threshold int, source string) ([]domain.InventoryItem, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("%w: negative threshold", store.ErrInvalidInput)
	}
	items, err := s.repo.ListLowStock(ctx, threshold)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return items, nil
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, fmt.Sprintf("%s(%d)", item.ID, item.Quantity))
	}
	s.audit(ctx, "low_stock_alert", fmt.Sprintf("source=%s threshold=%d items=%s", source, threshold, strings.Join(ids, ",")))

	if err := s.notifier.NotifyLowStock(ctx, domain.LowStockAlert{
		Threshold: threshold,
		Source:    source,
		Items:     items,
		RaisedAt:  s.now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "low stock notification failed", "source", source, "error", err)
	}
	return items, nil
}

func (s *Store) audit(ctx context.Context, action string, details string) {
	if s.logs == nil {
		return
	}
	err := s.logs.AppendLog(ctx, domain.TransactionLogEntry{
		ID:        xid.New("log"),
		Action:    action,
		Details:   details,
		Timestamp: s.now(),
		User:      auth.Username(ctx),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to write audit log", "action", action, "error", err)
	}
}
