// Package alert delivers low-stock notifications. Delivery is best effort:
// callers log failures and carry on.
package alert

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"medpos/backend/internal/domain"
)

//go:generate mockgen -destination=mock_notifier.go -package=alert . Notifier

type Notifier interface {
	NotifyLowStock(ctx context.Context, alert domain.LowStockAlert) error
}

type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "alert")}
}

func (n *LogNotifier) NotifyLowStock(ctx context.Context, alert domain.LowStockAlert) error {
	ids := make([]string, 0, len(alert.Items))
	for _, item := range alert.Items {
		ids = append(ids, item.ID)
	}
	n.logger.WarnContext(ctx, "low stock",
		"source", alert.Source,
		"threshold", alert.Threshold,
		"count", len(alert.Items),
		"items", ids,
	)
	return nil
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisNotifier publishes the alert as JSON so other terminals and the back
// office can subscribe.
type RedisNotifier struct {
	client  publisher
	channel string
}

func NewRedisNotifier(client publisher, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel}
}

func (n *RedisNotifier) NotifyLowStock(ctx context.Context, alert domain.LowStockAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, payload).Err()
}

// Fanout delivers to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) NotifyLowStock(ctx context.Context, alert domain.LowStockAlert) error {
	var errs []error
	for _, n := range f {
		if err := n.NotifyLowStock(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
