// Package service is the checkout engine: it drives cart sessions through
// checkout, hold, resume and void, and fronts every privileged operation with
// the admin gate.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"medpos/backend/internal/auth"
	"medpos/backend/internal/cart"
	"medpos/backend/internal/domain"
	"medpos/backend/internal/inventory"
	"medpos/backend/internal/sales"
	"medpos/backend/internal/store"
	"medpos/backend/internal/xid"
)

type Engine struct {
	repo              store.Repository
	inventory         *inventory.Store
	gate              *auth.Gate
	sales             *sales.Aggregator
	logger            *slog.Logger
	now               func() time.Time
	loc               *time.Location
	checkoutThreshold int
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the zone used for transaction periods and sale dates.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) { e.loc = loc }
}

func WithCheckoutThreshold(threshold int) Option {
	return func(e *Engine) { e.checkoutThreshold = threshold }
}

func New(repo store.Repository, inv *inventory.Store, gate *auth.Gate, agg *sales.Aggregator, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		repo:              repo,
		inventory:         inv,
		gate:              gate,
		sales:             agg,
		logger:            logger.With("component", "checkout"),
		now:               time.Now,
		loc:               time.UTC,
		checkoutThreshold: inventory.CheckoutThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewCart opens an empty cart session backed by the inventory store.
func (e *Engine) NewCart() *cart.Session {
	return cart.New(e.inventory)
}

func (e *Engine) clock() time.Time {
	return e.now().In(e.loc)
}

func (e *Engine) audit(ctx context.Context, action string, details string) {
	err := e.repo.AppendLog(ctx, domain.TransactionLogEntry{
		ID:        xid.New("log"),
		Action:    action,
		Details:   details,
		Timestamp: e.clock(),
		User:      auth.Username(ctx),
	})
	if err != nil {
		e.logger.WarnContext(ctx, "failed to write audit log", "action", action, "error", err)
	}
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case "cash", "card", "qris", "ewallet", "transfer":
		return true
	default:
		return false
	}
}

func normalizePaymentMethod(method string) string {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		return domain.DefaultPaymentMethod
	}
	return method
}
