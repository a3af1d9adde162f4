package service

import (
	"context"
	"fmt"
	"strings"

	"medpos/backend/internal/auth"
	"medpos/backend/internal/domain"
	"medpos/backend/internal/ledger"
	"medpos/backend/internal/store"
)

// Return restocks a Completed transaction and marks it Returned. Daily sales
// are left as recorded.
func (e *Engine) Return(ctx context.Context, transactionID string, adminPassword string) (*domain.Transaction, error) {
	if err := e.gate.RequireAdmin(ctx, "return", adminPassword); err != nil {
		return nil, err
	}
	transactionID = strings.TrimSpace(transactionID)
	tx, err := store.Retry(ctx, e.logger, "return", func(ctx context.Context) (*domain.Transaction, error) {
		return e.repo.ReturnTransaction(ctx, transactionID, auth.Username(ctx), e.clock())
	})
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "transaction returned", "transaction", tx.ID, "units", tx.UnitCount())
	return tx, nil
}

// EditTransaction rewrites line quantities of a Completed transaction and
// moves the stock difference. Item ids not in the transaction are added as
// new lines. Only the units that change are priced, at current retail, so
// a discount already granted on untouched lines survives.
func (e *Engine) EditTransaction(ctx context.Context, transactionID string, quantities map[string]int, cashPaidCents *int64, adminPassword string) (*domain.Transaction, error) {
	if err := e.gate.RequireAdmin(ctx, "edit transaction", adminPassword); err != nil {
		return nil, err
	}
	if len(quantities) == 0 && cashPaidCents == nil {
		return nil, fmt.Errorf("%w: nothing to change", store.ErrInvalidInput)
	}
	edit := domain.TransactionEdit{
		TransactionID: strings.TrimSpace(transactionID),
		Quantities:    quantities,
		CashPaidCents: cashPaidCents,
		User:          auth.Username(ctx),
		At:            e.clock(),
	}
	return store.Retry(ctx, e.logger, "edit transaction", func(ctx context.Context) (*domain.Transaction, error) {
		return e.repo.EditTransaction(ctx, edit)
	})
}

func (e *Engine) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return e.repo.FindTransaction(ctx, strings.TrimSpace(transactionID))
}

func (e *Engine) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, fmt.Errorf("%w: range end before start", store.ErrInvalidInput)
	}
	return e.repo.ListTransactions(ctx, filter)
}

// GetReceipt resolves a transaction against current inventory. Prices are
// today's prices, not the ones charged.
func (e *Engine) GetReceipt(ctx context.Context, transactionID string) (*domain.Receipt, error) {
	tx, err := e.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	items, err := e.repo.GetItemsByIDs(ctx, ledger.ItemIDs(tx.Items))
	if err != nil {
		return nil, err
	}
	receipt := ledger.Resolve(*tx, items)
	if len(receipt.MissingItems) > 0 {
		e.logger.WarnContext(ctx, "receipt references items no longer in inventory", "transaction", tx.ID, "items", receipt.MissingItems)
	}
	return &receipt, nil
}
