package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"medpos/backend/internal/auth"
	"medpos/backend/internal/cart"
	"medpos/backend/internal/domain"
	"medpos/backend/internal/ledger"
	"medpos/backend/internal/store"
)

// Checkout commits the cart as a Completed transaction. Stock is checked here
// for a precise error and again inside the store's atomic write.
func (e *Engine) Checkout(ctx context.Context, sess *cart.Session, cashPaidCents int64, paymentMethod string) (*domain.CheckoutResult, error) {
	if sess.Len() == 0 {
		return nil, store.ErrEmptyCart
	}
	paymentMethod = normalizePaymentMethod(paymentMethod)
	if !isSupportedPaymentMethod(paymentMethod) {
		return nil, fmt.Errorf("%w: payment method %q", store.ErrInvalidInput, paymentMethod)
	}
	totals := sess.Totals()
	if cashPaidCents < totals.FinalCents {
		return nil, fmt.Errorf("%w: paid %d of %d", store.ErrInsufficientPayment, cashPaidCents, totals.FinalCents)
	}

	sess.SetState(domain.StatePendingPayment)
	result, err := e.commit(ctx, sess, totals, cashPaidCents, paymentMethod)
	if err != nil {
		sess.SetState(domain.StateBuilding)
		return nil, err
	}
	sess.Clear()
	sess.SetState(domain.StateCompleted)

	low, err := e.inventory.ListLowStock(ctx, e.checkoutThreshold, "checkout")
	if err != nil {
		e.logger.WarnContext(ctx, "post-checkout low stock check failed", "transaction", result.Transaction.ID, "error", err)
	}
	result.LowStock = low
	return result, nil
}

func (e *Engine) commit(ctx context.Context, sess *cart.Session, totals cart.Totals, cashPaidCents int64, paymentMethod string) (*domain.CheckoutResult, error) {
	lines := sess.TransactionLines()
	for _, line := range lines {
		ok, available, err := e.inventory.CheckAvailability(ctx, line.ItemID, line.Qty)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, store.NewStockError(line.ItemID, line.Qty, available)
		}
	}

	items, err := e.repo.GetItemsByIDs(ctx, ledger.ItemIDs(lines))
	if err != nil {
		return nil, err
	}
	profit, err := ledger.NetProfit(lines, items)
	if err != nil {
		return nil, err
	}

	sale := domain.Sale{
		Lines:          lines,
		TotalCents:     totals.FinalCents,
		CashPaidCents:  cashPaidCents,
		PaymentMethod:  paymentMethod,
		CustomerID:     sess.CustomerID(),
		NetProfitCents: profit,
		User:           auth.Username(ctx),
		At:             e.clock(),
	}
	tx, err := store.Retry(ctx, e.logger, "checkout", func(ctx context.Context) (*domain.Transaction, error) {
		return e.repo.CommitSale(ctx, sale)
	})
	if err != nil {
		return nil, err
	}

	e.logger.InfoContext(ctx, "checkout completed",
		"transaction", tx.ID,
		"total_cents", tx.TotalCents,
		"units", tx.UnitCount(),
		"payment_method", tx.PaymentMethod,
	)
	return &domain.CheckoutResult{
		Transaction:   *tx,
		SubtotalCents: totals.SubtotalCents,
		DiscountCents: totals.DiscountCents,
		ChangeCents:   tx.ChangeCents,
	}, nil
}

// Hold parks the cart as a Held transaction without touching stock.
// Discount flags are not persisted, so the row carries the undiscounted
// subtotal, which is what Resume rebuilds.
func (e *Engine) Hold(ctx context.Context, sess *cart.Session) (*domain.Transaction, error) {
	if sess.Len() == 0 {
		return nil, store.ErrEmptyCart
	}
	held := domain.Transaction{
		Items:         sess.TransactionLines(),
		TotalCents:    sess.Totals().SubtotalCents,
		Timestamp:     e.clock(),
		PaymentMethod: domain.DefaultPaymentMethod,
		CustomerID:    sess.CustomerID(),
	}
	tx, err := store.Retry(ctx, e.logger, "hold", func(ctx context.Context) (*domain.Transaction, error) {
		return e.repo.CreateHeld(ctx, held, auth.Username(ctx))
	})
	if err != nil {
		return nil, err
	}
	sess.Clear()
	sess.SetState(domain.StateHeld)
	return tx, nil
}

type ClampedLine struct {
	ItemID    string `json:"item_id"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// ResumeReport lists what could not be restored as held.
type ResumeReport struct {
	TransactionID string        `json:"transaction_id"`
	Dropped       []string      `json:"dropped,omitempty"`
	Clamped       []ClampedLine `json:"clamped,omitempty"`
}

// Resume rebuilds a cart from a Held transaction and deletes the held row.
// Lines for items that no longer exist or have no stock are dropped; lines
// whose stock shrank are clamped.
func (e *Engine) Resume(ctx context.Context, transactionID string) (*cart.Session, ResumeReport, error) {
	transactionID = strings.TrimSpace(transactionID)
	report := ResumeReport{TransactionID: transactionID}

	held, err := e.repo.FindTransaction(ctx, transactionID)
	if err != nil {
		return nil, report, err
	}
	if held.Status != domain.TxStatusHeld {
		return nil, report, fmt.Errorf("transaction %s is %s: %w", held.ID, held.Status, store.ErrInvalidState)
	}

	sess := e.NewCart()
	for _, line := range held.Items {
		item, err := e.inventory.GetItem(ctx, line.ItemID)
		if errors.Is(err, store.ErrNotFound) {
			e.logger.WarnContext(ctx, "held item no longer in inventory", "transaction", held.ID, "item", line.ItemID)
			report.Dropped = append(report.Dropped, line.ItemID)
			continue
		}
		if err != nil {
			return nil, report, err
		}

		qty := min(line.Qty, item.Quantity)
		if qty == 0 {
			report.Dropped = append(report.Dropped, line.ItemID)
			continue
		}
		if qty < line.Qty {
			report.Clamped = append(report.Clamped, ClampedLine{ItemID: line.ItemID, Requested: line.Qty, Available: item.Quantity})
		}
		if err := sess.AddItem(ctx, line.ItemID, qty); err != nil {
			return nil, report, err
		}
	}
	sess.SetCustomer(held.CustomerID)

	if _, err := e.repo.PopHeld(ctx, held.ID); err != nil {
		return nil, report, err
	}
	e.audit(ctx, "resume", fmt.Sprintf("transaction=%s lines=%d dropped=%d clamped=%d", held.ID, sess.Len(), len(report.Dropped), len(report.Clamped)))
	return sess, report, nil
}

// DiscardHeld deletes a held transaction outright.
func (e *Engine) DiscardHeld(ctx context.Context, transactionID string, adminPassword string) error {
	if err := e.gate.RequireAdmin(ctx, "discard held", adminPassword); err != nil {
		return err
	}
	held, err := e.repo.PopHeld(ctx, strings.TrimSpace(transactionID))
	if err != nil {
		return err
	}
	e.audit(ctx, "discard", fmt.Sprintf("transaction=%s items=%s", held.ID, ledger.EncodeItems(held.Items)))
	return nil
}

func (e *Engine) ListHeld(ctx context.Context, limit int) ([]domain.Transaction, error) {
	return e.repo.ListTransactions(ctx, domain.TransactionFilter{Status: domain.TxStatusHeld, Limit: limit})
}

// ApplyDiscount toggles the line discount. Turning it on needs the admin
// password; turning it off does not.
func (e *Engine) ApplyDiscount(ctx context.Context, sess *cart.Session, lineIndex int, adminPassword string) (bool, error) {
	lines := sess.Lines()
	if lineIndex < 0 || lineIndex >= len(lines) {
		return false, fmt.Errorf("%w: line %d out of range", store.ErrInvalidInput, lineIndex)
	}
	if !lines[lineIndex].DiscountApplied {
		if err := e.gate.RequireAdmin(ctx, "discount", adminPassword); err != nil {
			return false, err
		}
	}
	on, err := sess.ToggleDiscount(lineIndex)
	if err != nil {
		return false, err
	}
	e.audit(ctx, "discount", fmt.Sprintf("item=%s applied=%t", lines[lineIndex].ItemID, on))
	return on, nil
}

// VoidLine removes one line from an open cart.
func (e *Engine) VoidLine(ctx context.Context, sess *cart.Session, lineIndex int, adminPassword string) error {
	lines := sess.Lines()
	if lineIndex < 0 || lineIndex >= len(lines) {
		return fmt.Errorf("%w: line %d out of range", store.ErrInvalidInput, lineIndex)
	}
	if err := e.gate.RequireAdmin(ctx, "void line", adminPassword); err != nil {
		return err
	}
	if err := sess.RemoveLine(lineIndex); err != nil {
		return err
	}
	line := lines[lineIndex]
	e.audit(ctx, "void_line", fmt.Sprintf("item=%s qty=%d subtotal=%d", line.ItemID, line.Quantity, line.SubtotalCents()))
	return nil
}

// VoidOrder abandons the whole cart and moves the session to Voided.
func (e *Engine) VoidOrder(ctx context.Context, sess *cart.Session, adminPassword string) error {
	if sess.Len() == 0 {
		return store.ErrEmptyCart
	}
	if err := e.gate.RequireAdmin(ctx, "void order", adminPassword); err != nil {
		return err
	}
	lines := sess.TransactionLines()
	total := sess.Totals().FinalCents
	sess.Clear()
	sess.SetState(domain.StateVoided)
	e.audit(ctx, "void_order", fmt.Sprintf("items=%s total=%d", ledger.EncodeItems(lines), total))
	return nil
}

// AttachCustomer links a registered customer to the cart.
func (e *Engine) AttachCustomer(ctx context.Context, sess *cart.Session, customerID string) error {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		sess.SetCustomer("")
		return nil
	}
	if _, err := e.repo.GetCustomer(ctx, customerID); err != nil {
		return err
	}
	sess.SetCustomer(customerID)
	return nil
}
