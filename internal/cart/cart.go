// Package cart holds the single-user, in-memory cart that exists until a
// sale is checked out or parked.
package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"medpos/backend/internal/domain"
	"medpos/backend/internal/money"
	"medpos/backend/internal/store"
)

// DiscountPercent is the flat line discount an admin can authorize.
var DiscountPercent = decimal.NewFromInt(20)

// Inventory is the part of the inventory store a cart needs.
type Inventory interface {
	GetItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	CheckAvailability(ctx context.Context, id string, requested int) (bool, int, error)
}

type Line struct {
	ItemID               string `json:"item_id"`
	Name                 string `json:"name"`
	UnitRetailPriceCents int64  `json:"unit_retail_price_cents"`
	Quantity             int    `json:"quantity"`
	DiscountApplied      bool   `json:"discount_applied"`
}

func (l Line) GrossCents() int64 {
	return l.UnitRetailPriceCents * int64(l.Quantity)
}

func (l Line) DiscountCents() int64 {
	if !l.DiscountApplied {
		return 0
	}
	return money.PercentOf(l.GrossCents(), DiscountPercent)
}

func (l Line) SubtotalCents() int64 {
	return l.GrossCents() - l.DiscountCents()
}

type Totals struct {
	SubtotalCents int64 `json:"subtotal_cents"`
	DiscountCents int64 `json:"discount_cents"`
	FinalCents    int64 `json:"final_cents"`
}

// Session is owned by one interactive user and is not safe for concurrent use.
type Session struct {
	inventory  Inventory
	lines      []Line
	customerID string
	state      domain.CheckoutState
}

func New(inventory Inventory) *Session {
	return &Session{inventory: inventory, state: domain.StateBuilding}
}

// AddItem merges qty into an existing line for itemID or appends a new one,
// snapshotting the retail price at add time.
func (s *Session) AddItem(ctx context.Context, itemID string, qty int) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" || qty < 1 {
		return fmt.Errorf("%w: item %q qty %d", store.ErrInvalidInput, itemID, qty)
	}
	if s.state.Terminal() {
		s.state = domain.StateBuilding
	}

	item, err := s.inventory.GetItem(ctx, itemID)
	if err != nil {
		return err
	}

	idx := s.indexOf(itemID)
	merged := qty
	if idx >= 0 {
		merged += s.lines[idx].Quantity
	}

	ok, available, err := s.inventory.CheckAvailability(ctx, itemID, merged)
	if err != nil {
		return err
	}
	if !ok {
		return store.NewStockError(itemID, merged, available)
	}

	if idx >= 0 {
		s.lines[idx].Quantity = merged
	} else {
		s.lines = append(s.lines, Line{
			ItemID:               item.ID,
			Name:                 item.Name,
			UnitRetailPriceCents: item.RetailPriceCents,
			Quantity:             qty,
		})
	}
	s.state = domain.StateBuilding
	return nil
}

// SetQuantity replaces a line's quantity; zero removes the line.
func (s *Session) SetQuantity(ctx context.Context, lineIndex int, qty int) error {
	if err := s.checkIndex(lineIndex); err != nil {
		return err
	}
	if qty < 0 {
		return fmt.Errorf("%w: negative quantity", store.ErrInvalidInput)
	}
	if qty == 0 {
		return s.RemoveLine(lineIndex)
	}

	line := s.lines[lineIndex]
	if qty > line.Quantity {
		ok, available, err := s.inventory.CheckAvailability(ctx, line.ItemID, qty)
		if err != nil {
			return err
		}
		if !ok {
			return store.NewStockError(line.ItemID, qty, available)
		}
	}
	s.lines[lineIndex].Quantity = qty
	return nil
}

// ToggleDiscount flips the discount flag and returns the new value. The
// caller authorizes before turning a discount on.
func (s *Session) ToggleDiscount(lineIndex int) (bool, error) {
	if err := s.checkIndex(lineIndex); err != nil {
		return false, err
	}
	s.lines[lineIndex].DiscountApplied = !s.lines[lineIndex].DiscountApplied
	return s.lines[lineIndex].DiscountApplied, nil
}

func (s *Session) RemoveLine(lineIndex int) error {
	if err := s.checkIndex(lineIndex); err != nil {
		return err
	}
	s.lines = append(s.lines[:lineIndex], s.lines[lineIndex+1:]...)
	return nil
}

func (s *Session) Totals() Totals {
	var totals Totals
	for _, line := range s.lines {
		totals.SubtotalCents += line.GrossCents()
		totals.DiscountCents += line.DiscountCents()
	}
	totals.FinalCents = totals.SubtotalCents - totals.DiscountCents
	return totals
}

// Clear drops every line and the attached customer.
func (s *Session) Clear() {
	s.lines = nil
	s.customerID = ""
}

func (s *Session) Lines() []Line {
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// TransactionLines is the (itemId, qty) projection persisted by the ledger.
func (s *Session) TransactionLines() []domain.TransactionLine {
	out := make([]domain.TransactionLine, 0, len(s.lines))
	for _, line := range s.lines {
		out = append(out, domain.TransactionLine{ItemID: line.ItemID, Qty: line.Quantity})
	}
	return out
}

func (s *Session) Len() int { return len(s.lines) }

func (s *Session) CustomerID() string { return s.customerID }

func (s *Session) SetCustomer(customerID string) {
	s.customerID = strings.TrimSpace(customerID)
}

func (s *Session) State() domain.CheckoutState { return s.state }

func (s *Session) SetState(state domain.CheckoutState) { s.state = state }

func (s *Session) indexOf(itemID string) int {
	for i, line := range s.lines {
		if line.ItemID == itemID {
			return i
		}
	}
	return -1
}

func (s *Session) checkIndex(lineIndex int) error {
	if lineIndex < 0 || lineIndex >= len(s.lines) {
		return fmt.Errorf("%w: line %d out of range", store.ErrInvalidInput, lineIndex)
	}
	return nil
}
