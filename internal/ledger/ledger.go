// Package ledger holds the transaction rules shared by every store
// implementation: the persisted items format, edit planning, receipt
// resolution and daily aggregate accumulation.
package ledger

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"medpos/backend/internal/domain"
	"medpos/backend/internal/store"
)

const (
	lineSeparator = ";"
	qtySeparator  = ":"
)

// EncodeItems renders lines in the persisted "itemId:qty;itemId:qty" form.
func EncodeItems(lines []domain.TransactionLine) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, line.ItemID+qtySeparator+strconv.Itoa(line.Qty))
	}
	return strings.Join(parts, lineSeparator)
}

// DecodeItems parses the persisted items column. Empty segments are skipped.
func DecodeItems(raw string) ([]domain.TransactionLine, error) {
	lines := make([]domain.TransactionLine, 0, 4)
	for _, part := range strings.Split(raw, lineSeparator) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.LastIndex(part, qtySeparator)
		if idx <= 0 || idx == len(part)-1 {
			return nil, fmt.Errorf("malformed item segment %q", part)
		}
		qty, err := strconv.Atoi(part[idx+1:])
		if err != nil || qty < 1 {
			return nil, fmt.Errorf("malformed quantity in segment %q", part)
		}
		lines = append(lines, domain.TransactionLine{ItemID: part[:idx], Qty: qty})
	}
	return lines, nil
}

// NormalizeLines merges duplicate item ids, drops non-positive quantities
// and keeps first-seen order.
func NormalizeLines(lines []domain.TransactionLine) []domain.TransactionLine {
	index := make(map[string]int, len(lines))
	normalized := make([]domain.TransactionLine, 0, len(lines))
	for _, line := range lines {
		id := strings.TrimSpace(line.ItemID)
		if id == "" || line.Qty < 1 {
			continue
		}
		if pos, ok := index[id]; ok {
			normalized[pos].Qty += line.Qty
			continue
		}
		index[id] = len(normalized)
		normalized = append(normalized, domain.TransactionLine{ItemID: id, Qty: line.Qty})
	}
	return normalized
}

// ItemIDs lists the distinct item ids of lines in sorted order, which is
// also the order rows are locked in.
func ItemIDs(lines []domain.TransactionLine) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.ItemID]; ok {
			continue
		}
		seen[line.ItemID] = struct{}{}
		ids = append(ids, line.ItemID)
	}
	sort.Strings(ids)
	return ids
}

// EditPlan is the outcome of applying new quantities to a transaction.
type EditPlan struct {
	Lines []domain.TransactionLine
	// StockDelta maps item id to the change in on-hand stock: negative when
	// more units leave the shelf, positive when units come back.
	StockDelta map[string]int
}

// PlanEdit applies quantities to orig. Items missing from quantities keep
// their quantity, zero removes a line, and unknown ids become new lines.
func PlanEdit(orig []domain.TransactionLine, quantities map[string]int) (EditPlan, error) {
	plan := EditPlan{
		Lines:      make([]domain.TransactionLine, 0, len(orig)),
		StockDelta: make(map[string]int),
	}

	for id, qty := range quantities {
		if qty < 0 || strings.TrimSpace(id) == "" {
			return EditPlan{}, fmt.Errorf("%w: quantity for %q", store.ErrInvalidInput, id)
		}
	}

	known := make(map[string]struct{}, len(orig))
	for _, line := range NormalizeLines(orig) {
		known[line.ItemID] = struct{}{}
		newQty := line.Qty
		if qty, ok := quantities[line.ItemID]; ok {
			newQty = qty
		}
		if delta := line.Qty - newQty; delta != 0 {
			plan.StockDelta[line.ItemID] = delta
		}
		if newQty > 0 {
			plan.Lines = append(plan.Lines, domain.TransactionLine{ItemID: line.ItemID, Qty: newQty})
		}
	}

	added := make([]string, 0)
	for id, qty := range quantities {
		if _, ok := known[id]; !ok && qty > 0 {
			added = append(added, id)
		}
	}
	sort.Strings(added)
	for _, id := range added {
		qty := quantities[id]
		plan.StockDelta[id] = -qty
		plan.Lines = append(plan.Lines, domain.TransactionLine{ItemID: id, Qty: qty})
	}

	if len(plan.Lines) == 0 {
		return EditPlan{}, store.ErrEmptyResult
	}
	return plan, nil
}

// EditedTotal reprices only what an edit changes: every unit that leaves or
// returns to the shelf moves the stored total by the item's current retail
// price. Unchanged lines keep whatever was charged for them, discount
// included. The result never drops below zero.
func EditedTotal(stored int64, stockDelta map[string]int, items map[string]domain.InventoryItem) (int64, error) {
	total := stored
	for itemID, delta := range stockDelta {
		item, ok := items[itemID]
		if !ok {
			return 0, fmt.Errorf("item %s: %w", itemID, store.ErrNotFound)
		}
		total -= item.RetailPriceCents * int64(delta)
	}
	return max(total, 0), nil
}

// NetProfit is the sum of (retail - cost) * qty over lines.
func NetProfit(lines []domain.TransactionLine, items map[string]domain.InventoryItem) (int64, error) {
	profit := int64(0)
	for _, line := range lines {
		item, ok := items[line.ItemID]
		if !ok {
			return 0, fmt.Errorf("item %s: %w", line.ItemID, store.ErrNotFound)
		}
		profit += item.MarginCents() * int64(line.Qty)
	}
	return profit, nil
}

// SaleDate truncates t to midnight in its own location.
func SaleDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Accumulate folds a committed sale into the day's record.
func Accumulate(record domain.DailySalesRecord, sale domain.Sale) domain.DailySalesRecord {
	units := 0
	for _, line := range sale.Lines {
		units += line.Qty
	}
	record.SaleDate = SaleDate(sale.At)
	record.TotalSalesCents += sale.TotalCents
	record.UnitSales += units
	record.NetProfitCents += sale.NetProfitCents
	record.LastUser = sale.User
	return record
}

// Resolve builds a receipt from tx using current inventory data. Lines whose
// item no longer exists are reported in MissingItems and priced at zero.
func Resolve(tx domain.Transaction, items map[string]domain.InventoryItem) domain.Receipt {
	receipt := domain.Receipt{
		Transaction: tx,
		Lines:       make([]domain.ReceiptLine, 0, len(tx.Items)),
	}
	for _, line := range tx.Items {
		item, ok := items[line.ItemID]
		if !ok {
			receipt.MissingItems = append(receipt.MissingItems, line.ItemID)
			receipt.Lines = append(receipt.Lines, domain.ReceiptLine{ItemID: line.ItemID, Name: line.ItemID, Qty: line.Qty})
			continue
		}
		receipt.Lines = append(receipt.Lines, domain.ReceiptLine{
			ItemID:         line.ItemID,
			Name:           item.Name,
			UnitPriceCents: item.RetailPriceCents,
			Qty:            line.Qty,
			SubtotalCents:  item.RetailPriceCents * int64(line.Qty),
		})
	}
	return receipt
}
