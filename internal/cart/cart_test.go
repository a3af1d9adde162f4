package cart

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medpos/backend/internal/domain"
	"medpos/backend/internal/store"
)

type fakeInventory map[string]domain.InventoryItem

func (f fakeInventory) GetItem(_ context.Context, id string) (*domain.InventoryItem, error) {
	item, ok := f[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (f fakeInventory) CheckAvailability(_ context.Context, id string, requested int) (bool, int, error) {
	item, ok := f[id]
	if !ok {
		return false, 0, store.ErrNotFound
	}
	return item.Quantity >= requested, item.Quantity, nil
}

func newInventory() fakeInventory {
	return fakeInventory{
		"MED001": {ID: "MED001", Name: "Paracetamol 500mg", RetailPriceCents: 1000, UnitCostCents: 800, Quantity: 100},
		"MED002": {ID: "MED002", Name: "Vitamin C", RetailPriceCents: 250, UnitCostCents: 150, Quantity: 3},
		"MED003": {ID: "MED003", Name: "Bandage", RetailPriceCents: 500, UnitCostCents: 300, Quantity: 0},
	}
}

func TestAddItemMergesLines(t *testing.T) {
	s := New(newInventory())
	ctx := context.Background()

	require.NoError(t, s.AddItem(ctx, "MED001", 1))
	require.NoError(t, s.AddItem(ctx, "MED001", 2))
	require.NoError(t, s.AddItem(ctx, "MED002", 1))

	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, 3, lines[0].Quantity)
	assert.Equal(t, int64(1000), lines[0].UnitRetailPriceCents)
	assert.Equal(t, domain.StateBuilding, s.State())
}

func TestAddItemStockErrors(t *testing.T) {
	s := New(newInventory())
	ctx := context.Background()

	err := s.AddItem(ctx, "MED003", 1)
	require.ErrorIs(t, err, store.ErrOutOfStock)

	require.NoError(t, s.AddItem(ctx, "MED002", 2))
	err = s.AddItem(ctx, "MED002", 2)
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	var stockErr *store.StockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "MED002", stockErr.ItemID)
	assert.Equal(t, 4, stockErr.Requested)
	assert.Equal(t, 2, s.Lines()[0].Quantity)

	require.ErrorIs(t, s.AddItem(ctx, "NOPE", 1), store.ErrNotFound)
	require.ErrorIs(t, s.AddItem(ctx, "MED001", 0), store.ErrInvalidInput)
}

func TestSetQuantity(t *testing.T) {
	s := New(newInventory())
	ctx := context.Background()
	require.NoError(t, s.AddItem(ctx, "MED002", 1))

	require.ErrorIs(t, s.SetQuantity(ctx, 0, 4), store.ErrInsufficientStock)
	require.NoError(t, s.SetQuantity(ctx, 0, 3))
	assert.Equal(t, 3, s.Lines()[0].Quantity)

	require.NoError(t, s.SetQuantity(ctx, 0, 0))
	assert.Equal(t, 0, s.Len())
	require.ErrorIs(t, s.SetQuantity(ctx, 0, 1), store.ErrInvalidInput)
}

func TestDiscountTotals(t *testing.T) {
	s := New(newInventory())
	ctx := context.Background()
	require.NoError(t, s.AddItem(ctx, "MED001", 2))

	assert.Equal(t, Totals{SubtotalCents: 2000, FinalCents: 2000}, s.Totals())

	on, err := s.ToggleDiscount(0)
	require.NoError(t, err)
	assert.True(t, on)
	assert.Equal(t, int64(1600), s.Lines()[0].SubtotalCents())
	assert.Equal(t, Totals{SubtotalCents: 2000, DiscountCents: 400, FinalCents: 1600}, s.Totals())

	on, err = s.ToggleDiscount(0)
	require.NoError(t, err)
	assert.False(t, on)
	assert.Equal(t, int64(2000), s.Totals().FinalCents)
}

func TestClearAndReopen(t *testing.T) {
	s := New(newInventory())
	ctx := context.Background()
	require.NoError(t, s.AddItem(ctx, "MED001", 1))
	s.SetCustomer(" 10-2026-C00001 ")
	assert.Equal(t, "10-2026-C00001", s.CustomerID())
	assert.Equal(t, []domain.TransactionLine{{ItemID: "MED001", Qty: 1}}, s.TransactionLines())

	s.Clear()
	s.SetState(domain.StateCompleted)
	assert.Zero(t, s.Len())
	assert.Empty(t, s.CustomerID())

	require.NoError(t, s.AddItem(ctx, "MED001", 1))
	assert.Equal(t, domain.StateBuilding, s.State())
}
