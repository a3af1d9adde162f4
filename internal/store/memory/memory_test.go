package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"medpos/backend/internal/domain"
	"medpos/backend/internal/store"
)

var saleTime = time.Date(2026, time.October, 15, 9, 30, 0, 0, time.UTC)

func newStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	_, err := s.CreateItem(context.Background(), domain.InventoryItem{
		ID: "MED001", Name: "Paracetamol 500mg", Category: "Analgesic",
		UnitCostCents: 800, RetailPriceCents: 1000, Quantity: 100,
	})
	require.NoError(t, err)
	_, err = s.CreateItem(context.Background(), domain.InventoryItem{
		ID: "MED002", Name: "Vitamin C", Category: "Supplement",
		UnitCostCents: 150, RetailPriceCents: 250, Quantity: 10,
	})
	require.NoError(t, err)
	return s
}

func sale(lines ...domain.TransactionLine) domain.Sale {
	return domain.Sale{Lines: lines, TotalCents: 3000, CashPaidCents: 3000, NetProfitCents: 600, User: "kasir", At: saleTime}
}

func TestCommitSale(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tx, err := s.CommitSale(ctx, sale(domain.TransactionLine{ItemID: "MED001", Qty: 3}))
	require.NoError(t, err)
	assert.Equal(t, "10-2026-000001", tx.ID)
	assert.Equal(t, domain.TxStatusCompleted, tx.Status)
	assert.Equal(t, int64(0), tx.ChangeCents)
	assert.Equal(t, domain.DefaultPaymentMethod, tx.PaymentMethod)

	item, err := s.GetItem(ctx, "MED001")
	require.NoError(t, err)
	assert.Equal(t, 97, item.Quantity)

	daily, err := s.GetDailySales(ctx, time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(600), daily.NetProfitCents)
	assert.Equal(t, 3, daily.UnitSales)
	assert.Equal(t, "kasir", daily.LastUser)

	logs, err := s.ListLog(ctx, time.Time{}, time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "checkout", logs[0].Action)
}

func TestCommitSaleRejectsWithoutMutation(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.CommitSale(ctx, sale(
		domain.TransactionLine{ItemID: "MED001", Qty: 1},
		domain.TransactionLine{ItemID: "MED002", Qty: 11},
	))
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	short := sale(domain.TransactionLine{ItemID: "MED001", Qty: 3})
	short.CashPaidCents = 2500
	_, err = s.CommitSale(ctx, short)
	require.ErrorIs(t, err, store.ErrInsufficientPayment)

	_, err = s.CommitSale(ctx, sale())
	require.ErrorIs(t, err, store.ErrEmptyCart)

	item, _ := s.GetItem(ctx, "MED001")
	assert.Equal(t, 100, item.Quantity)
	txs, err := s.ListTransactions(ctx, domain.TransactionFilter{})
	require.NoError(t, err)
	assert.Empty(t, txs)
	_, err = s.GetDailySales(ctx, saleTime)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestConcurrentCheckoutsGetDistinctIDs(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	const n = 50
	ids := make([]string, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			tx, err := s.CommitSale(ctx, domain.Sale{
				Lines:         []domain.TransactionLine{{ItemID: "MED001", Qty: 1}},
				TotalCents:    1000,
				CashPaidCents: 1000,
				At:            saleTime,
			})
			if err != nil {
				return err
			}
			ids[i] = tx.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := make(map[string]struct{}, n)
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, n)
	item, _ := s.GetItem(ctx, "MED001")
	assert.Equal(t, 50, item.Quantity)
}

func TestSequenceNeverReusesHeldIDs(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	held, err := s.CreateHeld(ctx, domain.Transaction{
		Items:     []domain.TransactionLine{{ItemID: "MED001", Qty: 2}},
		Timestamp: saleTime,
	}, "kasir")
	require.NoError(t, err)
	assert.Equal(t, "10-2026-000001", held.ID)
	assert.Equal(t, domain.TxStatusHeld, held.Status)

	_, err = s.PopHeld(ctx, held.ID)
	require.NoError(t, err)

	tx, err := s.CommitSale(ctx, sale(domain.TransactionLine{ItemID: "MED001", Qty: 1}))
	require.NoError(t, err)
	assert.Equal(t, "10-2026-000002", tx.ID)

	next, err := s.CommitSale(ctx, domain.Sale{
		Lines:         []domain.TransactionLine{{ItemID: "MED001", Qty: 1}},
		TotalCents:    1000,
		CashPaidCents: 1000,
		At:            saleTime.AddDate(0, 1, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, "11-2026-000001", next.ID)
}

func TestPopHeld(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tx, err := s.CommitSale(ctx, sale(domain.TransactionLine{ItemID: "MED001", Qty: 3}))
	require.NoError(t, err)
	_, err = s.PopHeld(ctx, tx.ID)
	require.ErrorIs(t, err, store.ErrInvalidState)

	_, err = s.PopHeld(ctx, "10-2026-999999")
	require.ErrorIs(t, err, store.ErrNotFound)

	held, err := s.CreateHeld(ctx, domain.Transaction{
		Items:      []domain.TransactionLine{{ItemID: "MED002", Qty: 1}},
		CustomerID: "10-2026-C00001",
		Timestamp:  saleTime,
	}, "kasir")
	require.NoError(t, err)

	popped, err := s.PopHeld(ctx, held.ID)
	require.NoError(t, err)
	assert.Equal(t, "10-2026-C00001", popped.CustomerID)
	_, err = s.PopHeld(ctx, held.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	item, _ := s.GetItem(ctx, "MED002")
	assert.Equal(t, 10, item.Quantity, "holding never reserves stock")
}

func TestReturnTransaction(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tx, err := s.CommitSale(ctx, sale(domain.TransactionLine{ItemID: "MED001", Qty: 3}))
	require.NoError(t, err)

	returned, err := s.ReturnTransaction(ctx, tx.ID, "admin", saleTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, domain.TxStatusReturned, returned.Status)

	_, err = s.ReturnTransaction(ctx, tx.ID, "admin", saleTime.Add(time.Hour))
	require.ErrorIs(t, err, store.ErrAlreadyReturned)

	item, _ := s.GetItem(ctx, "MED001")
	assert.Equal(t, 100, item.Quantity)

	daily, err := s.GetDailySales(ctx, time.Date(2026, time.October, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(3000), daily.TotalSalesCents, "returns leave the aggregate alone")

	held, err := s.CreateHeld(ctx, domain.Transaction{Items: []domain.TransactionLine{{ItemID: "MED001", Qty: 1}}, Timestamp: saleTime}, "kasir")
	require.NoError(t, err)
	_, err = s.ReturnTransaction(ctx, held.ID, "admin", saleTime)
	require.ErrorIs(t, err, store.ErrInvalidState)
}

func TestEditTransaction(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	tx, err := s.CommitSale(ctx, domain.Sale{
		Lines:         []domain.TransactionLine{{ItemID: "MED001", Qty: 2}, {ItemID: "MED002", Qty: 4}},
		TotalCents:    3000,
		CashPaidCents: 5000,
		At:            saleTime,
	})
	require.NoError(t, err)

	edited, err := s.EditTransaction(ctx, domain.TransactionEdit{
		TransactionID: tx.ID,
		Quantities:    map[string]int{"MED001": 4, "MED002": 0},
		User:          "admin",
		At:            saleTime,
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.TransactionLine{{ItemID: "MED001", Qty: 4}}, edited.Items)
	assert.Equal(t, int64(4000), edited.TotalCents)
	assert.Equal(t, int64(1000), edited.ChangeCents)

	med1, _ := s.GetItem(ctx, "MED001")
	med2, _ := s.GetItem(ctx, "MED002")
	assert.Equal(t, 96, med1.Quantity)
	assert.Equal(t, 10, med2.Quantity)

	_, err = s.EditTransaction(ctx, domain.TransactionEdit{TransactionID: tx.ID, Quantities: map[string]int{"MED001": 200}})
	require.ErrorIs(t, err, store.ErrInsufficientStock)

	_, err = s.EditTransaction(ctx, domain.TransactionEdit{TransactionID: tx.ID, Quantities: map[string]int{"MED001": 0}})
	require.ErrorIs(t, err, store.ErrEmptyResult)

	low := int64(100)
	_, err = s.EditTransaction(ctx, domain.TransactionEdit{TransactionID: tx.ID, Quantities: map[string]int{}, CashPaidCents: &low})
	require.ErrorIs(t, err, store.ErrInsufficientPayment)

	med1, _ = s.GetItem(ctx, "MED001")
	assert.Equal(t, 96, med1.Quantity)
}

func TestDeleteReferencedItem(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.CommitSale(ctx, sale(domain.TransactionLine{ItemID: "MED001", Qty: 1}))
	require.NoError(t, err)

	require.ErrorIs(t, s.DeleteItem(ctx, "MED001", false), store.ErrItemReferenced)
	require.NoError(t, s.DeleteItem(ctx, "MED001", true))
	require.NoError(t, s.DeleteItem(ctx, "MED002", false))
	require.ErrorIs(t, s.DeleteItem(ctx, "MED002", false), store.ErrNotFound)
}

func TestAdjustQuantityNeverNegative(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.AdjustQuantity(ctx, "MED002", -11)
	require.ErrorIs(t, err, store.ErrInsufficientStock)
	qty, err := s.AdjustQuantity(ctx, "MED002", -10)
	require.NoError(t, err)
	assert.Equal(t, 0, qty)
	_, err = s.AdjustQuantity(ctx, "MED002", -1)
	require.ErrorIs(t, err, store.ErrOutOfStock)

	low, err := s.ListLowStock(ctx, 5)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "MED002", low[0].ID)
}

func TestCustomers(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	first, err := s.CreateCustomer(ctx, domain.Customer{Name: "Siti Rahma", Contact: "0812"}, saleTime)
	require.NoError(t, err)
	assert.Equal(t, "10-2026-C00001", first.ID)
	second, err := s.CreateCustomer(ctx, domain.Customer{Name: "Budi"}, saleTime)
	require.NoError(t, err)
	assert.Equal(t, "10-2026-C00002", second.ID)

	found, err := s.ListCustomers(ctx, "siti", 0)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, first.ID, found[0].ID)

	_, err = s.CreateCustomer(ctx, domain.Customer{}, saleTime)
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestUsers(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, domain.UserAccount{Username: " Kasir ", Password: "hash"}))
	require.ErrorIs(t, s.CreateUser(ctx, domain.UserAccount{Username: "kasir", Password: "hash"}), store.ErrDuplicateID)

	user, err := s.GetUser(ctx, "kasir")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCashier, user.Role)
	assert.True(t, user.Active())

	require.NoError(t, s.UpdateUserStatus(ctx, "kasir", domain.UserStatusInactive))
	user, _ = s.GetUser(ctx, "kasir")
	assert.False(t, user.Active())
	require.ErrorIs(t, s.UpdateUserPassword(ctx, "nobody", "x"), store.ErrNotFound)
}

func TestUpdateItemAppliesOnlySetFields(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.AdjustQuantity(ctx, "MED001", -3)
	require.NoError(t, err)

	price := int64(1100)
	previous, updated, err := s.UpdateItem(ctx, "MED001", domain.ItemUpdate{RetailPriceCents: &price})
	require.NoError(t, err)
	assert.Equal(t, int64(1000), previous.RetailPriceCents)
	assert.Equal(t, int64(1100), updated.RetailPriceCents)
	assert.Equal(t, 97, updated.Quantity)

	empty := ""
	_, _, err = s.UpdateItem(ctx, "MED001", domain.ItemUpdate{Name: &empty})
	require.ErrorIs(t, err, store.ErrInvalidInput)

	_, _, err = s.UpdateItem(ctx, "NOPE", domain.ItemUpdate{Name: &empty})
	require.ErrorIs(t, err, store.ErrNotFound)
}
