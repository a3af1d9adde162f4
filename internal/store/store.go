package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"medpos/backend/internal/domain"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrOutOfStock          = errors.New("out of stock")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrEmptyCart           = errors.New("cart is empty")
	ErrEmptyResult         = errors.New("edit would leave the transaction empty")
	ErrAlreadyReturned     = errors.New("transaction already returned")
	ErrInvalidState        = errors.New("transaction is not in the required state")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrDuplicateID         = errors.New("duplicate identifier")
	ErrStorage             = errors.New("storage error")
	ErrInvalidInput        = errors.New("invalid input")
	ErrItemReferenced      = errors.New("item is referenced by transactions")
)

// StockError names the item that failed a stock check.
type StockError struct {
	ItemID    string
	Requested int
	Available int
	Err       error
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%v: item %s requested %d, available %d", e.Err, e.ItemID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error {
	return e.Err
}

// NewStockError returns ErrOutOfStock when nothing is left and ErrInsufficientStock otherwise.
func NewStockError(itemID string, requested int, available int) error {
	kind := ErrInsufficientStock
	if available <= 0 {
		kind = ErrOutOfStock
	}
	return &StockError{ItemID: itemID, Requested: requested, Available: available, Err: kind}
}

// Storage wraps a persistence failure so it matches ErrStorage and keeps the cause.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// ValidateItem checks the fields every inventory row must carry.
func ValidateItem(item domain.InventoryItem) error {
	switch {
	case strings.TrimSpace(item.ID) == "":
		return fmt.Errorf("%w: item id is required", ErrInvalidInput)
	case strings.TrimSpace(item.Name) == "":
		return fmt.Errorf("%w: item name is required", ErrInvalidInput)
	case item.Quantity < 0:
		return fmt.Errorf("%w: quantity cannot be negative", ErrInvalidInput)
	case item.UnitCostCents < 0 || item.RetailPriceCents < 0:
		return fmt.Errorf("%w: prices cannot be negative", ErrInvalidInput)
	}
	return nil
}

type InventoryRepository interface {
	GetItem(ctx context.Context, id string) (*domain.InventoryItem, error)
	ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.InventoryItem, error)
	CreateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error)
	// UpdateItem applies update to the current row under the item's lock and
	// returns the row before and after. Quantity is only written when
	// update.Quantity is set.
	UpdateItem(ctx context.Context, id string, update domain.ItemUpdate) (previous *domain.InventoryItem, updated *domain.InventoryItem, err error)
	DeleteItem(ctx context.Context, id string, force bool) error
	AdjustQuantity(ctx context.Context, id string, delta int) (int, error)
	ListLowStock(ctx context.Context, threshold int) ([]domain.InventoryItem, error)
}

type LedgerRepository interface {
	CommitSale(ctx context.Context, sale domain.Sale) (*domain.Transaction, error)
	CreateHeld(ctx context.Context, held domain.Transaction, user string) (*domain.Transaction, error)
	PopHeld(ctx context.Context, id string) (*domain.Transaction, error)
	ReturnTransaction(ctx context.Context, id string, user string, at time.Time) (*domain.Transaction, error)
	EditTransaction(ctx context.Context, edit domain.TransactionEdit) (*domain.Transaction, error)
	FindTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error)
	GetItemsByIDs(ctx context.Context, ids []string) (map[string]domain.InventoryItem, error)
}

type SalesRepository interface {
	GetDailySales(ctx context.Context, day time.Time) (*domain.DailySalesRecord, error)
	ListDailySales(ctx context.Context, from time.Time, to time.Time) ([]domain.DailySalesRecord, error)
}

type LogRepository interface {
	AppendLog(ctx context.Context, entry domain.TransactionLogEntry) error
	ListLog(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.TransactionLogEntry, error)
}

type CustomerRepository interface {
	CreateCustomer(ctx context.Context, customer domain.Customer, at time.Time) (*domain.Customer, error)
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	ListCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error)
}

type UserRepository interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserStatus(ctx context.Context, username string, status string) error
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type Repository interface {
	InventoryRepository
	LedgerRepository
	SalesRepository
	LogRepository
	CustomerRepository
	UserRepository
}
