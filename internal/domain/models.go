package domain

import "time"

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"

	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

type TransactionStatus string

const (
	TxStatusCompleted TransactionStatus = "Completed"
	TxStatusHeld      TransactionStatus = "Held"
	TxStatusReturned  TransactionStatus = "Returned"
)

// CheckoutState tracks one cart session through a sale.
type CheckoutState string

const (
	StateBuilding       CheckoutState = "Building"
	StatePendingPayment CheckoutState = "PendingPayment"
	StateCompleted      CheckoutState = "Completed"
	StateHeld           CheckoutState = "Held"
	StateVoided         CheckoutState = "Voided"
)

// Terminal reports whether no further transition is possible for the current sale.
func (s CheckoutState) Terminal() bool {
	return s == StateCompleted || s == StateHeld || s == StateVoided
}

const DefaultPaymentMethod = "cash"

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type InventoryItem struct {
	ID               string `json:"id" db:"item_id"`
	Name             string `json:"name" db:"name"`
	Category         string `json:"category" db:"type"`
	UnitCostCents    int64  `json:"unit_cost_cents" db:"unit_price"`
	RetailPriceCents int64  `json:"retail_price_cents" db:"retail_price"`
	Quantity         int    `json:"quantity" db:"quantity"`
	Supplier         string `json:"supplier" db:"supplier"`
}

// MarginCents is the per-unit profit at current prices.
func (i InventoryItem) MarginCents() int64 {
	return i.RetailPriceCents - i.UnitCostCents
}

type ItemFilter struct {
	Query    string
	Category string
	Limit    int
}

type ItemUpdate struct {
	Name             *string `json:"name,omitempty"`
	Category         *string `json:"category,omitempty"`
	UnitCostCents    *int64  `json:"unit_cost_cents,omitempty"`
	RetailPriceCents *int64  `json:"retail_price_cents,omitempty"`
	Quantity         *int    `json:"quantity,omitempty"`
	Supplier         *string `json:"supplier,omitempty"`
}

// FullUpdate sets every editable field of item, quantity included.
func FullUpdate(item InventoryItem) ItemUpdate {
	return ItemUpdate{
		Name:             &item.Name,
		Category:         &item.Category,
		UnitCostCents:    &item.UnitCostCents,
		RetailPriceCents: &item.RetailPriceCents,
		Quantity:         &item.Quantity,
		Supplier:         &item.Supplier,
	}
}

// Apply returns item with the non-nil fields of u written over it.
func (u ItemUpdate) Apply(item InventoryItem) InventoryItem {
	if u.Name != nil {
		item.Name = *u.Name
	}
	if u.Category != nil {
		item.Category = *u.Category
	}
	if u.UnitCostCents != nil {
		item.UnitCostCents = *u.UnitCostCents
	}
	if u.RetailPriceCents != nil {
		item.RetailPriceCents = *u.RetailPriceCents
	}
	if u.Quantity != nil {
		item.Quantity = *u.Quantity
	}
	if u.Supplier != nil {
		item.Supplier = *u.Supplier
	}
	return item
}

type TransactionLine struct {
	ItemID string `json:"item_id"`
	Qty    int    `json:"qty"`
}

type Transaction struct {
	ID            string            `json:"id"`
	Items         []TransactionLine `json:"items"`
	TotalCents    int64             `json:"total_cents"`
	CashPaidCents int64             `json:"cash_paid_cents"`
	ChangeCents   int64             `json:"change_cents"`
	Timestamp     time.Time         `json:"timestamp"`
	Status        TransactionStatus `json:"status"`
	PaymentMethod string            `json:"payment_method"`
	CustomerID    string            `json:"customer_id,omitempty"`
}

// UnitCount is the number of units across all lines.
func (t Transaction) UnitCount() int {
	units := 0
	for _, line := range t.Items {
		units += line.Qty
	}
	return units
}

type TransactionFilter struct {
	Status     TransactionStatus
	From       time.Time
	To         time.Time
	Query      string
	CustomerID string
	Limit      int
}

// Sale is everything the ledger needs to commit a completed checkout in one write.
type Sale struct {
	Lines          []TransactionLine
	TotalCents     int64
	CashPaidCents  int64
	PaymentMethod  string
	CustomerID     string
	NetProfitCents int64
	User           string
	At             time.Time
}

// TransactionEdit describes an in-place rewrite of a completed transaction.
// Quantities maps item id to the new quantity; items not present keep theirs.
type TransactionEdit struct {
	TransactionID string
	Quantities    map[string]int
	CashPaidCents *int64
	User          string
	At            time.Time
}

type DailySalesRecord struct {
	SaleDate        time.Time `json:"sale_date" db:"sale_date"`
	TotalSalesCents int64     `json:"total_sales_cents" db:"total_sales"`
	UnitSales       int       `json:"unit_sales" db:"unit_sales"`
	NetProfitCents  int64     `json:"net_profit_cents" db:"net_profit"`
	LastUser        string    `json:"last_user" db:"user"`
}

type MonthlySalesSummary struct {
	Month           string `json:"month"`
	TotalSalesCents int64  `json:"total_sales_cents"`
	UnitSales       int    `json:"unit_sales"`
	NetProfitCents  int64  `json:"net_profit_cents"`
	TradingDays     int    `json:"trading_days"`
}

type TransactionLogEntry struct {
	ID        string    `json:"id" db:"log_id"`
	Action    string    `json:"action" db:"action"`
	Details   string    `json:"details" db:"details"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	User      string    `json:"user" db:"user"`
}

type Customer struct {
	ID      string `json:"id" db:"customer_id"`
	Name    string `json:"name" db:"name"`
	Contact string `json:"contact" db:"contact"`
	Address string `json:"address" db:"address"`
}

type UserAccount struct {
	Username string `json:"username" db:"username"`
	Password string `json:"-" db:"password"`
	Role     string `json:"role" db:"role"`
	Status   string `json:"status" db:"status"`
}

func (u UserAccount) Active() bool {
	return u.Status == UserStatusActive
}

type ReceiptLine struct {
	ItemID         string `json:"item_id"`
	Name           string `json:"name"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Qty            int    `json:"qty"`
	SubtotalCents  int64  `json:"subtotal_cents"`
}

// Receipt is a transaction with its lines resolved against current inventory.
type Receipt struct {
	Transaction  Transaction   `json:"transaction"`
	Lines        []ReceiptLine `json:"lines"`
	MissingItems []string      `json:"missing_items,omitempty"`
}

type LowStockAlert struct {
	Threshold int             `json:"threshold"`
	Source    string          `json:"source"`
	Items     []InventoryItem `json:"items"`
	RaisedAt  time.Time       `json:"raised_at"`
}

type CheckoutResult struct {
	Transaction   Transaction     `json:"transaction"`
	SubtotalCents int64           `json:"subtotal_cents"`
	DiscountCents int64           `json:"discount_cents"`
	ChangeCents   int64           `json:"change_cents"`
	LowStock      []InventoryItem `json:"low_stock,omitempty"`
}
