package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"medpos/backend/internal/domain"
	"medpos/backend/internal/idgen"
	"medpos/backend/internal/ledger"
	"medpos/backend/internal/search"
	"medpos/backend/internal/store"
	"medpos/backend/internal/xid"
)

const dayKeyLayout = "2006-01-02"

// Store keeps everything in process. One mutex guards inventory, ledger and
// aggregates together, so every write below is a single critical section.
type Store struct {
	mu           sync.RWMutex
	items        map[string]domain.InventoryItem
	transactions map[string]*domain.Transaction
	daily        map[string]domain.DailySalesRecord
	logs         []domain.TransactionLogEntry
	customers    map[string]domain.Customer
	users        map[string]domain.UserAccount
	sequences    map[string]int
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{
		items:        make(map[string]domain.InventoryItem),
		transactions: make(map[string]*domain.Transaction),
		daily:        make(map[string]domain.DailySalesRecord),
		logs:         make([]domain.TransactionLogEntry, 0, 128),
		customers:    make(map[string]domain.Customer),
		users:        make(map[string]domain.UserAccount),
		sequences:    make(map[string]int),
	}
}

// NewSeeded returns a store stocked with a small pharmacy catalogue for demo
// and development runs.
func NewSeeded() *Store {
	s := New()
	for _, item := range []domain.InventoryItem{
		{ID: "MED001", Name: "Paracetamol 500mg", Category: "Analgesic", UnitCostCents: 800, RetailPriceCents: 1000, Quantity: 100, Supplier: "Kimia Farma"},
		{ID: "MED002", Name: "Amoxicillin 500mg", Category: "Antibiotic", UnitCostCents: 1240, RetailPriceCents: 1500, Quantity: 60, Supplier: "Kalbe"},
		{ID: "MED003", Name: "Vitamin C 1000mg", Category: "Supplement", UnitCostCents: 150, RetailPriceCents: 250, Quantity: 240, Supplier: "Kalbe"},
		{ID: "MED004", Name: "Ibuprofen 400mg", Category: "Analgesic", UnitCostCents: 900, RetailPriceCents: 1200, Quantity: 80, Supplier: "Kimia Farma"},
		{ID: "MED005", Name: "Antacid Syrup 100ml", Category: "Digestive", UnitCostCents: 1800, RetailPriceCents: 2400, Quantity: 25, Supplier: "Sanbe"},
		{ID: "MED006", Name: "Cough Syrup 60ml", Category: "Respiratory", UnitCostCents: 1500, RetailPriceCents: 2100, Quantity: 8, Supplier: "Sanbe"},
		{ID: "MED007", Name: "Elastic Bandage", Category: "First aid", UnitCostCents: 700, RetailPriceCents: 1100, Quantity: 40, Supplier: "OneMed"},
		{ID: "MED008", Name: "Oral Rehydration Salts", Category: "Digestive", UnitCostCents: 300, RetailPriceCents: 450, Quantity: 4, Supplier: "Pharos"},
	} {
		s.items[item.ID] = item
	}
	return s
}

func (s *Store) GetItem(_ context.Context, id string) (*domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	return &item, nil
}

func (s *Store) ListItems(_ context.Context, filter domain.ItemFilter) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	all := make([]domain.InventoryItem, 0, len(s.items))
	for _, item := range s.items {
		all = append(all, item)
	}
	s.mu.RUnlock()

	return search.Filter(all, filter), nil
}

func (s *Store) CreateItem(_ context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if err := store.ValidateItem(item); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[item.ID]; exists {
		return nil, fmt.Errorf("item %s: %w", item.ID, store.ErrDuplicateID)
	}
	s.items[item.ID] = item
	return &item, nil
}

func (s *Store) UpdateItem(_ context.Context, id string, update domain.ItemUpdate) (*domain.InventoryItem, *domain.InventoryItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	previous, exists := s.items[id]
	if !exists {
		return nil, nil, fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	updated := update.Apply(previous)
	if err := store.ValidateItem(updated); err != nil {
		return nil, nil, err
	}
	s.items[id] = updated
	return &previous, &updated, nil
}

func (s *Store) DeleteItem(_ context.Context, id string, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	if !force {
		for _, tx := range s.transactions {
			for _, line := range tx.Items {
				if line.ItemID == id {
					return fmt.Errorf("item %s in %s: %w", id, tx.ID, store.ErrItemReferenced)
				}
			}
		}
	}
	delete(s.items, id)
	return nil
}

func (s *Store) AdjustQuantity(_ context.Context, id string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return 0, fmt.Errorf("item %s: %w", id, store.ErrNotFound)
	}
	if item.Quantity+delta < 0 {
		return 0, store.NewStockError(id, -delta, item.Quantity)
	}
	item.Quantity += delta
	s.items[id] = item
	return item.Quantity, nil
}

func (s *Store) ListLowStock(_ context.Context, threshold int) ([]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.InventoryItem, 0, 16)
	for _, item := range s.items {
		if item.Quantity <= threshold {
			result = append(result, item)
		}
	}
	slices.SortFunc(result, func(a, b domain.InventoryItem) int {
		if a.Quantity != b.Quantity {
			return a.Quantity - b.Quantity
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}

func (s *Store) GetItemsByIDs(_ context.Context, ids []string) (map[string]domain.InventoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.InventoryItem, len(ids))
	for _, id := range ids {
		if item, ok := s.items[id]; ok {
			result[id] = item
		}
	}
	return result, nil
}

// CommitSale re-validates stock, assigns the next transaction id, decrements
// stock, records the transaction, folds it into the day's aggregate and logs
// it, all under the write lock.
func (s *Store) CommitSale(ctx context.Context, sale domain.Sale) (*domain.Transaction, error) {
	lines := ledger.NormalizeLines(sale.Lines)
	if len(lines) == 0 {
		return nil, store.ErrEmptyCart
	}
	if sale.CashPaidCents < sale.TotalCents {
		return nil, store.ErrInsufficientPayment
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, line := range lines {
		item, ok := s.items[line.ItemID]
		if !ok {
			return nil, fmt.Errorf("item %s: %w", line.ItemID, store.ErrNotFound)
		}
		if item.Quantity < line.Qty {
			return nil, store.NewStockError(line.ItemID, line.Qty, item.Quantity)
		}
	}

	id, err := idgen.New(lockedSequences{s}).NextTransactionID(ctx, sale.At)
	if err != nil {
		return nil, err
	}
	if _, exists := s.transactions[id]; exists {
		return nil, fmt.Errorf("transaction %s: %w", id, store.ErrDuplicateID)
	}

	for _, line := range lines {
		item := s.items[line.ItemID]
		item.Quantity -= line.Qty
		s.items[line.ItemID] = item
	}

	tx := &domain.Transaction{
		ID:            id,
		Items:         lines,
		TotalCents:    sale.TotalCents,
		CashPaidCents: sale.CashPaidCents,
		ChangeCents:   sale.CashPaidCents - sale.TotalCents,
		Timestamp:     sale.At,
		Status:        domain.TxStatusCompleted,
		PaymentMethod: defaultString(sale.PaymentMethod, domain.DefaultPaymentMethod),
		CustomerID:    sale.CustomerID,
	}
	s.transactions[id] = tx

	sale.Lines = lines
	key := ledger.SaleDate(sale.At).Format(dayKeyLayout)
	s.daily[key] = ledger.Accumulate(s.daily[key], sale)

	s.appendLogLocked("checkout", fmt.Sprintf("transaction=%s total=%d units=%d", id, tx.TotalCents, tx.UnitCount()), sale.User, sale.At)
	return cloneTransaction(tx), nil
}

func (s *Store) CreateHeld(ctx context.Context, held domain.Transaction, user string) (*domain.Transaction, error) {
	lines := ledger.NormalizeLines(held.Items)
	if len(lines) == 0 {
		return nil, store.ErrEmptyCart
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := idgen.New(lockedSequences{s}).NextTransactionID(ctx, held.Timestamp)
	if err != nil {
		return nil, err
	}
	if _, exists := s.transactions[id]; exists {
		return nil, fmt.Errorf("transaction %s: %w", id, store.ErrDuplicateID)
	}

	tx := &domain.Transaction{
		ID:            id,
		Items:         lines,
		TotalCents:    held.TotalCents,
		Timestamp:     held.Timestamp,
		Status:        domain.TxStatusHeld,
		PaymentMethod: defaultString(held.PaymentMethod, domain.DefaultPaymentMethod),
		CustomerID:    held.CustomerID,
	}
	s.transactions[id] = tx
	s.appendLogLocked("hold", fmt.Sprintf("transaction=%s lines=%d", id, len(lines)), user, held.Timestamp)
	return cloneTransaction(tx), nil
}

func (s *Store) PopHeld(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	if tx.Status != domain.TxStatusHeld {
		return nil, fmt.Errorf("transaction %s is %s: %w", id, tx.Status, store.ErrInvalidState)
	}
	delete(s.transactions, id)
	return cloneTransaction(tx), nil
}

func (s *Store) ReturnTransaction(_ context.Context, id string, user string, at time.Time) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	switch tx.Status {
	case domain.TxStatusCompleted:
	case domain.TxStatusReturned:
		return nil, fmt.Errorf("transaction %s: %w", id, store.ErrAlreadyReturned)
	default:
		return nil, fmt.Errorf("transaction %s is %s: %w", id, tx.Status, store.ErrInvalidState)
	}

	missing := make([]string, 0)
	for _, line := range tx.Items {
		item, exists := s.items[line.ItemID]
		if !exists {
			missing = append(missing, line.ItemID)
			continue
		}
		item.Quantity += line.Qty
		s.items[line.ItemID] = item
	}
	tx.Status = domain.TxStatusReturned

	details := fmt.Sprintf("transaction=%s units=%d", id, tx.UnitCount())
	if len(missing) > 0 {
		details += " not_restocked=" + strings.Join(missing, ",")
	}
	s.appendLogLocked("return", details, user, at)
	return cloneTransaction(tx), nil
}

func (s *Store) EditTransaction(_ context.Context, edit domain.TransactionEdit) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[edit.TransactionID]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", edit.TransactionID, store.ErrNotFound)
	}
	if tx.Status != domain.TxStatusCompleted {
		return nil, fmt.Errorf("transaction %s is %s: %w", tx.ID, tx.Status, store.ErrInvalidState)
	}

	plan, err := ledger.PlanEdit(tx.Items, edit.Quantities)
	if err != nil {
		return nil, err
	}

	for itemID, delta := range plan.StockDelta {
		item, exists := s.items[itemID]
		if !exists {
			return nil, fmt.Errorf("item %s: %w", itemID, store.ErrNotFound)
		}
		if item.Quantity+delta < 0 {
			return nil, store.NewStockError(itemID, -delta, item.Quantity)
		}
	}

	total, err := ledger.EditedTotal(tx.TotalCents, plan.StockDelta, s.items)
	if err != nil {
		return nil, err
	}
	cashPaid := tx.CashPaidCents
	if edit.CashPaidCents != nil {
		cashPaid = *edit.CashPaidCents
	}
	if cashPaid < total {
		return nil, store.ErrInsufficientPayment
	}

	for itemID, delta := range plan.StockDelta {
		item := s.items[itemID]
		item.Quantity += delta
		s.items[itemID] = item
	}
	before := ledger.EncodeItems(tx.Items)
	tx.Items = plan.Lines
	tx.TotalCents = total
	tx.CashPaidCents = cashPaid
	tx.ChangeCents = cashPaid - total

	s.appendLogLocked("edit", fmt.Sprintf("transaction=%s items=%s->%s total=%d", tx.ID, before, ledger.EncodeItems(tx.Items), total), edit.User, edit.At)
	return cloneTransaction(tx), nil
}

func (s *Store) FindTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, store.ErrNotFound)
	}
	return cloneTransaction(tx), nil
}

func (s *Store) ListTransactions(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToUpper(strings.TrimSpace(filter.Query))
	result := make([]domain.Transaction, 0, 64)
	for _, tx := range s.transactions {
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		if filter.CustomerID != "" && tx.CustomerID != filter.CustomerID {
			continue
		}
		if !filter.From.IsZero() && tx.Timestamp.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !tx.Timestamp.Before(filter.To) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToUpper(tx.ID), query) &&
			!strings.Contains(strings.ToUpper(ledger.EncodeItems(tx.Items)), query) {
			continue
		}
		result = append(result, *cloneTransaction(tx))
	}
	slices.SortFunc(result, func(a, b domain.Transaction) int {
		if !a.Timestamp.Equal(b.Timestamp) {
			return b.Timestamp.Compare(a.Timestamp)
		}
		return strings.Compare(b.ID, a.ID)
	})
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) GetDailySales(_ context.Context, day time.Time) (*domain.DailySalesRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.daily[day.Format(dayKeyLayout)]
	if !ok {
		return nil, fmt.Errorf("sales for %s: %w", day.Format(dayKeyLayout), store.ErrNotFound)
	}
	return &record, nil
}

func (s *Store) ListDailySales(_ context.Context, from time.Time, to time.Time) ([]domain.DailySalesRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fromKey, toKey := from.Format(dayKeyLayout), to.Format(dayKeyLayout)
	result := make([]domain.DailySalesRecord, 0, 31)
	for key, record := range s.daily {
		if key < fromKey || key > toKey {
			continue
		}
		result = append(result, record)
	}
	slices.SortFunc(result, func(a, b domain.DailySalesRecord) int {
		return a.SaleDate.Compare(b.SaleDate)
	})
	return result, nil
}

func (s *Store) AppendLog(_ context.Context, entry domain.TransactionLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("log")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	s.logs = append(s.logs, entry)
	return nil
}

func (s *Store) ListLog(_ context.Context, from time.Time, to time.Time, limit int) ([]domain.TransactionLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.TransactionLogEntry, 0, 64)
	for i := len(s.logs) - 1; i >= 0; i-- {
		entry := s.logs[i]
		if !from.IsZero() && entry.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && !entry.Timestamp.Before(to) {
			continue
		}
		result = append(result, entry)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer, at time.Time) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, fmt.Errorf("%w: customer name is required", store.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := idgen.New(lockedSequences{s}).NextCustomerID(ctx, at)
	if err != nil {
		return nil, err
	}
	if _, exists := s.customers[id]; exists {
		return nil, fmt.Errorf("customer %s: %w", id, store.ErrDuplicateID)
	}
	customer.ID = id
	s.customers[id] = customer
	return &customer, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", id, store.ErrNotFound)
	}
	return &customer, nil
}

func (s *Store) ListCustomers(_ context.Context, query string, limit int) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := search.Normalize(query)
	result := make([]domain.Customer, 0, len(s.customers))
	for _, customer := range s.customers {
		if q != "" && !strings.Contains(search.Normalize(customer.Name), q) &&
			!strings.Contains(search.Normalize(customer.ID), q) &&
			!strings.Contains(search.Normalize(customer.Contact), q) {
			continue
		}
		result = append(result, customer)
	}
	slices.SortFunc(result, func(a, b domain.Customer) int {
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return fmt.Errorf("%w: username and password are required", store.ErrInvalidInput)
	}
	if _, exists := s.users[username]; exists {
		return fmt.Errorf("user %s: %w", username, store.ErrDuplicateID)
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.Status == "" {
		user.Status = domain.UserStatusActive
	}
	s.users[username] = user
	return nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[strings.ToLower(strings.TrimSpace(username))]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, store.ErrNotFound)
	}
	return &user, nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserStatus(_ context.Context, username string, status string) error {
	return s.updateUser(username, func(u *domain.UserAccount) { u.Status = status })
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: password is required", store.ErrInvalidInput)
	}
	return s.updateUser(username, func(u *domain.UserAccount) { u.Password = password })
}

func (s *Store) updateUser(username string, mutate func(*domain.UserAccount)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	user, exists := s.users[username]
	if !exists {
		return fmt.Errorf("user %s: %w", username, store.ErrNotFound)
	}
	mutate(&user)
	s.users[username] = user
	return nil
}

func (s *Store) appendLogLocked(action string, details string, user string, at time.Time) {
	if user == "" {
		user = "system"
	}
	s.logs = append(s.logs, domain.TransactionLogEntry{
		ID:        xid.New("log"),
		Action:    action,
		Details:   details,
		Timestamp: at,
		User:      user,
	})
}

// lockedSequences serves idgen from the in-memory counters. Callers hold s.mu.
type lockedSequences struct {
	s *Store
}

func (l lockedSequences) NextSequence(_ context.Context, kind idgen.Kind, period string) (int, error) {
	key := string(kind) + "/" + period
	last, seeded := l.s.sequences[key]
	if !seeded {
		ids := make([]string, 0, len(l.s.transactions))
		if kind == idgen.KindCustomer {
			for id := range l.s.customers {
				ids = append(ids, id)
			}
		} else {
			for id := range l.s.transactions {
				ids = append(ids, id)
			}
		}
		last = idgen.MaxSequence(kind, period, ids)
	}
	last++
	l.s.sequences[key] = last
	return last, nil
}

func cloneTransaction(src *domain.Transaction) *domain.Transaction {
	if src == nil {
		return nil
	}
	dup := *src
	dupItems := make([]domain.TransactionLine, len(src.Items))
	copy(dupItems, src.Items)
	dup.Items = dupItems
	return &dup
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
