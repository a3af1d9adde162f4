package postgres

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"medpos/backend/internal/domain"
	"medpos/backend/internal/idgen"
	"medpos/backend/internal/ledger"
	"medpos/backend/internal/store"
	"medpos/backend/internal/xid"
)

const transactionColumns = "transaction_id, items, total_amount, cash_paid, change_amount, timestamp, status, payment_method, customer_id"

type transactionRow struct {
	ID            string    `db:"transaction_id"`
	Items         string    `db:"items"`
	TotalCents    int64     `db:"total_amount"`
	CashPaidCents int64     `db:"cash_paid"`
	ChangeCents   int64     `db:"change_amount"`
	Timestamp     time.Time `db:"timestamp"`
	Status        string    `db:"status"`
	PaymentMethod string    `db:"payment_method"`
	CustomerID    *string   `db:"customer_id"`
}

func (r transactionRow) toDomain() (*domain.Transaction, error) {
	lines, err := ledger.DecodeItems(r.Items)
	if err != nil {
		return nil, store.Storage("decode transaction "+r.ID, err)
	}
	tx := &domain.Transaction{
		ID:            r.ID,
		Items:         lines,
		TotalCents:    r.TotalCents,
		CashPaidCents: r.CashPaidCents,
		ChangeCents:   r.ChangeCents,
		Timestamp:     r.Timestamp,
		Status:        domain.TransactionStatus(r.Status),
		PaymentMethod: r.PaymentMethod,
	}
	if r.CustomerID != nil {
		tx.CustomerID = *r.CustomerID
	}
	return tx, nil
}

// CommitSale locks the sold rows, re-validates stock, assigns the next id,
// decrements stock, stores the transaction, folds it into daily_sales and
// logs it in one serializable transaction.
func (s *Store) CommitSale(ctx context.Context, sale domain.Sale) (*domain.Transaction, error) {
	lines := ledger.NormalizeLines(sale.Lines)
	if len(lines) == 0 {
		return nil, store.ErrEmptyCart
	}
	if sale.CashPaidCents < sale.TotalCents {
		return nil, store.ErrInsufficientPayment
	}

	var created *domain.Transaction
	err := s.inTx(ctx, "commit sale", func(tx pgx.Tx) error {
		items, err := itemsByIDs(ctx, tx, ledger.ItemIDs(lines), true)
		if err != nil {
			return err
		}
		for _, line := range lines {
			item, ok := items[line.ItemID]
			if !ok {
				return fmt.Errorf("item %s: %w", line.ItemID, store.ErrNotFound)
			}
			if item.Quantity < line.Qty {
				return store.NewStockError(line.ItemID, line.Qty, item.Quantity)
			}
		}

		id, err := idgen.New(txSequences{tx}).NextTransactionID(ctx, sale.At)
		if err != nil {
			return err
		}

		for _, line := range lines {
			if _, err := tx.Exec(ctx, `UPDATE inventory SET quantity = quantity - $2 WHERE item_id = $1`, line.ItemID, line.Qty); err != nil {
				return err
			}
		}

		record := domain.Transaction{
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
		if err := insertTransaction(ctx, tx, record); err != nil {
			return err
		}

		sale.Lines = lines
		day := ledger.Accumulate(domain.DailySalesRecord{}, sale)
		_, err = tx.Exec(ctx, `
			INSERT INTO daily_sales (sale_date, total_sales, unit_sales, net_profit, "user")
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (sale_date) DO UPDATE SET
				total_sales = daily_sales.total_sales + EXCLUDED.total_sales,
				unit_sales = daily_sales.unit_sales + EXCLUDED.unit_sales,
				net_profit = daily_sales.net_profit + EXCLUDED.net_profit,
				"user" = EXCLUDED."user"
		`, dateOnly(day.SaleDate), day.TotalSalesCents, day.UnitSales, day.NetProfitCents, day.LastUser)
		if err != nil {
			return err
		}

		if err := appendLog(ctx, tx, "checkout", fmt.Sprintf("transaction=%s total=%d units=%d", id, record.TotalCents, record.UnitCount()), sale.User, sale.At); err != nil {
			return err
		}
		created = &record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Store) CreateHeld(ctx context.Context, held domain.Transaction, user string) (*domain.Transaction, error) {
	lines := ledger.NormalizeLines(held.Items)
	if len(lines) == 0 {
		return nil, store.ErrEmptyCart
	}

	var created *domain.Transaction
	err := s.inTx(ctx, "hold", func(tx pgx.Tx) error {
		id, err := idgen.New(txSequences{tx}).NextTransactionID(ctx, held.Timestamp)
		if err != nil {
			return err
		}
		record := domain.Transaction{
			ID:            id,
			Items:         lines,
			TotalCents:    held.TotalCents,
			Timestamp:     held.Timestamp,
			Status:        domain.TxStatusHeld,
			PaymentMethod: defaultString(held.PaymentMethod, domain.DefaultPaymentMethod),
			CustomerID:    held.CustomerID,
		}
		if err := insertTransaction(ctx, tx, record); err != nil {
			return err
		}
		if err := appendLog(ctx, tx, "hold", fmt.Sprintf("transaction=%s lines=%d", id, len(lines)), user, held.Timestamp); err != nil {
			return err
		}
		created = &record
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// PopHeld deletes a held transaction and returns it; the row is gone once
// this commits.
func (s *Store) PopHeld(ctx context.Context, id string) (*domain.Transaction, error) {
	var popped *domain.Transaction
	err := s.inTx(ctx, "pop held", func(tx pgx.Tx) error {
		current, err := lockTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		if current.Status != domain.TxStatusHeld {
			return fmt.Errorf("transaction %s is %s: %w", id, current.Status, store.ErrInvalidState)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM transactions WHERE transaction_id = $1`, id); err != nil {
			return err
		}
		popped = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return popped, nil
}

func (s *Store) ReturnTransaction(ctx context.Context, id string, user string, at time.Time) (*domain.Transaction, error) {
	var returned *domain.Transaction
	err := s.inTx(ctx, "return", func(tx pgx.Tx) error {
		current, err := lockTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		switch current.Status {
		case domain.TxStatusCompleted:
		case domain.TxStatusReturned:
			return fmt.Errorf("transaction %s: %w", id, store.ErrAlreadyReturned)
		default:
			return fmt.Errorf("transaction %s is %s: %w", id, current.Status, store.ErrInvalidState)
		}

		items, err := itemsByIDs(ctx, tx, ledger.ItemIDs(current.Items), true)
		if err != nil {
			return err
		}
		missing := make([]string, 0)
		for _, line := range current.Items {
			if _, ok := items[line.ItemID]; !ok {
				missing = append(missing, line.ItemID)
				continue
			}
			if _, err := tx.Exec(ctx, `UPDATE inventory SET quantity = quantity + $2 WHERE item_id = $1`, line.ItemID, line.Qty); err != nil {
				return err
			}
		}
		if _, err := tx.Exec(ctx, `UPDATE transactions SET status = $2 WHERE transaction_id = $1`, id, string(domain.TxStatusReturned)); err != nil {
			return err
		}

		details := fmt.Sprintf("transaction=%s units=%d", id, current.UnitCount())
		if len(missing) > 0 {
			details += " not_restocked=" + strings.Join(missing, ",")
		}
		if err := appendLog(ctx, tx, "return", details, user, at); err != nil {
			return err
		}
		current.Status = domain.TxStatusReturned
		returned = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return returned, nil
}

func (s *Store) EditTransaction(ctx context.Context, edit domain.TransactionEdit) (*domain.Transaction, error) {
	var edited *domain.Transaction
	err := s.inTx(ctx, "edit", func(tx pgx.Tx) error {
		current, err := lockTransaction(ctx, tx, edit.TransactionID)
		if err != nil {
			return err
		}
		if current.Status != domain.TxStatusCompleted {
			return fmt.Errorf("transaction %s is %s: %w", current.ID, current.Status, store.ErrInvalidState)
		}

		plan, err := ledger.PlanEdit(current.Items, edit.Quantities)
		if err != nil {
			return err
		}

		ids := make([]string, 0, len(plan.StockDelta))
		for itemID := range plan.StockDelta {
			ids = append(ids, itemID)
		}
		slices.Sort(ids)
		items, err := itemsByIDs(ctx, tx, ids, true)
		if err != nil {
			return err
		}
		for itemID, delta := range plan.StockDelta {
			item, ok := items[itemID]
			if !ok {
				return fmt.Errorf("item %s: %w", itemID, store.ErrNotFound)
			}
			if item.Quantity+delta < 0 {
				return store.NewStockError(itemID, -delta, item.Quantity)
			}
		}

		total, err := ledger.EditedTotal(current.TotalCents, plan.StockDelta, items)
		if err != nil {
			return err
		}
		cashPaid := current.CashPaidCents
		if edit.CashPaidCents != nil {
			cashPaid = *edit.CashPaidCents
		}
		if cashPaid < total {
			return store.ErrInsufficientPayment
		}

		for itemID, delta := range plan.StockDelta {
			if _, err := tx.Exec(ctx, `UPDATE inventory SET quantity = quantity + $2 WHERE item_id = $1`, itemID, delta); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, `
			UPDATE transactions
			SET items = $2, total_amount = $3, cash_paid = $4, change_amount = $5
			WHERE transaction_id = $1
		`, current.ID, ledger.EncodeItems(plan.Lines), total, cashPaid, cashPaid-total)
		if err != nil {
			return err
		}

		details := fmt.Sprintf("transaction=%s items=%s->%s total=%d", current.ID, ledger.EncodeItems(current.Items), ledger.EncodeItems(plan.Lines), total)
		if err := appendLog(ctx, tx, "edit", details, edit.User, edit.At); err != nil {
			return err
		}

		current.Items = plan.Lines
		current.TotalCents = total
		current.CashPaidCents = cashPaid
		current.ChangeCents = cashPaid - total
		edited = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return edited, nil
}

func (s *Store) FindTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	var row transactionRow
	err := pgxscan.Get(ctx, s.db, &row, `SELECT `+transactionColumns+` FROM transactions WHERE transaction_id = $1`, id)
	if err != nil {
		return nil, mapError(err, "transaction", id)
	}
	return row.toDomain()
}

func (s *Store) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]domain.Transaction, error) {
	builder := psql.Select(transactionColumns).From("transactions").OrderBy("timestamp DESC", "transaction_id DESC")
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.CustomerID != "" {
		builder = builder.Where(sq.Eq{"customer_id": filter.CustomerID})
	}
	if !filter.From.IsZero() {
		builder = builder.Where(sq.GtOrEq{"timestamp": filter.From})
	}
	if !filter.To.IsZero() {
		builder = builder.Where(sq.Lt{"timestamp": filter.To})
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + likeEscape(q) + "%"
		builder = builder.Where(sq.Or{sq.ILike{"transaction_id": pattern}, sq.ILike{"items": pattern}})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	query, args, err := toSQL(builder)
	if err != nil {
		return nil, err
	}

	rows := make([]transactionRow, 0, 64)
	if err := pgxscan.Select(ctx, s.db, &rows, query, args...); err != nil {
		return nil, mapError(err, "transactions", "")
	}
	result := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		tx, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, *tx)
	}
	return result, nil
}

func lockTransaction(ctx context.Context, tx pgx.Tx, id string) (*domain.Transaction, error) {
	var row transactionRow
	err := pgxscan.Get(ctx, tx, &row, `SELECT `+transactionColumns+` FROM transactions WHERE transaction_id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, mapError(err, "transaction", id)
	}
	return row.toDomain()
}

func insertTransaction(ctx context.Context, q querier, tx domain.Transaction) error {
	_, err := q.Exec(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, tx.ID, ledger.EncodeItems(tx.Items), tx.TotalCents, tx.CashPaidCents, tx.ChangeCents,
		tx.Timestamp, string(tx.Status), tx.PaymentMethod, nullIfEmpty(tx.CustomerID))
	return mapError(err, "transaction", tx.ID)
}

func appendLog(ctx context.Context, q querier, action string, details string, user string, at time.Time) error {
	_, err := q.Exec(ctx, `
		INSERT INTO transaction_log (log_id, action, details, timestamp, "user")
		VALUES ($1, $2, $3, $4, $5)
	`, xid.New("log"), action, details, at, defaultString(user, "system"))
	return mapError(err, "transaction log", "")
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
