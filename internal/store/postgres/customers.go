package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"medpos/backend/internal/domain"
	"medpos/backend/internal/idgen"
	"medpos/backend/internal/store"
)

const customerColumns = "customer_id, name, contact, address"

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer, at time.Time) (*domain.Customer, error) {
	if strings.TrimSpace(customer.Name) == "" {
		return nil, fmt.Errorf("%w: customer name is required", store.ErrInvalidInput)
	}
	err := s.inTx(ctx, "create customer", func(tx pgx.Tx) error {
		id, err := idgen.New(txSequences{tx}).NextCustomerID(ctx, at)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO customers (customer_id, name, contact, address)
			VALUES ($1, $2, $3, $4)
		`, id, customer.Name, customer.Contact, customer.Address)
		if err != nil {
			return mapError(err, "customer", id)
		}
		customer.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	var customer domain.Customer
	err := pgxscan.Get(ctx, s.db, &customer, `SELECT `+customerColumns+` FROM customers WHERE customer_id = $1`, id)
	if err != nil {
		return nil, mapError(err, "customer", id)
	}
	return &customer, nil
}

func (s *Store) ListCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error) {
	builder := psql.Select(customerColumns).From("customers").OrderBy("customer_id")
	if q := strings.TrimSpace(query); q != "" {
		pattern := "%" + likeEscape(q) + "%"
		builder = builder.Where(sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"customer_id": pattern},
			sq.ILike{"contact": pattern},
		})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	sqlText, args, err := toSQL(builder)
	if err != nil {
		return nil, err
	}

	customers := make([]domain.Customer, 0, 32)
	if err := pgxscan.Select(ctx, s.db, &customers, sqlText, args...); err != nil {
		return nil, mapError(err, "customers", "")
	}
	return customers, nil
}
