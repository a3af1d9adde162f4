package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"medpos/backend/internal/domain"
	"medpos/backend/internal/search"
	"medpos/backend/internal/store"
)

const itemColumns = "item_id, name, type, unit_price, retail_price, quantity, supplier"

func (s *Store) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := pgxscan.Get(ctx, s.db, &item, `SELECT `+itemColumns+` FROM inventory WHERE item_id = $1`, id)
	if err != nil {
		return nil, mapError(err, "item", id)
	}
	return &item, nil
}

// ListItems narrows by category in SQL and leaves free-text matching to
// search.Filter so accents and case fold the same way as in memory.
func (s *Store) ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.InventoryItem, error) {
	builder := psql.Select(itemColumns).From("inventory").OrderBy("name", "item_id")
	if category := strings.TrimSpace(filter.Category); category != "" {
		builder = builder.Where(sq.ILike{"type": likeEscape(category)})
	}
	query, args, err := toSQL(builder)
	if err != nil {
		return nil, err
	}

	items := make([]domain.InventoryItem, 0, 128)
	if err := pgxscan.Select(ctx, s.db, &items, query, args...); err != nil {
		return nil, mapError(err, "inventory", "")
	}
	return search.Filter(items, filter), nil
}

func (s *Store) CreateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if err := store.ValidateItem(item); err != nil {
		return nil, err
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO inventory (item_id, name, type, unit_price, retail_price, quantity, supplier)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, item.ID, item.Name, item.Category, item.UnitCostCents, item.RetailPriceCents, item.Quantity, item.Supplier)
	if err != nil {
		return nil, mapError(err, "item", item.ID)
	}
	created := item
	return &created, nil
}

// UpdateItem locks the row, applies update and writes quantity back only
// when the update sets it, so stock moved by checkouts stays intact.
func (s *Store) UpdateItem(ctx context.Context, id string, update domain.ItemUpdate) (*domain.InventoryItem, *domain.InventoryItem, error) {
	var previous, updated domain.InventoryItem
	err := s.inTx(ctx, "update item", func(tx pgx.Tx) error {
		err := pgxscan.Get(ctx, tx, &previous, `SELECT `+itemColumns+` FROM inventory WHERE item_id = $1 FOR UPDATE`, id)
		if err != nil {
			return mapError(err, "item", id)
		}
		next := update.Apply(previous)
		if err := store.ValidateItem(next); err != nil {
			return err
		}

		builder := psql.Update("inventory").
			SetMap(map[string]any{
				"name":         next.Name,
				"type":         next.Category,
				"unit_price":   next.UnitCostCents,
				"retail_price": next.RetailPriceCents,
				"supplier":     next.Supplier,
			}).
			Where(sq.Eq{"item_id": id}).
			Suffix("RETURNING " + itemColumns)
		if update.Quantity != nil {
			builder = builder.Set("quantity", next.Quantity)
		}
		query, args, err := toSQL(builder)
		if err != nil {
			return err
		}
		if err := pgxscan.Get(ctx, tx, &updated, query, args...); err != nil {
			return mapError(err, "item", id)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &previous, &updated, nil
}

// DeleteItem refuses to remove an item that any stored transaction still
// names unless force is set.
func (s *Store) DeleteItem(ctx context.Context, id string, force bool) error {
	return s.inTx(ctx, "delete item", func(tx pgx.Tx) error {
		var exists string
		if err := tx.QueryRow(ctx, `SELECT item_id FROM inventory WHERE item_id = $1 FOR UPDATE`, id).Scan(&exists); err != nil {
			return mapError(err, "item", id)
		}
		if !force {
			var txID string
			err := tx.QueryRow(ctx, `
				SELECT transaction_id FROM transactions
				WHERE items LIKE $1 ESCAPE '\' OR items LIKE $2 ESCAPE '\'
				LIMIT 1
			`, likeEscape(id)+":%", "%;"+likeEscape(id)+":%").Scan(&txID)
			switch {
			case err == nil:
				return fmt.Errorf("item %s in %s: %w", id, txID, store.ErrItemReferenced)
			case !errors.Is(err, pgx.ErrNoRows):
				return mapError(err, "item", id)
			}
		}
		if _, err := tx.Exec(ctx, `DELETE FROM inventory WHERE item_id = $1`, id); err != nil {
			return mapError(err, "item", id)
		}
		return nil
	})
}

// AdjustQuantity applies delta in one guarded statement so stock never
// goes below zero.
func (s *Store) AdjustQuantity(ctx context.Context, id string, delta int) (int, error) {
	var quantity int
	err := s.db.QueryRow(ctx, `
		UPDATE inventory SET quantity = quantity + $2
		WHERE item_id = $1 AND quantity + $2 >= 0
		RETURNING quantity
	`, id, delta).Scan(&quantity)
	if err == nil {
		return quantity, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, mapError(err, "item", id)
	}

	var current int
	if err := s.db.QueryRow(ctx, `SELECT quantity FROM inventory WHERE item_id = $1`, id).Scan(&current); err != nil {
		return 0, mapError(err, "item", id)
	}
	return 0, store.NewStockError(id, -delta, current)
}

func (s *Store) ListLowStock(ctx context.Context, threshold int) ([]domain.InventoryItem, error) {
	items := make([]domain.InventoryItem, 0, 16)
	err := pgxscan.Select(ctx, s.db, &items, `
		SELECT `+itemColumns+` FROM inventory
		WHERE quantity <= $1
		ORDER BY quantity, item_id
	`, threshold)
	if err != nil {
		return nil, mapError(err, "low stock", "")
	}
	return items, nil
}

func (s *Store) GetItemsByIDs(ctx context.Context, ids []string) (map[string]domain.InventoryItem, error) {
	return itemsByIDs(ctx, s.db, ids, false)
}

// itemsByIDs loads the named rows; lock takes row locks in item_id order so
// concurrent checkouts over overlapping items cannot deadlock.
func itemsByIDs(ctx context.Context, q querier, ids []string, lock bool) (map[string]domain.InventoryItem, error) {
	result := make(map[string]domain.InventoryItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query := `SELECT ` + itemColumns + ` FROM inventory WHERE item_id = ANY($1) ORDER BY item_id`
	if lock {
		query += ` FOR UPDATE`
	}

	items := make([]domain.InventoryItem, 0, len(ids))
	if err := pgxscan.Select(ctx, q, &items, query, ids); err != nil {
		return nil, mapError(err, "inventory", "")
	}
	for _, item := range items {
		result[item.ID] = item
	}
	return result, nil
}

func likeEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
