package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"medpos/backend/internal/domain"
	"medpos/backend/internal/importer"
	"medpos/backend/internal/search"
	"medpos/backend/internal/store"
)

func (e *Engine) ListInventory(ctx context.Context, filter domain.ItemFilter) ([]domain.InventoryItem, error) {
	return e.repo.ListItems(ctx, filter)
}

func (e *Engine) SuggestItems(ctx context.Context, prefix string, limit int) ([]domain.InventoryItem, error) {
	items, err := e.repo.ListItems(ctx, domain.ItemFilter{})
	if err != nil {
		return nil, err
	}
	return search.Suggest(items, prefix, limit), nil
}

func (e *Engine) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	return e.inventory.GetItem(ctx, id)
}

func (e *Engine) LowStock(ctx context.Context, threshold int) ([]domain.InventoryItem, error) {
	return e.inventory.ListLowStock(ctx, threshold, "manual")
}

func (e *Engine) CreateItem(ctx context.Context, item domain.InventoryItem, adminPassword string) (*domain.InventoryItem, error) {
	if err := e.gate.RequireAdmin(ctx, "create item", adminPassword); err != nil {
		return nil, err
	}
	item = trimItem(item)
	created, err := e.repo.CreateItem(ctx, item)
	if err != nil {
		return nil, err
	}
	e.audit(ctx, "item_create", fmt.Sprintf("item=%s retail=%d quantity=%d", created.ID, created.RetailPriceCents, created.Quantity))
	return created, nil
}

// UpdateItem applies the non-nil fields of update under the item's lock.
// Stock is only overwritten when update.Quantity is set.
func (e *Engine) UpdateItem(ctx context.Context, id string, update domain.ItemUpdate, adminPassword string) (*domain.InventoryItem, error) {
	if err := e.gate.RequireAdmin(ctx, "update item", adminPassword); err != nil {
		return nil, err
	}
	previous, updated, err := e.repo.UpdateItem(ctx, strings.TrimSpace(id), trimUpdate(update))
	if err != nil {
		return nil, err
	}
	e.audit(ctx, "item_update", fmt.Sprintf("item=%s retail=%d->%d quantity=%d->%d",
		updated.ID, previous.RetailPriceCents, updated.RetailPriceCents, previous.Quantity, updated.Quantity))
	return updated, nil
}

func (e *Engine) DeleteItem(ctx context.Context, id string, force bool, adminPassword string) error {
	if err := e.gate.RequireAdmin(ctx, "delete item", adminPassword); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if err := e.repo.DeleteItem(ctx, id, force); err != nil {
		return err
	}
	e.audit(ctx, "item_delete", fmt.Sprintf("item=%s force=%t", id, force))
	return nil
}

// AdjustStock restocks (positive delta) or writes off (negative delta).
func (e *Engine) AdjustStock(ctx context.Context, id string, delta int, adminPassword string) (int, error) {
	if err := e.gate.RequireAdmin(ctx, "adjust stock", adminPassword); err != nil {
		return 0, err
	}
	return e.inventory.AdjustQuantity(ctx, strings.TrimSpace(id), delta)
}

type ImportReport struct {
	Created int                 `json:"created"`
	Updated int                 `json:"updated"`
	Skipped []importer.RowError `json:"skipped,omitempty"`
	Failed  []string            `json:"failed,omitempty"`
}

// ImportInventory upserts every valid row of a CSV export. Existing ids are
// overwritten, quantity included.
func (e *Engine) ImportInventory(ctx context.Context, r io.Reader, adminPassword string) (ImportReport, error) {
	if err := e.gate.RequireAdmin(ctx, "import inventory", adminPassword); err != nil {
		return ImportReport{}, err
	}
	parsed, err := importer.Parse(r)
	if err != nil {
		return ImportReport{}, fmt.Errorf("%w: %w", store.ErrInvalidInput, err)
	}

	report := ImportReport{Skipped: parsed.Skipped}
	for _, item := range parsed.Items {
		item = trimItem(item)
		_, err := e.repo.CreateItem(ctx, item)
		if errors.Is(err, store.ErrDuplicateID) {
			_, _, err = e.repo.UpdateItem(ctx, item.ID, domain.FullUpdate(item))
			if err == nil {
				report.Updated++
				continue
			}
		}
		if err != nil {
			if errors.Is(err, store.ErrStorage) {
				return report, err
			}
			report.Failed = append(report.Failed, fmt.Sprintf("%s: %v", item.ID, err))
			continue
		}
		report.Created++
	}

	e.audit(ctx, "inventory_import", fmt.Sprintf("created=%d updated=%d skipped=%d failed=%d",
		report.Created, report.Updated, len(report.Skipped), len(report.Failed)))
	return report, nil
}

func trimItem(item domain.InventoryItem) domain.InventoryItem {
	item.ID = strings.TrimSpace(item.ID)
	item.Name = strings.TrimSpace(item.Name)
	item.Category = strings.TrimSpace(item.Category)
	item.Supplier = strings.TrimSpace(item.Supplier)
	return item
}

func trimUpdate(update domain.ItemUpdate) domain.ItemUpdate {
	for _, field := range []**string{&update.Name, &update.Category, &update.Supplier} {
		if *field != nil {
			trimmed := strings.TrimSpace(**field)
			*field = &trimmed
		}
	}
	return update
}
