// Package importer reads inventory CSV exports into inventory items.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"medpos/backend/internal/domain"
	"medpos/backend/internal/money"
)

var ErrNoHeader = errors.New("no recognizable inventory header")

// column aliases, keyed by the canonical column name.
var columns = map[string][]string{
	"id":           {"id", "item_id", "barcode", "sku"},
	"name":         {"name", "item_name", "description"},
	"category":     {"category", "type"},
	"unit_cost":    {"unit_cost", "unit_price", "cost"},
	"retail_price": {"retail_price", "price", "sell_price"},
	"quantity":     {"quantity", "qty", "stock"},
	"supplier":     {"supplier", "vendor"},
}

var required = []string{"id", "name", "unit_cost", "retail_price", "quantity"}

type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

type Result struct {
	Items   []domain.InventoryItem `json:"items"`
	Skipped []RowError             `json:"skipped,omitempty"`
}

// Parse reads a comma or semicolon separated file with a header row. Rows
// that fail validation are reported in Skipped; the rest are returned.
func Parse(r io.Reader) (Result, error) {
	decoded, err := utf8Reader(r)
	if err != nil {
		return Result{}, fmt.Errorf("detect encoding: %w", err)
	}
	raw, err := io.ReadAll(decoded)
	if err != nil {
		return Result{}, fmt.Errorf("read: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.Comma = sniffDelimiter(raw)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	var lines []int
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, row)
		lines = append(lines, line)
	}

	headerIdx, cols := findHeader(rows)
	if headerIdx < 0 {
		return Result{}, ErrNoHeader
	}

	var result Result
	seen := make(map[string]int)
	for i := headerIdx + 1; i < len(rows); i++ {
		row, line := rows[i], lines[i]
		if blank(row) {
			continue
		}
		item, err := parseRow(cols, row)
		if err != nil {
			result.Skipped = append(result.Skipped, RowError{Line: line, Reason: err.Error()})
			continue
		}
		if prev, ok := seen[item.ID]; ok {
			result.Skipped = append(result.Skipped, RowError{Line: line, Reason: fmt.Sprintf("duplicate id %s (first on line %d)", item.ID, prev)})
			continue
		}
		seen[item.ID] = line
		result.Items = append(result.Items, item)
	}
	return result, nil
}

func sniffDelimiter(raw []byte) rune {
	first := raw
	if idx := bytes.IndexByte(raw, '\n'); idx >= 0 {
		first = raw[:idx]
	}
	if bytes.Count(first, []byte{';'}) > bytes.Count(first, []byte{','}) {
		return ';'
	}
	return ','
}

func findHeader(rows [][]string) (int, map[string]int) {
	for rowIdx, row := range rows {
		cols := make(map[string]int)
		for i, cell := range row {
			name := strings.ToLower(strings.TrimSpace(cell))
			for canonical, aliases := range columns {
				for _, alias := range aliases {
					if name == alias {
						if _, taken := cols[canonical]; !taken {
							cols[canonical] = i
						}
					}
				}
			}
		}

		complete := true
		for _, name := range required {
			if _, ok := cols[name]; !ok {
				complete = false
				break
			}
		}
		if complete {
			return rowIdx, cols
		}
	}
	return -1, nil
}

func parseRow(cols map[string]int, row []string) (domain.InventoryItem, error) {
	cell := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	item := domain.InventoryItem{
		ID:       cell("id"),
		Name:     cell("name"),
		Category: cell("category"),
		Supplier: cell("supplier"),
	}
	if item.ID == "" || item.Name == "" {
		return domain.InventoryItem{}, errors.New("id and name are required")
	}

	var err error
	if item.UnitCostCents, err = money.Parse(cell("unit_cost")); err != nil || item.UnitCostCents < 0 {
		return domain.InventoryItem{}, fmt.Errorf("invalid unit cost %q", cell("unit_cost"))
	}
	if item.RetailPriceCents, err = money.Parse(cell("retail_price")); err != nil || item.RetailPriceCents < 0 {
		return domain.InventoryItem{}, fmt.Errorf("invalid retail price %q", cell("retail_price"))
	}
	if item.Quantity, err = strconv.Atoi(cell("quantity")); err != nil || item.Quantity < 0 {
		return domain.InventoryItem{}, fmt.Errorf("invalid quantity %q", cell("quantity"))
	}
	return item, nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
