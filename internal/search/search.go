// Package search implements the case and accent insensitive matching used by
// inventory lookups and cashier suggestions.
package search

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"medpos/backend/internal/domain"
)

const DefaultSuggestLimit = 10

var folder = cases.Fold()

// Normalize folds case and strips combining marks so "PARACÉTAMOL" and
// "paracetamol" compare equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		stripped = strings.TrimSpace(s)
	}
	return folder.String(stripped)
}

// Match reports whether query occurs in the item's id, name, category or supplier.
func Match(item domain.InventoryItem, query string) bool {
	q := Normalize(query)
	if q == "" {
		return true
	}
	for _, field := range []string{item.ID, item.Name, item.Category, item.Supplier} {
		if strings.Contains(Normalize(field), q) {
			return true
		}
	}
	return false
}

// Filter applies an ItemFilter to items in memory and returns them ordered by name.
func Filter(items []domain.InventoryItem, filter domain.ItemFilter) []domain.InventoryItem {
	category := Normalize(filter.Category)
	out := make([]domain.InventoryItem, 0, len(items))
	for _, item := range items {
		if category != "" && Normalize(item.Category) != category {
			continue
		}
		if !Match(item, filter.Query) {
			continue
		}
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Suggest ranks items whose id or name starts with prefix ahead of those that
// merely contain it on a word boundary.
func Suggest(items []domain.InventoryItem, prefix string, limit int) []domain.InventoryItem {
	p := Normalize(prefix)
	if p == "" {
		return nil
	}
	if limit <= 0 {
		limit = DefaultSuggestLimit
	}

	type scored struct {
		item  domain.InventoryItem
		score int
	}
	matches := make([]scored, 0)
	for _, item := range items {
		id, name := Normalize(item.ID), Normalize(item.Name)
		switch {
		case strings.HasPrefix(id, p):
			matches = append(matches, scored{item, 0})
		case strings.HasPrefix(name, p):
			matches = append(matches, scored{item, 1})
		case wordPrefix(name, p):
			matches = append(matches, scored{item, 2})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score < matches[j].score
		}
		return matches[i].item.Name < matches[j].item.Name
	})

	out := make([]domain.InventoryItem, 0, limit)
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, m.item)
	}
	return out
}

func wordPrefix(s string, prefix string) bool {
	for _, word := range strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}) {
		if strings.HasPrefix(word, prefix) {
			return true
		}
	}
	return false
}
