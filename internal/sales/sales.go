// Package sales reads the per-day aggregates written at checkout and rolls
// them up into monthly summaries.
package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"medpos/backend/internal/cache"
	"medpos/backend/internal/domain"
	"medpos/backend/internal/idgen"
	"medpos/backend/internal/ledger"
	"medpos/backend/internal/store"
)

const maxRangeDays = 366

type Aggregator struct {
	repo     store.SalesRepository
	cache    cache.ReportCache
	cacheTTL time.Duration
	loc      *time.Location
	now      func() time.Time
	logger   *slog.Logger
	fills    singleflight.Group
}

type Option func(*Aggregator)

func WithCache(c cache.ReportCache, ttl time.Duration) Option {
	return func(a *Aggregator) {
		a.cache = c
		a.cacheTTL = ttl
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) { a.loc = loc }
}

func NewAggregator(repo store.SalesRepository, logger *slog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		repo:   repo,
		cache:  cache.NoopReportCache{},
		loc:    time.UTC,
		now:    time.Now,
		logger: logger.With("component", "sales"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Daily returns the record for day, or an empty record when nothing sold.
func (a *Aggregator) Daily(ctx context.Context, day time.Time) (domain.DailySalesRecord, error) {
	date := ledger.SaleDate(day.In(a.loc))
	record, err := a.repo.GetDailySales(ctx, date)
	if errors.Is(err, store.ErrNotFound) {
		return domain.DailySalesRecord{SaleDate: date}, nil
	}
	if err != nil {
		return domain.DailySalesRecord{}, err
	}
	return *record, nil
}

// Range lists stored daily records between from and to inclusive.
func (a *Aggregator) Range(ctx context.Context, from time.Time, to time.Time) ([]domain.DailySalesRecord, error) {
	from = ledger.SaleDate(from.In(a.loc))
	to = ledger.SaleDate(to.In(a.loc))
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range ends before it starts", store.ErrInvalidInput)
	}
	if to.Sub(from) > maxRangeDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range longer than %d days", store.ErrInvalidInput, maxRangeDays)
	}
	return a.repo.ListDailySales(ctx, from, to)
}

// Monthly rolls up one calendar month. Months that have fully ended are
// served from the report cache when one is configured.
func (a *Aggregator) Monthly(ctx context.Context, year int, month time.Month) (domain.MonthlySalesSummary, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, a.loc)
	key := idgen.Period(start)
	current := time.Date(a.now().In(a.loc).Year(), a.now().In(a.loc).Month(), 1, 0, 0, 0, 0, a.loc)
	if start.After(current) {
		return domain.MonthlySalesSummary{Month: key}, nil
	}
	closed := start.Before(current)

	if closed {
		cached, ok, err := a.cache.GetMonthly(ctx, key)
		if err != nil {
			a.logger.WarnContext(ctx, "report cache read failed", "month", key, "error", err)
		} else if ok {
			return *cached, nil
		}
	}

	// shared by every caller waiting on key; outlives the one that started it
	fillCtx := context.WithoutCancel(ctx)
	fill := a.fills.DoChan(key, func() (interface{}, error) {
		records, err := a.repo.ListDailySales(fillCtx, start, start.AddDate(0, 1, -1))
		if err != nil {
			return nil, err
		}
		summary := Summarize(key, records)
		if closed {
			if err := a.cache.SetMonthly(fillCtx, &summary, a.cacheTTL); err != nil {
				a.logger.WarnContext(fillCtx, "report cache write failed", "month", key, "error", err)
			}
		}
		return summary, nil
	})

	select {
	case <-ctx.Done():
		return domain.MonthlySalesSummary{}, ctx.Err()
	case res := <-fill:
		if res.Err != nil {
			return domain.MonthlySalesSummary{}, res.Err
		}
		return res.Val.(domain.MonthlySalesSummary), nil
	}
}

// Year returns one summary per month of year up to the current month.
func (a *Aggregator) Year(ctx context.Context, year int) ([]domain.MonthlySalesSummary, error) {
	now := a.now().In(a.loc)
	last := time.December
	if year == now.Year() {
		last = now.Month()
	} else if year > now.Year() {
		return []domain.MonthlySalesSummary{}, nil
	}

	out := make([]domain.MonthlySalesSummary, 0, int(last))
	for m := time.January; m <= last; m++ {
		summary, err := a.Monthly(ctx, year, m)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

func Summarize(month string, records []domain.DailySalesRecord) domain.MonthlySalesSummary {
	summary := domain.MonthlySalesSummary{Month: month}
	for _, r := range records {
		summary.TotalSalesCents += r.TotalSalesCents
		summary.UnitSales += r.UnitSales
		summary.NetProfitCents += r.NetProfitCents
		if r.UnitSales > 0 || r.TotalSalesCents > 0 {
			summary.TradingDays++
		}
	}
	return summary
}
