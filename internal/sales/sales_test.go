package sales

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medpos/backend/internal/domain"
	"medpos/backend/internal/store"
)

type fakeSalesRepo struct {
	mu        sync.Mutex
	records   []domain.DailySalesRecord
	listCalls int
	err       error
	// when set, ListDailySales signals entered and waits for release
	entered chan struct{}
	release chan struct{}
}

func (f *fakeSalesRepo) GetDailySales(_ context.Context, day time.Time) (*domain.DailySalesRecord, error) {
	for _, r := range f.records {
		if r.SaleDate.Equal(day) {
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeSalesRepo) ListDailySales(ctx context.Context, from time.Time, to time.Time) ([]domain.DailySalesRecord, error) {
	if f.release != nil {
		select {
		case f.entered <- struct{}{}:
		default:
		}
		<-f.release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.DailySalesRecord
	for _, r := range f.records {
		if !r.SaleDate.Before(from) && !r.SaleDate.After(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

type mapCache struct {
	entries map[string]domain.MonthlySalesSummary
	sets    int
}

func (m *mapCache) GetMonthly(_ context.Context, month string) (*domain.MonthlySalesSummary, bool, error) {
	v, ok := m.entries[month]
	if !ok {
		return nil, false, nil
	}
	return &v, true, nil
}

func (m *mapCache) SetMonthly(_ context.Context, summary *domain.MonthlySalesSummary, _ time.Duration) error {
	m.sets++
	m.entries[summary.Month] = *summary
	return nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newFixture() (*fakeSalesRepo, *mapCache, *Aggregator) {
	repo := &fakeSalesRepo{records: []domain.DailySalesRecord{
		{SaleDate: day(2026, time.September, 1), TotalSalesCents: 3000, UnitSales: 3, NetProfitCents: 600},
		{SaleDate: day(2026, time.September, 30), TotalSalesCents: 1000, UnitSales: 1, NetProfitCents: 200},
		{SaleDate: day(2026, time.October, 2), TotalSalesCents: 500, UnitSales: 2, NetProfitCents: 100},
	}}
	c := &mapCache{entries: map[string]domain.MonthlySalesSummary{}}
	now := func() time.Time { return time.Date(2026, time.October, 15, 12, 0, 0, 0, time.UTC) }
	agg := NewAggregator(repo, slog.New(slog.NewTextHandler(io.Discard, nil)), WithCache(c, time.Hour), WithClock(now))
	return repo, c, agg
}

func TestDaily(t *testing.T) {
	_, _, agg := newFixture()

	record, err := agg.Daily(context.Background(), time.Date(2026, time.September, 1, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(600), record.NetProfitCents)

	empty, err := agg.Daily(context.Background(), day(2026, time.September, 2))
	require.NoError(t, err)
	assert.Equal(t, day(2026, time.September, 2), empty.SaleDate)
	assert.Zero(t, empty.TotalSalesCents)
}

func TestRangeValidation(t *testing.T) {
	_, _, agg := newFixture()

	records, err := agg.Range(context.Background(), day(2026, time.September, 1), day(2026, time.October, 31))
	require.NoError(t, err)
	assert.Len(t, records, 3)

	_, err = agg.Range(context.Background(), day(2026, time.October, 2), day(2026, time.October, 1))
	require.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestMonthlyCachesClosedMonths(t *testing.T) {
	repo, c, agg := newFixture()
	ctx := context.Background()

	sep, err := agg.Monthly(ctx, 2026, time.September)
	require.NoError(t, err)
	assert.Equal(t, domain.MonthlySalesSummary{Month: "09-2026", TotalSalesCents: 4000, UnitSales: 4, NetProfitCents: 800, TradingDays: 2}, sep)
	assert.Equal(t, 1, c.sets)

	again, err := agg.Monthly(ctx, 2026, time.September)
	require.NoError(t, err)
	assert.Equal(t, sep, again)
	assert.Equal(t, 1, repo.listCalls)

	// The current month is still moving and is never cached.
	oct, err := agg.Monthly(ctx, 2026, time.October)
	require.NoError(t, err)
	assert.Equal(t, int64(500), oct.TotalSalesCents)
	assert.Equal(t, 1, c.sets)
}

func TestYearStopsAtCurrentMonth(t *testing.T) {
	_, _, agg := newFixture()

	months, err := agg.Year(context.Background(), 2026)
	require.NoError(t, err)
	require.Len(t, months, 10)
	assert.Equal(t, "01-2026", months[0].Month)
	assert.Equal(t, int64(4000), months[8].TotalSalesCents)

	future, err := agg.Year(context.Background(), 2027)
	require.NoError(t, err)
	assert.Empty(t, future)
}

func TestMonthlyPropagatesRepoError(t *testing.T) {
	repo, _, agg := newFixture()
	repo.err = errors.New("db down")

	_, err := agg.Monthly(context.Background(), 2026, time.August)
	require.Error(t, err)
}

func TestMonthlyFillSurvivesFirstCallerCancel(t *testing.T) {
	repo, _, agg := newFixture()
	repo.entered = make(chan struct{}, 1)
	repo.release = make(chan struct{})

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := agg.Monthly(firstCtx, 2026, time.September)
		first <- err
	}()
	<-repo.entered

	type result struct {
		summary domain.MonthlySalesSummary
		err     error
	}
	second := make(chan result, 1)
	go func() {
		summary, err := agg.Monthly(context.Background(), 2026, time.September)
		second <- result{summary, err}
	}()

	cancelFirst()
	require.ErrorIs(t, <-first, context.Canceled)
	close(repo.release)

	got := <-second
	require.NoError(t, got.err)
	assert.Equal(t, int64(4000), got.summary.TotalSalesCents)
}
