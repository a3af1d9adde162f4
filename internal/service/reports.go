package service

import (
	"context"
	"time"

	"medpos/backend/internal/domain"
)

func (e *Engine) DailySales(ctx context.Context, day time.Time) (domain.DailySalesRecord, error) {
	return e.sales.Daily(ctx, day)
}

func (e *Engine) SalesRange(ctx context.Context, from time.Time, to time.Time) ([]domain.DailySalesRecord, error) {
	return e.sales.Range(ctx, from, to)
}

func (e *Engine) MonthlySales(ctx context.Context, year int, month time.Month) (domain.MonthlySalesSummary, error) {
	return e.sales.Monthly(ctx, year, month)
}

func (e *Engine) YearSales(ctx context.Context, year int) ([]domain.MonthlySalesSummary, error) {
	return e.sales.Year(ctx, year)
}

func (e *Engine) ListLog(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.TransactionLogEntry, error) {
	return e.repo.ListLog(ctx, from, to, limit)
}
