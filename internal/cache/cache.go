package cache

import (
	"context"
	"time"

	"medpos/backend/internal/domain"
)

// ReportCache stores monthly sales summaries for months that can no longer change.
type ReportCache interface {
	GetMonthly(ctx context.Context, month string) (*domain.MonthlySalesSummary, bool, error)
	SetMonthly(ctx context.Context, summary *domain.MonthlySalesSummary, ttl time.Duration) error
}

type NoopReportCache struct{}

func (NoopReportCache) GetMonthly(_ context.Context, _ string) (*domain.MonthlySalesSummary, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) SetMonthly(_ context.Context, _ *domain.MonthlySalesSummary, _ time.Duration) error {
	return nil
}
