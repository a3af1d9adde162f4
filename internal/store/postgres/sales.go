package postgres

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"medpos/backend/internal/domain"
)

const dailyColumns = `sale_date, total_sales, unit_sales, net_profit, "user"`

func (s *Store) GetDailySales(ctx context.Context, day time.Time) (*domain.DailySalesRecord, error) {
	var record domain.DailySalesRecord
	err := pgxscan.Get(ctx, s.db, &record, `SELECT `+dailyColumns+` FROM daily_sales WHERE sale_date = $1`, dateOnly(day))
	if err != nil {
		return nil, mapError(err, "sales", day.Format(time.DateOnly))
	}
	return &record, nil
}

func (s *Store) ListDailySales(ctx context.Context, from time.Time, to time.Time) ([]domain.DailySalesRecord, error) {
	records := make([]domain.DailySalesRecord, 0, 31)
	err := pgxscan.Select(ctx, s.db, &records, `
		SELECT `+dailyColumns+` FROM daily_sales
		WHERE sale_date BETWEEN $1 AND $2
		ORDER BY sale_date
	`, dateOnly(from), dateOnly(to))
	if err != nil {
		return nil, mapError(err, "sales", "")
	}
	return records, nil
}
