package postgres

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"medpos/backend/internal/domain"
	"medpos/backend/internal/xid"
)

func (s *Store) AppendLog(ctx context.Context, entry domain.TransactionLogEntry) error {
	if entry.ID == "" {
		entry.ID = xid.New("log")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO transaction_log (log_id, action, details, timestamp, "user")
		VALUES ($1, $2, $3, $4, $5)
	`, entry.ID, entry.Action, entry.Details, entry.Timestamp, defaultString(entry.User, "system"))
	return mapError(err, "transaction log", entry.ID)
}

// ListLog returns entries newest first; zero bounds are open.
func (s *Store) ListLog(ctx context.Context, from time.Time, to time.Time, limit int) ([]domain.TransactionLogEntry, error) {
	builder := psql.Select("log_id", "action", "details", "timestamp", `"user"`).
		From("transaction_log").
		OrderBy("timestamp DESC", "log_id DESC")
	if !from.IsZero() {
		builder = builder.Where(sq.GtOrEq{"timestamp": from})
	}
	if !to.IsZero() {
		builder = builder.Where(sq.Lt{"timestamp": to})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := toSQL(builder)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.TransactionLogEntry, 0, 64)
	if err := pgxscan.Select(ctx, s.db, &entries, query, args...); err != nil {
		return nil, mapError(err, "transaction log", "")
	}
	return entries, nil
}
