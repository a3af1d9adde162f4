package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"medpos/backend/internal/idgen"
)

// txSequences serves idgen from id_sequences inside the caller's transaction.
// The first id of a period seeds the counter from the highest id already
// stored, so numbers freed by resumed holds are never handed out again.
type txSequences struct {
	tx pgx.Tx
}

func (t txSequences) NextSequence(ctx context.Context, kind idgen.Kind, period string) (int, error) {
	var last int
	err := t.tx.QueryRow(ctx, `
		UPDATE id_sequences SET last_value = last_value + 1
		WHERE kind = $1 AND period = $2
		RETURNING last_value
	`, string(kind), period).Scan(&last)
	if err == nil {
		return last, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	table, column := "transactions", "transaction_id"
	if kind == idgen.KindCustomer {
		table, column = "customers", "customer_id"
	}
	rows, err := t.tx.Query(ctx, `SELECT `+column+` FROM `+table+` WHERE `+column+` LIKE $1`, likeEscape(idgen.Prefix(kind, period))+"%")
	if err != nil {
		return 0, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return 0, err
	}

	err = t.tx.QueryRow(ctx, `
		INSERT INTO id_sequences (kind, period, last_value)
		VALUES ($1, $2, $3)
		ON CONFLICT (kind, period) DO UPDATE SET last_value = id_sequences.last_value + 1
		RETURNING last_value
	`, string(kind), period, idgen.MaxSequence(kind, period, ids)+1).Scan(&last)
	if err != nil {
		return 0, err
	}
	return last, nil
}
