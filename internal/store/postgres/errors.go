package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"medpos/backend/internal/store"
)

var passthrough = []error{
	store.ErrNotFound,
	store.ErrInsufficientStock,
	store.ErrOutOfStock,
	store.ErrInsufficientPayment,
	store.ErrEmptyCart,
	store.ErrEmptyResult,
	store.ErrAlreadyReturned,
	store.ErrInvalidState,
	store.ErrUnauthorized,
	store.ErrDuplicateID,
	store.ErrStorage,
	store.ErrInvalidInput,
	store.ErrItemReferenced,
}

// mapError converts pgx errors into store errors. Context errors and errors
// already carrying a store sentinel pass through.
func mapError(err error, entity string, id string) error {
	if err == nil {
		return nil
	}
	label := entity
	if id != "" {
		label = entity + " " + id
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", label, err)
	}
	for _, sentinel := range passthrough {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, pgx.ErrNoRows) || pgxscan.NotFound(err) {
		return fmt.Errorf("%s: %w", label, store.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w", label, store.ErrDuplicateID)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w", label, store.ErrNotFound)
		case "23514": // check_violation
			return fmt.Errorf("%s: %w: %s", label, store.ErrInvalidInput, pgErr.ConstraintName)
		}
	}

	// serialization failures, deadlocks and lost connections all land here
	return store.Storage(label, err)
}
