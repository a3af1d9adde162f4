package store

import (
	"context"
	"errors"
	"log/slog"
)

// Retry runs fn and, when it fails with ErrStorage, runs it exactly once more.
// Every other error is returned as is.
func Retry[T any](ctx context.Context, logger *slog.Logger, op string, fn func(context.Context) (T, error)) (T, error) {
	result, err := fn(ctx)
	if err == nil || !errors.Is(err, ErrStorage) {
		return result, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, err
	}
	if logger != nil {
		logger.Warn("storage failure, retrying once", "op", op, "error", err)
	}
	return fn(ctx)
}
