package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"

	"medpos/backend/internal/domain"
	"medpos/backend/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := normalizeUsername(user.Username)
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return fmt.Errorf("%w: username and password are required", store.ErrInvalidInput)
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO users (username, password, role, status)
		VALUES ($1, $2, $3, $4)
	`, username, user.Password, defaultString(user.Role, domain.RoleCashier), defaultString(user.Status, domain.UserStatusActive))
	return mapError(err, "user", username)
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserAccount, error) {
	username = normalizeUsername(username)
	var user domain.UserAccount
	err := pgxscan.Get(ctx, s.db, &user, `SELECT username, password, role, status FROM users WHERE username = $1`, username)
	if err != nil {
		return nil, mapError(err, "user", username)
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	users := make([]domain.UserAccount, 0, 16)
	if err := pgxscan.Select(ctx, s.db, &users, `SELECT username, password, role, status FROM users ORDER BY username`); err != nil {
		return nil, mapError(err, "users", "")
	}
	return users, nil
}

func (s *Store) UpdateUserStatus(ctx context.Context, username string, status string) error {
	return s.updateUser(ctx, username, `UPDATE users SET status = $2 WHERE username = $1`, status)
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: password is required", store.ErrInvalidInput)
	}
	return s.updateUser(ctx, username, `UPDATE users SET password = $2 WHERE username = $1`, password)
}

func (s *Store) updateUser(ctx context.Context, username string, statement string, value string) error {
	username = normalizeUsername(username)
	tag, err := s.db.Exec(ctx, statement, username, value)
	if err != nil {
		return mapError(err, "user", username)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", username, store.ErrNotFound)
	}
	return nil
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
