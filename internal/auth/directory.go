package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"medpos/backend/internal/domain"
	"medpos/backend/internal/store"
)

// Directory implements Credentials over the users table.
type Directory struct {
	users  store.UserRepository
	logger *slog.Logger
}

func NewDirectory(users store.UserRepository, logger *slog.Logger) *Directory {
	return &Directory{users: users, logger: logger.With("component", "auth")}
}

func (d *Directory) VerifyAdminPassword(ctx context.Context, plaintext string) bool {
	accounts, err := d.users.ListUsers(ctx)
	if err != nil {
		d.logger.ErrorContext(ctx, "list users for admin check", "error", err)
		return false
	}
	for _, account := range accounts {
		if account.Role != domain.RoleAdmin || !account.Active() {
			continue
		}
		if VerifyPassword(account.Password, plaintext) {
			d.upgrade(ctx, account, plaintext)
			return true
		}
	}
	return false
}

func (d *Directory) CurrentUserRole(ctx context.Context) string {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		return ""
	}
	return actor.Role
}

// Authenticate checks a login and returns the account on success.
func (d *Directory) Authenticate(ctx context.Context, username string, password string) (*domain.UserAccount, error) {
	account, err := d.users.GetUser(ctx, strings.ToLower(strings.TrimSpace(username)))
	if errors.Is(err, store.ErrNotFound) {
		return nil, store.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if !VerifyPassword(account.Password, password) {
		return nil, store.ErrUnauthorized
	}
	if !account.Active() {
		return nil, fmt.Errorf("%w: account is inactive", store.ErrUnauthorized)
	}
	d.upgrade(ctx, *account, password)
	return account, nil
}

// EnsureAdmin creates the bootstrap admin account when no admin exists yet.
func (d *Directory) EnsureAdmin(ctx context.Context, username string, password string) (bool, error) {
	accounts, err := d.users.ListUsers(ctx)
	if err != nil {
		return false, err
	}
	for _, account := range accounts {
		if account.Role == domain.RoleAdmin {
			return false, nil
		}
	}
	if strings.TrimSpace(password) == "" {
		return false, errors.New("no admin account exists and no bootstrap password is configured")
	}

	hashed, err := HashPassword(password)
	if err != nil {
		return false, fmt.Errorf("hash bootstrap password: %w", err)
	}
	err = d.users.CreateUser(ctx, domain.UserAccount{
		Username: strings.ToLower(strings.TrimSpace(username)),
		Password: hashed,
		Role:     domain.RoleAdmin,
		Status:   domain.UserStatusActive,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *Directory) upgrade(ctx context.Context, account domain.UserAccount, plaintext string) {
	if IsPasswordHash(account.Password) {
		return
	}
	hashed, err := HashPassword(plaintext)
	if err != nil {
		return
	}
	if err := d.users.UpdateUserPassword(ctx, account.Username, hashed); err != nil {
		d.logger.WarnContext(ctx, "upgrade legacy password", "user", account.Username, "error", err)
	}
}
