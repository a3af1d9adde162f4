// Package auth verifies admin credentials for privileged actions and carries
// the acting user through request contexts.
package auth

import (
	"context"
	"log/slog"
	"strings"

	"medpos/backend/internal/store"
)

//go:generate mockgen -destination=mock_credentials.go -package=auth . Credentials

// Credentials is the capability supplied by the user directory.
type Credentials interface {
	VerifyAdminPassword(ctx context.Context, plaintext string) bool
	CurrentUserRole(ctx context.Context) string
}

// Gate re-checks the admin password on every privileged call. No session or
// token is issued.
type Gate struct {
	creds  Credentials
	logger *slog.Logger
}

func NewGate(creds Credentials, logger *slog.Logger) *Gate {
	return &Gate{creds: creds, logger: logger.With("component", "auth")}
}

// RequireAdmin returns store.ErrUnauthorized unless password belongs to an
// active admin. action only labels the log line.
func (g *Gate) RequireAdmin(ctx context.Context, action string, password string) error {
	if strings.TrimSpace(password) != "" && g.creds.VerifyAdminPassword(ctx, password) {
		return nil
	}
	g.logger.WarnContext(ctx, "admin authorization rejected",
		"action", action,
		"user", Username(ctx),
		"role", g.creds.CurrentUserRole(ctx),
	)
	return store.ErrUnauthorized
}
