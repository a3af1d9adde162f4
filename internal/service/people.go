package service

import (
	"context"
	"fmt"
	"strings"

	"medpos/backend/internal/auth"
	"medpos/backend/internal/domain"
	"medpos/backend/internal/store"
)

func (e *Engine) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	customer.Name = strings.TrimSpace(customer.Name)
	customer.Contact = strings.TrimSpace(customer.Contact)
	customer.Address = strings.TrimSpace(customer.Address)
	created, err := store.Retry(ctx, e.logger, "create customer", func(ctx context.Context) (*domain.Customer, error) {
		return e.repo.CreateCustomer(ctx, customer, e.clock())
	})
	if err != nil {
		return nil, err
	}
	e.audit(ctx, "customer_create", "customer="+created.ID)
	return created, nil
}

func (e *Engine) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return e.repo.GetCustomer(ctx, strings.TrimSpace(id))
}

func (e *Engine) ListCustomers(ctx context.Context, query string, limit int) ([]domain.Customer, error) {
	return e.repo.ListCustomers(ctx, query, limit)
}

func (e *Engine) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	return e.repo.ListUsers(ctx)
}

func (e *Engine) CreateUser(ctx context.Context, username string, password string, role string, adminPassword string) (*domain.UserAccount, error) {
	if err := e.gate.RequireAdmin(ctx, "create user", adminPassword); err != nil {
		return nil, err
	}
	username = strings.ToLower(strings.TrimSpace(username))
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		role = domain.RoleCashier
	}
	if role != domain.RoleAdmin && role != domain.RoleCashier {
		return nil, fmt.Errorf("%w: unknown role %q", store.ErrInvalidInput, role)
	}
	if username == "" || len(password) < 6 {
		return nil, fmt.Errorf("%w: username and a password of at least 6 characters are required", store.ErrInvalidInput)
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	account := domain.UserAccount{Username: username, Password: hashed, Role: role, Status: domain.UserStatusActive}
	if err := e.repo.CreateUser(ctx, account); err != nil {
		return nil, err
	}
	e.audit(ctx, "user_create", fmt.Sprintf("user=%s role=%s", username, role))
	account.Password = ""
	return &account, nil
}

func (e *Engine) SetUserActive(ctx context.Context, username string, active bool, adminPassword string) error {
	if err := e.gate.RequireAdmin(ctx, "set user status", adminPassword); err != nil {
		return err
	}
	status := domain.UserStatusInactive
	if active {
		status = domain.UserStatusActive
	}
	username = strings.ToLower(strings.TrimSpace(username))
	if err := e.repo.UpdateUserStatus(ctx, username, status); err != nil {
		return err
	}
	e.audit(ctx, "user_status", fmt.Sprintf("user=%s status=%s", username, status))
	return nil
}
