package main

import (
	"testing"

	"medpos/backend/internal/config"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func securityConfig(secret, adminPassword string) config.Config {
	return config.Config{Auth: config.AuthConfig{Secret: secret, AdminPassword: adminPassword}}
}

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	if err := validateSecurityConfig(securityConfig("short", "Rx-7391-kasir")); err == nil {
		t.Fatalf("expected short AUTH_SECRET to be rejected")
	}
	for _, weak := range []string{"admin123", "aaaaaaaa", "abcdefgh", "87654321", "short"} {
		if err := validateSecurityConfig(securityConfig(strongSecret, weak)); err == nil {
			t.Fatalf("expected admin password %q to be rejected", weak)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	if err := validateSecurityConfig(securityConfig(strongSecret, "Rx-7391-kasir")); err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidateSecurityConfigAllowsMissingBootstrapPassword(t *testing.T) {
	if err := validateSecurityConfig(securityConfig(strongSecret, "")); err != nil {
		t.Fatalf("expected empty ADMIN_PASSWORD to pass, got %v", err)
	}
}
