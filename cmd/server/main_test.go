package main

import (
	"context"
	"testing"

	"cosmetiquera/backend/internal/config"
	"cosmetiquera/backend/internal/store/memory"
)

func TestValidateSecurityConfigRejectsShortSecret(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongSecret(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "0123456789abcdef0123456789abcdef"})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestBootstrapAdminIsIdempotent(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	if err := bootstrapAdmin(ctx, repo); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	if err := bootstrapAdmin(ctx, repo); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}

	admins, err := repo.CountAdmins(ctx)
	if err != nil {
		t.Fatalf("count admins: %v", err)
	}
	if admins != 1 {
		t.Fatalf("expected exactly 1 admin after repeated bootstrap, got %d", admins)
	}
}
