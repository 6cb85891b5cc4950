package httpapi

import (
	"context"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"cosmetiquera/backend/internal/cache"
	"cosmetiquera/backend/internal/domain"
	"cosmetiquera/backend/internal/service"
	"cosmetiquera/backend/internal/shift"
	"cosmetiquera/backend/internal/store/memory"
)

func newTestAuth(t *testing.T, secret string) *AuthManager {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopCatalogCache{}, shift.New(-5, 6), "es-CO", time.Minute)
	return NewAuthManager(svc, secret, time.Hour)
}

func TestLoginIssuesTokenWithRole(t *testing.T) {
	manager := newTestAuth(t, "test-secret")

	resp, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("expected access token")
	}
	if resp.Role != domain.RoleAdmin {
		t.Fatalf("expected admin role, got %q", resp.Role)
	}

	actor, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "admin" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor %+v", actor)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	manager := newTestAuth(t, "test-secret")

	if _, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "admin",
		Password: "nope",
	}); err == nil {
		t.Fatal("expected login failure")
	}
}

func TestLoginIsCaseInsensitiveOnUsername(t *testing.T) {
	manager := newTestAuth(t, "test-secret")

	resp, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "Gabi",
		Password: "seller123",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Role != domain.RoleSeller {
		t.Fatalf("expected seller role, got %q", resp.Role)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	issuer := newTestAuth(t, "secret-a")
	verifier := newTestAuth(t, "secret-b")

	resp, err := issuer.Login(context.Background(), domain.LoginRequest{
		Username: "admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	if _, err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatal("expected token signed with a different secret to be rejected")
	}
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	manager := newTestAuth(t, "test-secret")

	if _, err := manager.ParseToken("not-a-jwt"); err == nil {
		t.Fatal("expected garbage token to be rejected")
	}
}

func TestParseTokenRejectsExpired(t *testing.T) {
	manager := newTestAuth(t, "test-secret")

	claims := accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   "admin",
			IssuedAt:  jwtlib.NewNumericDate(time.Now().Add(-2 * time.Hour)),
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(-time.Hour)),
		},
		Role: domain.RoleAdmin,
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(manager.secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := manager.ParseToken(signed); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseTokenRejectsWrongIssuer(t *testing.T) {
	manager := newTestAuth(t, "test-secret")

	claims := accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "admin",
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: domain.RoleAdmin,
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(manager.secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := manager.ParseToken(signed); err == nil {
		t.Fatal("expected token from another issuer to be rejected")
	}
}
