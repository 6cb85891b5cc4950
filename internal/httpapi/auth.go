package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"cosmetiquera/backend/internal/domain"
	"cosmetiquera/backend/internal/service"
)

const tokenIssuer = "cosmetiquera"

// AuthManager exchanges credentials for signed access tokens and turns
// incoming bearer tokens back into actors. Credential verification is
// delegated to the service layer so the user store stays the single
// source of truth.
type AuthManager struct {
	service  *service.Service
	secret   []byte
	tokenTTL time.Duration
}

type accessClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(svc *service.Service, secret string, tokenTTL time.Duration) *AuthManager {
	trimmed := strings.TrimSpace(secret)
	if trimmed == "" {
		trimmed = "dev-change-me"
		log.Printf("WARN auth secret not configured, using insecure development fallback")
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		service:  svc,
		secret:   []byte(trimmed),
		tokenTTL: tokenTTL,
	}
}

func (m *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	account, err := m.service.VerifyCredentials(ctx, req.Username, req.Password)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	expiresAt := time.Now().Add(m.tokenTTL)
	claims := accessClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   account.Username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
		Role: account.Role,
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return domain.LoginResponse{}, fmt.Errorf("sign token: %w", err)
	}

	return domain.LoginResponse{
		AccessToken: signed,
		Role:        account.Role,
		Username:    account.Username,
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (m *AuthManager) ParseToken(token string) (domain.Actor, error) {
	claims := &accessClaims{}
	parsed, err := jwtlib.ParseWithClaims(token, claims, func(t *jwtlib.Token) (any, error) {
		return m.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil {
		return domain.Actor{}, fmt.Errorf("parse token: %w", err)
	}
	if !parsed.Valid {
		return domain.Actor{}, errors.New("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return domain.Actor{}, errors.New("token missing subject")
	}

	return domain.Actor{Username: claims.Subject, Role: claims.Role}, nil
}
