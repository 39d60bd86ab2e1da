package server

import (
	"errors"
	"testing"
	"time"
)

func newTestAuth(t *testing.T) *AuthService {
	t.Helper()
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return NewAuthService("admin", hash, "test-secret", 3600)
}

func TestAuthLogin(t *testing.T) {
	a := newTestAuth(t)

	token, err := a.Login("Admin", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := a.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.User != "admin" || claims.Issuer != "arxscript" {
		t.Errorf("claims = %+v", claims)
	}
	if d := time.Until(claims.ExpiresAt.Time); d <= 59*time.Minute || d > time.Hour {
		t.Errorf("expiry in %v, want about an hour", d)
	}

	if _, err := a.Login("admin", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: %v", err)
	}
	if _, err := a.Login("root", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong user: %v", err)
	}
}

func TestAuthLoginDisabled(t *testing.T) {
	a := NewAuthService("admin", "", "", 0)
	if _, err := a.Login("admin", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("login without a hash: %v", err)
	}
}

func TestAuthTokenChecks(t *testing.T) {
	a := newTestAuth(t)
	token, err := a.Login("admin", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	other := NewAuthService("admin", "", "another-secret", 3600)
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("token accepted under a different key")
	}
	if _, err := a.ValidateToken("garbage"); err == nil {
		t.Error("garbage token accepted")
	}

	refreshed, err := a.RefreshToken(token)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	if _, err := a.ValidateToken(refreshed); err != nil {
		t.Errorf("refreshed token invalid: %v", err)
	}
	if _, err := a.RefreshToken("garbage"); err == nil {
		t.Error("refreshing garbage succeeded")
	}
}

func TestGenerateJWTSecret(t *testing.T) {
	s1, s2 := GenerateJWTSecret(), GenerateJWTSecret()
	if len(s1) != 64 {
		t.Errorf("secret length = %d, want 64", len(s1))
	}
	if s1 == s2 {
		t.Error("two secrets are equal")
	}
}
