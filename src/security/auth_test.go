package security

import (
	"testing"
	"time"

	"github.com/entrans/backend/src/config"
)

func init() {
	config.Cfg = &config.AppConfig{AccessTokenExpiry: time.Hour}
}

func TestTokenRoundTrip(t *testing.T) {
	svc := NewAuthService("test-secret-key-at-least-32-bytes-long!")

	token, err := svc.GenerateToken("42", "a@x.com", "client")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != "42" {
		t.Errorf("expected sub 42, got %q", claims.UserID)
	}
	if claims.Email != "a@x.com" {
		t.Errorf("expected email a@x.com, got %q", claims.Email)
	}
	if claims.Role != "client" {
		t.Errorf("expected role client, got %q", claims.Role)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewAuthService("test-secret-key-at-least-32-bytes-long!").GenerateToken("42", "a@x.com", "client")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := NewAuthService("a-different-secret-also-32-bytes-long!!").ValidateToken(token); err == nil {
		t.Fatal("expected validation error with wrong secret, got nil")
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	if _, err := NewAuthService("test-secret-key-at-least-32-bytes-long!").ValidateToken("not-a-jwt"); err == nil {
		t.Fatal("expected validation error for malformed token, got nil")
	}
}

func TestHashPasswordRoundTrip(t *testing.T) {
	svc := NewAuthService("irrelevant")
	hash, err := svc.HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if err := svc.CompareHashAndPassword(hash, "s3cret-pass"); err != nil {
		t.Errorf("expected password to match hash: %v", err)
	}
	if err := svc.CompareHashAndPassword(hash, "wrong"); err == nil {
		t.Error("expected mismatch error for wrong password")
	}
}
