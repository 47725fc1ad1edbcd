package jwt

import (
	"errors"
	"testing"
	"time"

	"github.com/kklimas/pk-schedule-sync/config"
)

func newTestManager(ttl time.Duration) *Manager {
	return NewManager(&config.AuthConfig{
		JWTSecret: "test-secret-key-at-least-16-chars",
		TokenTTL:  ttl,
	})
}

func TestManager_GenerateAndParse(t *testing.T) {
	mgr := newTestManager(time.Minute)

	token, err := mgr.GenerateToken("cli")
	if err != nil {
		t.Fatalf("生成 Token 失败: %v", err)
	}

	claims, err := mgr.ParseToken(token)
	if err != nil {
		t.Fatalf("解析 Token 失败: %v", err)
	}
	if claims.Subject != "cli" {
		t.Errorf("期望 Subject=cli，实际=%s", claims.Subject)
	}
	if claims.TokenType != "admin" {
		t.Errorf("期望 TokenType=admin，实际=%s", claims.TokenType)
	}
	if claims.ID == "" {
		t.Error("Token 应携带 jti")
	}
}

func TestManager_ParseExpired(t *testing.T) {
	mgr := newTestManager(-time.Minute) // 已过期

	token, err := mgr.GenerateToken("cli")
	if err != nil {
		t.Fatalf("生成 Token 失败: %v", err)
	}

	_, err = mgr.ParseToken(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Errorf("期望 ErrTokenExpired，实际: %v", err)
	}
}

func TestManager_ParseWrongSecret(t *testing.T) {
	mgr := newTestManager(time.Minute)
	other := NewManager(&config.AuthConfig{
		JWTSecret: "another-secret-key-16-chars-xx",
		TokenTTL:  time.Minute,
	})

	token, err := mgr.GenerateToken("cli")
	if err != nil {
		t.Fatalf("生成 Token 失败: %v", err)
	}

	_, err = other.ParseToken(token)
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}
}

func TestManager_ParseGarbage(t *testing.T) {
	mgr := newTestManager(time.Minute)

	_, err := mgr.ParseToken("not-a-jwt")
	if !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("期望 ErrTokenInvalid，实际: %v", err)
	}
}
