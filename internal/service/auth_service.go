package service

import (
	"crypto/subtle"
	"errors"

	"github.com/kklimas/pk-schedule-sync/config"
	"github.com/kklimas/pk-schedule-sync/internal/dto"
	"github.com/kklimas/pk-schedule-sync/pkg/jwt"
)

// ── 认证模块业务错误 ──

var (
	ErrInvalidAPIKey = errors.New("API Key 无效")
)

// AuthService 认证业务接口
type AuthService interface {
	// ExchangeToken 用 API Key 换取访问令牌
	ExchangeToken(req *dto.TokenRequest) (*dto.TokenResponse, error)
}

type authService struct {
	cfg    *config.Config
	jwtMgr *jwt.Manager
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(cfg *config.Config, jwtMgr *jwt.Manager) AuthService {
	return &authService{cfg: cfg, jwtMgr: jwtMgr}
}

func (s *authService) ExchangeToken(req *dto.TokenRequest) (*dto.TokenResponse, error) {
	// 常量时间比较，避免逐字节短路泄露长度信息
	if subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(s.cfg.Auth.APIKey)) != 1 {
		return nil, ErrInvalidAPIKey
	}

	subject := req.Subject
	if subject == "" {
		subject = "admin"
	}

	token, err := s.jwtMgr.GenerateToken(subject)
	if err != nil {
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.jwtMgr.TokenTTL().Seconds()),
	}, nil
}
