package dto

// ── 认证模块 DTO ──

// TokenRequest 以 API Key 换取短期 Token 的请求
type TokenRequest struct {
	APIKey  string `json:"api_key" binding:"required"`
	Subject string `json:"subject" binding:"omitempty,max=50"` // 调用方标识，默认 "admin"
}

// TokenResponse Token 响应
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"` // "Bearer"
	ExpiresIn   int64  `json:"expires_in"` // 秒
}
