// internal/api/auth_middleware.go
package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/Corphon/PitchPilotMCP/internal/auth"
	"github.com/Corphon/PitchPilotMCP/internal/config"
	"github.com/gin-gonic/gin"
)

const configTokenTTL = 12 * time.Hour

// accessTokenConfig 返回基于 ACCESS_SECRET 的令牌配置
func accessTokenConfig() *auth.TokenConfig {
	cfg := config.GetCurrentConfig()
	if cfg == nil || cfg.AccessSecret == "" {
		return nil
	}
	return &auth.TokenConfig{
		Secret:     []byte(cfg.AccessSecret),
		Expiration: configTokenTTL,
	}
}

// AccessSecretMiddleware 保护配置写入接口。
// 未设置 ACCESS_SECRET 时不做校验（本地单用户模式）。
func AccessSecretMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenConfig := accessTokenConfig()
		if tokenConfig == nil {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    ErrorUnauthorized,
					"message": "缺少访问令牌",
				},
			})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(header, "Bearer ")
		token, err := auth.ParseToken(tokenString, tokenConfig)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    ErrorUnauthorized,
					"message": "访问令牌无效或已过期",
				},
			})
			c.Abort()
			return
		}

		c.Set("auth_subject", token.Subject)
		c.Next()
	}
}

// issueTokenRequest 换取配置令牌的请求体
type issueTokenRequest struct {
	Secret string `json:"secret" binding:"required"`
}

// IssueConfigToken 用 ACCESS_SECRET 换取短期配置令牌
func (h *Handler) IssueConfigToken(c *gin.Context) {
	tokenConfig := accessTokenConfig()
	if tokenConfig == nil {
		h.responseHelper.BadRequest(c, "未配置访问密钥，无需令牌")
		return
	}

	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.responseHelper.BadRequest(c, "请求体格式无效", err.Error())
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Secret), tokenConfig.Secret) != 1 {
		h.responseHelper.Unauthorized(c, "访问密钥不正确")
		return
	}

	token, err := auth.GenerateToken("config-admin", tokenConfig)
	if err != nil {
		h.responseHelper.InternalError(c, "令牌生成失败")
		return
	}

	h.responseHelper.Success(c, gin.H{
		"token":      token,
		"expires_in": int(configTokenTTL.Seconds()),
	})
}
