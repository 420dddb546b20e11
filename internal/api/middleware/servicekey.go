package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/d60-Lab/freed/pkg/logger"
)

// ServiceKey 触发端点的服务密钥校验，密钥以 bcrypt 哈希形式配置。
// hash 为空时不校验（仅限本地开发）。
func ServiceKey(hash string) gin.HandlerFunc {
	if hash == "" {
		logger.Warn("trigger service key check disabled")
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		key := bearer(c)
		if key == "" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{"code": "UNAUTHORIZED", "message": "invalid service key"}})
			return
		}
		c.Next()
	}
}

// HashKey 生成服务密钥的 bcrypt 哈希
func HashKey(key string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
