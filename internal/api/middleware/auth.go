package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/d60-Lab/freed/config"
	"github.com/d60-Lab/freed/pkg/response"
)

// ContextUserID gin 上下文中保存当前用户 ID 的键
const ContextUserID = "user_id"

var ErrInvalidToken = errors.New("invalid token")

// Claims 访问令牌；Subject 为用户 ID
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken 签发 HS256 令牌（开发环境 freedctl token 与测试使用）
func GenerateToken(cfg config.JWTConfig, userID, username string, now time.Time) (string, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.Secret))
}

// ParseToken 校验签名、过期时间与签发者
func ParseToken(cfg config.JWTConfig, raw string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	var claims Claims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cfg.Secret), nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func bearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// JWTAuth 要求合法的 Bearer 令牌，并把用户 ID 写入上下文
func JWTAuth(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearer(c)
		if raw == "" {
			response.Unauthorized(c, "missing bearer token")
			return
		}
		claims, err := ParseToken(cfg, raw)
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		c.Set(ContextUserID, claims.Subject)
		c.Next()
	}
}

// OptionalJWT 有令牌时解析，没有时匿名放行
func OptionalJWT(cfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearer(c); raw != "" {
			if claims, err := ParseToken(cfg, raw); err == nil {
				c.Set(ContextUserID, claims.Subject)
			}
		}
		c.Next()
	}
}

// UserID 当前用户，未登录为空串
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}
