package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/freed/pkg/logger"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

const (
	CodeSuccess      = 0
	CodeBadRequest   = 40000
	CodeUnauthorized = 40100
	CodeForbidden    = 40300
	CodeNotFound     = 40400
	CodeConflict     = 40900
	CodeTooMany      = 42900
	CodeInternal     = 50000
)

func write(c *gin.Context, status, code int, msg string, data interface{}) {
	c.JSON(status, Response{Code: code, Message: msg, Data: data})
}

func Success(c *gin.Context, data interface{}) {
	write(c, http.StatusOK, CodeSuccess, "success", data)
}

func Created(c *gin.Context, data interface{}) {
	write(c, http.StatusCreated, CodeSuccess, "created", data)
}

func BadRequest(c *gin.Context, msg string) {
	write(c, http.StatusBadRequest, CodeBadRequest, msg, nil)
}

func Unauthorized(c *gin.Context, msg string) {
	c.Abort()
	write(c, http.StatusUnauthorized, CodeUnauthorized, msg, nil)
}

func Forbidden(c *gin.Context, msg string) {
	write(c, http.StatusForbidden, CodeForbidden, msg, nil)
}

func NotFound(c *gin.Context, msg string) {
	write(c, http.StatusNotFound, CodeNotFound, msg, nil)
}

func Conflict(c *gin.Context, msg string) {
	write(c, http.StatusConflict, CodeConflict, msg, nil)
}

func TooManyRequests(c *gin.Context) {
	c.Abort()
	write(c, http.StatusTooManyRequests, CodeTooMany, "too many requests", nil)
}

// InternalError 记录错误详情，只向客户端返回通用信息
func InternalError(c *gin.Context, err error) {
	logger.Error("internal error",
		zap.String("path", c.FullPath()),
		zap.Error(err),
	)
	_ = c.Error(err)
	write(c, http.StatusInternalServerError, CodeInternal, "internal server error", nil)
}
