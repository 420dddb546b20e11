package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/freed/internal/api/middleware"
	"github.com/d60-Lab/freed/pkg/response"
)

// Feed 当前用户的时间线，只包含已发布内容
// @Summary 时间线
// @Tags 时间线
// @Produce json
// @Security BearerAuth
// @Param cursor query int false "上一页返回的 next_cursor"
// @Param limit query int false "条数" default(20)
// @Success 200 {object} response.Response{data=feed.Page}
// @Router /api/v1/feed [get]
func (h *Handler) Feed(c *gin.Context) {
	cursor, _ := strconv.ParseInt(c.DefaultQuery("cursor", "0"), 10, 64)
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	page, err := h.feed.Timeline(c.Request.Context(), middleware.UserID(c), cursor, limit)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, page)
}
