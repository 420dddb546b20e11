package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/freed/internal/api/middleware"
	"github.com/d60-Lab/freed/internal/service"
	"github.com/d60-Lab/freed/pkg/logger"
	"github.com/d60-Lab/freed/pkg/response"
)

type createContentRequest struct {
	Title      string          `json:"title" binding:"required,max=255"`
	Payload    json.RawMessage `json:"payload" swaggertype:"object"`
	PublishNow bool            `json:"publish_now"`
}

// CreateContent 新建草稿或直接发布
// @Summary 新建内容
// @Tags 内容
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createContentRequest true "内容"
// @Success 201 {object} response.Response{data=model.Post}
// @Failure 400 {object} response.Response
// @Router /api/v1/contents [post]
func (h *Handler) CreateContent(c *gin.Context) {
	var req createContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if len(req.Payload) > 0 && !json.Valid(req.Payload) {
		response.BadRequest(c, "payload must be valid JSON")
		return
	}
	post, err := h.contentService.Create(c.Request.Context(), middleware.UserID(c), service.CreateContentInput{
		Title:      req.Title,
		Payload:    req.Payload,
		PublishNow: req.PublishNow,
	})
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, post)
}

// GetContent 查看内容；未发布的内容仅作者可见
// @Summary 查看内容
// @Tags 内容
// @Produce json
// @Param id path string true "内容ID"
// @Success 200 {object} response.Response{data=model.Post}
// @Failure 404 {object} response.Response
// @Router /api/v1/contents/{id} [get]
func (h *Handler) GetContent(c *gin.Context) {
	post, err := h.contentService.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, post)
}

// ListMyContents 当前用户的内容
// @Summary 我的内容
// @Tags 内容
// @Produce json
// @Security BearerAuth
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页数量" default(10)
// @Success 200 {object} response.Response{data=map[string]interface{}}
// @Router /api/v1/contents [get]
func (h *Handler) ListMyContents(c *gin.Context) {
	page, pageSize := pageParams(c)
	list, err := h.contentService.ListMine(c.Request.Context(), middleware.UserID(c), page, pageSize)
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, gin.H{"page": page, "page_size": pageSize, "list": list})
}

// DeleteContent 删除内容；仍在等待的定时记录到期后会被记为失败
// @Summary 删除内容
// @Tags 内容
// @Produce json
// @Security BearerAuth
// @Param id path string true "内容ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /api/v1/contents/{id} [delete]
func (h *Handler) DeleteContent(c *gin.Context) {
	id := c.Param("id")
	if err := h.contentService.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		fail(c, err)
		return
	}
	if h.feed != nil {
		if err := h.feed.Invalidate(c.Request.Context(), id); err != nil {
			logger.Warn("feed cache invalidate failed", zap.String("content_id", id), zap.Error(err))
		}
	}
	response.Success(c, nil)
}
