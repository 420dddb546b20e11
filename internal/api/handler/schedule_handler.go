package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/freed/internal/api/middleware"
	"github.com/d60-Lab/freed/internal/model"
	"github.com/d60-Lab/freed/internal/scheduling"
	"github.com/d60-Lab/freed/pkg/response"
)

// scheduleRequest 日期+时间，或快捷选项二选一
type scheduleRequest struct {
	Date        string     `json:"date" binding:"omitempty,date" example:"2026-10-16"`
	Time        string     `json:"time" binding:"omitempty,hhmm" example:"01:45"`
	Timezone    string     `json:"timezone" binding:"omitempty,tz" example:"Asia/Shanghai"`
	QuickOption string     `json:"quick_option" example:"+3 hours"`
	MinAllowed  *time.Time `json:"min_allowed"`
}

type quickOptionView struct {
	Label         string `json:"label"`
	OffsetSeconds int64  `json:"offset_seconds"`
	Date          string `json:"date"`
	Time          string `json:"time"`
}

func (h *Handler) location(tz string) *time.Location {
	if tz == "" {
		return h.loc
	}
	// 绑定阶段已校验
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return h.loc
	}
	return loc
}

// ScheduleContent 为内容设置未来的发布时间
// @Summary 定时发布
// @Description 选择的时间必须严格晚于提交时刻；同一内容同时只能有一条等待中的定时记录
// @Tags 定时发布
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "内容ID"
// @Param request body scheduleRequest true "发布时间"
// @Success 201 {object} response.Response{data=model.ScheduledPost}
// @Failure 400 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /api/v1/contents/{id}/schedule [post]
func (h *Handler) ScheduleContent(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var created model.ScheduledPost
	sr := scheduling.NewRequest(h.clock, h.location(req.Timezone), h.scheduleService.Submitter(middleware.UserID(c), &created))

	var sel scheduling.Selection
	switch {
	case req.QuickOption != "":
		opt, err := scheduling.QuickOptionByLabel(req.QuickOption)
		if err != nil {
			fail(c, err)
			return
		}
		sel = sr.Prefill(opt)
	case req.Date != "" && req.Time != "":
		sel = scheduling.Selection{Date: req.Date, Time: req.Time}
	default:
		response.BadRequest(c, "date and time, or quick_option, is required")
		return
	}

	var minAllowed time.Time
	if req.MinAllowed != nil {
		minAllowed = *req.MinAllowed
	}
	if _, err := sr.Confirm(c.Request.Context(), c.Param("id"), sel, minAllowed); err != nil {
		fail(c, err)
		return
	}
	response.Created(c, created)
}

// ListSchedules 内容的定时发布历史
// @Summary 定时记录
// @Tags 定时发布
// @Produce json
// @Security BearerAuth
// @Param id path string true "内容ID"
// @Success 200 {object} response.Response{data=[]model.ScheduledPost}
// @Failure 403 {object} response.Response
// @Router /api/v1/contents/{id}/schedules [get]
func (h *Handler) ListSchedules(c *gin.Context) {
	rows, err := h.scheduleService.History(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, rows)
}

// QuickOptions 快捷选项及按当前时间预填的日期/时间
// @Summary 快捷选项
// @Tags 定时发布
// @Produce json
// @Param timezone query string false "IANA 时区"
// @Success 200 {object} response.Response{data=[]quickOptionView}
// @Router /api/v1/schedule/quick-options [get]
func (h *Handler) QuickOptions(c *gin.Context) {
	tz := c.Query("timezone")
	if tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			response.BadRequest(c, "invalid timezone")
			return
		}
	}
	loc := h.location(tz)
	now := h.clock.Now()
	out := make([]quickOptionView, len(scheduling.QuickOptions))
	for i, opt := range scheduling.QuickOptions {
		sel := scheduling.ApplyQuickOption(now, opt, loc)
		out[i] = quickOptionView{
			Label:         opt.Label,
			OffsetSeconds: int64(opt.Offset / time.Second),
			Date:          sel.Date,
			Time:          sel.Time,
		}
	}
	response.Success(c, out)
}

// ScheduleStats 台账各状态计数
// @Summary 定时发布统计
// @Tags 定时发布
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=map[string]int64}
// @Router /api/v1/schedule/stats [get]
func (h *Handler) ScheduleStats(c *gin.Context) {
	counts, err := h.scheduleService.Stats(c.Request.Context())
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Success(c, counts)
}
