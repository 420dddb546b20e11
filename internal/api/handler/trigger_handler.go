package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/d60-Lab/freed/internal/service"
	"github.com/d60-Lab/freed/pkg/logger"
)

type triggerError struct {
	Error *service.TriggerError `json:"error"`
}

// reconcileResult 对账失败时只有 error
type reconcileResult struct {
	*service.ReconcileReport
	Error string `json:"error,omitempty"`
}

type triggerResult struct {
	*service.RunSummary
	Reconcile *reconcileResult `json:"reconcile,omitempty"`
}

// PublishScheduledPosts 执行一次到期扫描，由外部定时器调用
// @Summary 发布到期的定时内容
// @Description 返回本次调用的汇总；单行失败不影响其它行。reconcile=true 时额外修复已发布但台账仍为 pending 的记录
// @Tags 定时发布
// @Produce json
// @Param Authorization header string false "Bearer <service key>"
// @Param reconcile query bool false "是否对账"
// @Success 200 {object} service.RunSummary
// @Failure 401 {object} triggerError
// @Failure 500 {object} triggerError
// @Router /functions/v1/publish-scheduled-posts [post]
func (h *Handler) PublishScheduledPosts(c *gin.Context) {
	summary, err := h.trigger.Run(c.Request.Context())
	if err != nil {
		var terr *service.TriggerError
		if !errors.As(err, &terr) {
			terr = &service.TriggerError{Code: "INTERNAL", Message: err.Error()}
		}
		c.JSON(http.StatusInternalServerError, triggerError{Error: terr})
		return
	}

	out := triggerResult{RunSummary: summary}
	if c.Query("reconcile") == "true" && h.reconciler != nil {
		report, err := h.reconciler.Sweep(c.Request.Context())
		if err != nil {
			logger.Error("reconcile sweep failed", zap.Error(err))
			out.Reconcile = &reconcileResult{Error: err.Error()}
		} else {
			out.Reconcile = &reconcileResult{ReconcileReport: report}
		}
	}
	c.JSON(http.StatusOK, out)
}
