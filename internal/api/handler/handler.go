package handler

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/freed/internal/feed"
	"github.com/d60-Lab/freed/internal/repository"
	"github.com/d60-Lab/freed/internal/scheduling"
	"github.com/d60-Lab/freed/internal/service"
	"github.com/d60-Lab/freed/pkg/clock"
	"github.com/d60-Lab/freed/pkg/response"
)

// Deps 构造 Handler 所需的服务
type Deps struct {
	Relations  service.RelationshipService
	Contents   service.ContentService
	Schedules  service.ScheduleService
	Trigger    *service.PublicationTrigger
	Reconciler *service.Reconciler
	Feed       *feed.Service
	Clock      clock.Clock
	// Location 请求未指定时区时，日期/时间按该时区解释
	Location *time.Location
}

type Handler struct {
	relService      service.RelationshipService
	contentService  service.ContentService
	scheduleService service.ScheduleService
	trigger         *service.PublicationTrigger
	reconciler      *service.Reconciler
	feed            *feed.Service
	clock           clock.Clock
	loc             *time.Location
}

func New(d Deps) *Handler {
	h := &Handler{
		relService:      d.Relations,
		contentService:  d.Contents,
		scheduleService: d.Schedules,
		trigger:         d.Trigger,
		reconciler:      d.Reconciler,
		feed:            d.Feed,
		clock:           d.Clock,
		loc:             d.Location,
	}
	if h.clock == nil {
		h.clock = clock.Real()
	}
	if h.loc == nil {
		h.loc = time.UTC
	}
	return h
}

// fail 把领域错误映射为 HTTP 状态
func fail(c *gin.Context, err error) {
	var verr *scheduling.ValidationError
	switch {
	case errors.As(err, &verr):
		response.BadRequest(c, verr.Error())
	case errors.Is(err, service.ErrNotFuture),
		errors.Is(err, service.ErrEmptyTitle),
		errors.Is(err, service.ErrFollowSelf),
		errors.Is(err, scheduling.ErrUnknownOption):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, repository.ErrContentNotFound),
		errors.Is(err, repository.ErrScheduleNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, repository.ErrContentNotSchedulable),
		errors.Is(err, repository.ErrActiveScheduleExists):
		response.Conflict(c, err.Error())
	default:
		response.InternalError(c, err)
	}
}

func pageParams(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "10"))
	return page, pageSize
}
