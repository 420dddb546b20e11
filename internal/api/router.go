// Package api 组装 gin 路由与中间件
package api

import (
	"net/http"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/d60-Lab/freed/config"
	"github.com/d60-Lab/freed/docs"
	"github.com/d60-Lab/freed/internal/api/handler"
	"github.com/d60-Lab/freed/internal/api/middleware"
)

// NewRouter 注册全部路由
func NewRouter(cfg *config.Config, h *handler.Handler) (*gin.Engine, error) {
	gin.SetMode(cfg.Server.Mode)
	if err := middleware.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		sentrygin.New(sentrygin.Options{Repanic: true}),
		middleware.RequestLogger(),
		otelgin.Middleware(cfg.Tracing.ServiceName),
		middleware.CORS(),
	)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	docs.SwaggerInfo.BasePath = "/"
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 定时发布触发端点：无 JWT，服务密钥校验；预检请求由 CORS 直接应答
	r.OPTIONS("/functions/v1/publish-scheduled-posts", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	fn := r.Group("/functions/v1", middleware.ServiceKey(cfg.Trigger.ServiceKeyHash))
	fn.POST("/publish-scheduled-posts", h.PublishScheduledPosts)

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit)
	v1 := r.Group("/api/v1", gzip.Gzip(gzip.DefaultCompression))

	public := v1.Group("", middleware.OptionalJWT(cfg.JWT), limiter.Middleware())
	public.GET("/contents/:id", h.GetContent)
	public.GET("/schedule/quick-options", h.QuickOptions)
	public.GET("/relations/:user_id/following", h.ListFollowing)
	public.GET("/relations/:user_id/fans", h.ListFans)

	authed := v1.Group("", middleware.JWTAuth(cfg.JWT), limiter.Middleware())
	authed.POST("/contents", h.CreateContent)
	authed.GET("/contents", h.ListMyContents)
	authed.DELETE("/contents/:id", h.DeleteContent)
	authed.POST("/contents/:id/schedule", h.ScheduleContent)
	authed.GET("/contents/:id/schedules", h.ListSchedules)
	authed.GET("/schedule/stats", h.ScheduleStats)
	authed.POST("/relations/follow", h.Follow)
	authed.POST("/relations/unfollow", h.Unfollow)
	authed.GET("/feed", h.Feed)

	return r, nil
}
