package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kklimas/pk-schedule-sync/config"
	"github.com/kklimas/pk-schedule-sync/internal/api/handler"
	"github.com/kklimas/pk-schedule-sync/internal/api/middleware"
	"github.com/kklimas/pk-schedule-sync/pkg/jwt"
	"github.com/kklimas/pk-schedule-sync/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(1 << 20)) // 1MB，本服务没有大请求体

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（限流防 API Key 爆破）
		auth := v1.Group("/auth")
		{
			auth.POST("/token", middleware.RateLimit(rdb, 10, time.Minute), h.Auth.Token)
		}

		// 任务模块：查询公开，触发需要认证
		jobs := v1.Group("/jobs")
		{
			jobs.GET("", h.Job.ListJobs)
			jobs.GET("/status/:id", h.Job.GetStatus)
			jobs.POST("", middleware.JWTAuth(jwtMgr), h.Job.TriggerSync)
		}

		// 课程模块（只读）
		lectures := v1.Group("/lectures")
		{
			lectures.GET("", h.Lecture.ListLectures)
			lectures.GET("/feed.ics", h.Lecture.ICSFeed)
		}
	}

	return r
}
