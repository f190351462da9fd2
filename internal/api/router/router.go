package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Treasure123-school/school-web-treasure-sub002/config"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/api/handler"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/api/middleware"
	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/jwt"
	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/metrics"
	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))

	// ── 健康检查 / 指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			// 成绩同步模块
			sync := authorized.Group("/sync")
			{
				sync.POST("/score", middleware.RoleAuth("teacher", "admin"), h.Sync.SyncScore)
				sync.POST("/retry", middleware.RoleAuth("admin"), h.Sync.RetryFailedSyncs)
				sync.GET("/audit-logs", middleware.RoleAuth("admin"), h.Sync.ListAuditLogs)
				sync.POST("/audit-logs/:id/resync", middleware.RoleAuth("admin"), h.Sync.ManualResync)
			}

			// 成绩单模块
			reportCards := authorized.Group("/report-cards")
			{
				reportCards.GET("/:id", h.ReportCard.GetByID)
				reportCards.GET("/student/:student_id", h.ReportCard.GetStudentReportCard)
				reportCards.GET("/class/:class_id", middleware.RoleAuth("teacher", "admin"), h.ReportCard.ListClass)
			}

			// 导出模块
			export := authorized.Group("/export")
			{
				export.GET("/report-cards", middleware.RoleAuth("teacher", "admin"), h.Export.ExportClassReportCards)
				export.GET("/audit-logs", middleware.RoleAuth("admin"), h.Export.ExportAuditLogs)
				export.GET("/exam-calendar", h.Export.ExportExamCalendar)
			}

			// 实时推送（浏览器 WebSocket 握手无法带自定义头，token 走 query）
			realtime := authorized.Group("/realtime")
			{
				realtime.GET("/ws", h.Realtime.Connect)
			}
		}
	}

	return r
}
