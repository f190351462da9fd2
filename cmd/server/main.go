package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/Treasure123-school/school-web-treasure-sub002/config"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/api/handler"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/api/router"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/realtime"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/repository"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/scheduler"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/service"
	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/database"
	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/jwt"
	applogger "github.com/Treasure123-school/school-web-treasure-sub002/pkg/logger"
	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/observability"
	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/redis"
)

const version = "1.0.0"

func main() {
	// 1. 加载环境变量与配置
	_ = godotenv.Load() // .env 不存在时静默跳过
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("log_level", cfg.Log.Level),
	)

	// 2.1 错误上报（DSN 为空时为空操作）
	flushSentry, err := observability.InitSentry(cfg.Sentry.DSN, cfg.Sentry.Environment, version)
	if err != nil {
		logger.Warn("错误上报初始化失败，降级为仅本地日志", zap.Error(err))
	} else {
		defer flushSentry()
	}

	// 3. 连接数据库
	db, err := database.NewDB(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("数据库连接失败", zap.Error(err))
	}
	logger.Info("数据库连接成功")

	// 3.1 执行数据库迁移
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
	}
	if err := database.RunMigrations(sqlDB, logger); err != nil {
		logger.Fatal("数据库迁移失败", zap.Error(err))
	}

	// 4. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	rdb, err := redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单功能将不可用", zap.Error(err))
		rdb = nil
	}

	// 5. 初始化 JWT 管理器与实时推送 Hub
	jwtMgr := jwt.NewManager(&cfg.Auth)
	hub := realtime.NewHub(realtime.NewPolicy(), logger)

	// 6. 依赖注入: Repository → Service → Handler
	repo := repository.NewRepository(db)
	svc := service.NewService(cfg, repo, hub, logger)
	h := handler.NewHandler(cfg, svc, hub, logger)

	// 7. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 8. 后台周期任务：重试扫描 + 死连接清理
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobs := scheduler.New(rootCtx, logger)
	jobs.Every(cfg.Sync.RetrySweepInterval, "sync_retry_sweep", func(ctx context.Context) error {
		result, err := svc.Sync.RetryFailedSyncs(ctx)
		if err != nil {
			return err
		}
		if result.Processed > 0 {
			logger.Info("重试扫描完成",
				zap.Int("processed", result.Processed),
				zap.Int("succeeded", result.Succeeded),
				zap.Int("failed", result.Failed))
		}
		return nil
	})
	jobs.Every(cfg.Realtime.StaleTimeout, "realtime_stale_sweep", func(context.Context) error {
		if removed := hub.SweepStale(); removed > 0 {
			logger.Info("清理死连接", zap.Int("removed", removed))
		}
		return nil
	})

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	<-rootCtx.Done()
	logger.Info("收到关闭信号，开始优雅关闭...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}

	// 关闭数据库连接
	if closeDB, _ := db.DB(); closeDB != nil {
		closeDB.Close()
	}

	// 关闭 Redis 连接
	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}
