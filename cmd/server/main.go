package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estategate/internal/database"
	"estategate/internal/handlers"
	"estategate/internal/router"
	"estategate/internal/services"
	"estategate/pkg/config"
	"estategate/pkg/jwt"
	"estategate/pkg/logger"

	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	if err := logger.Initialize(cfg); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	appLogger := logger.GetLogger()
	appLogger.Info("Starting EstateGate visitor service...")

	// 初始化数据库
	if err := database.Initialize(cfg); err != nil {
		appLogger.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		if err := database.Close(); err != nil {
			appLogger.Error("Failed to close database:", err)
		}
	}()

	db := database.GetDB()
	if err := database.Migrate(db); err != nil {
		appLogger.Fatalf("Failed to migrate database: %v", err)
	}

	if cfg.Seed.Enabled {
		if err := seedData(db, cfg.Seed); err != nil {
			appLogger.Fatalf("Failed to initialize seed data: %v", err)
		}
	}

	gin.SetMode(cfg.Server.Mode)

	// 事件发布：门岗WebSocket + 可选的Redis通知队列
	gateFeed := services.NewGateFeedHub()
	publishers := services.MultiPublisher{gateFeed}
	var eventQueue handlers.EventQueue
	if cfg.Redis.Enabled {
		redisQueue, err := database.OpenVisitorEventQueue(cfg.Redis)
		if err != nil {
			appLogger.Warnf("Redis unavailable, visitor events will not be queued: %v", err)
		}
		defer redisQueue.Close()
		publishers = append(publishers, services.NewQueuePublisher(redisQueue))
		eventQueue = redisQueue
	}

	activityService := services.NewActivityService(db)
	visitorCodeService := services.NewVisitorCodeService(
		services.NewGormVisitorCodeStore(db),
		activityService,
		publishers,
		services.SystemClock{},
	)
	visitorCodeService.SetMaxIssueAttempts(cfg.VisitorCode.MaxIssueAttempts)

	// 过期扫描调度器，多实例部署时可关闭并改用 gatectl expire 由外部触发
	var expiryScheduler *services.ExpiryScheduler
	if cfg.VisitorCode.SweepEnabled {
		expiryScheduler = services.NewExpiryScheduler(visitorCodeService, services.SystemClock{}, cfg.VisitorCode.SweepCron)
		if err := expiryScheduler.Start(); err != nil {
			appLogger.Errorf("Failed to start expiry scheduler: %v", err)
			expiryScheduler = nil
		} else {
			defer expiryScheduler.Stop()
		}
	}

	deps := router.Dependencies{
		DB:           db,
		Config:       cfg,
		JWTManager:   jwt.GetJWTManager(),
		Users:        services.NewUserService(db),
		Estates:      services.NewEstateService(db),
		VisitorCodes: visitorCodeService,
		Activities:   activityService,
		GateFeed:     gateFeed,
		EventQueue:   eventQueue,
		Scheduler:    expiryScheduler,
	}
	r := router.SetupRouter(deps)

	server := &http.Server{
		Addr:        ":" + cfg.Server.Port,
		Handler:     r,
		ReadTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatalf("Failed to start server: %v", err)
		}
	}()

	appLogger.Infof("Server started on port %s", cfg.Server.Port)

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown:", err)
	}
	appLogger.Info("Server exited")
}
