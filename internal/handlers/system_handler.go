package handlers

import (
	"context"
	"time"

	"estategate/internal/services"
	"estategate/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// EventQueue 访客事件队列，健康检查探活并报告积压长度
type EventQueue interface {
	Ping(ctx context.Context) error
	Length(ctx context.Context, name string) (int64, error)
}

// SystemHandler 系统处理器
type SystemHandler struct {
	db        *gorm.DB
	queue     EventQueue
	scheduler *services.ExpiryScheduler
}

// NewSystemHandler 创建系统处理器，queue 与 scheduler 未启用时可为 nil
func NewSystemHandler(db *gorm.DB, queue EventQueue, scheduler *services.ExpiryScheduler) *SystemHandler {
	return &SystemHandler{
		db:        db,
		queue:     queue,
		scheduler: scheduler,
	}
}

// Ping 存活检查
func (h *SystemHandler) Ping(c *gin.Context) {
	response.Success(c, gin.H{"message": "pong"})
}

// Health 检查数据库、Redis与过期扫描调度器
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	healthy := true
	checks := gin.H{}

	if sqlDB, err := h.db.DB(); err != nil {
		healthy = false
		checks["database"] = err.Error()
	} else if err := sqlDB.PingContext(ctx); err != nil {
		healthy = false
		checks["database"] = err.Error()
	} else {
		checks["database"] = "ok"
	}

	if h.queue != nil {
		if err := h.queue.Ping(ctx); err != nil {
			healthy = false
			checks["redis"] = err.Error()
		} else if depth, err := h.queue.Length(ctx, services.VisitorEventQueue); err != nil {
			healthy = false
			checks["redis"] = err.Error()
		} else {
			checks["redis"] = gin.H{
				"status":      "ok",
				"queue_depth": depth,
			}
		}
	} else {
		checks["redis"] = "disabled"
	}

	if h.scheduler != nil && h.scheduler.IsRunning() {
		checks["expiry_scheduler"] = gin.H{
			"status":   "running",
			"next_run": h.scheduler.NextRun(),
		}
	} else {
		checks["expiry_scheduler"] = "disabled"
	}

	status := "ok"
	if !healthy {
		status = "degraded"
	}
	response.Success(c, gin.H{
		"status": status,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}
