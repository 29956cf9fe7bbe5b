package database

import (
	"context"
	"time"

	"estategate/pkg/config"
	"estategate/pkg/logger"
	"estategate/pkg/queue"
)

const redisPingTimeout = 3 * time.Second

// OpenVisitorEventQueue 连接访客事件队列
// Redis 不可用时仍返回队列实例，事件入队失败只记录告警，不阻止服务启动
func OpenVisitorEventQueue(cfg config.RedisConfig) (*queue.RedisQueue, error) {
	q := queue.NewRedisQueue(&queue.Config{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
		Prefix:   cfg.Prefix,
	})

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()
	if err := q.Ping(ctx); err != nil {
		return q, err
	}

	logger.GetLogger().Infof("Redis connected: %s:%d/%d", cfg.Host, cfg.Port, cfg.DB)
	return q, nil
}
