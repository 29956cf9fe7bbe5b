package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// RedisQueue 基于Redis列表的事件队列，LPUSH 写入，由外部通知进程按 BRPOP 消费
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewRedisQueue 创建Redis队列实例
func NewRedisQueue(config *Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})
	return NewRedisQueueWithClient(client, config.Prefix)
}

// NewRedisQueueWithClient 使用已有客户端创建队列
func NewRedisQueueWithClient(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "estategate"
	}
	return &RedisQueue{
		client: client,
		prefix: prefix,
	}
}

// Close 关闭Redis连接
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping 测试Redis连接
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

// Enqueue 序列化消息并加入指定队列
func (q *RedisQueue) Enqueue(ctx context.Context, name string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化队列消息失败: %w", err)
	}

	if err := q.client.LPush(ctx, q.Key(name), data).Err(); err != nil {
		return fmt.Errorf("消息入队失败: %w", err)
	}
	return nil
}

// Length 获取队列长度
func (q *RedisQueue) Length(ctx context.Context, name string) (int64, error) {
	return q.client.LLen(ctx, q.Key(name)).Result()
}

// Key 获取队列键名
func (q *RedisQueue) Key(name string) string {
	return fmt.Sprintf("%s:%s", q.prefix, name)
}
