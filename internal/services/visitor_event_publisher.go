package services

import (
	"context"
	"time"

	"estategate/internal/models"
	"estategate/pkg/logger"
	"estategate/pkg/queue"

	"github.com/sirupsen/logrus"
)

// VisitorEventQueue 访客事件在Redis中的队列名
const VisitorEventQueue = "visitor_events"

// 访客事件类型
const (
	EventVisitorCodeIssued    = "visitor_code.issued"
	EventVisitorCodeVerified  = "visitor_code.verified"
	EventVisitorCodeCancelled = "visitor_code.cancelled"
	EventVisitorCodeTimeIn    = "visitor_code.time_in"
	EventVisitorCodeTimeOut   = "visitor_code.time_out"
	EventVisitorCodeExpired   = "visitor_code.expired"
)

// VisitorEvent 访客码状态变更通知
type VisitorEvent struct {
	Type          string                   `json:"type"`
	VisitorCodeID uint                     `json:"visitor_code_id"`
	Code          string                   `json:"code"`
	EstateID      uint                     `json:"estate_id"`
	OwnerID       uint                     `json:"owner_id"`
	ActorID       uint                     `json:"actor_id"`
	VisitorName   string                   `json:"visitor_name"`
	Destination   string                   `json:"destination"`
	Status        models.VisitorCodeStatus `json:"status"`
	At            time.Time                `json:"at"`
}

// NewVisitorEvent 根据访客码构造事件
func NewVisitorEvent(eventType string, code *models.VisitorCode, actorID uint, at time.Time) VisitorEvent {
	return VisitorEvent{
		Type:          eventType,
		VisitorCodeID: code.ID,
		Code:          code.Code,
		EstateID:      code.EstateID,
		OwnerID:       code.UserID,
		ActorID:       actorID,
		VisitorName:   code.VisitorName,
		Destination:   code.Destination,
		Status:        code.Status,
		At:            at,
	}
}

// VisitorEventPublisher 事件发布，尽力而为，不返回错误
type VisitorEventPublisher interface {
	Publish(ctx context.Context, event VisitorEvent)
}

// QueuePublisher 将事件推入Redis队列，供通知worker（短信/邮件）消费
type QueuePublisher struct {
	queue *queue.RedisQueue
	log   *logrus.Logger
}

// NewQueuePublisher 创建队列发布者
func NewQueuePublisher(q *queue.RedisQueue) *QueuePublisher {
	return &QueuePublisher{
		queue: q,
		log:   logger.GetLogger(),
	}
}

func (p *QueuePublisher) Publish(ctx context.Context, event VisitorEvent) {
	if err := p.queue.Enqueue(ctx, VisitorEventQueue, event); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"type":            event.Type,
			"visitor_code_id": event.VisitorCodeID,
		}).Warn("访客事件入队失败")
	}
}

// MultiPublisher 依次发布到多个目标
type MultiPublisher []VisitorEventPublisher

func (m MultiPublisher) Publish(ctx context.Context, event VisitorEvent) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, event)
		}
	}
}
