package services

import (
	"context"
	"sync"

	"estategate/pkg/logger"
)

const gateFeedBuffer = 32

// GateFeedHub 按小区将访客事件广播给在线的门岗终端
type GateFeedHub struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan VisitorEvent]struct{}
}

// NewGateFeedHub 创建门岗事件中心
func NewGateFeedHub() *GateFeedHub {
	return &GateFeedHub{
		subscribers: make(map[uint]map[chan VisitorEvent]struct{}),
	}
}

// Subscribe 订阅指定小区的事件，返回的函数用于取消订阅
func (h *GateFeedHub) Subscribe(estateID uint) (<-chan VisitorEvent, func()) {
	ch := make(chan VisitorEvent, gateFeedBuffer)

	h.mu.Lock()
	if h.subscribers[estateID] == nil {
		h.subscribers[estateID] = make(map[chan VisitorEvent]struct{})
	}
	h.subscribers[estateID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers[estateID], ch)
			if len(h.subscribers[estateID]) == 0 {
				delete(h.subscribers, estateID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish 非阻塞广播，订阅者缓冲区满时丢弃该事件
func (h *GateFeedHub) Publish(_ context.Context, event VisitorEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subscribers[event.EstateID] {
		select {
		case ch <- event:
		default:
			logger.GetLogger().WithField("estate_id", event.EstateID).Warn("门岗订阅者处理过慢，丢弃事件")
		}
	}
}

// SubscriberCount 当前小区的订阅数
func (h *GateFeedHub) SubscriberCount(estateID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[estateID])
}
