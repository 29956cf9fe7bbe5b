package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"estategate/internal/services"
	"estategate/pkg/logger"
	"estategate/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	gateFeedWriteTimeout = 10 * time.Second
	gateFeedPongWait     = 300 * time.Second
	gateFeedPingPeriod   = 60 * time.Second
)

// GateFeedHandler 门岗终端通过WebSocket实时接收本小区的访客事件
type GateFeedHandler struct {
	upgrader websocket.Upgrader
	hub      *services.GateFeedHub
	log      *logrus.Logger
}

// NewGateFeedHandler 创建门岗事件处理器
func NewGateFeedHandler(hub *services.GateFeedHub, allowedOrigins []string) *GateFeedHandler {
	return &GateFeedHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || matchOrigin(origin, allowed) {
						return true
					}
				}
				logger.GetLogger().Warnf("WebSocket连接被拒绝，非法Origin: %s", origin)
				return false
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024 * 8,
		},
		hub: hub,
		log: logger.GetLogger(),
	}
}

// Stream 认证由 RequireLogin/RequireStaff 完成，这里只负责升级和转发
func (h *GateFeedHandler) Stream(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	if !actor.IsStaff() {
		response.Forbidden(c, "仅物业人员可访问")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Error("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	events, unsubscribe := h.hub.Subscribe(actor.EstateID)
	defer unsubscribe()

	h.log.WithFields(logrus.Fields{
		"user_id":   actor.ID,
		"estate_id": actor.EstateID,
	}).Info("Gate feed connection established")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go h.readPump(conn, cancel)

	pingTicker := time.NewTicker(gateFeedPingPeriod)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(gateFeedWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case event, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(gateFeedWriteTimeout))
			if err := conn.WriteJSON(event); err != nil {
				h.log.WithError(err).Warn("Failed to send gate feed event")
				return
			}
		}
	}
}

// readPump 只处理 pong 与关闭帧
func (h *GateFeedHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(gateFeedPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(gateFeedPongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Warn("WebSocket unexpected close")
			}
			return
		}
	}
}

// matchOrigin 支持精确匹配和 *.example.com 形式的通配
func matchOrigin(origin, allowed string) bool {
	if origin == allowed {
		return true
	}
	if !strings.HasPrefix(allowed, "*.") {
		return false
	}

	domain := allowed[2:]
	host := origin
	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}
	if idx := strings.Index(host, ":"); idx != -1 {
		host = host[:idx]
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
