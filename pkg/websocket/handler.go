package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"whisp/config"
	"whisp/pkg/jwt"
	"whisp/pkg/logger"
	"whisp/pkg/redis"
	"whisp/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 跨域由CORS中间件控制
	},
}

// Handler WebSocket 握手与读写循环
type Handler struct {
	manager  *Manager
	jwtSvc   *jwt.JWTService
	checkers []jwt.TokenChecker
	cfg      config.WebSocketConfig
}

// NewHandler 创建WebSocket处理器
func NewHandler(manager *Manager, jwtSvc *jwt.JWTService, cfg config.WebSocketConfig, checkers ...jwt.TokenChecker) *Handler {
	return &Handler{manager: manager, jwtSvc: jwtSvc, checkers: checkers, cfg: cfg}
}

// Serve Gin路由处理函数，token 通过 ?token= 或 Sec-WebSocket-Protocol 传入
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Sec-WebSocket-Protocol"), "Bearer ")
	}
	if token == "" {
		response.Unauthorized(c, "缺少token")
		return
	}

	claims, err := h.jwtSvc.Authenticate(c.Request.Context(), token, h.checkers...)
	if err != nil {
		response.Unauthorized(c, "token无效或已过期")
		return
	}
	userID, _ := claims.UserID()

	// 回显子协议，避免客户端提示 "Server sent no subprotocol"
	respHeader := http.Header{}
	if protocol := c.GetHeader("Sec-WebSocket-Protocol"); protocol != "" {
		respHeader.Set("Sec-WebSocket-Protocol", protocol)
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, respHeader)
	if err != nil {
		logger.Warn("WebSocket升级失败", zap.Uint("user_id", userID), zap.Error(err))
		return
	}

	client := NewClient(userID, conn)
	h.manager.AddClient(client)
	updatePresence(userID, redis.SetUserOnline)
	logger.Info("WebSocket连接建立", zap.Uint("user_id", userID))

	defer func() {
		// 被新连接替换时在线状态归新连接所有
		if h.manager.RemoveClient(client) {
			updatePresence(userID, redis.SetUserOffline)
		}
		_ = conn.Close()
		logger.Info("WebSocket连接关闭", zap.Uint("user_id", userID))
	}()

	go h.writeLoop(client)
	h.readLoop(client)
}

// writeLoop 写协程 + 定时发送ping心跳，Send 关闭后退出
func (h *Handler) writeLoop(client *Client) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				_ = client.Conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(time.Second))
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

// readLoop 读协程（接收心跳）。若超时未收到任何读事件则断开
func (h *Handler) readLoop(client *Client) {
	conn := client.Conn
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(payload, &msg); err == nil && msg.Type == "heartbeat" {
			updatePresence(client.UserID, redis.RefreshUserPresence)
		}
	}
}

// updatePresence 未启用 Redis 时跳过，失败只记录日志
func updatePresence(userID uint, update func(context.Context, uint) error) {
	if !redis.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := update(ctx, userID); err != nil {
		logger.Warn("更新在线状态失败", zap.Uint("user_id", userID), zap.Error(err))
	}
}
