package websocket

import (
	"context"
	"sync"
	"time"

	"whisp/pkg/logger"
	"whisp/pkg/redis"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client 代表一个WebSocket连接的用户
// UserID: 用户ID
// Conn: WebSocket连接
// Send: 发送消息的通道

type Client struct {
	UserID uint
	Conn   *websocket.Conn
	Send   chan []byte
}

// NewClient 创建客户端
func NewClient(userID uint, conn *websocket.Conn) *Client {
	return &Client{UserID: userID, Conn: conn, Send: make(chan []byte, 256)}
}

// Manager 管理所有在线用户的WebSocket连接
// 支持并发安全，用户离线时通知暂存到Redis

type Manager struct {
	clients map[uint]*Client // 在线用户
	lock    sync.RWMutex
}

// NewManager 创建连接管理器
func NewManager() *Manager {
	return &Manager{clients: make(map[uint]*Client)}
}

// AddClient 添加新连接，同一用户的旧连接会被替换
func (m *Manager) AddClient(client *Client) {
	m.lock.Lock()
	if old, ok := m.clients[client.UserID]; ok && old != client {
		close(old.Send)
	}
	m.clients[client.UserID] = client
	m.lock.Unlock()

	// 推送Redis中的离线通知
	go m.pushOfflineNotifications(client)
}

// RemoveClient 移除连接，仅当登记的仍是该连接时才移除并返回 true
// 已被同一用户的新连接替换时返回 false
func (m *Manager) RemoveClient(client *Client) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	if c, ok := m.clients[client.UserID]; ok && c == client {
		close(c.Send)
		delete(m.clients, client.UserID)
		return true
	}
	return false
}

// SendToUser 推送消息给指定用户
// 若用户不在线则存储到Redis离线通知
func (m *Manager) SendToUser(userID uint, msg []byte) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if client, ok := m.clients[userID]; ok {
		select {
		case client.Send <- msg:
		default:
			logger.Warn("WebSocket发送缓冲区已满，丢弃通知", zap.Uint("user_id", userID))
		}
		return
	}

	go storeOfflineNotification(userID, msg)
}

// IsOnline 判断用户在本实例是否有连接，未启用 Redis 时作为在线状态来源
func (m *Manager) IsOnline(_ context.Context, userID uint) (bool, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	_, ok := m.clients[userID]
	return ok, nil
}

// pushOfflineNotifications 推送离线通知给刚上线的用户
func (m *Manager) pushOfflineNotifications(client *Client) {
	if !redis.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	notifications, err := redis.PopOfflineNotifications(ctx, client.UserID)
	if err != nil {
		logger.Warn("获取离线通知失败", zap.Uint("user_id", client.UserID), zap.Error(err))
		return
	}

	for _, n := range notifications {
		m.lock.RLock()
		current := m.clients[client.UserID] == client
		if current {
			select {
			case client.Send <- n:
			default:
				current = false
			}
		}
		m.lock.RUnlock()
		if !current {
			// 连接已断开或缓冲区已满，剩余通知放回Redis
			storeOfflineNotification(client.UserID, n)
		}
	}
}

// storeOfflineNotification 存储离线通知到Redis
func storeOfflineNotification(userID uint, msg []byte) {
	if !redis.Enabled() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := redis.AddOfflineNotification(ctx, userID, msg); err != nil {
		logger.Warn("保存离线通知失败", zap.Uint("user_id", userID), zap.Error(err))
	}
}
