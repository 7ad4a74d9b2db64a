package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// 在线状态相关常量
const (
	PresenceKeyPrefix = KeyPrefix + "presence:" // 用户在线状态key前缀
	PresenceTTL       = 2 * time.Minute         // 在线状态TTL（需大于心跳周期）
)

func presenceKey(userID uint) string {
	return PresenceKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// SetUserOnline 标记用户在线，值为最近活跃时间
func SetUserOnline(ctx context.Context, userID uint) error {
	if client == nil {
		return ErrNotInitialized
	}

	if err := client.Set(ctx, presenceKey(userID), time.Now().Unix(), PresenceTTL).Err(); err != nil {
		return fmt.Errorf("设置用户在线状态失败: %w", err)
	}
	return nil
}

// RefreshUserPresence 刷新用户在线状态（延长TTL），key 已过期时重新写入
func RefreshUserPresence(ctx context.Context, userID uint) error {
	if client == nil {
		return ErrNotInitialized
	}

	ok, err := client.Expire(ctx, presenceKey(userID), PresenceTTL).Result()
	if err != nil {
		return fmt.Errorf("刷新用户在线状态失败: %w", err)
	}
	if !ok {
		return SetUserOnline(ctx, userID)
	}
	return nil
}

// SetUserOffline 移除用户在线状态
func SetUserOffline(ctx context.Context, userID uint) error {
	if client == nil {
		return ErrNotInitialized
	}

	if err := client.Del(ctx, presenceKey(userID)).Err(); err != nil {
		return fmt.Errorf("删除用户在线状态失败: %w", err)
	}
	return nil
}

// IsUserOnline 检查用户是否在线
func IsUserOnline(ctx context.Context, userID uint) (bool, error) {
	if client == nil {
		return false, ErrNotInitialized
	}

	n, err := client.Exists(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("检查用户在线状态失败: %w", err)
	}
	return n > 0, nil
}

// Presence 以包级客户端实现在线状态查询
type Presence struct{}

func (Presence) IsOnline(ctx context.Context, userID uint) (bool, error) {
	return IsUserOnline(ctx, userID)
}
