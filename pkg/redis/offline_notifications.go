package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// 离线通知相关常量
const (
	OfflineNotificationsKeyPrefix = KeyPrefix + "offline:" // 离线通知key前缀
	OfflineNotificationsTTL       = 7 * 24 * time.Hour     // 7天过期
	MaxOfflineNotifications       = 100                    // 每个用户最多保存条数
)

func offlineKey(userID uint) string {
	return OfflineNotificationsKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

// AddOfflineNotification 用户不在线时保存通知（已序列化的JSON）
func AddOfflineNotification(ctx context.Context, userID uint, payload []byte) error {
	if client == nil {
		return ErrNotInitialized
	}

	key := offlineKey(userID)

	// RPUSH 保持时间顺序，超出上限时丢弃最旧的
	pipe := client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, -MaxOfflineNotifications, -1)
	pipe.Expire(ctx, key, OfflineNotificationsTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("添加离线通知失败: %w", err)
	}

	return nil
}

// PopOfflineNotifications 取出并清空用户的离线通知，按时间正序
func PopOfflineNotifications(ctx context.Context, userID uint) ([][]byte, error) {
	if client == nil {
		return nil, ErrNotInitialized
	}

	key := offlineKey(userID)

	pipe := client.TxPipeline()
	rangeCmd := pipe.LRange(ctx, key, 0, -1)
	pipe.Del(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("获取离线通知失败: %w", err)
	}

	results := rangeCmd.Val()
	notifications := make([][]byte, 0, len(results))
	for _, r := range results {
		notifications = append(notifications, []byte(r))
	}
	return notifications, nil
}
