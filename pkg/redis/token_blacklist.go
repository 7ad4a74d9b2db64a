package redis

import (
	"context"
	"fmt"
	"time"
)

// RevokedTokenKeyPrefix 已注销令牌key前缀，后接 jti
const RevokedTokenKeyPrefix = KeyPrefix + "revoked:"

// RevokeToken 将令牌加入黑名单，ttl 为令牌剩余有效期
func RevokeToken(ctx context.Context, jti string, ttl time.Duration) error {
	if client == nil {
		return ErrNotInitialized
	}
	if ttl <= 0 {
		// 已过期的令牌无需记录
		return nil
	}

	if err := client.Set(ctx, RevokedTokenKeyPrefix+jti, 1, ttl).Err(); err != nil {
		return fmt.Errorf("注销令牌失败: %w", err)
	}
	return nil
}

// IsTokenRevoked 检查令牌是否已注销
func IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if client == nil {
		return false, ErrNotInitialized
	}

	n, err := client.Exists(ctx, RevokedTokenKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("检查令牌状态失败: %w", err)
	}
	return n > 0, nil
}

// TokenBlacklist 以包级客户端实现令牌黑名单
type TokenBlacklist struct{}

func (TokenBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return RevokeToken(ctx, jti, ttl)
}

func (TokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return IsTokenRevoked(ctx, jti)
}
