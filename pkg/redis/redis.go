package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"whisp/config"

	"github.com/redis/go-redis/v9"
)

// ErrNotInitialized Redis未启用或未初始化
var ErrNotInitialized = errors.New("redis客户端未初始化")

var client *redis.Client

// KeyPrefix 所有key的统一前缀
const KeyPrefix = "whisp:"

// InitRedis 初始化Redis连接
func InitRedis(cfg config.RedisConfig) error {
	c := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		// 连接池配置
		PoolSize:     10,              // 连接池大小
		MinIdleConns: 5,               // 最小空闲连接
		MaxRetries:   3,               // 最大重试次数
		DialTimeout:  5 * time.Second, // 连接超时
		ReadTimeout:  3 * time.Second, // 读超时
		WriteTimeout: 3 * time.Second, // 写超时
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return fmt.Errorf("redis连接失败: %w", err)
	}

	client = c
	return nil
}

// SetClient 替换全局客户端（测试中接入 miniredis）
func SetClient(c *redis.Client) {
	client = c
}

// Enabled 是否已初始化
func Enabled() bool {
	return client != nil
}

// Close 关闭Redis连接
func Close() error {
	if client != nil {
		err := client.Close()
		client = nil
		return err
	}
	return nil
}

// HealthCheck 检查Redis健康状态
func HealthCheck(ctx context.Context) error {
	if client == nil {
		return ErrNotInitialized
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis连接异常: %w", err)
	}

	return nil
}
