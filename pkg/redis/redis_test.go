package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.RunT(t)
	SetClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = Close() })
	return mr
}

func TestHelpersFailWithoutClient(t *testing.T) {
	SetClient(nil)
	ctx := context.Background()

	assert.ErrorIs(t, RevokeToken(ctx, "jti", time.Minute), ErrNotInitialized)
	_, err := IsTokenRevoked(ctx, "jti")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.ErrorIs(t, AddOfflineNotification(ctx, 1, []byte("{}")), ErrNotInitialized)
	assert.False(t, Enabled())
}

func TestTokenBlacklist(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()
	var blacklist TokenBlacklist

	revoked, err := blacklist.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, blacklist.Revoke(ctx, "abc", time.Minute))
	revoked, err = blacklist.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, revoked)

	mr.FastForward(2 * time.Minute)
	revoked, err = blacklist.IsRevoked(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, revoked)

	// 已过期的令牌不写入
	require.NoError(t, blacklist.Revoke(ctx, "old", -time.Second))
	assert.False(t, mr.Exists(RevokedTokenKeyPrefix+"old"))
}

func TestOfflineNotificationsKeepOrderAndCap(t *testing.T) {
	setupMiniredis(t)
	ctx := context.Background()

	for i := 0; i < MaxOfflineNotifications+5; i++ {
		require.NoError(t, AddOfflineNotification(ctx, 9, []byte{byte('a' + i%26)}))
	}

	items, err := PopOfflineNotifications(ctx, 9)
	require.NoError(t, err)
	require.Len(t, items, MaxOfflineNotifications)
	// 最旧的5条被丢弃
	assert.Equal(t, []byte{'f'}, items[0])

	items, err = PopOfflineNotifications(ctx, 9)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestPresence(t *testing.T) {
	mr := setupMiniredis(t)
	ctx := context.Background()

	require.NoError(t, SetUserOnline(ctx, 3))
	online, err := Presence{}.IsOnline(ctx, 3)
	require.NoError(t, err)
	assert.True(t, online)

	mr.FastForward(PresenceTTL + time.Second)
	online, err = IsUserOnline(ctx, 3)
	require.NoError(t, err)
	assert.False(t, online)

	// 心跳刷新可恢复已过期的状态，并延长TTL
	require.NoError(t, RefreshUserPresence(ctx, 3))
	mr.FastForward(PresenceTTL / 2)
	require.NoError(t, RefreshUserPresence(ctx, 3))
	mr.FastForward(PresenceTTL * 3 / 4)
	online, err = IsUserOnline(ctx, 3)
	require.NoError(t, err)
	assert.True(t, online)

	require.NoError(t, SetUserOffline(ctx, 3))
	online, err = IsUserOnline(ctx, 3)
	require.NoError(t, err)
	assert.False(t, online)
}
