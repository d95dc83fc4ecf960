package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/aegis/connector"
	"github.com/ceyewan/aegis/testkit"
)

func newTestDistributed(t *testing.T) Limiter {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping distributed rate limiter test in short mode")
	}

	conn := testkit.NewRedisContainerConnector(t)
	limiter, err := NewDistributed(conn, nil, WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = limiter.Close() })
	return limiter
}

func TestDistributed_Check(t *testing.T) {
	limiter := newTestDistributed(t)
	ctx := context.Background()
	key := "user:" + testkit.NewID()
	rule := Limit{Limit: 3, Window: 10 * time.Second}

	t.Run("窗口内配额递减", func(t *testing.T) {
		for i := int64(1); i <= 3; i++ {
			result, err := limiter.Check(ctx, key, rule)
			require.NoError(t, err)
			assert.True(t, result.Allowed)
			assert.Equal(t, 3-i, result.Remaining)
			assert.False(t, result.Reset.IsZero())
		}
	})

	t.Run("超过配额后拒绝", func(t *testing.T) {
		result, err := limiter.Check(ctx, key, rule)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, int64(0), result.Remaining)
		assert.True(t, result.Reset.After(time.Now()))
	})
}

func TestDistributed_WindowExpiry(t *testing.T) {
	limiter := newTestDistributed(t)
	ctx := context.Background()
	key := "expiry:" + testkit.NewID()
	rule := Limit{Limit: 1, Window: time.Second}

	result, err := limiter.Check(ctx, key, rule)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = limiter.Check(ctx, key, rule)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	// 窗口到期由 Redis 的键过期驱动
	time.Sleep(1100 * time.Millisecond)

	result, err = limiter.Check(ctx, key, rule)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

// TestDistributed_SharedCounter 多个限流器实例共享同一个计数器
func TestDistributed_SharedCounter(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping distributed rate limiter test in short mode")
	}

	conn := testkit.NewRedisContainerConnector(t)
	a, err := NewDistributed(conn, nil)
	require.NoError(t, err)
	b, err := NewDistributed(conn, nil)
	require.NoError(t, err)

	ctx := context.Background()
	key := "shared:" + testkit.NewID()
	rule := Limit{Limit: 2, Window: 10 * time.Second}

	result, err := a.Check(ctx, key, rule)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	result, err = b.Check(ctx, key, rule)
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	// 两个实例合计已用完配额
	result, err = a.Check(ctx, key, rule)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

// TestDistributed_StoreFailure 存储不可用时按 FailClosed 策略解析，不返回错误
func TestDistributed_StoreFailure(t *testing.T) {
	conn, err := connector.NewRedis(&connector.RedisConfig{
		Name:        "unreachable",
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		ReadTimeout: 100 * time.Millisecond,
	})
	require.NoError(t, err)

	limiter, err := NewDistributed(conn, nil)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("默认 fail-open 放行", func(t *testing.T) {
		result, err := limiter.Check(ctx, "k", Limit{Limit: 5, Window: time.Minute})
		require.NoError(t, err, "store outage must not surface as error")
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(4), result.Remaining)
	})

	t.Run("fail-closed 拒绝", func(t *testing.T) {
		result, err := limiter.Check(ctx, "k", Limit{Limit: 5, Window: time.Minute, FailClosed: true})
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, int64(0), result.Remaining)
	})
}

func TestDistributed_InvalidArgs(t *testing.T) {
	_, err := NewDistributed(nil, nil)
	assert.ErrorIs(t, err, ErrConnectorNil)

	conn, err := connector.NewRedis(&connector.RedisConfig{Addr: "127.0.0.1:1"})
	require.NoError(t, err)
	limiter, err := NewDistributed(conn, nil)
	require.NoError(t, err)

	_, err = limiter.Check(context.Background(), "", Limit{Limit: 1, Window: time.Second})
	assert.ErrorIs(t, err, ErrKeyEmpty)

	_, err = limiter.Check(context.Background(), "k", Limit{})
	assert.ErrorIs(t, err, ErrInvalidLimit)
}
