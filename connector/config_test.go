package connector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisConfig_SetDefaults(t *testing.T) {
	cfg := &RedisConfig{Addr: "localhost:6379"}
	cfg.setDefaults()

	assert.Equal(t, "redis", cfg.Name)
	assert.Equal(t, 10, cfg.PoolSize)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 3*time.Second, cfg.WriteTimeout)
}

func TestRedisConfig_Validate(t *testing.T) {
	cfg := &RedisConfig{}
	assert.ErrorIs(t, cfg.validate(), ErrConfigInvalid)

	cfg.Addr = "localhost:6379"
	assert.NoError(t, cfg.validate())
}

func TestNewRedis(t *testing.T) {
	t.Run("nil 配置", func(t *testing.T) {
		_, err := NewRedis(nil)
		assert.ErrorIs(t, err, ErrConfigNil)
	})

	t.Run("缺少地址", func(t *testing.T) {
		_, err := NewRedis(&RedisConfig{})
		assert.ErrorIs(t, err, ErrConfigInvalid)
	})

	t.Run("延迟连接", func(t *testing.T) {
		conn, err := NewRedis(&RedisConfig{Addr: "localhost:6379"})
		require.NoError(t, err)
		assert.Equal(t, "redis", conn.Name())
		assert.False(t, conn.IsHealthy(), "health is unknown before Connect")
		assert.NotNil(t, conn.GetClient())
	})
}
