package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
log:
  level: info
  format: json
metrics:
  enabled: true
  service_name: aegis-test
  port: 9090
redis:
  addr: localhost:6379
  db: 1
breakers:
  github-api:
    failure_threshold: 3
    success_threshold: 2
    open_timeout: 15s
    call_timeout: 5s
ratelimits:
  login:
    limit: 10
    window: 1m
    fail_closed: true
  api:
    limit: 100
    window: 1s
`

func writeTestConfig(t *testing.T, content string) (dir string, file string) {
	t.Helper()
	dir = t.TempDir()
	file = filepath.Join(dir, "aegis.yaml")
	require.NoError(t, os.WriteFile(file, []byte(content), 0o644))
	return dir, file
}

func newTestLoader(t *testing.T, dir string) Loader {
	t.Helper()
	loader, err := New(&Config{
		Name:  "aegis",
		Paths: []string{dir},
	})
	require.NoError(t, err)
	require.NoError(t, loader.Load(context.Background()))
	return loader
}

func TestLoad(t *testing.T) {
	dir, _ := writeTestConfig(t, testYAML)
	loader := newTestLoader(t, dir)

	t.Run("Get 读取原始值", func(t *testing.T) {
		assert.Equal(t, "info", loader.Get("log.level"))
		assert.Equal(t, "localhost:6379", loader.Get("redis.addr"))
	})

	t.Run("Unmarshal 映射到 AppConfig", func(t *testing.T) {
		var cfg AppConfig
		require.NoError(t, loader.Unmarshal(&cfg))

		assert.Equal(t, "info", cfg.Log.Level)
		assert.True(t, cfg.Metrics.Enabled)
		assert.Equal(t, 9090, cfg.Metrics.Port)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

		require.Contains(t, cfg.Breakers, "github-api")
		assert.Equal(t, 3, cfg.Breakers["github-api"].FailureThreshold)
		assert.Equal(t, 15*time.Second, cfg.Breakers["github-api"].OpenTimeout)

		require.Contains(t, cfg.RateLimits, "login")
		assert.Equal(t, int64(10), cfg.RateLimits["login"].Limit)
		assert.True(t, cfg.RateLimits["login"].FailClosed)
	})

	t.Run("UnmarshalKey 映射子树", func(t *testing.T) {
		var rules map[string]RateLimitRule
		require.NoError(t, loader.UnmarshalKey("ratelimits", &rules))
		assert.Len(t, rules, 2)
		assert.Equal(t, time.Second, rules["api"].Window)
	})
}

func TestLoad_MissingFile(t *testing.T) {
	loader, err := New(&Config{Name: "nonexistent", Paths: []string{t.TempDir()}})
	require.NoError(t, err)

	err = loader.Load(context.Background())
	assert.ErrorIs(t, err, ErrValidationFailed, "empty configuration must fail validation")
}

func TestLoad_EnvOverride(t *testing.T) {
	dir, _ := writeTestConfig(t, testYAML)

	t.Setenv("AEGIS_LOG_LEVEL", "debug")
	loader := newTestLoader(t, dir)

	assert.Equal(t, "debug", loader.Get("log.level"))
}

func TestAppConfig_Lookups(t *testing.T) {
	dir, _ := writeTestConfig(t, testYAML)
	loader := newTestLoader(t, dir)

	var cfg AppConfig
	require.NoError(t, loader.Unmarshal(&cfg))

	t.Run("已配置的熔断策略", func(t *testing.T) {
		bc := cfg.BreakerConfig("github-api")
		assert.Equal(t, "github-api", bc.Name)
		assert.Equal(t, 3, bc.FailureThreshold)
		assert.Equal(t, 5*time.Second, bc.CallTimeout)
	})

	t.Run("未配置的依赖得到空策略", func(t *testing.T) {
		bc := cfg.BreakerConfig("unknown-dep")
		assert.Equal(t, "unknown-dep", bc.Name)
		assert.Zero(t, bc.FailureThreshold)
	})

	t.Run("限流规则查找", func(t *testing.T) {
		rule, ok := cfg.RateLimit("login")
		require.True(t, ok)
		assert.Equal(t, int64(10), rule.Limit)
		assert.Equal(t, time.Minute, rule.Window)
		assert.True(t, rule.FailClosed)

		_, ok = cfg.RateLimit("unknown")
		assert.False(t, ok)
	})
}

func TestWatch(t *testing.T) {
	dir, file := writeTestConfig(t, testYAML)
	loader := newTestLoader(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := loader.Watch(ctx, "log.level")
	require.NoError(t, err)

	// 给 fsnotify 一点时间建立监听
	time.Sleep(200 * time.Millisecond)

	updated := []byte(`
log:
  level: warn
  format: json
`)
	require.NoError(t, os.WriteFile(file, updated, 0o644))

	select {
	case event := <-ch:
		assert.Equal(t, "log.level", event.Key)
		assert.Equal(t, "warn", event.Value)
		assert.Equal(t, "info", event.OldValue)
		assert.Equal(t, "file", event.Source)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for config change event")
	}
}

func TestWatch_CancelClosesChannel(t *testing.T) {
	dir, _ := writeTestConfig(t, testYAML)
	loader := newTestLoader(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := loader.Watch(ctx, "log.level")
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel must be closed after context cancellation")
	case <-time.After(time.Second):
		t.Fatal("channel was not closed after context cancellation")
	}
}
