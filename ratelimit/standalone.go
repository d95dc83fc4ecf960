package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/ceyewan/aegis/clock"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
)

// window 单个键的固定窗口计数
type window struct {
	count     int64
	expiresAt time.Time
}

// standaloneLimiter 单机固定窗口限流器实现（非导出）
//
// 进程内存计数，不涉及存储故障，FailClosed 策略在此模式下不生效。
// 后台 janitor 定期清理已过期的窗口，防止键空间无限增长。
type standaloneLimiter struct {
	logger clog.Logger
	clk    clock.Clock

	mu      sync.Mutex
	windows map[string]*window

	stop     chan struct{}
	stopOnce sync.Once

	checksTotal metrics.Counter
}

// newStandalone 创建单机限流器（内部函数，cfg 已填充默认值）
func newStandalone(cfg *StandaloneConfig, logger clog.Logger, meter metrics.Meter, clk clock.Clock) Limiter {
	l := &standaloneLimiter{
		logger:  logger,
		clk:     clk,
		windows: make(map[string]*window),
		stop:    make(chan struct{}),
	}
	l.checksTotal, _ = meter.Counter(metricChecksTotal, "total rate limit checks")

	go l.janitor(cfg.CleanupInterval)

	return l
}

// Check 消耗一次配额并返回检查结果
func (l *standaloneLimiter) Check(ctx context.Context, key string, limit Limit) (Result, error) {
	if key == "" {
		return Result{}, ErrKeyEmpty
	}
	if !limit.valid() {
		return Result{}, ErrInvalidLimit
	}

	now := l.clk.Now()

	l.mu.Lock()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = &window{expiresAt: now.Add(limit.Window)}
		l.windows[key] = w
	}
	w.count++
	count := w.count
	reset := w.expiresAt
	l.mu.Unlock()

	result := Result{
		Allowed:   count <= limit.Limit,
		Limit:     limit.Limit,
		Remaining: max(limit.Limit-count, 0),
		Reset:     reset,
	}

	outcome := "allowed"
	if !result.Allowed {
		outcome = "denied"
	}
	l.checksTotal.Inc(ctx, metrics.L(labelMode, "standalone"), metrics.L(labelOutcome, outcome))

	return result, nil
}

// Close 停止后台清理任务
func (l *standaloneLimiter) Close() error {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	return nil
}

// janitor 定期清理已过期的窗口
func (l *standaloneLimiter) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

// cleanup 移除所有已过期的窗口
func (l *standaloneLimiter) cleanup() {
	now := l.clk.Now()

	l.mu.Lock()
	removed := 0
	for key, w := range l.windows {
		if !now.Before(w.expiresAt) {
			delete(l.windows, key)
			removed++
		}
	}
	remaining := len(l.windows)
	l.mu.Unlock()

	if removed > 0 {
		l.logger.Debug("expired windows cleaned up",
			clog.Int("removed", removed),
			clog.Int("remaining", remaining))
	}
}
