package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ceyewan/aegis/clock"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
)

// circuitBreaker 熔断器实现
//
// 所有状态字段由 mu 保护。状态转换由请求驱动（纯时间戳比较），
// 不使用后台定时器。generation 在每次状态转换时递增，
// 用于丢弃跨转换的迟到结算（如转换前放行的慢调用在转换后才返回）。
type circuitBreaker struct {
	cfg    *Config
	logger clog.Logger
	meter  metrics.Meter
	clk    clock.Clock

	mu         sync.Mutex
	state      State
	generation uint64

	consecutiveFailures  int
	consecutiveSuccesses int
	halfOpenInflight     int

	totalRequests   uint64
	totalSuccesses  uint64
	totalFailures   uint64
	totalRejections uint64

	lastFailureAt  time.Time
	lastSuccessAt  time.Time
	stateChangedAt time.Time
	openedAt       time.Time
	halfOpenedAt   time.Time
	nextAttemptAt  time.Time

	// 预创建的指标实例
	requestsTotal     metrics.Counter
	rejectionsTotal   metrics.Counter
	stateChangesTotal metrics.Counter
	callDuration      metrics.Histogram
	stateGauge        metrics.Gauge
}

// transition 一次状态转换的记录，在锁外通知观察者
type transition struct {
	from State
	to   State
	at   time.Time
}

// newBreaker 创建熔断器实例（cfg 已验证并填充默认值）
func newBreaker(cfg *Config, opt options) *circuitBreaker {
	b := &circuitBreaker{
		cfg:    cfg,
		logger: opt.logger.With(clog.String("name", cfg.Name)),
		meter:  opt.meter,
		clk:    opt.clock,
		state:  StateClosed,
	}
	b.stateChangedAt = b.clk.Now()

	b.requestsTotal, _ = b.meter.Counter(metricRequestsTotal, "total requests admitted by the breaker")
	b.rejectionsTotal, _ = b.meter.Counter(metricRejectionsTotal, "total requests rejected by the breaker")
	b.stateChangesTotal, _ = b.meter.Counter(metricStateChangesTotal, "total breaker state transitions")
	b.callDuration, _ = b.meter.Histogram(metricCallDuration, "protected call duration", metrics.WithUnit("s"))
	b.stateGauge, _ = b.meter.Gauge(metricState, "current breaker state")

	return b
}

// Execute 执行受熔断保护的操作
func (b *circuitBreaker) Execute(ctx context.Context, op Operation) (any, error) {
	gen, rejectErr := b.beforeCall()
	if rejectErr != nil {
		b.rejectionsTotal.Inc(ctx, metrics.L("name", b.cfg.Name))
		if b.cfg.Fallback != nil {
			return b.cfg.Fallback(ctx, rejectErr)
		}
		return nil, rejectErr
	}

	start := b.clk.Now()
	result, err := b.run(ctx, op)
	elapsed := b.clk.Now().Sub(start)

	failure := err != nil && b.cfg.Classifier(err)
	b.afterCall(gen, failure)

	outcome := "success"
	if failure {
		outcome = "failure"
	}
	b.requestsTotal.Inc(ctx, metrics.L("name", b.cfg.Name), metrics.L("outcome", outcome))
	b.callDuration.Record(ctx, elapsed.Seconds(), metrics.L("name", b.cfg.Name), metrics.L("outcome", outcome))

	return result, err
}

// State 返回当前状态
func (b *circuitBreaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Metrics 返回当前指标快照
func (b *circuitBreaker) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.metricsLocked()
}

// Name 返回依赖名
func (b *circuitBreaker) Name() string {
	return b.cfg.Name
}

// Reset 强制重置为 Closed 状态
func (b *circuitBreaker) Reset() {
	b.mu.Lock()
	var note *transition
	if b.state != StateClosed {
		note = b.transitionLocked(StateClosed, b.clk.Now())
	} else {
		b.consecutiveFailures = 0
		b.consecutiveSuccesses = 0
	}
	b.mu.Unlock()

	if note != nil {
		b.notify(note)
	}
}

// beforeCall 请求入口检查
// 返回放行时的 generation，拒绝时返回 *OpenError
func (b *circuitBreaker) beforeCall() (uint64, error) {
	var note *transition

	b.mu.Lock()
	now := b.clk.Now()

	if b.state == StateOpen {
		if now.Before(b.nextAttemptAt) {
			b.totalRejections++
			err := b.openErrorLocked(ErrOpenState)
			b.mu.Unlock()
			return 0, err
		}
		// 熔断窗口已过，转入半开并放行本请求作为探测
		note = b.transitionLocked(StateHalfOpen, now)
	}

	if b.state == StateHalfOpen {
		if b.halfOpenInflight >= b.cfg.SuccessThreshold {
			b.totalRejections++
			err := b.openErrorLocked(ErrTooManyRequests)
			b.mu.Unlock()
			if note != nil {
				b.notify(note)
			}
			return 0, err
		}
		b.halfOpenInflight++
	}

	b.totalRequests++
	gen := b.generation
	b.mu.Unlock()

	if note != nil {
		b.notify(note)
	}
	return gen, nil
}

// afterCall 结算一次调用的结果
// gen 与当前 generation 不一致时说明期间发生过状态转换，结果被丢弃
func (b *circuitBreaker) afterCall(gen uint64, failure bool) {
	var note *transition

	b.mu.Lock()
	if gen != b.generation {
		b.mu.Unlock()
		return
	}
	now := b.clk.Now()

	if b.state == StateHalfOpen && b.halfOpenInflight > 0 {
		b.halfOpenInflight--
	}

	if failure {
		b.totalFailures++
		b.lastFailureAt = now

		switch b.state {
		case StateClosed:
			b.consecutiveFailures++
			b.consecutiveSuccesses = 0
			if b.consecutiveFailures >= b.cfg.FailureThreshold {
				note = b.transitionLocked(StateOpen, now)
			}
		case StateHalfOpen:
			// 半开探测失败，立即重新熔断
			note = b.transitionLocked(StateOpen, now)
		}
	} else {
		b.totalSuccesses++
		b.lastSuccessAt = now

		switch b.state {
		case StateClosed:
			b.consecutiveFailures = 0
		case StateHalfOpen:
			b.consecutiveSuccesses++
			if b.consecutiveSuccesses >= b.cfg.SuccessThreshold {
				note = b.transitionLocked(StateClosed, now)
			}
		}
	}
	b.mu.Unlock()

	if note != nil {
		b.notify(note)
	}
}

// run 执行操作，带单次调用超时
//
// 超时通过操作与定时器竞争实现：操作在独立 goroutine 中运行，
// 结果写入带缓冲的 channel，输掉竞争的一方结果被丢弃，
// goroutine 不会泄漏。超时后通过取消 ctx 尽力通知操作退出。
func (b *circuitBreaker) run(ctx context.Context, op Operation) (any, error) {
	if b.cfg.CallTimeout < 0 {
		return b.invoke(ctx, op)
	}

	callCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		value any
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		v, err := b.invoke(callCtx, op)
		done <- outcome{value: v, err: err}
	}()

	timer := time.NewTimer(b.cfg.CallTimeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return out.value, out.err
	case <-timer.C:
		b.logger.Warn("protected call timed out",
			clog.Duration("timeout", b.cfg.CallTimeout))
		return nil, ErrCallTimeout
	}
}

// invoke 调用操作并将 panic 转换为错误
func (b *circuitBreaker) invoke(ctx context.Context, op Operation) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("breaker [%s]: operation panicked: %v", b.cfg.Name, r)
		}
	}()
	return op(ctx)
}

// transitionLocked 执行状态转换，调用方必须持有 mu
// 返回的 transition 需要在释放锁之后通过 notify 发布
func (b *circuitBreaker) transitionLocked(to State, now time.Time) *transition {
	from := b.state
	b.state = to
	b.generation++
	b.consecutiveFailures = 0
	b.consecutiveSuccesses = 0
	b.halfOpenInflight = 0
	b.stateChangedAt = now

	switch to {
	case StateOpen:
		b.openedAt = now
		b.nextAttemptAt = now.Add(b.cfg.OpenTimeout)
	case StateHalfOpen:
		b.halfOpenedAt = now
	case StateClosed:
		b.nextAttemptAt = time.Time{}
	}

	return &transition{from: from, to: to, at: now}
}

// notify 发布状态转换：记录日志和指标，触发观察者
// 必须在锁外调用，观察者的 panic 被吞掉
func (b *circuitBreaker) notify(t *transition) {
	b.logger.Info("breaker state changed",
		clog.String("from", t.from.String()),
		clog.String("to", t.to.String()))

	ctx := context.Background()
	b.stateChangesTotal.Inc(ctx,
		metrics.L("name", b.cfg.Name),
		metrics.L("from", t.from.String()),
		metrics.L("to", t.to.String()))
	b.stateGauge.Set(ctx, float64(t.to), metrics.L("name", b.cfg.Name))

	if b.cfg.OnStateChange != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("state change observer panicked",
						clog.Any("panic", r))
				}
			}()
			b.cfg.OnStateChange(b.cfg.Name, t.from, t.to)
		}()
	}
}

// openErrorLocked 构造熔断拒绝错误，调用方必须持有 mu
func (b *circuitBreaker) openErrorLocked(cause error) *OpenError {
	return &OpenError{
		Name:    b.cfg.Name,
		State:   b.state,
		Metrics: b.metricsLocked(),
		Err:     cause,
	}
}

// metricsLocked 构造指标快照，调用方必须持有 mu
func (b *circuitBreaker) metricsLocked() Metrics {
	return Metrics{
		Name:                 b.cfg.Name,
		State:                b.state,
		ConsecutiveFailures:  b.consecutiveFailures,
		ConsecutiveSuccesses: b.consecutiveSuccesses,
		TotalRequests:        b.totalRequests,
		TotalSuccesses:       b.totalSuccesses,
		TotalFailures:        b.totalFailures,
		TotalRejections:      b.totalRejections,
		LastFailureAt:        b.lastFailureAt,
		LastSuccessAt:        b.lastSuccessAt,
		StateChangedAt:       b.stateChangedAt,
		OpenedAt:             b.openedAt,
		HalfOpenedAt:         b.halfOpenedAt,
		NextAttemptAt:        b.nextAttemptAt,
	}
}
