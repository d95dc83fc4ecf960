package ratelimit

import (
	"github.com/ceyewan/aegis/clock"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/metrics"
)

// Option 组件初始化选项函数
type Option func(*options)

// options 组件初始化选项配置（内部使用，小写）
type options struct {
	logger clog.Logger
	meter  metrics.Meter
	clock  clock.Clock
}

// applyDefaults 填充未设置的选项
func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}
	if o.clock == nil {
		o.clock = clock.System()
	}
}

// WithLogger 设置 Logger
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		o.logger = logger.WithNamespace("ratelimit")
	}
}

// WithMeter 设置 Meter
func WithMeter(meter metrics.Meter) Option {
	return func(o *options) {
		o.meter = meter
	}
}

// WithClock 设置时钟源，主要用于测试中控制窗口推进
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}
