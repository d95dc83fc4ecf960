package config

import "github.com/ceyewan/aegis/clog"

// Option 组件初始化选项函数
type Option func(*options)

// options 组件初始化选项配置（内部使用，小写）
type options struct {
	logger clog.Logger
}

// applyDefaults 填充未设置的选项
func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Discard()
	}
}

// WithLogger 设置 Logger
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		o.logger = logger.WithNamespace("config")
	}
}
