package breaker

import (
	"sync"

	"github.com/ceyewan/aegis/clog"
)

// Registry 进程级熔断器注册表
//
// 同一个依赖名在进程内只存在一个熔断器实例，
// 所有调用点共享其状态。获取或创建是原子的，
// 并发首次获取同名熔断器也只会创建一个实例。
type Registry struct {
	opt    options
	logger clog.Logger

	mu       sync.RWMutex
	breakers map[string]Breaker
}

// NewRegistry 创建熔断器注册表
//
// 参数:
//   - opts: 可选参数 (Logger, Meter, Clock)，注册表创建的所有熔断器共享这些依赖
func NewRegistry(opts ...Option) *Registry {
	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	opt.applyDefaults()

	return &Registry{
		opt:      opt,
		logger:   opt.logger,
		breakers: make(map[string]Breaker),
	}
}

// GetOrCreate 按依赖名获取熔断器，不存在时用给定配置创建
//
// 同名熔断器已存在时直接返回现有实例，给定配置被忽略
// （首次创建者的配置生效）。cfg.Name 为空时返回 ErrNameEmpty。
func (r *Registry) GetOrCreate(cfg *Config) (Breaker, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}
	if cfg.Name == "" {
		return nil, ErrNameEmpty
	}

	// 快路径：读锁查找
	r.mu.RLock()
	if brk, ok := r.breakers[cfg.Name]; ok {
		r.mu.RUnlock()
		return brk, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// 双重检查，避免并发创建
	if brk, ok := r.breakers[cfg.Name]; ok {
		return brk, nil
	}

	cloned := *cfg
	if err := cloned.validate(); err != nil {
		return nil, err
	}

	brk := newBreaker(&cloned, r.opt)
	r.breakers[cfg.Name] = brk

	r.logger.Info("breaker created",
		clog.String("name", cloned.Name),
		clog.Int("failure_threshold", cloned.FailureThreshold),
		clog.Int("success_threshold", cloned.SuccessThreshold),
		clog.Duration("open_timeout", cloned.OpenTimeout))

	return brk, nil
}

// Get 按依赖名查找已存在的熔断器
func (r *Registry) Get(name string) (Breaker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	brk, ok := r.breakers[name]
	return brk, ok
}

// AllMetrics 返回所有熔断器的指标快照，按依赖名索引
// 用于健康检查端点和运维观测
func (r *Registry) AllMetrics() map[string]Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Metrics, len(r.breakers))
	for name, brk := range r.breakers {
		out[name] = brk.Metrics()
	}
	return out
}

// ResetAll 重置所有熔断器为 Closed 状态
func (r *Registry) ResetAll() {
	r.mu.RLock()
	breakers := make([]Breaker, 0, len(r.breakers))
	for _, brk := range r.breakers {
		breakers = append(breakers, brk)
	}
	r.mu.RUnlock()

	for _, brk := range breakers {
		brk.Reset()
	}
	r.logger.Info("all breakers reset")
}

// Remove 移除指定熔断器
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.breakers, name)
}

// Clear 移除所有熔断器
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.breakers = make(map[string]Breaker)
}

// Len 返回当前注册的熔断器数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.breakers)
}
