// Package breaker 提供了熔断器组件，专注于对不可靠外部依赖的故障隔离与自动恢复。
//
// breaker 是 Aegis 治理层的核心组件，它提供了：
// - 按依赖名独立的三态熔断器（Closed / Open / HalfOpen）
// - 连续失败计数触发熔断，半开探测自动恢复
// - 可插拔的失败分类策略（超时和网络错误计入，调用方错误不计入）
// - 单次调用超时控制（操作与定时器竞争，败者结果被丢弃）
// - 灵活的降级策略（快速失败或自定义降级逻辑）
// - 进程级 Registry 管理，所有调用点共享同名熔断器状态
// - gRPC Unary Interceptor 无侵入集成
//
// ## 基本使用
//
//	brk, _ := breaker.New(&breaker.Config{
//		Name:             "github-api",
//		FailureThreshold: 5,
//		SuccessThreshold: 2,
//		OpenTimeout:      30 * time.Second,
//		CallTimeout:      10 * time.Second,
//	}, breaker.WithLogger(logger))
//
//	result, err := brk.Execute(ctx, func(ctx context.Context) (any, error) {
//		return fetchRepos(ctx)
//	})
//
// ## Registry
//
//	reg := breaker.NewRegistry(breaker.WithLogger(logger))
//	brk, _ := reg.GetOrCreate(&breaker.Config{Name: "github-api"})
//
// ## 降级策略
//
//	brk, _ := breaker.New(&breaker.Config{
//		Name: "linkedin-api",
//		Fallback: func(ctx context.Context, err error) (any, error) {
//			// 返回缓存数据或默认值
//			return cachedProfile, nil
//		},
//	})
package breaker

import (
	"context"
	"time"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// State 熔断器状态
type State int

const (
	// StateClosed 闭合状态（正常）
	StateClosed State = iota
	// StateOpen 打开状态（熔断中）
	StateOpen
	// StateHalfOpen 半开状态（探测恢复）
	StateHalfOpen
)

// String 返回状态的字符串表示
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Operation 受熔断保护的操作
// ctx 会在单次调用超时或调用方取消时被取消，操作应尽量尊重取消信号
type Operation func(ctx context.Context) (any, error)

// ClassifierFunc 失败分类函数
// 返回 true 表示该错误计入熔断统计（依赖健康问题），
// 返回 false 表示仅作为普通调用失败（如调用方参数错误）
type ClassifierFunc func(err error) bool

// FallbackFunc 降级函数类型
// 当熔断器拒绝请求时调用，err 为 *OpenError
type FallbackFunc func(ctx context.Context, err error) (any, error)

// StateChangeFunc 状态变更观察者
// 在每次状态转换后同步触发；观察者内部的 panic 会被捕获，
// 不会影响熔断器自身的状态更新
type StateChangeFunc func(name string, from State, to State)

// Breaker 熔断器核心接口
type Breaker interface {
	// Execute 执行受熔断保护的操作
	//
	// Open 状态且未到探测时刻时立即返回 *OpenError（纯内存判断，不产生 I/O）；
	// 否则执行操作并根据分类结果更新状态。操作自身的错误原样透传，
	// 熔断器不做包装。
	Execute(ctx context.Context, op Operation) (any, error)

	// State 返回当前状态
	State() State

	// Metrics 返回当前指标快照
	Metrics() Metrics

	// Name 返回依赖名
	Name() string

	// Reset 强制重置为 Closed 状态，仅用于运维和测试场景
	Reset()
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// Config 熔断器配置，构造后不可变
type Config struct {
	// Name 依赖名（唯一键，必填）
	Name string `json:"name" yaml:"name"`

	// FailureThreshold 连续失败阈值（默认：5）
	// Closed 状态下连续失败达到此值后熔断
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`

	// SuccessThreshold 恢复成功阈值（默认：2）
	// HalfOpen 状态下连续成功达到此值后闭合
	SuccessThreshold int `json:"success_threshold" yaml:"success_threshold"`

	// OpenTimeout 熔断持续时间（默认：30s）
	// Open 状态持续此时间后，下一个请求作为探测放行
	OpenTimeout time.Duration `json:"open_timeout" yaml:"open_timeout"`

	// CallTimeout 单次调用超时（默认：10s，负值表示不限制）
	// 超时按失败分类处理，以 ErrCallTimeout 返回给调用方
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`

	// Classifier 失败分类函数（默认：DefaultClassifier）
	Classifier ClassifierFunc `json:"-" yaml:"-"`

	// Fallback 降级函数（可选）
	// 仅在熔断器拒绝请求时调用，操作自身的失败不触发降级
	Fallback FallbackFunc `json:"-" yaml:"-"`

	// OnStateChange 状态变更观察者（可选）
	OnStateChange StateChangeFunc `json:"-" yaml:"-"`
}

// validate 验证配置并填充默认值（在副本上调用）
func (c *Config) validate() error {
	if c.Name == "" {
		return ErrNameEmpty
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 2
	}
	if c.OpenTimeout <= 0 {
		c.OpenTimeout = 30 * time.Second
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = 10 * time.Second
	}
	if c.Classifier == nil {
		c.Classifier = DefaultClassifier
	}
	return nil
}

// Metrics 熔断器指标快照
type Metrics struct {
	// Name 依赖名
	Name string `json:"name"`

	// State 当前状态
	State State `json:"state"`

	// ConsecutiveFailures 连续失败数（状态转换时归零）
	ConsecutiveFailures int `json:"consecutive_failures"`

	// ConsecutiveSuccesses 连续成功数（仅 HalfOpen 状态有意义）
	ConsecutiveSuccesses int `json:"consecutive_successes"`

	// TotalRequests 累计放行的请求数
	TotalRequests uint64 `json:"total_requests"`

	// TotalSuccesses 累计成功数
	TotalSuccesses uint64 `json:"total_successes"`

	// TotalFailures 累计失败数（按分类结果计）
	TotalFailures uint64 `json:"total_failures"`

	// TotalRejections 累计被熔断拒绝的请求数
	TotalRejections uint64 `json:"total_rejections"`

	// LastFailureAt 最近一次失败时间
	LastFailureAt time.Time `json:"last_failure_at"`

	// LastSuccessAt 最近一次成功时间
	LastSuccessAt time.Time `json:"last_success_at"`

	// StateChangedAt 最近一次状态变更时间
	StateChangedAt time.Time `json:"state_changed_at"`

	// OpenedAt 最近一次进入 Open 状态的时间
	OpenedAt time.Time `json:"opened_at"`

	// HalfOpenedAt 最近一次进入 HalfOpen 状态的时间
	HalfOpenedAt time.Time `json:"half_opened_at"`

	// NextAttemptAt 下一次允许探测的时间（仅 Open 状态有意义）
	NextAttemptAt time.Time `json:"next_attempt_at"`
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// New 创建熔断器实例
// 这是标准的工厂函数，支持在不依赖 Registry 的情况下独立实例化
//
// 参数:
//   - cfg: 熔断器配置（New 内部复制，调用方后续修改不影响实例）
//   - opts: 可选参数 (Logger, Meter, Clock)
func New(cfg *Config, opts ...Option) (Breaker, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	// 复制配置，保证实例持有的配置不可变
	cloned := *cfg
	if err := cloned.validate(); err != nil {
		return nil, err
	}

	// 应用选项
	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	opt.applyDefaults()

	return newBreaker(&cloned, opt), nil
}
