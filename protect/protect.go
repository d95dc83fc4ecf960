// Package protect 提供了治理门面，把熔断和限流组合为一个保护入口。
//
// Protector 持有一个进程级的熔断器注册表和一个注入的限流器，
// 业务代码只和门面交互，不直接操作底层组件：
//
//	redisConn, _ := connector.NewRedis(&redisCfg, connector.WithLogger(logger))
//	limiter, _ := ratelimit.NewDistributed(redisConn, nil, ratelimit.WithLogger(logger))
//
//	p, _ := protect.New(limiter,
//	    protect.WithLogger(logger),
//	    protect.WithMeter(meter),
//	)
//
//	// 受熔断保护的外部调用
//	result, err := p.Execute(ctx, "github-api", func(ctx context.Context) (any, error) {
//	    return fetchRepos(ctx)
//	})
//
//	// 限流检查（全函数，存储故障按规则策略解析）
//	res := p.CheckRateLimit(ctx, "user:123", ratelimit.Limit{Limit: 100, Window: time.Minute})
//	if !res.Allowed {
//	    // 拒绝请求
//	}
//
// 门面不持有任何隐藏的全局状态，调用方在组装根构造并传递实例。
package protect

import (
	"context"

	"github.com/ceyewan/aegis/breaker"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/ratelimit"
	"github.com/ceyewan/aegis/xerrors"
)

// 错误定义
var (
	// ErrLimiterNil 限流器为空
	ErrLimiterNil = xerrors.New("protect: limiter is nil")
)

// Protector 治理门面
type Protector struct {
	registry *breaker.Registry
	limiter  ratelimit.Limiter
	logger   clog.Logger

	defaultPolicy breaker.Config
}

// New 创建治理门面
//
// 参数:
//   - limiter: 限流器实例（分布式或单机）
//   - opts: 可选参数 (Logger, Meter, Clock, DefaultBreakerPolicy)
func New(limiter ratelimit.Limiter, opts ...Option) (*Protector, error) {
	if limiter == nil {
		return nil, ErrLimiterNil
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	opt.applyDefaults()

	return &Protector{
		registry:      breaker.NewRegistry(opt.breakerOptions()...),
		limiter:       limiter,
		logger:        opt.logger,
		defaultPolicy: opt.defaultPolicy,
	}, nil
}

// Execute 在指定依赖的熔断器下执行操作
//
// 依赖名对应的熔断器按需创建；cfg 给出首次创建时的策略，
// 省略时使用门面的默认策略。熔断器已存在时 cfg 被忽略。
func (p *Protector) Execute(ctx context.Context, name string, op breaker.Operation, cfg ...*breaker.Config) (any, error) {
	policy := p.defaultPolicy
	if len(cfg) > 0 && cfg[0] != nil {
		policy = *cfg[0]
	}
	policy.Name = name

	brk, err := p.registry.GetOrCreate(&policy)
	if err != nil {
		return nil, err
	}
	return brk.Execute(ctx, op)
}

// CheckRateLimit 消耗一次配额并返回检查结果
//
// 对调用方是全函数：参数非法按 fail-closed 拒绝并记录日志，
// 存储故障由限流器按规则的 FailClosed 策略解析。
func (p *Protector) CheckRateLimit(ctx context.Context, key string, limit ratelimit.Limit) ratelimit.Result {
	result, err := p.limiter.Check(ctx, key, limit)
	if err != nil {
		p.logger.Warn("rate limit check rejected invalid arguments",
			clog.String("key", key),
			clog.Error(err))
		return ratelimit.Result{Allowed: false, Limit: limit.Limit}
	}
	return result
}

// Breaker 返回指定依赖的熔断器（不存在时按默认策略创建）
func (p *Protector) Breaker(name string) (breaker.Breaker, error) {
	policy := p.defaultPolicy
	policy.Name = name
	return p.registry.GetOrCreate(&policy)
}

// Registry 返回底层熔断器注册表
// 用于挂载 gRPC 拦截器等需要直接访问注册表的场景
func (p *Protector) Registry() *breaker.Registry {
	return p.registry
}

// BreakerMetrics 返回所有熔断器的指标快照，按依赖名索引
// 用于健康检查端点
func (p *Protector) BreakerMetrics() map[string]breaker.Metrics {
	return p.registry.AllMetrics()
}

// ResetBreakers 重置所有熔断器为 Closed 状态，仅用于运维和测试场景
func (p *Protector) ResetBreakers() {
	p.registry.ResetAll()
}
