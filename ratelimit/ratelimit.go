// Package ratelimit 提供了固定窗口限流组件，支持单机和分布式两种模式。
//
// ratelimit 是 Aegis 治理层的核心组件，它提供了：
// - 统一的 Limiter 接口，屏蔽单机和分布式差异
// - 固定窗口计数算法，语义简单、跨实例一致
// - 分布式模式：基于 Redis + Lua 的原子计数，多实例共享窗口
// - 单机模式：进程内存计数，适合单实例部署和测试
// - 按规则可选的故障策略：存储不可用时放行（fail-open）或拒绝（fail-closed）
// - 开箱即用的 Gin 中间件，携带标准的 X-RateLimit-* 响应头
//
// ## 基本使用
//
//	redisConn, _ := connector.NewRedis(&redisCfg, connector.WithLogger(logger))
//	limiter, _ := ratelimit.NewDistributed(redisConn, nil, ratelimit.WithLogger(logger))
//	defer limiter.Close()
//
//	result, err := limiter.Check(ctx, "user:123", ratelimit.Limit{
//	    Limit:  100,
//	    Window: time.Minute,
//	})
//	if err != nil {
//	    // 参数错误（空 key、非法规则）
//	}
//	if !result.Allowed {
//	    // 请求被限流，result.Reset 为窗口重置时间
//	}
//
// 注意：存储故障不会以 error 形式返回，而是按规则的 FailClosed
// 策略解析为放行或拒绝，Check 对调用方而言是全函数。
//
// ## Gin 中间件
//
//	r := gin.New()
//	r.Use(ratelimit.GinMiddlewareWithHeaders(limiter, nil, func(c *gin.Context) ratelimit.Limit {
//	    return ratelimit.Limit{Limit: 100, Window: time.Minute}
//	}))
package ratelimit

import (
	"context"
	"time"

	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/connector"
)

// ========================================
// 接口定义 (Interface Definitions)
// ========================================

// Limit 定义限流规则（固定窗口算法）
type Limit struct {
	// Limit 单个窗口内允许的最大请求数
	Limit int64 `json:"limit" yaml:"limit"`

	// Window 窗口长度
	Window time.Duration `json:"window" yaml:"window"`

	// FailClosed 存储不可用时的策略
	// false（默认）：放行，优先保证可用性
	// true：拒绝，适合登录等安全敏感场景
	FailClosed bool `json:"fail_closed" yaml:"fail_closed"`
}

// valid 检查规则是否合法
func (l Limit) valid() bool {
	return l.Limit > 0 && l.Window > 0
}

// Result 单次限流检查的结果
type Result struct {
	// Allowed 本次请求是否放行
	Allowed bool `json:"allowed"`

	// Limit 规则中的窗口配额
	Limit int64 `json:"limit"`

	// Remaining 当前窗口剩余配额（不为负）
	Remaining int64 `json:"remaining"`

	// Reset 当前窗口的重置时间
	Reset time.Time `json:"reset"`
}

// Limiter 限流器核心接口
type Limiter interface {
	// Check 消耗一次配额并返回检查结果
	//
	// key: 限流标识（如 IP、UserID、接口名）
	// limit: 限流规则
	//
	// error 仅在参数非法时返回（空 key、非法规则）。
	// 存储故障按 limit.FailClosed 解析为放行或拒绝，不返回错误。
	Check(ctx context.Context, key string, limit Limit) (Result, error)

	// Close 释放限流器持有的资源
	Close() error
}

// ========================================
// 配置定义 (Configuration)
// ========================================

// StandaloneConfig 单机限流配置
type StandaloneConfig struct {
	// CleanupInterval 清理过期窗口的间隔（默认：1 分钟）
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
}

// DistributedConfig 分布式限流配置
type DistributedConfig struct {
	// Prefix Redis Key 前缀（默认："aegis:ratelimit:"）
	Prefix string `json:"prefix" yaml:"prefix"`
}

// setDefaults 填充默认值
func (c *DistributedConfig) setDefaults() {
	if c.Prefix == "" {
		c.Prefix = "aegis:ratelimit:"
	}
}

// ========================================
// 工厂函数 (Factory Functions)
// ========================================

// NewStandalone 创建单机限流器
// 这是标准的工厂函数，支持在不依赖其他容器的情况下独立实例化
//
// 参数:
//   - cfg: 单机限流配置，nil 时使用默认值
//   - opts: 可选参数 (Logger, Meter, Clock)
func NewStandalone(cfg *StandaloneConfig, opts ...Option) (Limiter, error) {
	if cfg == nil {
		cfg = &StandaloneConfig{}
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	opt.applyDefaults()

	logger := opt.logger.With(clog.String("mode", "standalone"))
	logger.Info("creating standalone rate limiter")

	return newStandalone(cfg, logger, opt.meter, opt.clock), nil
}

// NewDistributed 创建分布式限流器
// 多个实例共享同一个 Redis 计数器，限流语义跨实例一致
//
// 参数:
//   - redisConn: Redis 连接器
//   - cfg: 分布式限流配置，nil 时使用默认值
//   - opts: 可选参数 (Logger, Meter, Clock)
func NewDistributed(redisConn connector.RedisConnector, cfg *DistributedConfig, opts ...Option) (Limiter, error) {
	if redisConn == nil {
		return nil, ErrConnectorNil
	}

	if cfg == nil {
		cfg = &DistributedConfig{}
	}
	cfg.setDefaults()

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}
	opt.applyDefaults()

	logger := opt.logger.With(clog.String("mode", "distributed"))
	logger.Info("creating distributed rate limiter", clog.String("prefix", cfg.Prefix))

	return newDistributed(cfg, redisConn, logger, opt.meter, opt.clock), nil
}
