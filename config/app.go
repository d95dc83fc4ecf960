package config

import (
	"time"

	"github.com/ceyewan/aegis/breaker"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/connector"
	"github.com/ceyewan/aegis/metrics"
	"github.com/ceyewan/aegis/ratelimit"
)

// AppConfig Aegis 治理层的顶层配置结构
//
// 对应的 YAML 形如：
//
//	log:
//	  level: info
//	  format: json
//	metrics:
//	  enabled: true
//	  port: 9090
//	redis:
//	  addr: localhost:6379
//	breakers:
//	  github-api:
//	    failure_threshold: 5
//	    open_timeout: 30s
//	ratelimits:
//	  login:
//	    limit: 10
//	    window: 1m
//	    fail_closed: true
type AppConfig struct {
	Log        clog.Config              `json:"log" yaml:"log" mapstructure:"log"`
	Metrics    metrics.Config           `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Redis      connector.RedisConfig    `json:"redis" yaml:"redis" mapstructure:"redis"`
	Breakers   map[string]BreakerPolicy `json:"breakers" yaml:"breakers" mapstructure:"breakers"`
	RateLimits map[string]RateLimitRule `json:"ratelimits" yaml:"ratelimits" mapstructure:"ratelimits"`
}

// BreakerPolicy 单个依赖的熔断策略（配置文件表示）
type BreakerPolicy struct {
	FailureThreshold int           `json:"failure_threshold" yaml:"failure_threshold" mapstructure:"failure_threshold"`
	SuccessThreshold int           `json:"success_threshold" yaml:"success_threshold" mapstructure:"success_threshold"`
	OpenTimeout      time.Duration `json:"open_timeout" yaml:"open_timeout" mapstructure:"open_timeout"`
	CallTimeout      time.Duration `json:"call_timeout" yaml:"call_timeout" mapstructure:"call_timeout"`
}

// RateLimitRule 单个调用点的限流规则（配置文件表示）
type RateLimitRule struct {
	Limit      int64         `json:"limit" yaml:"limit" mapstructure:"limit"`
	Window     time.Duration `json:"window" yaml:"window" mapstructure:"window"`
	FailClosed bool          `json:"fail_closed" yaml:"fail_closed" mapstructure:"fail_closed"`
}

// BreakerConfig 按依赖名构造熔断器配置
// 配置中不存在该依赖时返回仅含名字的配置（使用组件默认值）
func (c *AppConfig) BreakerConfig(name string) *breaker.Config {
	cfg := &breaker.Config{Name: name}
	if policy, ok := c.Breakers[name]; ok {
		cfg.FailureThreshold = policy.FailureThreshold
		cfg.SuccessThreshold = policy.SuccessThreshold
		cfg.OpenTimeout = policy.OpenTimeout
		cfg.CallTimeout = policy.CallTimeout
	}
	return cfg
}

// RateLimit 按规则名查找限流规则
func (c *AppConfig) RateLimit(name string) (ratelimit.Limit, bool) {
	rule, ok := c.RateLimits[name]
	if !ok {
		return ratelimit.Limit{}, false
	}
	return ratelimit.Limit{
		Limit:      rule.Limit,
		Window:     rule.Window,
		FailClosed: rule.FailClosed,
	}, true
}
