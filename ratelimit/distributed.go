package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/aegis/clock"
	"github.com/ceyewan/aegis/clog"
	"github.com/ceyewan/aegis/connector"
	"github.com/ceyewan/aegis/metrics"
)

// luaScript 固定窗口计数的 Lua 脚本
//
// INCR 与 PEXPIRE 在脚本内原子执行，杜绝了
// "计数器已创建但过期时间未设置" 的竞态（否则计数器会永久残留）。
//
// KEYS[1]: 窗口键
// ARGV[1]: 窗口长度（毫秒）
// 返回: {窗口内累计计数, 窗口剩余毫秒数}
const luaScript = `
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`

// distributedLimiter 分布式固定窗口限流器实现（非导出）
type distributedLimiter struct {
	client *redis.Client
	prefix string
	logger clog.Logger
	clk    clock.Clock
	script *redis.Script

	checksTotal      metrics.Counter
	storeErrorsTotal metrics.Counter
}

// newDistributed 创建分布式限流器（内部函数，cfg 已填充默认值）
func newDistributed(
	cfg *DistributedConfig,
	redisConn connector.RedisConnector,
	logger clog.Logger,
	meter metrics.Meter,
	clk clock.Clock,
) Limiter {
	l := &distributedLimiter{
		client: redisConn.GetClient(),
		prefix: cfg.Prefix,
		logger: logger,
		clk:    clk,
		script: redis.NewScript(luaScript),
	}

	l.checksTotal, _ = meter.Counter(metricChecksTotal, "total rate limit checks")
	l.storeErrorsTotal, _ = meter.Counter(metricStoreErrorsTotal, "total store failures during checks")

	return l
}

// Check 消耗一次配额并返回检查结果
func (l *distributedLimiter) Check(ctx context.Context, key string, limit Limit) (Result, error) {
	if key == "" {
		return Result{}, ErrKeyEmpty
	}
	if !limit.valid() {
		return Result{}, ErrInvalidLimit
	}

	fullKey := l.prefix + key
	windowMillis := limit.Window.Milliseconds()

	raw, err := l.script.Run(ctx, l.client, []string{fullKey}, windowMillis).Result()
	if err != nil {
		return l.resolveFailure(ctx, key, limit, err), nil
	}

	count, ttlMillis, ok := parseScriptResult(raw)
	if !ok {
		return l.resolveFailure(ctx, key, limit, errScriptResult), nil
	}

	result := Result{
		Allowed:   count <= limit.Limit,
		Limit:     limit.Limit,
		Remaining: max(limit.Limit-count, 0),
		Reset:     l.clk.Now().Add(time.Duration(ttlMillis) * time.Millisecond),
	}

	outcome := "allowed"
	if !result.Allowed {
		outcome = "denied"
		l.logger.Debug("rate limit exceeded",
			clog.String("key", key),
			clog.Int64("count", count),
			clog.Int64("limit", limit.Limit))
	}
	l.checksTotal.Inc(ctx, metrics.L(labelMode, "distributed"), metrics.L(labelOutcome, outcome))

	return result, nil
}

// Close 释放资源（Redis 连接由 Connector 管理）
func (l *distributedLimiter) Close() error {
	return nil
}

// resolveFailure 按规则的 FailClosed 策略解析存储故障
// 故障不向调用方抛错，Reset 以本地时钟估算
func (l *distributedLimiter) resolveFailure(ctx context.Context, key string, limit Limit, cause error) Result {
	l.logger.Warn("rate limit store unavailable",
		clog.String("key", key),
		clog.Bool("fail_closed", limit.FailClosed),
		clog.Error(cause))
	l.storeErrorsTotal.Inc(ctx, metrics.L(labelMode, "distributed"))

	result := Result{
		Allowed: !limit.FailClosed,
		Limit:   limit.Limit,
		Reset:   l.clk.Now().Add(limit.Window),
	}
	if result.Allowed {
		result.Remaining = limit.Limit - 1
	}
	return result
}

// parseScriptResult 解析 Lua 脚本返回的 {count, ttl}
func parseScriptResult(raw any) (count int64, ttlMillis int64, ok bool) {
	slice, isSlice := raw.([]any)
	if !isSlice || len(slice) != 2 {
		return 0, 0, false
	}
	count, isInt := slice[0].(int64)
	if !isInt {
		return 0, 0, false
	}
	ttlMillis, isInt = slice[1].(int64)
	if !isInt {
		return 0, 0, false
	}
	return count, ttlMillis, true
}
