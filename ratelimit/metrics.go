package ratelimit

// 指标名称常量
const (
	// metricChecksTotal 限流检查总数，按 mode / outcome 维度区分
	metricChecksTotal = "aegis_ratelimit_checks_total"

	// metricStoreErrorsTotal 存储故障总数（按 FailClosed 策略解析的检查）
	metricStoreErrorsTotal = "aegis_ratelimit_store_errors_total"
)

// 指标标签常量
const (
	labelMode    = "mode"
	labelOutcome = "outcome"
)
