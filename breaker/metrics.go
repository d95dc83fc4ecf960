package breaker

// 指标名称常量
const (
	// metricRequestsTotal 放行的请求总数（含成功与失败）
	metricRequestsTotal = "aegis_breaker_requests_total"

	// metricRejectionsTotal 被熔断拒绝的请求总数
	metricRejectionsTotal = "aegis_breaker_rejections_total"

	// metricStateChangesTotal 状态转换总数
	metricStateChangesTotal = "aegis_breaker_state_changes_total"

	// metricCallDuration 受保护调用耗时（秒）
	metricCallDuration = "aegis_breaker_call_duration_seconds"

	// metricState 当前状态（0=closed 1=open 2=half_open）
	metricState = "aegis_breaker_state"
)
