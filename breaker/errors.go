package breaker

import (
	"fmt"

	"github.com/ceyewan/aegis/xerrors"
)

// 错误定义
var (
	// ErrConfigNil 配置为空
	ErrConfigNil = xerrors.New("breaker: config is nil")

	// ErrNameEmpty 依赖名为空
	ErrNameEmpty = xerrors.New("breaker: name is empty")

	// ErrOpenState 熔断器处于打开状态，请求被拒绝
	ErrOpenState = xerrors.New("breaker: circuit is open")

	// ErrTooManyRequests 半开状态下探测名额已满，请求被拒绝
	ErrTooManyRequests = xerrors.New("breaker: too many requests in half-open state")

	// ErrCallTimeout 单次调用超时
	ErrCallTimeout = xerrors.New("breaker: call timed out")
)

// OpenError 熔断拒绝错误
// 携带被拒绝时刻的状态与指标快照，调用方可据此决定重试时机
type OpenError struct {
	// Name 依赖名
	Name string

	// State 拒绝时的状态（Open 或 HalfOpen）
	State State

	// Metrics 拒绝时的指标快照
	Metrics Metrics

	// Err 底层原因（ErrOpenState 或 ErrTooManyRequests）
	Err error
}

// Error 实现 error 接口
func (e *OpenError) Error() string {
	return fmt.Sprintf("breaker [%s] rejected request in %s state: %v", e.Name, e.State, e.Err)
}

// Unwrap 支持 errors.Is 判定底层原因
func (e *OpenError) Unwrap() error {
	return e.Err
}

// IsOpenError 判断错误是否为熔断拒绝
func IsOpenError(err error) (*OpenError, bool) {
	var oe *OpenError
	if xerrors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}
