package breaker

import (
	"context"
	"net"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ceyewan/aegis/xerrors"
)

// StatusCoder 携带 HTTP 状态码的错误
// HTTP 客户端的错误类型实现此接口后，分类器可以区分 4xx 与 5xx
type StatusCoder interface {
	StatusCode() int
}

// DefaultClassifier 默认失败分类策略
//
// 计入熔断统计（返回 true）：
//   - 单次调用超时（ErrCallTimeout）与上下文超时（context.DeadlineExceeded）
//   - 网络错误（net.Error 及其包装）
//   - HTTP 5xx（实现 StatusCoder 的错误）
//   - gRPC 服务端故障码（Unavailable / DeadlineExceeded / ResourceExhausted / Internal / Unknown）
//   - 其他未识别的错误
//
// 不计入（返回 false）：
//   - nil
//   - 调用方主动取消（context.Canceled）
//   - HTTP 4xx
//   - gRPC 调用方错误码（InvalidArgument / NotFound / PermissionDenied 等）
func DefaultClassifier(err error) bool {
	if err == nil {
		return false
	}

	// 调用方主动取消不代表依赖不健康
	if xerrors.Is(err, context.Canceled) {
		return false
	}
	if xerrors.Is(err, ErrCallTimeout) || xerrors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if xerrors.As(err, &netErr) {
		return true
	}

	var sc StatusCoder
	if xerrors.As(err, &sc) {
		code := sc.StatusCode()
		return code < 400 || code >= 500
	}

	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.InvalidArgument, codes.NotFound, codes.AlreadyExists,
			codes.PermissionDenied, codes.Unauthenticated,
			codes.FailedPrecondition, codes.OutOfRange, codes.Canceled:
			return false
		default:
			return true
		}
	}

	// 未识别的错误保守计入
	return true
}

// IgnoreErrors 在 base 分类器之上排除指定的哨兵错误
// base 为 nil 时使用 DefaultClassifier
func IgnoreErrors(base ClassifierFunc, targets ...error) ClassifierFunc {
	if base == nil {
		base = DefaultClassifier
	}
	return func(err error) bool {
		for _, t := range targets {
			if xerrors.Is(err, t) {
				return false
			}
		}
		return base(err)
	}
}

// IgnoreStatus 在 base 分类器之上排除指定的 HTTP 状态码
// base 为 nil 时使用 DefaultClassifier
func IgnoreStatus(base ClassifierFunc, statuses ...int) ClassifierFunc {
	if base == nil {
		base = DefaultClassifier
	}
	return func(err error) bool {
		var sc StatusCoder
		if xerrors.As(err, &sc) {
			for _, s := range statuses {
				if sc.StatusCode() == s {
					return false
				}
			}
		}
		return base(err)
	}
}
