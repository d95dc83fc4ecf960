package breaker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type httpError struct {
	code int
}

func (e *httpError) Error() string   { return fmt.Sprintf("http status %d", e.code) }
func (e *httpError) StatusCode() int { return e.code }

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection refused" }
func (fakeNetError) Timeout() bool   { return false }
func (fakeNetError) Temporary() bool { return true }

var _ net.Error = fakeNetError{}

func TestDefaultClassifier(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		failure bool
	}{
		{"nil 不计入", nil, false},
		{"调用方取消不计入", context.Canceled, false},
		{"包装后的取消不计入", fmt.Errorf("call aborted: %w", context.Canceled), false},
		{"上下文超时计入", context.DeadlineExceeded, true},
		{"熔断器超时计入", ErrCallTimeout, true},
		{"网络错误计入", fakeNetError{}, true},
		{"包装后的网络错误计入", fmt.Errorf("dial: %w", fakeNetError{}), true},
		{"HTTP 500 计入", &httpError{code: 500}, true},
		{"HTTP 503 计入", &httpError{code: 503}, true},
		{"HTTP 400 不计入", &httpError{code: 400}, false},
		{"HTTP 404 不计入", &httpError{code: 404}, false},
		{"HTTP 429 不计入", &httpError{code: 429}, false},
		{"gRPC Unavailable 计入", status.Error(codes.Unavailable, "down"), true},
		{"gRPC DeadlineExceeded 计入", status.Error(codes.DeadlineExceeded, "slow"), true},
		{"gRPC Internal 计入", status.Error(codes.Internal, "bug"), true},
		{"gRPC InvalidArgument 不计入", status.Error(codes.InvalidArgument, "bad req"), false},
		{"gRPC NotFound 不计入", status.Error(codes.NotFound, "missing"), false},
		{"gRPC PermissionDenied 不计入", status.Error(codes.PermissionDenied, "forbidden"), false},
		{"未识别错误计入", errors.New("something broke"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.failure, DefaultClassifier(tt.err))
		})
	}
}

func TestIgnoreErrors(t *testing.T) {
	sentinel := errors.New("record not found")
	classify := IgnoreErrors(nil, sentinel)

	assert.False(t, classify(sentinel))
	assert.False(t, classify(fmt.Errorf("query: %w", sentinel)))
	assert.True(t, classify(errors.New("connection reset")))
}

func TestIgnoreStatus(t *testing.T) {
	classify := IgnoreStatus(nil, 502, 504)

	assert.False(t, classify(&httpError{code: 502}))
	assert.False(t, classify(&httpError{code: 504}))
	assert.True(t, classify(&httpError{code: 500}))
	assert.False(t, classify(&httpError{code: 404}))
}

func TestClassifierDrivesBreaker(t *testing.T) {
	brk, err := New(&Config{
		Name:             "api",
		FailureThreshold: 2,
		CallTimeout:      -1,
	})
	assert.NoError(t, err)

	// 4xx 不推动熔断
	for i := 0; i < 5; i++ {
		_, _ = brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
			return nil, &httpError{code: 404}
		})
	}
	assert.Equal(t, StateClosed, brk.State())

	// 5xx 推动熔断
	for i := 0; i < 2; i++ {
		_, _ = brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
			return nil, &httpError{code: 503}
		})
	}
	assert.Equal(t, StateOpen, brk.State())
}
