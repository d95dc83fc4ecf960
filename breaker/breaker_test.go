package breaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/ceyewan/aegis/clock"
)

var errBackend = errors.New("backend unavailable")

// newTestBreaker 创建使用假时钟的熔断器，CallTimeout 关闭以避免真实定时器干扰
func newTestBreaker(t *testing.T, cfg *Config, clk clock.Clock) Breaker {
	t.Helper()
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = -1
	}
	brk, err := New(cfg, WithClock(clk))
	require.NoError(t, err)
	return brk
}

func failN(t *testing.T, brk Breaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
			return nil, errBackend
		})
		require.ErrorIs(t, err, errBackend)
	}
}

func TestNew(t *testing.T) {
	t.Run("正常创建", func(t *testing.T) {
		brk, err := New(&Config{Name: "github-api"})
		require.NoError(t, err)
		assert.Equal(t, "github-api", brk.Name())
		assert.Equal(t, StateClosed, brk.State())
	})

	t.Run("nil 配置", func(t *testing.T) {
		_, err := New(nil)
		assert.ErrorIs(t, err, ErrConfigNil)
	})

	t.Run("依赖名为空", func(t *testing.T) {
		_, err := New(&Config{})
		assert.ErrorIs(t, err, ErrNameEmpty)
	})

	t.Run("配置副本与调用方隔离", func(t *testing.T) {
		cfg := &Config{Name: "a", FailureThreshold: 2}
		brk, err := New(cfg)
		require.NoError(t, err)
		cfg.FailureThreshold = 100

		failN(t, brk, 2)
		assert.Equal(t, StateOpen, brk.State())
	})
}

func TestExecute_ClosedToOpen(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	brk := newTestBreaker(t, &Config{Name: "dep", FailureThreshold: 3}, clk)

	t.Run("连续失败达到阈值后熔断", func(t *testing.T) {
		failN(t, brk, 2)
		assert.Equal(t, StateClosed, brk.State())

		failN(t, brk, 1)
		assert.Equal(t, StateOpen, brk.State())
	})

	t.Run("熔断后请求被立即拒绝", func(t *testing.T) {
		called := false
		_, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
			called = true
			return nil, nil
		})
		require.Error(t, err)
		assert.False(t, called, "open state must not invoke the operation")

		oe, ok := IsOpenError(err)
		require.True(t, ok)
		assert.Equal(t, "dep", oe.Name)
		assert.Equal(t, StateOpen, oe.State)
		assert.ErrorIs(t, err, ErrOpenState)
		assert.Equal(t, uint64(1), oe.Metrics.TotalRejections)
		assert.Equal(t, clk.Now().Add(30*time.Second), oe.Metrics.NextAttemptAt)
	})
}

func TestExecute_SuccessResetsFailureStreak(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	brk := newTestBreaker(t, &Config{Name: "dep", FailureThreshold: 3}, clk)

	// 失败两次后成功一次，连续计数归零
	failN(t, brk, 2)
	_, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)

	failN(t, brk, 2)
	assert.Equal(t, StateClosed, brk.State(), "non-consecutive failures must not trip the breaker")

	failN(t, brk, 1)
	assert.Equal(t, StateOpen, brk.State())
}

func TestExecute_HalfOpenRecovery(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	cfg := &Config{
		Name:             "dep",
		FailureThreshold: 2,
		SuccessThreshold: 2,
		OpenTimeout:      10 * time.Second,
	}
	brk := newTestBreaker(t, cfg, clk)

	failN(t, brk, 2)
	require.Equal(t, StateOpen, brk.State())

	t.Run("窗口未到时仍然拒绝", func(t *testing.T) {
		clk.Advance(9 * time.Second)
		_, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
			return nil, nil
		})
		assert.ErrorIs(t, err, ErrOpenState)
	})

	t.Run("窗口到期后放行探测并转入半开", func(t *testing.T) {
		clk.Advance(1 * time.Second)
		result, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
			return "probe-1", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "probe-1", result)
		assert.Equal(t, StateHalfOpen, brk.State())
	})

	t.Run("连续成功达到阈值后闭合", func(t *testing.T) {
		_, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
			return "probe-2", nil
		})
		require.NoError(t, err)
		assert.Equal(t, StateClosed, brk.State())

		m := brk.Metrics()
		assert.Equal(t, 0, m.ConsecutiveFailures)
		assert.Equal(t, 0, m.ConsecutiveSuccesses)
	})
}

func TestExecute_HalfOpenFailureReopens(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	cfg := &Config{
		Name:             "dep",
		FailureThreshold: 2,
		SuccessThreshold: 3,
		OpenTimeout:      10 * time.Second,
	}
	brk := newTestBreaker(t, cfg, clk)

	failN(t, brk, 2)
	clk.Advance(10 * time.Second)

	// 探测成功一次后失败一次，单次失败立即重新熔断
	_, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)
	require.Equal(t, StateHalfOpen, brk.State())

	failN(t, brk, 1)
	assert.Equal(t, StateOpen, brk.State())

	// 重新熔断后窗口重新计时
	m := brk.Metrics()
	assert.Equal(t, clk.Now().Add(10*time.Second), m.NextAttemptAt)
}

func TestExecute_HalfOpenProbeQuota(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	cfg := &Config{
		Name:             "dep",
		FailureThreshold: 1,
		SuccessThreshold: 2,
		OpenTimeout:      time.Second,
	}
	brk := newTestBreaker(t, cfg, clk)

	failN(t, brk, 1)
	clk.Advance(time.Second)

	// 两个慢探测占满名额，第三个并发请求被拒绝
	release := make(chan struct{})
	started := make(chan struct{})
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
				started <- struct{}{}
				<-release
				return nil, nil
			})
			return err
		})
	}
	<-started
	<-started

	_, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooManyRequests)

	close(release)
	require.NoError(t, g.Wait())
	assert.Equal(t, StateClosed, brk.State())
}

func TestExecute_Classifier(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))

	t.Run("调用方取消不计入失败", func(t *testing.T) {
		brk := newTestBreaker(t, &Config{Name: "dep", FailureThreshold: 1}, clk)
		_, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
			return nil, context.Canceled
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StateClosed, brk.State())

		m := brk.Metrics()
		assert.Equal(t, uint64(0), m.TotalFailures)
		assert.Equal(t, uint64(1), m.TotalSuccesses)
	})

	t.Run("自定义分类器", func(t *testing.T) {
		sentinel := errors.New("expected business error")
		brk := newTestBreaker(t, &Config{
			Name:             "dep",
			FailureThreshold: 1,
			Classifier:       IgnoreErrors(nil, sentinel),
		}, clk)

		_, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
			return nil, sentinel
		})
		require.ErrorIs(t, err, sentinel)
		assert.Equal(t, StateClosed, brk.State())
	})
}

func TestExecute_Fallback(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	fallbackCalls := 0
	brk := newTestBreaker(t, &Config{
		Name:             "dep",
		FailureThreshold: 1,
		Fallback: func(ctx context.Context, err error) (any, error) {
			fallbackCalls++
			return "cached", nil
		},
	}, clk)

	t.Run("操作自身失败不触发降级", func(t *testing.T) {
		_, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
			return nil, errBackend
		})
		assert.ErrorIs(t, err, errBackend)
		assert.Equal(t, 0, fallbackCalls)
	})

	t.Run("熔断拒绝时返回降级结果", func(t *testing.T) {
		require.Equal(t, StateOpen, brk.State())
		result, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
			return nil, nil
		})
		require.NoError(t, err)
		assert.Equal(t, "cached", result)
		assert.Equal(t, 1, fallbackCalls)
	})
}

func TestExecute_CallTimeout(t *testing.T) {
	brk, err := New(&Config{
		Name:             "slow-dep",
		FailureThreshold: 1,
		CallTimeout:      20 * time.Millisecond,
	})
	require.NoError(t, err)

	opDone := make(chan struct{})
	_, err = brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
		defer close(opDone)
		select {
		case <-time.After(time.Second):
			return "too late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	require.ErrorIs(t, err, ErrCallTimeout)
	assert.Equal(t, StateOpen, brk.State(), "timeout must count as failure")

	// 超时后操作收到取消信号退出
	select {
	case <-opDone:
	case <-time.After(time.Second):
		t.Fatal("operation did not observe cancellation")
	}
}

func TestExecute_LateSettlementDiscarded(t *testing.T) {
	brk, err := New(&Config{
		Name:             "slow-dep",
		FailureThreshold: 1,
		SuccessThreshold: 1,
		CallTimeout:      10 * time.Millisecond,
	})
	require.NoError(t, err)

	// 慢调用超时后熔断；迟到的成功结果不得改写之后的状态
	_, err = brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return "late success", nil
	})
	require.ErrorIs(t, err, ErrCallTimeout)
	require.Equal(t, StateOpen, brk.State())

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, StateOpen, brk.State())
	m := brk.Metrics()
	assert.Equal(t, uint64(1), m.TotalFailures)
	assert.Equal(t, uint64(0), m.TotalSuccesses)
}

func TestExecute_OperationPanic(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	brk := newTestBreaker(t, &Config{Name: "dep", FailureThreshold: 1}, clk)

	_, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, StateOpen, brk.State())
}

func TestOnStateChange(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))

	type change struct{ from, to State }
	var mu sync.Mutex
	var changes []change

	brk := newTestBreaker(t, &Config{
		Name:             "dep",
		FailureThreshold: 1,
		SuccessThreshold: 1,
		OpenTimeout:      time.Second,
		OnStateChange: func(name string, from, to State) {
			mu.Lock()
			changes = append(changes, change{from, to})
			mu.Unlock()
		},
	}, clk)

	failN(t, brk, 1)
	clk.Advance(time.Second)
	_, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, changes, 3)
	assert.Equal(t, change{StateClosed, StateOpen}, changes[0])
	assert.Equal(t, change{StateOpen, StateHalfOpen}, changes[1])
	assert.Equal(t, change{StateHalfOpen, StateClosed}, changes[2])
}

func TestOnStateChange_PanicIsolated(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	brk := newTestBreaker(t, &Config{
		Name:             "dep",
		FailureThreshold: 1,
		OnStateChange: func(name string, from, to State) {
			panic("observer bug")
		},
	}, clk)

	failN(t, brk, 1)
	assert.Equal(t, StateOpen, brk.State(), "observer panic must not corrupt breaker state")
}

func TestReset(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	brk := newTestBreaker(t, &Config{Name: "dep", FailureThreshold: 1}, clk)

	failN(t, brk, 1)
	require.Equal(t, StateOpen, brk.State())

	brk.Reset()
	assert.Equal(t, StateClosed, brk.State())

	result, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestExecute_Concurrent(t *testing.T) {
	clk := clock.NewFake(time.Unix(1000, 0))
	brk := newTestBreaker(t, &Config{Name: "dep", FailureThreshold: 1000}, clk)

	var g errgroup.Group
	for i := 0; i < 50; i++ {
		g.Go(func() error {
			for j := 0; j < 20; j++ {
				if _, err := brk.Execute(context.Background(), func(ctx context.Context) (any, error) {
					return nil, nil
				}); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	m := brk.Metrics()
	assert.Equal(t, uint64(1000), m.TotalRequests)
	assert.Equal(t, uint64(1000), m.TotalSuccesses)
	assert.Equal(t, StateClosed, brk.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
