// Package clock 提供可注入的时间源抽象。
//
// 熔断器的窗口计算（OpenTimeout、nextAttempt）基于显式的时间戳比较，
// 而不是后台定时器。将时间源抽象为接口后，测试可以通过 Fake 时钟
// 确定性地模拟时间流逝，无需真实 sleep。
//
// 基本使用：
//
//	c := clock.System()
//	now := c.Now()
//
// 测试中使用：
//
//	fake := clock.NewFake(time.Now())
//	fake.Advance(30 * time.Second)
package clock

import (
	"sync"
	"time"
)

// Clock 时间源接口
type Clock interface {
	// Now 返回当前时间
	Now() time.Time
}

// systemClock 系统时钟实现（非导出）
type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

// System 返回基于 time.Now 的系统时钟
func System() Clock {
	return systemClock{}
}

// Fake 可手动推进的假时钟，用于确定性测试
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake 创建一个停留在 start 时刻的假时钟
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now 返回假时钟的当前时间
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance 将假时钟向前推进 d
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Set 将假时钟设置为指定时刻
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}
