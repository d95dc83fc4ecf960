package metrics

import "context"

// noopMeter 丢弃所有指标的 Meter 实现（内部使用）
type noopMeter struct{}

func (m *noopMeter) Counter(name string, desc string, opts ...MetricOption) (Counter, error) {
	return &noopInstrument{}, nil
}

func (m *noopMeter) Gauge(name string, desc string, opts ...MetricOption) (Gauge, error) {
	return &noopInstrument{}, nil
}

func (m *noopMeter) Histogram(name string, desc string, opts ...MetricOption) (Histogram, error) {
	return &noopInstrument{}, nil
}

func (m *noopMeter) Shutdown(ctx context.Context) error {
	return nil
}

// noopInstrument 同时实现 Counter、Gauge、Histogram
type noopInstrument struct{}

func (i *noopInstrument) Inc(ctx context.Context, labels ...Label)                 {}
func (i *noopInstrument) Add(ctx context.Context, val float64, labels ...Label)    {}
func (i *noopInstrument) Set(ctx context.Context, val float64, labels ...Label)    {}
func (i *noopInstrument) Record(ctx context.Context, val float64, labels ...Label) {}
