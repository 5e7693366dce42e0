package xadmit

import (
	"context"
	"math"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// Sample 是一次进程压力采样。
type Sample struct {
	// TakenAt 采样时刻。
	TakenAt time.Time

	// HeapLoadPct 堆负载百分比：HeapAlloc / 堆上限 * 100。
	HeapLoadPct float64

	// SchedulerUtilPct 调度器利用率百分比：goroutine 数 / 上限 * 100。
	SchedulerUtilPct float64

	// PendingWorkDepth 在途请求数。
	PendingWorkDepth int64
}

// Signals 定义压力信号源。
type Signals interface {
	// Sample 采集一次压力样本。
	Sample(ctx context.Context) (Sample, error)
}

// InFlight 是在途请求计数器，由 HTTP 中间件维护。
type InFlight struct {
	n atomic.Int64
}

// Inc 请求进入时调用。
func (f *InFlight) Inc() { f.n.Add(1) }

// Dec 请求结束时调用。
func (f *InFlight) Dec() { f.n.Add(-1) }

// Load 返回当前在途请求数。
func (f *InFlight) Load() int64 { return f.n.Load() }

// =============================================================================
// 运行时信号源
// =============================================================================

// RuntimeSignalsOptions 定义运行时信号源的配置。
type RuntimeSignalsOptions struct {
	// HeapLimitBytes 堆上限。0 表示从 GOMEMLIMIT 推导；
	// GOMEMLIMIT 未设置时堆负载恒为 0（该信号不参与判定）。
	HeapLimitBytes int64

	// MaxGoroutines 调度器利用率的分母。默认 10000。
	MaxGoroutines int
}

// RuntimeSignalsOption 定义配置运行时信号源的函数类型。
type RuntimeSignalsOption func(*RuntimeSignalsOptions)

// WithHeapLimit 设置堆上限字节数。
func WithHeapLimit(bytes int64) RuntimeSignalsOption {
	return func(o *RuntimeSignalsOptions) {
		if bytes > 0 {
			o.HeapLimitBytes = bytes
		}
	}
}

// WithMaxGoroutines 设置调度器利用率分母。
func WithMaxGoroutines(n int) RuntimeSignalsOption {
	return func(o *RuntimeSignalsOptions) {
		if n > 0 {
			o.MaxGoroutines = n
		}
	}
}

// runtimeSignals 基于 runtime 统计与在途计数实现 Signals。
type runtimeSignals struct {
	options  RuntimeSignalsOptions
	inflight *InFlight
	now      func() time.Time
}

// NewRuntimeSignals 创建运行时信号源。inflight 可为 nil（排队深度恒为 0）。
func NewRuntimeSignals(inflight *InFlight, opts ...RuntimeSignalsOption) Signals {
	options := RuntimeSignalsOptions{MaxGoroutines: 10000}
	for _, opt := range opts {
		opt(&options)
	}
	if options.HeapLimitBytes == 0 {
		// SetMemoryLimit 负参只读当前值；未设置时为 MaxInt64
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			options.HeapLimitBytes = limit
		}
	}
	return &runtimeSignals{
		options:  options,
		inflight: inflight,
		now:      time.Now,
	}
}

func (s *runtimeSignals) Sample(_ context.Context) (Sample, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	sample := Sample{TakenAt: s.now()}
	if s.options.HeapLimitBytes > 0 {
		sample.HeapLoadPct = float64(ms.HeapAlloc) / float64(s.options.HeapLimitBytes) * 100
	}
	if s.options.MaxGoroutines > 0 {
		sample.SchedulerUtilPct = float64(runtime.NumGoroutine()) / float64(s.options.MaxGoroutines) * 100
	}
	if s.inflight != nil {
		sample.PendingWorkDepth = s.inflight.Load()
	}
	return sample, nil
}
