package xadmit

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/omeyang/rxgate/pkg/observability/xlog"
)

// Thresholds 定义拒绝阈值。任一越过即拒绝新请求。
type Thresholds struct {
	// MemoryPct 堆负载阈值（百分比）。≤ 0 表示禁用该信号。
	MemoryPct float64

	// SchedulerPct 调度器利用率阈值（百分比）。≤ 0 表示禁用该信号。
	SchedulerPct float64

	// QueueDepth 在途请求数阈值。≤ 0 表示禁用该信号。
	QueueDepth int64
}

// DefaultThresholds 返回默认阈值。
func DefaultThresholds() Thresholds {
	return Thresholds{
		MemoryPct:    85,
		SchedulerPct: 90,
		QueueDepth:   1000,
	}
}

// Decision 是一次准入判定结果。
type Decision struct {
	// Allow 是否放行。
	Allow bool

	// Reason 拒绝原因，形如 "Memory: 90% >= 85%"。
	Reason string

	// RetryAfter 建议客户端的重试间隔。
	RetryAfter time.Duration
}

// =============================================================================
// 控制器
// =============================================================================

// Options 定义控制器配置。
type Options struct {
	// Thresholds 拒绝阈值。
	Thresholds Thresholds

	// SampleInterval 采样周期。默认 1 秒。
	SampleInterval time.Duration

	// RetryAfter 拒绝响应的建议重试间隔。默认 5 秒。
	RetryAfter time.Duration

	// Logger 日志器，默认丢弃。
	Logger xlog.Logger
}

// Option 定义配置控制器的函数类型。
type Option func(*Options)

// WithThresholds 设置拒绝阈值。
func WithThresholds(t Thresholds) Option {
	return func(o *Options) { o.Thresholds = t }
}

// WithSampleInterval 设置采样周期。
func WithSampleInterval(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.SampleInterval = d
		}
	}
}

// WithRetryAfter 设置建议重试间隔。
func WithRetryAfter(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.RetryAfter = d
		}
	}
}

// WithLogger 设置日志器。
func WithLogger(logger xlog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// Controller 是准入控制器。
// Decide 只读最新已发布的样本，可在每个请求上廉价调用。
type Controller struct {
	signals  Signals
	options  Options
	latest   atomic.Pointer[Sample]
	rejected atomic.Bool // 当前是否处于拒绝状态（边沿日志用）
	draining atomic.Bool
}

// New 创建准入控制器。必须随后运行 Run 才会开始采样；
// 未采样前 Decide 放行一切（只受停机状态约束）。
func New(signals Signals, opts ...Option) *Controller {
	options := Options{
		Thresholds:     DefaultThresholds(),
		SampleInterval: time.Second,
		RetryAfter:     5 * time.Second,
		Logger:         xlog.Nop(),
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Controller{
		signals: signals,
		options: options,
	}
}

// Decide 判定是否放行新请求。
func (c *Controller) Decide() Decision {
	if c.draining.Load() {
		return Decision{
			Reason:     "Shutdown: in progress",
			RetryAfter: c.options.RetryAfter,
		}
	}
	sample := c.latest.Load()
	if sample == nil {
		return Decision{Allow: true}
	}
	if reason, ok := c.evaluate(*sample); !ok {
		return Decision{Reason: reason, RetryAfter: c.options.RetryAfter}
	}
	return Decision{Allow: true}
}

// evaluate 按 Memory、Scheduler、Queue 的顺序检查阈值。
// 返回第一个越限信号的拒绝原因。
func (c *Controller) evaluate(s Sample) (string, bool) {
	t := c.options.Thresholds
	if t.MemoryPct > 0 && s.HeapLoadPct >= t.MemoryPct {
		return fmt.Sprintf("Memory: %.0f%% >= %.0f%%", s.HeapLoadPct, t.MemoryPct), false
	}
	if t.SchedulerPct > 0 && s.SchedulerUtilPct >= t.SchedulerPct {
		return fmt.Sprintf("Scheduler: %.0f%% >= %.0f%%", s.SchedulerUtilPct, t.SchedulerPct), false
	}
	if t.QueueDepth > 0 && s.PendingWorkDepth >= t.QueueDepth {
		return fmt.Sprintf("Queue: %d >= %d", s.PendingWorkDepth, t.QueueDepth), false
	}
	return "", true
}

// BeginShutdown 进入停机排水状态：此后 Decide 无条件拒绝。
func (c *Controller) BeginShutdown() {
	if c.draining.CompareAndSwap(false, true) {
		c.options.Logger.Info(context.Background(), "admission closed for shutdown")
	}
}

// Latest 返回最新发布的样本，未采样时返回 nil。
func (c *Controller) Latest() *Sample {
	return c.latest.Load()
}

// Run 周期采样并发布样本，阻塞直到 ctx 结束。
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.options.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.sampleOnce(ctx)
		}
	}
}

// sampleOnce 采集并发布一次样本，在状态边沿记录日志。
func (c *Controller) sampleOnce(ctx context.Context) {
	sample, err := c.signals.Sample(ctx)
	if err != nil {
		// 采样失败保留上一份样本，控制面不因信号源抖动而翻转
		c.options.Logger.Warn(ctx, "pressure sampling failed", slog.Any("error", err))
		return
	}
	c.latest.Store(&sample)

	reason, ok := c.evaluate(sample)
	rejecting := !ok
	if c.rejected.CompareAndSwap(!rejecting, rejecting) {
		if rejecting {
			c.options.Logger.Warn(ctx, "admission rejecting new requests",
				slog.String("reason", reason),
				slog.Float64("heap_load_pct", sample.HeapLoadPct),
				slog.Float64("scheduler_util_pct", sample.SchedulerUtilPct),
				slog.Int64("pending_work_depth", sample.PendingWorkDepth),
			)
		} else {
			c.options.Logger.Info(ctx, "admission accepting new requests")
		}
	}
}
