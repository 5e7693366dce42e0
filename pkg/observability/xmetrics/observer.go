package xmetrics

import (
	"context"
	"time"
)

// Status 表示观测结果状态。
type Status string

const (
	// StatusOK 表示成功。
	StatusOK Status = "ok"
	// StatusError 表示失败。
	StatusError Status = "error"
)

// Attr 表示观测属性。
type Attr struct {
	Key   string
	Value any
}

// String 创建字符串属性。
func String(key, value string) Attr { return Attr{Key: key, Value: value} }

// Bool 创建布尔属性。
func Bool(key string, value bool) Attr { return Attr{Key: key, Value: value} }

// Int 创建整数属性。
func Int(key string, value int) Attr { return Attr{Key: key, Value: value} }

// Int64 创建 int64 属性。
func Int64(key string, value int64) Attr { return Attr{Key: key, Value: value} }

// Float64 创建 float64 属性。
func Float64(key string, value float64) Attr { return Attr{Key: key, Value: value} }

// Duration 创建时间间隔属性。建议使用带单位的 key，例如 "wait_ms"。
func Duration(key string, value time.Duration) Attr { return Attr{Key: key, Value: value} }

// SpanOptions 定义观测跨度的创建参数。
type SpanOptions struct {
	// Component 标识组件名称（如 "xpipe"、"xcache"）。
	Component string
	// Operation 标识操作名称（如 "orders.create"）。
	Operation string
	// Attrs 附加属性。
	Attrs []Attr
}

// Result 表示观测跨度结束时的结果。
type Result struct {
	// Status 表示操作状态；为空时根据 Err 推导。
	Status Status
	// Err 表示操作错误。
	Err error
	// Attrs 附加属性。
	Attrs []Attr
}

// Span 表示一次观测跨度。
type Span interface {
	// End 结束观测并记录结果。实现应保证幂等。
	End(result Result)
}

// Observer 定义统一观测接口。
type Observer interface {
	// Start 开始一次观测跨度。
	Start(ctx context.Context, opts SpanOptions) (context.Context, Span)
}

// NoopObserver 是空实现。
type NoopObserver struct{}

// Start 返回 ctx 和空跨度。nil ctx 归一化为 context.Background()。
func (NoopObserver) Start(ctx context.Context, _ SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, NoopSpan{}
}

// NoopSpan 是空跨度实现。
type NoopSpan struct{}

// End 空实现。
func (NoopSpan) End(_ Result) {}

// Start 使用 observer 开始观测，nil observer 时返回空跨度。
// 保证返回非 nil 的 context 与 Span，自定义 Observer 返回 nil 时兜底。
func Start(ctx context.Context, observer Observer, opts SpanOptions) (context.Context, Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if observer == nil {
		return ctx, NoopSpan{}
	}
	retCtx, span := observer.Start(ctx, opts)
	if retCtx == nil {
		retCtx = ctx
	}
	if span == nil {
		span = NoopSpan{}
	}
	return retCtx, span
}
