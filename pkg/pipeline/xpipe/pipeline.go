package xpipe

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/omeyang/rxgate/pkg/fault/xfault"
	"github.com/omeyang/rxgate/pkg/observability/xlog"
	"github.com/omeyang/rxgate/pkg/observability/xmetrics"
	"github.com/omeyang/rxgate/pkg/storage/xcache"
)

// CacheSpec 声明查询结果的缓存条目。
type CacheSpec struct {
	// Key 缓存 key（已含部署前缀）。
	Key string

	// Mode 读一致性模式。
	Mode xcache.Mode

	// RemoteTTL 远端层 TTL，≤ 0 使用缓存默认值。
	RemoteTTL time.Duration

	// LocalTTL 本地层 TTL，≤ 0 表示不进本地层。
	LocalTTL time.Duration
}

// Request 是一次管道执行的描述符。
type Request struct {
	// Name 操作名，用于日志与指标，如 "orders.get"。
	Name string

	// Payload 待校验的请求负载，nil 表示无需校验。
	Payload any

	// IsCommand 命令（写操作）为 true，查询为 false。
	IsCommand bool

	// Cache 查询的缓存条目声明，nil 表示不缓存。
	Cache *CacheSpec

	// WriteMode 命令的一致性模式。ModeEventual（零值）只做
	// 提交后失效，不加写锁；Strong/Serializable 执行期间对
	// InvalidateKeys 持写锁，读者据此绕过或等待。
	WriteMode xcache.Mode

	// InvalidateKeys 命令成功后要失效的缓存 key。
	InvalidateKeys []string

	// InvalidatePrefixes 命令成功后要按前缀失效的缓存 key 空间。
	InvalidatePrefixes []string
}

// Handler 是业务处理器。
type Handler[T any] func(ctx context.Context) (T, error)

// =============================================================================
// 管道
// =============================================================================

// Options 定义管道配置。
type Options struct {
	// Logger 日志器，默认丢弃。
	Logger xlog.Logger

	// Observer 观测器，默认 Noop。
	Observer xmetrics.Observer

	// Cache 缓存存储，默认 NewNull()。
	Cache xcache.Store

	// WriteTimeout 失效与解锁等写安全操作的独立超时。默认 10 秒。
	WriteTimeout time.Duration
}

// Option 定义配置管道的函数类型。
type Option func(*Options)

// WithLogger 设置日志器。
func WithLogger(logger xlog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithObserver 设置观测器。
func WithObserver(observer xmetrics.Observer) Option {
	return func(o *Options) {
		if observer != nil {
			o.Observer = observer
		}
	}
}

// WithCache 设置缓存存储。
func WithCache(store xcache.Store) Option {
	return func(o *Options) {
		if store != nil {
			o.Cache = store
		}
	}
}

// WithWriteTimeout 设置写安全操作的独立超时。
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.WriteTimeout = d
		}
	}
}

// Pipeline 按固定顺序执行横切行为。并发安全。
type Pipeline struct {
	options  Options
	validate *validator.Validate
	group    singleflight.Group
}

// New 创建管道。
func New(opts ...Option) *Pipeline {
	options := Options{
		Logger:       xlog.Nop(),
		Observer:     xmetrics.NoopObserver{},
		Cache:        xcache.NewNull(),
		WriteTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Pipeline{
		options:  options,
		validate: newValidator(),
	}
}

// Run 执行一次管道调用。
// 泛型函数必须是包级函数（Go 不支持方法类型参数）。
func Run[T any](ctx context.Context, p *Pipeline, req Request, handler Handler[T]) (T, error) {
	var zero T

	ctx, span := xmetrics.Start(ctx, p.options.Observer, xmetrics.SpanOptions{
		Component: "pipeline",
		Operation: req.Name,
		Attrs:     []xmetrics.Attr{xmetrics.Bool("command", req.IsCommand)},
	})
	start := time.Now()
	p.options.Logger.Debug(ctx, "request started", slog.String("operation", req.Name))

	value, err := execute(ctx, p, req, handler)

	elapsed := time.Since(start)
	span.End(xmetrics.Result{Err: err})
	if err != nil {
		p.options.Logger.Warn(ctx, "request failed",
			slog.String("operation", req.Name),
			slog.String("failure_kind", xfault.KindOf(err).String()),
			slog.Duration("elapsed", elapsed),
			slog.Any("error", err),
		)
		return zero, err
	}
	p.options.Logger.Info(ctx, "request completed",
		slog.String("operation", req.Name),
		slog.Duration("elapsed", elapsed),
	)
	return value, nil
}

// execute 按校验 → 缓存 → 处理器的顺序执行。
func execute[T any](ctx context.Context, p *Pipeline, req Request, handler Handler[T]) (T, error) {
	var zero T
	if err := p.validatePayload(req.Payload); err != nil {
		return zero, err
	}
	if req.IsCommand {
		return runCommand(ctx, p, req, handler)
	}
	if req.Cache == nil {
		return handler(ctx)
	}
	return runCachedQuery(ctx, p, req, handler)
}
