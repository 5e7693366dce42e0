package xexec

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/rxgate/pkg/fault/xfault"
	"github.com/omeyang/rxgate/pkg/observability/xlog"
	"github.com/omeyang/rxgate/pkg/observability/xmetrics"
)

// Executor 按依赖类别执行带弹性保护的出站调用。
// 并发安全；应在启动期构建一次并在全进程共享，熔断统计才有意义。
type Executor struct {
	kinds     map[Kind]*kindState
	transient map[string]struct{}
	logger    xlog.Logger
	observer  xmetrics.Observer
}

type kindState struct {
	policy  Policy
	breaker *gobreaker.CircuitBreaker[any]
}

// Option 配置 Executor。
type Option func(*Executor)

// WithLogger 设置日志器，默认丢弃。
func WithLogger(logger xlog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver 设置观测器，默认 Noop。
func WithObserver(observer xmetrics.Observer) Option {
	return func(e *Executor) {
		if observer != nil {
			e.observer = observer
		}
	}
}

// WithPolicy 覆盖指定类别的策略。零值字段回落到该类别默认值。
func WithPolicy(kind Kind, policy Policy) Option {
	return func(e *Executor) {
		e.kinds[kind] = &kindState{policy: policy}
	}
}

// WithTransientCategories 覆盖瞬时类别表。
func WithTransientCategories(categories []string) Option {
	return func(e *Executor) {
		e.transient = make(map[string]struct{}, len(categories))
		for _, c := range categories {
			e.transient[c] = struct{}{}
		}
	}
}

// New 创建执行器。两个内置类别（PrimaryStore、Cache）总是可用。
func New(opts ...Option) *Executor {
	e := &Executor{
		kinds: map[Kind]*kindState{
			KindPrimaryStore: {policy: DefaultPrimaryStorePolicy()},
			KindCache:        {policy: DefaultCachePolicy()},
		},
		logger:   xlog.Nop(),
		observer: xmetrics.NoopObserver{},
	}
	e.transient = make(map[string]struct{})
	for _, c := range DefaultTransientCategories() {
		e.transient[c] = struct{}{}
	}
	for _, opt := range opts {
		opt(e)
	}

	defaults := map[Kind]Policy{
		KindPrimaryStore: DefaultPrimaryStorePolicy(),
		KindCache:        DefaultCachePolicy(),
	}
	for kind, st := range e.kinds {
		def, ok := defaults[kind]
		if !ok {
			def = DefaultPrimaryStorePolicy()
		}
		st.policy = st.policy.sanitize(def)
		st.breaker = e.buildBreaker(kind, st.policy)
	}
	return e
}

// buildBreaker 构建单类别熔断器（滑动窗口）。
func (e *Executor) buildBreaker(kind Kind, p Policy) *gobreaker.CircuitBreaker[any] {
	return gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:         kind.String(),
		MaxRequests:  1, // HalfOpen 只放行一个探测
		Interval:     p.BreakerWindow,
		BucketPeriod: p.BreakerWindow / 10,
		Timeout:      p.BreakerOpenDuration,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= p.BreakerMinThroughput &&
				float64(c.TotalFailures)/float64(c.Requests) >= p.BreakerFailureRatio
		},
		IsSuccessful: func(err error) bool {
			return !countsAsBreakerFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			attrs := []slog.Attr{
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			}
			// 只有跳闸是错误级事件，恢复过程是普通状态变迁
			if to == gobreaker.StateOpen {
				e.logger.Error(context.Background(), "circuit breaker opened", attrs...)
			} else {
				e.logger.Info(context.Background(), "circuit breaker state changed", attrs...)
			}
		},
	})
}

// Do 执行无返回值的出站调用。
func (e *Executor) Do(ctx context.Context, kind Kind, name string, op func(context.Context) error) error {
	_, err := Execute(ctx, e, kind, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Execute 执行带返回值的出站调用。
//
// 每次尝试独立经过熔断器与超时预算；重试只作用于瞬时故障，
// 熔断器拒绝不会触发重试（快速失败）。
// 泛型函数必须是包级函数（Go 不支持方法类型参数）。
func Execute[T any](ctx context.Context, e *Executor, kind Kind, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if op == nil {
		return zero, ErrNilOp
	}
	st, ok := e.kinds[kind]
	if !ok {
		return zero, ErrUnknownKind
	}

	ctx, span := xmetrics.Start(ctx, e.observer, xmetrics.SpanOptions{
		Component: "xexec",
		Operation: name,
		Attrs:     []xmetrics.Attr{xmetrics.String("kind", kind.String())},
	})

	var result T
	err := retry.New(
		retry.Context(ctx),
		retry.Attempts(uint(st.policy.MaxAttempts)), //nolint:gosec // sanitize 保证为正
		retry.RetryIf(shouldRetry),
		retry.DelayType(func(n uint, _ error, _ retry.DelayContext) time.Duration {
			return backoffDelay(n, st.policy.BaseDelay, st.policy.MaxDelay)
		}),
		retry.OnRetry(func(n uint, err error) {
			e.logger.Warn(ctx, "retrying outbound call",
				slog.String("kind", kind.String()),
				slog.String("operation", name),
				slog.Uint64("attempt", uint64(n)+1),
				slog.Any("error", err),
			)
		}),
		retry.LastErrorOnly(true),
	).Do(func() error {
		return attempt(ctx, e, st, kind, op, &result)
	})

	span.End(xmetrics.Result{Err: err})
	if err != nil {
		return zero, err
	}
	return result, nil
}

// attempt 执行单次尝试：熔断器包裹超时预算内的 op 调用。
func attempt[T any](ctx context.Context, e *Executor, st *kindState, kind Kind, op func(context.Context) (T, error), out *T) error {
	_, err := st.breaker.Execute(func() (any, error) {
		opCtx, cancel := context.WithTimeout(ctx, st.policy.Timeout)
		defer cancel()

		v, opErr := op(opCtx)
		if opErr != nil {
			// 单次预算超时而调用方 ctx 仍然存活 → 瞬时故障，可重试
			if errors.Is(opErr, context.DeadlineExceeded) && ctx.Err() == nil {
				opErr = Categorize("execution-timeout", opErr)
			}
			return nil, e.classify(opErr)
		}
		*out = v
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return xfault.Wrap(xfault.KindTransient, "circuit breaker open for "+kind.String(), err)
		}
		return err
	}
	return nil
}

// shouldRetry 判定是否重试：仅瞬时故障，且熔断器拒绝不重试。
func shouldRetry(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	return xfault.IsTransient(err)
}

// State 返回指定类别的熔断器状态，未配置的类别返回 StateClosed。
func (e *Executor) State(kind Kind) gobreaker.State {
	if st, ok := e.kinds[kind]; ok {
		return st.breaker.State()
	}
	return gobreaker.StateClosed
}

// Policy 返回指定类别生效的策略（含默认值补齐）。
func (e *Executor) Policy(kind Kind) (Policy, bool) {
	st, ok := e.kinds[kind]
	if !ok {
		return Policy{}, false
	}
	return st.policy, true
}

// backoffDelay 计算第 n 次重试（1-based）的退避延迟：
// base * 2^(n-1)，截断到 max，施加 ±25% 抖动。
func backoffDelay(n uint, base, max time.Duration) time.Duration {
	if n == 0 {
		n = 1
	}
	const maxShift = 30
	shift := n - 1
	if shift > maxShift {
		shift = maxShift
	}
	d := base << shift
	if d <= 0 || d > max {
		d = max
	}
	// 抖动: d * (1 + 0.25 * (rand-0.5)*2) ∈ [0.75d, 1.25d]
	jitter := time.Duration(float64(d) * 0.25 * (randomFloat64()*2 - 1))
	return d + jitter
}

// randomFloat64 返回 [0.0, 1.0) 区间的随机数，使用 crypto/rand。
func randomFloat64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	const floatBits = 53
	return float64(binary.LittleEndian.Uint64(buf[:])>>11) / (1 << floatBits)
}
