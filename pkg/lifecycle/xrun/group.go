package xrun

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"

	"golang.org/x/sync/errgroup"
)

// Group 基于 errgroup + context 管理多个服务的并发运行与协调关闭。
// 任一服务返回错误或 context 被取消时，所有服务都会收到取消信号。
// Go、GoWithName、Cancel 并发安全；Wait 只应调用一次。
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	causeCtx context.Context
	cancel   context.CancelCauseFunc
	opts     *groupOptions
}

// NewGroup 创建 Group，返回派生的 context。
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	options := defaultOptions()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(options)
	}

	causeCtx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(causeCtx)

	return &Group{
		eg:       eg,
		ctx:      egCtx,
		causeCtx: causeCtx,
		cancel:   cancel,
		opts:     options,
	}, egCtx
}

// Go 启动一个服务 goroutine。fn 应监听 ctx.Done() 响应取消。
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		return fn(g.ctx)
	})
}

// GoWithName 与 Go 相同，并在日志中记录服务名。
func (g *Group) GoWithName(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		g.opts.logger.Debug(g.ctx, "service starting",
			slog.String("group", g.opts.name),
			slog.String("service", name),
		)
		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			g.opts.logger.Warn(g.ctx, "service exited with error",
				slog.String("group", g.opts.name),
				slog.String("service", name),
				slog.Any("error", err),
			)
		} else {
			g.opts.logger.Debug(g.ctx, "service stopped",
				slog.String("group", g.opts.name),
				slog.String("service", name),
			)
		}
		return err
	})
}

// Wait 等待所有服务结束，返回首个非 nil 错误。
// context.Canceled 被过滤，但显式的取消原因（如 SignalError）会被保留。
func (g *Group) Wait() error {
	defer g.cancel(nil)

	err := g.eg.Wait()

	if errors.Is(err, context.Canceled) {
		if g.causeCtx.Err() != nil {
			if cause := context.Cause(g.causeCtx); cause != nil && !errors.Is(cause, context.Canceled) {
				return cause
			}
			return nil
		}
		return err
	}

	// 所有服务返回 nil 时仍需保留显式 Cancel(cause)
	if err == nil && g.causeCtx.Err() != nil {
		if cause := context.Cause(g.causeCtx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
	}
	return err
}

// Cancel 主动取消所有服务。cause 会由 Wait 返回。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Context 返回 Group 的 context。
func (g *Group) Context() context.Context {
	return g.ctx
}

// ----------------------------------------------------------------------------
// 便捷函数
// ----------------------------------------------------------------------------

// Run 运行一组服务并监听终止信号。
//
// 收到信号后先按注册顺序执行 shutdown 钩子，再取消所有服务；
// Wait 返回 *SignalError，ExitCode 将其映射为 0（干净排空）。
func Run(ctx context.Context, opts []Option, services ...func(ctx context.Context) error) error {
	g, _ := NewGroup(ctx, opts...)

	if !g.opts.noSignalHandler {
		signals := g.opts.signals
		if len(signals) == 0 {
			signals = DefaultSignals()
		}

		g.Go(func(ctx context.Context) error {
			testc := testSigChan(ctx)
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, signals...)
			defer signal.Stop(sigCh)

			var sig os.Signal
			select {
			case sig = <-testc:
			case sig = <-sigCh:
			case <-ctx.Done():
				return ctx.Err()
			}

			g.opts.logger.Info(ctx, "received signal, draining",
				slog.String("group", g.opts.name),
				slog.String("signal", sig.String()),
			)
			for _, hook := range g.opts.shutdownHooks {
				hook()
			}
			g.cancel(&SignalError{Signal: sig})
			return nil
		})
	}

	for _, svc := range services {
		g.Go(svc)
	}
	return g.Wait()
}

// testSigChanKey 用于在测试中通过 context 注入信号通道，
// 避免测试发送真实系统信号。
type testSigChanKey struct{}

func testSigChan(ctx context.Context) <-chan os.Signal {
	c, ok := ctx.Value(testSigChanKey{}).(<-chan os.Signal)
	if !ok {
		return nil
	}
	return c
}

func withTestSigChan(ctx context.Context, c <-chan os.Signal) context.Context {
	return context.WithValue(ctx, testSigChanKey{}, c)
}
