package xrun

import (
	"os"
	"syscall"

	"github.com/omeyang/rxgate/pkg/observability/xlog"
)

// Option 配置 Group 的选项函数。
type Option func(*groupOptions)

type groupOptions struct {
	logger          xlog.Logger
	name            string
	signals         []os.Signal
	noSignalHandler bool
	shutdownHooks   []func()
}

func defaultOptions() *groupOptions {
	return &groupOptions{
		logger: xlog.Nop(),
		name:   "xrun",
	}
}

// DefaultSignals 返回默认监听的系统信号列表。
// 每次调用返回新切片，调用者可安全修改。
func DefaultSignals() []os.Signal {
	return []os.Signal{
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	}
}

// WithLogger 设置日志器，记录服务启停等生命周期事件。
func WithLogger(logger xlog.Logger) Option {
	return func(o *groupOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithName 设置 Group 名称，用于日志标识。
func WithName(name string) Option {
	return func(o *groupOptions) {
		if name != "" {
			o.name = name
		}
	}
}

// WithSignals 覆盖监听的信号列表。
func WithSignals(signals []os.Signal) Option {
	copied := append([]os.Signal(nil), signals...)
	return func(o *groupOptions) {
		o.signals = copied
	}
}

// WithoutSignalHandler 禁用自动信号处理，调用方自行管理。
func WithoutSignalHandler() Option {
	return func(o *groupOptions) {
		o.noSignalHandler = true
	}
}

// WithShutdownHook 注册关闭钩子。
// 收到终止信号后、取消服务之前按注册顺序同步执行，
// 用于先关闭准入再排空在途请求。
func WithShutdownHook(fn func()) Option {
	return func(o *groupOptions) {
		if fn != nil {
			o.shutdownHooks = append(o.shutdownHooks, fn)
		}
	}
}
