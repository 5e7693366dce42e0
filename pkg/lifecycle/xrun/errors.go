package xrun

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrSignal 表示因收到系统信号而终止。
	// 使用 errors.Is(err, ErrSignal) 判断。
	ErrSignal = errors.New("received signal")

	// ErrNilFunc 表示注册的服务函数为 nil。
	ErrNilFunc = errors.New("xrun: nil service function")

	// ErrNilServer 表示传入的 HTTP 服务器为 nil。
	ErrNilServer = errors.New("xrun: nil server")
)

// SignalError 携带触发终止的具体信号。
type SignalError struct {
	Signal os.Signal
}

// Error 实现 error 接口。
func (e *SignalError) Error() string {
	if e.Signal == nil {
		return "received signal <nil>"
	}
	return fmt.Sprintf("received signal %s", e.Signal)
}

// Is 支持 errors.Is(err, ErrSignal) 判断。
func (e *SignalError) Is(target error) bool {
	return target == ErrSignal
}

// Unwrap 返回底层错误。
func (e *SignalError) Unwrap() error {
	return ErrSignal
}

// ExitCode 把 Wait 的结果映射为进程退出码。
// 信号驱动的干净排空退出码为 0，其余错误为 1。
func ExitCode(err error) int {
	if err == nil || errors.Is(err, ErrSignal) {
		return 0
	}
	return 1
}
