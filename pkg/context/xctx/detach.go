package xctx

import (
	"context"
	"time"
)

// detachedCtx 保留原始 context 的 Value 链，但不继承 Done/Err/Deadline。
type detachedCtx struct {
	context.Context
}

func (c detachedCtx) Deadline() (time.Time, bool) { return time.Time{}, false }
func (c detachedCtx) Done() <-chan struct{}       { return nil }
func (c detachedCtx) Err() error                  { return nil }

// Detach 返回脱离原始取消链的 context。
//
// 用于写安全场景：命令处理器在它之下执行，客户端断连或请求超时
// 不会中断已经开始的写操作，但关联 ID、身份等 Value 仍然可见。
// 调用方如需兜底超时，应在返回值上另行 WithTimeout。
func Detach(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return detachedCtx{Context: ctx}
}

// DetachWithTimeout 返回脱离原始取消链、但带独立超时的 context。
// timeout <= 0 时不设置超时，返回的 CancelFunc 仍须被调用以释放资源。
func DetachWithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	detached := Detach(ctx)
	if timeout <= 0 {
		return context.WithCancel(detached)
	}
	return context.WithTimeout(detached, timeout)
}
