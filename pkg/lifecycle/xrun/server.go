package xrun

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// HTTPServerInterface 定义 HTTP 服务器接口。*http.Server 天然满足。
type HTTPServerInterface interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServer 把 http.Server 包装为支持优雅关闭的服务函数。
//
// ctx 取消后调用 Shutdown 排空在途请求，最多等待 drainTimeout；
// drainTimeout ≤ 0 表示无限等待。排空超时由 Shutdown 返回
// context.DeadlineExceeded，ExitCode 将其映射为非零退出码。
func HTTPServer(server HTTPServerInterface, drainTimeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if server == nil {
			return ErrNilServer
		}
		shutdownErrCh := make(chan error, 1)
		// listenDone 通知 shutdown goroutine：ListenAndServe 已返回
		// （外部关闭或启动失败），避免 goroutine 永久阻塞。
		listenDone := make(chan struct{})

		go func() {
			select {
			case <-ctx.Done():
				shutdownCtx := context.Background()
				if drainTimeout > 0 {
					var cancel context.CancelFunc
					shutdownCtx, cancel = context.WithTimeout(shutdownCtx, drainTimeout)
					defer cancel()
				}
				shutdownErrCh <- server.Shutdown(shutdownCtx)
			case <-listenDone:
			}
		}()

		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			// 三路区分关闭来源：ctx 驱动的关闭等待排空结果；
			// 外部直接 Shutdown/Close 时通知 goroutine 退出
			select {
			case shutdownErr := <-shutdownErrCh:
				return shutdownErr
			case <-ctx.Done():
				return <-shutdownErrCh
			default:
				close(listenDone)
				return nil
			}
		}
		close(listenDone)
		return err
	}
}
