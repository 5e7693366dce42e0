package httpapi

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/omeyang/rxgate/pkg/context/xctx"
	"github.com/omeyang/rxgate/pkg/fault/xfault"
	"github.com/omeyang/rxgate/pkg/observability/xlog"
	"github.com/omeyang/rxgate/pkg/web/xproblem"
)

// correlationMiddleware 提取或生成关联 ID，注入 context 并回写响应头。
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := xctx.WithCorrelationID(r.Context(), r.Header.Get(xctx.HeaderCorrelationID))
		ctx, id := xctx.EnsureCorrelationID(ctx)
		w.Header().Set(xctx.HeaderCorrelationID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authMiddleware 校验 X-API-Key 并把调用方身份注入 context。
// 配置中只保存密钥的 SHA-256 摘要，明文不落盘。
func authMiddleware(keys map[string]xctx.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			identity, ok := keys[HashAPIKey(key)]
			if key == "" || !ok {
				xproblem.Write(w, r, xfault.New(xfault.KindUnauthorized, "missing or invalid API key"))
				return
			}
			next.ServeHTTP(w, r.WithContext(xctx.WithIdentity(r.Context(), identity)))
		})
	}
}

// HashAPIKey 返回 API Key 的 SHA-256 十六进制摘要。
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// accessLogMiddleware 记录访问日志。
func accessLogMiddleware(logger xlog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info(r.Context(), "http request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Duration("elapsed", time.Since(start)),
			)
		})
	}
}

// timeoutMiddleware 限定请求的执行时长。
//
// 处理器在独立 goroutine 中写入缓冲响应；超时后调用方直接收到 408，
// 即使处理器永久挂起也不阻塞连接。已提交的下游写保持提交
// （失效等写安全操作使用分离的 context）。
func timeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if timeout <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)

			buf := &bufferedResponse{header: make(http.Header)}
			done := make(chan struct{})
			go func() {
				defer close(done)
				next.ServeHTTP(buf, r)
			}()

			select {
			case <-done:
				buf.flush(w)
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					xproblem.Write(w, r, xfault.Wrap(xfault.KindTimeout, "request timed out", ctx.Err()))
				}
				// 客户端断开：无人可写
			}
		})
	}
}

// bufferedResponse 缓冲处理器输出，完成前不触碰底层连接。
type bufferedResponse struct {
	header http.Header
	code   int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(code int) {
	if b.code == 0 {
		b.code = code
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	if b.code == 0 {
		b.code = http.StatusOK
	}
	return b.body.Write(p)
}

func (b *bufferedResponse) flush(w http.ResponseWriter) {
	for k, vs := range b.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if b.code == 0 {
		b.code = http.StatusOK
	}
	w.WriteHeader(b.code)
	_, _ = w.Write(b.body.Bytes())
}
