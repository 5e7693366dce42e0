package xlog

import (
	"context"
	"log/slog"

	"github.com/omeyang/rxgate/pkg/context/xctx"
)

// enrichHandler 装饰底层 Handler，把 xctx 中的关联 ID 与身份注入每条记录。
//
// 设计决策: 在 Handler 层注入而非要求调用方手工追加，保证"每条日志都带
// correlation_id"的约束不依赖调用纪律。
type enrichHandler struct {
	inner slog.Handler
}

func newEnrichHandler(inner slog.Handler) slog.Handler {
	return &enrichHandler{inner: inner}
}

func (h *enrichHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *enrichHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := xctx.LogAttrs(ctx); len(attrs) > 0 {
		r.AddAttrs(attrs...)
	}
	return h.inner.Handle(ctx, r)
}

func (h *enrichHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &enrichHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *enrichHandler) WithGroup(name string) slog.Handler {
	return &enrichHandler{inner: h.inner.WithGroup(name)}
}
