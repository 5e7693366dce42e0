package xctx

import (
	"context"
	"log/slog"
)

// LogAttrs 提取 context 中的日志属性（关联 ID、身份）。
// 缺失的字段不会产生属性；返回的切片可直接追加到 slog 记录。
func LogAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs := make([]slog.Attr, 0, 2)
	if id := CorrelationID(ctx); id != "" {
		attrs = append(attrs, slog.String(KeyCorrelationID, id))
	}
	if ident, ok := IdentityFrom(ctx); ok && ident.Subject != "" {
		attrs = append(attrs, slog.String(KeyIdentity, ident.Subject))
	}
	return attrs
}
