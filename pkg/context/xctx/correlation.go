package xctx

import (
	"context"

	"github.com/google/uuid"
)

// HeaderCorrelationID 是关联 ID 的入站/出站 HTTP 头名。
const HeaderCorrelationID = "X-Correlation-Id"

// KeyCorrelationID 是关联 ID 的日志属性 key。
const KeyCorrelationID = "correlation_id"

// WithCorrelationID 将关联 ID 注入 context。空 id 会被忽略。
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, keyCorrelationID, id)
}

// CorrelationID 从 context 提取关联 ID，不存在时返回空字符串。
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(keyCorrelationID).(string)
	return v
}

// EnsureCorrelationID 确保 context 携带关联 ID。
// 已存在时原样返回；否则生成一个新的 UUID 并注入。
// 返回值是（可能新建的）context 和生效的关联 ID。
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id := CorrelationID(ctx); id != "" {
		return ctx, id
	}
	id := NewCorrelationID()
	return WithCorrelationID(ctx, id), id
}

// NewCorrelationID 生成新的关联 ID。
func NewCorrelationID() string {
	return uuid.NewString()
}
