package xctx

import "errors"

// 设计决策: contextKey 使用 string 而非 int+iota。包私有类型不会与其他包的
// context key 冲突，而字符串值在调试与日志中可读性更高。
type contextKey string

const (
	keyCorrelationID contextKey = "correlation_id"
	keyIdentity      contextKey = "identity"
)

var (
	// ErrNilContext 表示传入的 context 为 nil。
	ErrNilContext = errors.New("xctx: nil context")

	// ErrMissingIdentity 表示 context 中没有已认证身份。
	ErrMissingIdentity = errors.New("xctx: missing identity")
)
