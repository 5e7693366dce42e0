package xexec

import "errors"

var (
	// ErrUnknownKind 表示执行器未配置该依赖类别。
	ErrUnknownKind = errors.New("xexec: unknown dependency kind")

	// ErrNilOp 表示传入的操作函数为 nil。
	ErrNilOp = errors.New("xexec: nil operation")
)
