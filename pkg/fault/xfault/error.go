package xfault

import (
	"context"
	"errors"
	"fmt"
)

// Error 是携带失败类别的错误值。
//
// 不可变：构造后不应修改字段错误表。跨请求共享同一个 *Error 是安全的。
type Error struct {
	kind   Kind
	msg    string
	fields map[string][]string // 仅 KindValidation 使用
	cause  error
}

// New 创建指定类别的错误。
func New(kind Kind, msg string) *Error {
	return &Error{kind: kind, msg: msg}
}

// Newf 创建指定类别的格式化错误。
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

// Wrap 包装底层错误并标注类别。cause 为 nil 时等价于 New。
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{kind: kind, msg: msg, cause: cause}
}

// Validation 创建校验失败错误，fields 是字段名到错误消息列表的映射。
func Validation(msg string, fields map[string][]string) *Error {
	return &Error{kind: KindValidation, msg: msg, fields: fields}
}

// Error 实现 error 接口。
func (e *Error) Error() string {
	if e.cause != nil {
		return e.kind.String() + ": " + e.msg + ": " + e.cause.Error()
	}
	return e.kind.String() + ": " + e.msg
}

// Unwrap 返回原因链，支持 errors.Is/As。
func (e *Error) Unwrap() error { return e.cause }

// Kind 返回失败类别。
func (e *Error) Kind() Kind { return e.kind }

// Fields 返回字段错误表；非 Validation 错误返回 nil。
func (e *Error) Fields() map[string][]string { return e.fields }

// Retryable 报告错误是否可重试。
// 与 xexec 的重试判定对接：只有瞬时故障可重试。
func (e *Error) Retryable() bool { return e.kind == KindTransient }

// KindOf 提取任意 error 的失败类别。
//
// 归类规则：
//   - nil → KindUnknown（调用方不应对 nil 调用）
//   - *Error → 其自带类别
//   - context.DeadlineExceeded / context.Canceled → KindTimeout
//   - 其他 → KindUnknown
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTimeout
	}
	return KindUnknown
}

// IsTransient 报告错误是否属于瞬时故障。
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}

// FieldsOf 提取校验错误的字段错误表，非校验错误返回 nil。
func FieldsOf(err error) map[string][]string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.fields
	}
	return nil
}
