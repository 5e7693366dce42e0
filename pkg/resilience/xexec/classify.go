package xexec

import (
	"context"
	"errors"

	"github.com/omeyang/rxgate/pkg/fault/xfault"
)

// DefaultTransientCategories 是默认的瞬时错误类别表。
// 后端适配器通过 Categorize 标注的类别命中此表时归入 KindTransient。
func DefaultTransientCategories() []string {
	return []string{"connection", "execution-timeout", "server-busy"}
}

// CategoryError 携带后端适配器标注的错误类别。
type CategoryError struct {
	Category string
	Err      error
}

// Categorize 给底层错误标注类别名。err 为 nil 时返回 nil。
func Categorize(category string, err error) error {
	if err == nil {
		return nil
	}
	return &CategoryError{Category: category, Err: err}
}

// Error 实现 error 接口。
func (e *CategoryError) Error() string {
	return e.Category + ": " + e.Err.Error()
}

// Unwrap 返回底层错误。
func (e *CategoryError) Unwrap() error { return e.Err }

// classify 把任意错误归入失败类别。
//
// 规则（按序）：
//   - 已是 *xfault.Error → 原样返回（业务层已定性）
//   - CategoryError 且类别命中分类表 → KindTransient
//   - context 取消/超时 → KindTimeout
//   - 其余 → KindPermanentBackend（不重试）
//
// CategoryError 先于 context 错误判定：适配器把单次预算超时标注为
// execution-timeout 时底层仍是 DeadlineExceeded，必须按瞬时故障处理。
func (e *Executor) classify(err error) error {
	if err == nil {
		return nil
	}
	var fe *xfault.Error
	if errors.As(err, &fe) {
		return err
	}
	var ce *CategoryError
	if errors.As(err, &ce) {
		if _, ok := e.transient[ce.Category]; ok {
			return xfault.Wrap(xfault.KindTransient, "backend failure ("+ce.Category+")", err)
		}
		return xfault.Wrap(xfault.KindPermanentBackend, "backend failure ("+ce.Category+")", err)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err // xfault.KindOf 会归入 KindTimeout
	}
	return xfault.Wrap(xfault.KindPermanentBackend, "backend failure", err)
}

// countsAsBreakerFailure 判定错误是否计入熔断统计。
// 业务性结果（校验、未找到、冲突、未授权）不是后端健康问题。
func countsAsBreakerFailure(err error) bool {
	if err == nil {
		return false
	}
	switch xfault.KindOf(err) {
	case xfault.KindValidation, xfault.KindNotFound, xfault.KindConflict, xfault.KindUnauthorized:
		return false
	default:
		return true
	}
}
