package xfault

import "strconv"

// Kind 表示失败类别。
//
// 类别是封闭集合：管道、缓存、执行器、准入控制只会产生下列类别之一，
// HTTP 适配层（xproblem）据此映射状态码。
type Kind int

const (
	// KindUnknown 表示未分类的失败。
	KindUnknown Kind = iota

	// KindValidation 表示请求校验失败，携带字段错误表。
	KindValidation

	// KindNotFound 表示目标资源不存在。
	KindNotFound

	// KindUnauthorized 表示身份缺失或无效。
	KindUnauthorized

	// KindConflict 表示并发冲突（如重复键、写冲突）。
	KindConflict

	// KindTransient 表示瞬时后端故障，可重试。
	KindTransient

	// KindPermanentBackend 表示后端永久性故障，不可重试。
	KindPermanentBackend

	// KindTimeout 表示请求级超时（含取消）。
	KindTimeout

	// KindRejected 表示被准入控制拒绝（压力过载）。
	KindRejected

	// KindShuttingDown 表示进程正在优雅关闭，拒绝新请求。
	KindShuttingDown
)

// String 返回 Kind 的可读名称，用于日志和 problem-details 的 title。
func (k Kind) String() string {
	switch k {
	case KindUnknown:
		return "Unknown"
	case KindValidation:
		return "Validation"
	case KindNotFound:
		return "NotFound"
	case KindUnauthorized:
		return "Unauthorized"
	case KindConflict:
		return "Conflict"
	case KindTransient:
		return "Transient"
	case KindPermanentBackend:
		return "PermanentBackend"
	case KindTimeout:
		return "TimeoutExceeded"
	case KindRejected:
		return "Rejected"
	case KindShuttingDown:
		return "ShuttingDown"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}
