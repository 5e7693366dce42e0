package xproblem

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/omeyang/rxgate/pkg/context/xctx"
	"github.com/omeyang/rxgate/pkg/fault/xfault"
)

// ContentType 是 problem-details 响应的媒体类型。
const ContentType = "application/problem+json"

// Problem 是 RFC 7807 响应体。
type Problem struct {
	Type    string              `json:"type"`
	Title   string              `json:"title"`
	Status  int                 `json:"status"`
	Detail  string              `json:"detail,omitempty"`
	TraceID string              `json:"traceId,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`

	// RetryAfter 非零时写入 Retry-After 头，不序列化进响应体。
	RetryAfter time.Duration `json:"-"`
}

// StatusFor 把失败类别映射到 HTTP 状态码。
func StatusFor(kind xfault.Kind) int {
	switch kind {
	case xfault.KindValidation:
		return http.StatusBadRequest
	case xfault.KindUnauthorized:
		return http.StatusUnauthorized
	case xfault.KindNotFound:
		return http.StatusNotFound
	case xfault.KindConflict:
		return http.StatusConflict
	case xfault.KindTimeout:
		return http.StatusRequestTimeout
	case xfault.KindRejected:
		return http.StatusTooManyRequests
	case xfault.KindShuttingDown, xfault.KindTransient, xfault.KindPermanentBackend:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// KindForStatus 把 HTTP 状态码还原为失败类别。
// 与 StatusFor 构成双向映射；多对一的 503 还原为 KindTransient。
func KindForStatus(status int) xfault.Kind {
	switch status {
	case http.StatusBadRequest:
		return xfault.KindValidation
	case http.StatusUnauthorized:
		return xfault.KindUnauthorized
	case http.StatusNotFound:
		return xfault.KindNotFound
	case http.StatusConflict:
		return xfault.KindConflict
	case http.StatusRequestTimeout:
		return xfault.KindTimeout
	case http.StatusTooManyRequests:
		return xfault.KindRejected
	case http.StatusServiceUnavailable:
		return xfault.KindTransient
	default:
		return xfault.KindUnknown
	}
}

// titleFor 返回类别的人类可读标题。
func titleFor(kind xfault.Kind) string {
	switch kind {
	case xfault.KindValidation:
		return "Validation Failed"
	case xfault.KindUnauthorized:
		return "Unauthorized"
	case xfault.KindNotFound:
		return "Resource Not Found"
	case xfault.KindConflict:
		return "Conflict"
	case xfault.KindTimeout:
		return "Request Timed Out"
	case xfault.KindRejected:
		return "Service Overloaded"
	case xfault.KindShuttingDown:
		return "Service Shutting Down"
	case xfault.KindTransient:
		return "Service Temporarily Unavailable"
	case xfault.KindPermanentBackend:
		return "Backend Unavailable"
	default:
		return "Internal Server Error"
	}
}

// typeFor 返回类别的 type URI。
func typeFor(kind xfault.Kind) string {
	switch kind {
	case xfault.KindValidation:
		return "/problems/validation"
	case xfault.KindUnauthorized:
		return "/problems/unauthorized"
	case xfault.KindNotFound:
		return "/problems/not-found"
	case xfault.KindConflict:
		return "/problems/conflict"
	case xfault.KindTimeout:
		return "/problems/timeout"
	case xfault.KindRejected:
		return "/problems/overloaded"
	case xfault.KindShuttingDown:
		return "/problems/shutting-down"
	case xfault.KindTransient:
		return "/problems/unavailable"
	case xfault.KindPermanentBackend:
		return "/problems/backend-unavailable"
	default:
		return "about:blank"
	}
}

// From 把错误转换为 Problem。
// 后端性失败（PermanentBackend/Unknown）不透出内部细节。
func From(ctx context.Context, err error) Problem {
	kind := xfault.KindOf(err)
	status := StatusFor(kind)

	p := Problem{
		Type:    typeFor(kind),
		Title:   titleFor(kind),
		Status:  status,
		TraceID: xctx.CorrelationID(ctx),
	}

	switch kind {
	case xfault.KindValidation:
		p.Detail = err.Error()
		p.Errors = xfault.FieldsOf(err)
	case xfault.KindNotFound, xfault.KindConflict, xfault.KindUnauthorized, xfault.KindTimeout:
		p.Detail = err.Error()
	case xfault.KindRejected, xfault.KindShuttingDown, xfault.KindTransient:
		p.Detail = err.Error()
		p.RetryAfter = 5 * time.Second
	case xfault.KindPermanentBackend:
		// 后端内部细节不透出
		p.Detail = "a backing service is unavailable"
		p.RetryAfter = 5 * time.Second
	default:
		p.Detail = "an unexpected error occurred"
	}
	return p
}

// Write 把错误序列化为 problem-details 响应。
func Write(w http.ResponseWriter, r *http.Request, err error) {
	WriteProblem(w, From(r.Context(), err))
}

// WriteProblem 序列化给定的 Problem。
func WriteProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", ContentType)
	if p.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(p.RetryAfter.Seconds())))
	}
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
