package xadmit

import (
	"net/http"
	"strconv"
)

// DenyHandler 处理被拒绝的请求。
type DenyHandler func(w http.ResponseWriter, r *http.Request, d Decision)

// MiddlewareOptions 定义中间件配置。
type MiddlewareOptions struct {
	// InFlight 在途请求计数器，nil 时不计数。
	InFlight *InFlight

	// DenyHandler 拒绝响应写法，默认纯文本 503。
	DenyHandler DenyHandler

	// SkipFunc 返回 true 时跳过准入检查（健康检查端点等）。
	SkipFunc func(r *http.Request) bool
}

// MiddlewareOption 定义配置中间件的函数类型。
type MiddlewareOption func(*MiddlewareOptions)

// WithInFlight 设置在途请求计数器。
func WithInFlight(f *InFlight) MiddlewareOption {
	return func(o *MiddlewareOptions) { o.InFlight = f }
}

// WithDenyHandler 设置拒绝响应写法。
func WithDenyHandler(h DenyHandler) MiddlewareOption {
	return func(o *MiddlewareOptions) {
		if h != nil {
			o.DenyHandler = h
		}
	}
}

// WithSkipFunc 设置跳过条件。
func WithSkipFunc(f func(r *http.Request) bool) MiddlewareOption {
	return func(o *MiddlewareOptions) { o.SkipFunc = f }
}

// defaultDenyHandler 写纯文本 503。Retry-After 头已由中间件设置。
func defaultDenyHandler(w http.ResponseWriter, _ *http.Request, d Decision) {
	http.Error(w, d.Reason, http.StatusServiceUnavailable)
}

// Middleware 创建准入控制中间件。
//
// 示例:
//
//	ctrl := xadmit.New(xadmit.NewRuntimeSignals(inflight))
//	r.Use(xadmit.Middleware(ctrl, xadmit.WithInFlight(inflight)))
func Middleware(ctrl *Controller, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if ctrl == nil {
		panic("xadmit: Middleware requires a non-nil Controller")
	}

	mopts := &MiddlewareOptions{DenyHandler: defaultDenyHandler}
	for _, opt := range opts {
		opt(mopts)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if mopts.SkipFunc != nil && mopts.SkipFunc(r) {
				next.ServeHTTP(w, r)
				return
			}

			decision := ctrl.Decide()
			if !decision.Allow {
				if decision.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(decision.RetryAfter.Seconds())))
				}
				mopts.DenyHandler(w, r, decision)
				return
			}

			if mopts.InFlight != nil {
				mopts.InFlight.Inc()
				defer mopts.InFlight.Dec()
			}
			next.ServeHTTP(w, r)
		})
	}
}
