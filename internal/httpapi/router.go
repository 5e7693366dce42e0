package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/omeyang/rxgate/pkg/fault/xfault"
	"github.com/omeyang/rxgate/pkg/observability/xlog"
	"github.com/omeyang/rxgate/pkg/resilience/xadmit"
	"github.com/omeyang/rxgate/pkg/web/xproblem"
)

// NewRouter 组装 HTTP 路由。
//
// 中间件顺序：恢复 → 关联 ID → 访问日志 → 准入 → 认证 → 请求超时。
// 健康检查端点跳过准入与认证。
func NewRouter(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = xlog.Nop()
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(correlationMiddleware)
	r.Use(accessLogMiddleware(logger))
	r.Use(xadmit.Middleware(cfg.Controller,
		xadmit.WithInFlight(cfg.InFlight),
		xadmit.WithDenyHandler(denyHandler),
		xadmit.WithSkipFunc(isHealthEndpoint),
	))

	health := &healthHandlers{service: cfg.Service, cache: cfg.Cache}
	r.Get("/healthz", health.healthz)
	r.Get("/readyz", health.readyz)

	h := &orderHandlers{
		svc:        cfg.Service,
		readMode:   cfg.ReadMode,
		pagination: cfg.Pagination,
	}
	mount := func(api chi.Router) {
		api.Use(authMiddleware(cfg.APIKeys))
		api.Route("/orders", func(o chi.Router) {
			o.With(timeoutMiddleware(cfg.timeoutFor("orders.list"))).Get("/", h.list)
			o.With(timeoutMiddleware(cfg.timeoutFor("orders.list"))).Get("/patient/{patientID}", h.listByPatient)
			o.With(timeoutMiddleware(cfg.timeoutFor("orders.create"))).Post("/", h.create)
			o.With(timeoutMiddleware(cfg.timeoutFor("orders.get"))).Get("/{id}", h.get)
			// PUT 与 PATCH 等价：请求体中省略的字段保持原值
			o.With(timeoutMiddleware(cfg.timeoutFor("orders.update"))).Patch("/{id}", h.update)
			o.With(timeoutMiddleware(cfg.timeoutFor("orders.update"))).Put("/{id}", h.update)
			o.With(timeoutMiddleware(cfg.timeoutFor("orders.delete"))).Delete("/{id}", h.delete)
		})
	}
	// v1 与 v2 共享同一处理器组，DTO 形状一致
	r.Route("/api/v2", mount)
	r.Route("/api/v1", mount)

	return r
}

// denyHandler 把准入拒绝写成 problem-details 响应。
func denyHandler(w http.ResponseWriter, r *http.Request, d xadmit.Decision) {
	kind := xfault.KindRejected
	if strings.HasPrefix(d.Reason, "Shutdown") {
		kind = xfault.KindShuttingDown
	}
	p := xproblem.From(r.Context(), xfault.New(kind, d.Reason))
	p.RetryAfter = d.RetryAfter
	xproblem.WriteProblem(w, p)
}

func isHealthEndpoint(r *http.Request) bool {
	return r.URL.Path == "/healthz" || r.URL.Path == "/readyz"
}
