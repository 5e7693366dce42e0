package httpapi

import (
	"net/http"

	"github.com/omeyang/rxgate/internal/orders"
	"github.com/omeyang/rxgate/pkg/fault/xfault"
	"github.com/omeyang/rxgate/pkg/storage/xcache"
	"github.com/omeyang/rxgate/pkg/web/xproblem"
)

type healthHandlers struct {
	service *orders.Service
	cache   xcache.Store
}

// healthz 是存活探针，进程在即返回 200。
func (h *healthHandlers) healthz(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readyz 是就绪探针，检查主存储与缓存连通性。
func (h *healthHandlers) readyz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.service.Ping(ctx); err != nil {
		xproblem.Write(w, r, xfault.Wrap(xfault.KindTransient, "primary store not ready", err))
		return
	}
	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			xproblem.Write(w, r, xfault.Wrap(xfault.KindTransient, "cache not ready", err))
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
