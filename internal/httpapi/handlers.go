package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/omeyang/rxgate/internal/orders"
	"github.com/omeyang/rxgate/pkg/fault/xfault"
	"github.com/omeyang/rxgate/pkg/storage/xcache"
	"github.com/omeyang/rxgate/pkg/web/xpage"
	"github.com/omeyang/rxgate/pkg/web/xproblem"
)

// orderHandlers 是订单资源的 HTTP 处理器组。
type orderHandlers struct {
	svc        *orders.Service
	readMode   xcache.Mode
	pagination xpage.Options
}

func (h *orderHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateOrderRequest
	if err := decodeBody(r, &req); err != nil {
		xproblem.Write(w, r, err)
		return
	}
	order, err := h.svc.Create(r.Context(), req)
	if err != nil {
		xproblem.Write(w, r, err)
		return
	}
	w.Header().Set("Location", r.URL.Path+"/"+order.ID)
	respondJSON(w, http.StatusCreated, order)
}

func (h *orderHandlers) get(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), h.readMode)
	if err != nil {
		xproblem.Write(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *orderHandlers) update(w http.ResponseWriter, r *http.Request) {
	var req orders.UpdateOrderRequest
	if err := decodeBody(r, &req); err != nil {
		xproblem.Write(w, r, err)
		return
	}
	order, err := h.svc.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		xproblem.Write(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (h *orderHandlers) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		xproblem.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *orderHandlers) list(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, r.URL.Query().Get("patientId"))
}

// listByPatient 与 list 共用分页与缓存逻辑，患者 ID 取自路径。
func (h *orderHandlers) listByPatient(w http.ResponseWriter, r *http.Request) {
	h.serveList(w, r, chi.URLParam(r, "patientID"))
}

func (h *orderHandlers) serveList(w http.ResponseWriter, r *http.Request, patientID string) {
	page, err := xpage.Parse(r.URL.Query(), h.pagination)
	if err != nil {
		xproblem.Write(w, r, err)
		return
	}
	q := orders.ListQuery{
		PatientID: patientID,
		Page:      page,
	}
	result, err := h.svc.List(r.Context(), q, h.readMode)
	if err != nil {
		xproblem.Write(w, r, err)
		return
	}
	env := xpage.NewEnvelope(contextURL(r.URL.Path), r.URL.Path, page, r.URL.Query(), result)
	respondJSON(w, http.StatusOK, env)
}

// contextURL 生成 @odata.context："/api/v2/$metadata#orders"。
func contextURL(path string) string {
	if idx := strings.Index(path, "/orders"); idx >= 0 {
		return path[:idx+1] + "$metadata#orders"
	}
	return "$metadata#orders"
}

// decodeBody 解析 JSON 请求体，非法 JSON 归为校验类失败。
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return xfault.Validation("request body is not valid JSON",
			map[string][]string{"body": {err.Error()}})
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
