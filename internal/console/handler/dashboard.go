package handler

import (
	"bytes"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/display"
	"github.com/xela07ax/vehicleconnect-dashboard/internal/engine"
)

const missingChartSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="480" height="320">` +
	`<text x="50%" y="50%" text-anchor="middle" font-family="sans-serif" font-size="14" fill="#57606a">Chart unavailable</text></svg>`

// DashboardController Описываем, что нам нужно от контроллера
type DashboardController interface {
	View() engine.View
	Trigger(source string) bool
	ChartImage(kind display.ChartKind) ([]byte, bool)
}

type RefreshResponse struct {
	Accepted bool   `json:"accepted"`
	State    string `json:"state"`
}

type DashboardHandler struct {
	ctrl    DashboardController
	page    *display.Page
	style   []byte
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewDashboardHandler limiter ограничивает ручные обновления (nil, без ограничения).
func NewDashboardHandler(ctrl DashboardController, page *display.Page, style []byte, limiter *rate.Limiter, logger *zap.Logger) *DashboardHandler {
	return &DashboardHandler{
		ctrl:    ctrl,
		page:    page,
		style:   style,
		limiter: limiter,
		logger:  logger.Named("dashboard-handler"),
	}
}

// Routes Маршруты для Chi, монтируются под /dashboard
func (h *DashboardHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Page)
	r.Get("/static/style.css", h.Style)
	r.Get("/api/state", h.State)
	r.Get("/charts/{kind}.svg", h.Chart)
	r.Post("/refresh", h.RefreshForm)
	r.Post("/api/refresh", h.RefreshAPI)
	return r
}

// Page отдает страницу с текущими значениями карточек и статуса.
func (h *DashboardHandler) Page(w http.ResponseWriter, r *http.Request) {
	v := h.ctrl.View()

	var buf bytes.Buffer
	err := h.page.Render(&buf, display.PageView{Cards: v.Cards, Status: v.Status, Version: v.Version})
	if err != nil {
		h.logger.Error("failed to render page", zap.Error(err))
		http.Error(w, "Failed to render dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *DashboardHandler) Style(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Write(h.style)
}

// State GET /dashboard/api/state, согласованный снимок всех целей.
func (h *DashboardHandler) State(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	WriteResponse(w, http.StatusOK, h.ctrl.View())
}

// Chart GET /dashboard/charts/{kind}.svg
func (h *DashboardHandler) Chart(w http.ResponseWriter, r *http.Request) {
	kind := display.ChartKind(chi.URLParam(r, "kind"))
	if kind != display.ChartLatency && kind != display.ChartSplit {
		http.NotFound(w, r)
		return
	}

	img, ok := h.ctrl.ChartImage(kind)
	if !ok {
		img = []byte(missingChartSVG)
	}

	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img)
}

// RefreshForm POST /dashboard/refresh, кнопка на странице.
// Если обновление уже идет, нажатие просто игнорируется.
func (h *DashboardHandler) RefreshForm(w http.ResponseWriter, r *http.Request) {
	if !h.allow() {
		http.Error(w, "Too many refresh requests", http.StatusTooManyRequests)
		return
	}
	h.ctrl.Trigger(engine.SourceManual)
	http.Redirect(w, r, "/dashboard/", http.StatusSeeOther)
}

// RefreshAPI POST /dashboard/api/refresh
func (h *DashboardHandler) RefreshAPI(w http.ResponseWriter, r *http.Request) {
	if !h.allow() {
		WriteError(w, http.StatusTooManyRequests, "too many refresh requests")
		return
	}
	if !h.ctrl.Trigger(engine.SourceManual) {
		WriteResponse(w, http.StatusConflict, RefreshResponse{Accepted: false, State: engine.StateRefreshing.String()})
		return
	}
	WriteResponse(w, http.StatusAccepted, RefreshResponse{Accepted: true, State: engine.StateRefreshing.String()})
}

func (h *DashboardHandler) allow() bool {
	if h.limiter == nil || h.limiter.Allow() {
		return true
	}
	h.logger.Debug("manual refresh throttled")
	return false
}
