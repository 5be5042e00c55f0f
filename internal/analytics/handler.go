package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xela07ax/vehicleconnect-dashboard/internal/domain"
)

const maxBodyBytes = 1 << 20 // 1MB

// Верхняя граница limit в GET /api/events
const maxListLimit = 1000

// Reporter Описываем, что нам нужно от сервиса
type Reporter interface {
	Report(ctx context.Context, hours int) (*domain.AnalyticsReport, error)
	Operational(ctx context.Context, hours int) (domain.KpiMap, error)
}

// EventStore: синхронная запись и чтение событий.
type EventStore interface {
	Insert(ctx context.Context, e domain.APIEvent) (domain.APIEvent, error)
	List(ctx context.Context, limit, skip int) ([]domain.APIEvent, error)
}

// Ingestor: буферизованная запись (пачками).
type Ingestor interface {
	Offer(e domain.APIEvent) bool
}

type ErrorResponse struct {
	Detail string `json:"detail"`
}

type BulkResponse struct {
	Accepted int `json:"accepted"`
}

type Handler struct {
	reports      Reporter
	events       EventStore
	ingest       Ingestor
	validate     *validator.Validate
	version      string
	defaultHours int
	started      time.Time
	logger       *zap.Logger
}

func NewHandler(reports Reporter, events EventStore, ingest Ingestor, version string, defaultHours int, logger *zap.Logger) *Handler {
	if defaultHours <= 0 {
		defaultHours = 24
	}
	return &Handler{
		reports:      reports,
		events:       events,
		ingest:       ingest,
		validate:     validator.New(),
		version:      version,
		defaultHours: defaultHours,
		started:      time.Now(),
		logger:       logger.Named("analytics-api"),
	}
}

// Routes Маршруты для Chi
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.status("healthy"))
	r.Get("/api/status", h.status("operational"))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok"))
	})

	r.Route("/api/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Get("/", h.ListEvents)
		r.Post("/bulk", h.BulkEvents)
	})

	r.Route("/api/analytics", func(r chi.Router) {
		r.Get("/kpis", h.KPIs)
		r.Get("/kpis/operational", h.OperationalKPIs)
	})
	return r
}

func (h *Handler) status(state string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, domain.ServiceStatus{
			Status:        state,
			Timestamp:     time.Now().UTC(),
			Version:       h.version,
			UptimeSeconds: time.Since(h.started).Seconds(),
		})
	}
}

// CreateEvent POST /api/events, одно событие, синхронная запись.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req domain.EventCreate
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	stored, err := h.events.Insert(r.Context(), req.ToEvent(time.Now().UTC()))
	if err != nil {
		h.logger.Error("failed to store event", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, stored)
}

// BulkEvents POST /api/events/bulk, массив событий в буфер записи.
func (h *Handler) BulkEvents(w http.ResponseWriter, r *http.Request) {
	var reqs []domain.EventCreate
	if !h.decode(w, r, &reqs) {
		return
	}
	for i, req := range reqs {
		if err := h.validate.Struct(req); err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("event %d: %v", i, err))
			return
		}
	}

	now := time.Now().UTC()
	accepted := 0
	for _, req := range reqs {
		if !h.ingest.Offer(req.ToEvent(now)) {
			break
		}
		accepted++
	}
	if accepted < len(reqs) {
		writeJSON(w, http.StatusServiceUnavailable, BulkResponse{Accepted: accepted})
		return
	}
	writeJSON(w, http.StatusAccepted, BulkResponse{Accepted: accepted})
}

// ListEvents GET /api/events?limit=100&skip=0
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 100)
	if err != nil || limit < 0 || limit > maxListLimit {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("limit must be an integer in [0, %d]", maxListLimit))
		return
	}
	skip, err := intParam(r, "skip", 0)
	if err != nil || skip < 0 {
		writeError(w, http.StatusUnprocessableEntity, "skip must be a non-negative integer")
		return
	}

	events, err := h.events.List(r.Context(), limit, skip)
	if err != nil {
		h.logger.Error("failed to list events", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// KPIs GET /api/analytics/kpis?hours=24
func (h *Handler) KPIs(w http.ResponseWriter, r *http.Request) {
	hours, ok := h.hours(w, r)
	if !ok {
		return
	}
	report, err := h.reports.Report(r.Context(), hours)
	if err != nil {
		h.analyticsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// OperationalKPIs GET /api/analytics/kpis/operational?hours=24
func (h *Handler) OperationalKPIs(w http.ResponseWriter, r *http.Request) {
	hours, ok := h.hours(w, r)
	if !ok {
		return
	}
	kpis, err := h.reports.Operational(r.Context(), hours)
	if err != nil {
		h.analyticsError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kpis)
}

func (h *Handler) hours(w http.ResponseWriter, r *http.Request) (int, bool) {
	hours, err := intParam(r, "hours", h.defaultHours)
	if err != nil || hours <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "hours must be a positive integer")
		return 0, false
	}
	return hours, true
}

func (h *Handler) analyticsError(w http.ResponseWriter, err error) {
	h.logger.Error("analytics query failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Analytics error: "+err.Error())
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, ErrorResponse{Detail: detail})
}
