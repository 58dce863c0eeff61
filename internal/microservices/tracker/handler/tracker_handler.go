package handler

import (
	"errors"
	"net/http"
	"strconv"

	"qr-ordering/internal/common/httpx"
	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/microservices/tracker/repository"
	"qr-ordering/internal/microservices/tracker/service"
)

type TrackerHandler struct {
	service service.TrackerServiceInterface
	lg      *logger.Logger
}

func NewTrackerHandler(svc service.TrackerServiceInterface) *TrackerHandler {
	return &TrackerHandler{service: svc, lg: logger.New("tracking-service")}
}

func (h *TrackerHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	v, err := h.service.GetOrderView(r.Context(), httpx.Tenant(r), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, v)
}

func (h *TrackerHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	id, ok := orderID(w, r)
	if !ok {
		return
	}
	limit := httpx.AtoiDefault(r.URL.Query().Get("limit"), 50)
	offset := httpx.AtoiDefault(r.URL.Query().Get("offset"), 0)
	events, err := h.service.GetOrderTimeline(r.Context(), httpx.Tenant(r), id, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"orderId": id, "events": events})
}

func (h *TrackerHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, repository.ErrNotFound) {
		httpx.WriteProblem(w, http.StatusNotFound, "not_found", "order not found")
		return
	}
	h.lg.Error("tracking_lookup_failed", err, map[string]any{"request_id": httpx.RequestID(r.Context())})
	httpx.WriteProblem(w, http.StatusInternalServerError, "db_error", "could not load order")
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("orderId"), 10, 64)
	if err != nil || id <= 0 {
		httpx.WriteProblem(w, http.StatusBadRequest, "validation", "invalid order id")
		return 0, false
	}
	return id, true
}
