package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"qr-ordering/internal/common/httpx"
	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/domain"
	"qr-ordering/internal/microservices/kitchen/repository"
	"qr-ordering/internal/microservices/kitchen/service"
)

// Actor names who made a change, for the status log.
type Actor func(r *http.Request) string

type KitchenHandler struct {
	service service.KitchenServiceInterface
	actor   Actor
	lg      *logger.Logger
}

func NewKitchenHandler(s service.KitchenServiceInterface, actor Actor) *KitchenHandler {
	if actor == nil {
		actor = func(*http.Request) string { return "kitchen" }
	}
	return &KitchenHandler{service: s, actor: actor, lg: logger.New("kitchen-service")}
}

func (kh *KitchenHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderID, err := strconv.ParseInt(r.PathValue("orderId"), 10, 64)
	if err != nil || orderID <= 0 {
		httpx.WriteProblem(w, http.StatusBadRequest, "validation", "invalid order id")
		return
	}
	var req domain.UpdateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}

	order, err := kh.service.UpdateStatus(r.Context(), httpx.Tenant(r), orderID, req, kh.actor(r))
	switch {
	case errors.Is(err, service.ErrValidation):
		httpx.WriteProblem(w, http.StatusBadRequest, "validation", err.Error())
	case errors.Is(err, repository.ErrNotFound):
		httpx.WriteProblem(w, http.StatusNotFound, "not_found", "order not found")
	case errors.Is(err, domain.ErrInvalidTransition):
		httpx.WriteProblem(w, http.StatusConflict, "conflict", err.Error())
	case err != nil:
		kh.lg.Error("status_update_failed", err, map[string]any{"request_id": httpx.RequestID(r.Context()), "order_id": orderID})
		httpx.WriteProblem(w, http.StatusInternalServerError, "internal", "could not update order")
	default:
		httpx.WriteJSON(w, http.StatusOK, order)
	}
}

func (kh *KitchenHandler) ActiveOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := kh.service.ActiveOrders(r.Context(), httpx.Tenant(r))
	if err != nil {
		kh.lg.Error("kitchen_board_failed", err, map[string]any{"request_id": httpx.RequestID(r.Context())})
		httpx.WriteProblem(w, http.StatusInternalServerError, "internal", "could not load orders")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orders)
}
