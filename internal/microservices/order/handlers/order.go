package handlers

import (
	"errors"
	"net/http"

	"qr-ordering/internal/common/httpx"
	"qr-ordering/internal/common/logger"
	"qr-ordering/internal/domain"
	"qr-ordering/internal/microservices/order/service"
)

type OrderHandler struct {
	service service.OrderServiceInterface
	lg      *logger.Logger
}

func NewOrderHandler(s service.OrderServiceInterface) *OrderHandler {
	return &OrderHandler{service: s, lg: logger.New("order-service")}
}

func (oh *OrderHandler) AddOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteProblem(w, http.StatusBadRequest, "validation", "invalid JSON body")
		return
	}

	resp, err := oh.service.AddOrder(r.Context(), httpx.Tenant(r), req)
	if err != nil {
		oh.writeError(w, r, "order_create_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, resp)
}

func (oh *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := domain.OrderStatus(r.URL.Query().Get("status"))
	orders, err := oh.service.ListOrders(r.Context(), httpx.Tenant(r), status)
	if err != nil {
		oh.writeError(w, r, "order_list_failed", err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orders)
}

func (oh *OrderHandler) writeError(w http.ResponseWriter, r *http.Request, action string, err error) {
	if errors.Is(err, service.ErrValidation) {
		httpx.WriteProblem(w, http.StatusBadRequest, "validation", err.Error())
		return
	}
	oh.lg.Error(action, err, map[string]any{"request_id": httpx.RequestID(r.Context()), "tenant_id": httpx.Tenant(r)})
	httpx.WriteProblem(w, http.StatusInternalServerError, "internal", "could not process order")
}
