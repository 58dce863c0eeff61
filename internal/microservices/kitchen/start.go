package kitchen

import (
	"net/http"

	"qr-ordering/internal/common/httpx"
	"qr-ordering/internal/microservices/kitchen/handlers"
)

func Register(mux *http.ServeMux, h *handlers.Handler, g httpx.Guards) {
	mux.Handle("PATCH /api/restaurants/{restaurantId}/orders/{orderId}/status", g.Owned(h.KitchenHandler.UpdateStatus))
	mux.Handle("GET /api/kitchen/{restaurantId}/orders", g.Owned(h.KitchenHandler.ActiveOrders))
}
