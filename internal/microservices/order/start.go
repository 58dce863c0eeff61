package order

import (
	"net/http"

	"qr-ordering/internal/common/httpx"
	"qr-ordering/internal/microservices/order/handlers"
)

// Register mounts the order routes. Creating an order is public so customers
// at the table can do it; listing is for the owner.
func Register(mux *http.ServeMux, h *handlers.Handler, g httpx.Guards) {
	mux.Handle("POST /api/restaurants/{restaurantId}/orders", g.Public(h.OrderHandler.AddOrder))
	mux.Handle("GET /api/restaurants/{restaurantId}/orders", g.Owned(h.OrderHandler.ListOrders))
}
