package tracker

import (
	"net/http"

	"qr-ordering/internal/common/httpx"
	"qr-ordering/internal/microservices/tracker/handler"
)

func Register(mux *http.ServeMux, h *handler.Handler, g httpx.Guards) {
	mux.Handle("GET /api/restaurants/{restaurantId}/orders/{orderId}/status", g.Public(h.TrackerHandler.GetStatus))
	mux.Handle("GET /api/restaurants/{restaurantId}/orders/{orderId}/timeline", g.Public(h.TrackerHandler.GetTimeline))
}
