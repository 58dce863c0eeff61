package domain

type CreateOrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type CreateOrderRequest struct {
	TableNumber  int               `json:"tableNumber"`
	CustomerName string            `json:"customerName,omitempty"`
	Notes        string            `json:"notes,omitempty"`
	Items        []CreateOrderItem `json:"items"`
}

type CreateOrderResponse struct {
	OrderID     int64       `json:"orderId"`
	Token       int64       `json:"token"`
	Status      OrderStatus `json:"status"`
	TotalAmount float64     `json:"totalAmount"`
}

type UpdateStatusRequest struct {
	Status OrderStatus `json:"status"`
	Notes  string      `json:"notes,omitempty"`
}

type RegisterRequest struct {
	Email          string `json:"email"`
	Password       string `json:"password"`
	RestaurantSlug string `json:"restaurantSlug"`
	RestaurantName string `json:"restaurantName,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	RestaurantSlug string `json:"restaurantSlug"`
	RestaurantID   string `json:"restaurantId"`
}
