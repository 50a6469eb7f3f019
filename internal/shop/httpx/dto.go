package httpx

type CreateItemRequest struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type ItemResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	CreatedAt string  `json:"created_at"`
}

type CreateOrderRequest struct {
	IDs []string `json:"ids"`
}

type OrderItemResponse struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

type OrderResponse struct {
	CorrelationID string              `json:"correlation_id"`
	Requester     string              `json:"requester"`
	Status        string              `json:"status"`
	Items         []OrderItemResponse `json:"items"`
	TotalPrice    float64             `json:"total_price,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
