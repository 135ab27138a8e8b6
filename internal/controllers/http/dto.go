package http

type SubmitOrderRequest struct {
	SessionID *uint64           `json:"session_id"`
	TableID   *uint64           `json:"table_id"`
	WaiterID  *uint64           `json:"waiter_id"`
	DeviceID  string            `json:"device_id" binding:"required"`
	Discount  int64             `json:"discount"`
	Items     []SubmitOrderLine `json:"items" binding:"required,min=1,dive"`
}

type SubmitOrderLine struct {
	ProductID uint64 `json:"product_id" binding:"required"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
	UnitPrice int64  `json:"unit_price" binding:"min=0"`
	Notes     string `json:"notes"`
}

type AmendItemRequest struct {
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Notes    string `json:"notes"`
	DeviceID string `json:"device_id" binding:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type StatusEchoResponse struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

type CloseSessionRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

type ErrorResponse struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
