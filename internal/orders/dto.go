package orders

import "time"

// SubmitItemRequest carries only the variant and quantity; pricing is
// resolved server-side.
type SubmitItemRequest struct {
	VariantID int64 `json:"variant_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gte=1"`
}

// SubmitOrderRequest is the storefront submission payload.
type SubmitOrderRequest struct {
	Source         string              `json:"source" validate:"max=32"`
	CustomerName   string              `json:"customer_name" validate:"required,max=120"`
	CustomerPhone  string              `json:"customer_phone" validate:"max=32"`
	CustomerEmail  string              `json:"customer_email" validate:"omitempty,email"`
	Items          []SubmitItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes          string              `json:"notes" validate:"max=500"`
	IdempotencyKey string              `json:"idempotency_key" validate:"max=64"`
}

// UpdateStatusRequest moves an order one step.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// ProcessRequest fulfills an order against one location's stock.
type ProcessRequest struct {
	LocationID int64 `json:"location_id" validate:"required,gt=0"`
}

// SubmitResponse acknowledges an accepted order.
type SubmitResponse struct {
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	TotalAmount int64  `json:"total_amount"`
}

// ItemResponse is the wire form of an order line.
type ItemResponse struct {
	ID        int64 `json:"id"`
	VariantID int64 `json:"variant_id"`
	Quantity  int64 `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
	LineTotal int64 `json:"line_total"`
}

// OrderResponse is the wire form of an order.
type OrderResponse struct {
	ID            int64          `json:"id"`
	OrderNumber   string         `json:"order_number"`
	Source        string         `json:"source,omitempty"`
	CustomerName  string         `json:"customer_name"`
	CustomerPhone string         `json:"customer_phone,omitempty"`
	CustomerEmail string         `json:"customer_email,omitempty"`
	Subtotal      int64          `json:"subtotal"`
	TotalAmount   int64          `json:"total_amount"`
	Status        string         `json:"status"`
	ProcessedBy   *int64         `json:"processed_by,omitempty"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	Items         []ItemResponse `json:"items,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func toOrderResponse(o *Order) OrderResponse {
	resp := OrderResponse{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		Source:        o.Source,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		CustomerEmail: o.CustomerEmail,
		Subtotal:      o.Subtotal,
		TotalAmount:   o.TotalAmount,
		Status:        string(o.Status),
		ProcessedBy:   o.ProcessedBy,
		ProcessedAt:   o.ProcessedAt,
		Notes:         o.Notes,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	for _, item := range o.Items {
		resp.Items = append(resp.Items, ItemResponse{
			ID:        item.ID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			LineTotal: item.LineTotal,
		})
	}
	return resp
}
