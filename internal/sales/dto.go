package sales

import "time"

// ItemRequest is one checkout line.
type ItemRequest struct {
	VariantID      int64 `json:"variant_id" validate:"required,gt=0"`
	Quantity       int64 `json:"quantity" validate:"required,gte=1"`
	UnitPrice      int64 `json:"unit_price" validate:"gte=0"`
	OriginalPrice  int64 `json:"original_price" validate:"gte=0"`
	DiscountAmount int64 `json:"discount_amount" validate:"gte=0"`
}

// PaymentRequest is one tender.
type PaymentRequest struct {
	PaymentMethodID int64  `json:"payment_method_id" validate:"required,gt=0"`
	Amount          int64  `json:"amount" validate:"gte=0"`
	TenderedAmount  int64  `json:"tendered_amount" validate:"gte=0"`
	ChangeAmount    int64  `json:"change_amount" validate:"gte=0"`
	ReferenceNumber string `json:"reference_number"`
}

// CreateSaleRequest is the checkout payload.
type CreateSaleRequest struct {
	LocationID     int64            `json:"location_id" validate:"required,gt=0"`
	ShiftID        *int64           `json:"shift_id"`
	CustomerID     *int64           `json:"customer_id"`
	Items          []ItemRequest    `json:"items" validate:"required,min=1,dive"`
	Payments       []PaymentRequest `json:"payments" validate:"required,min=1,dive"`
	DiscountAmount int64            `json:"discount_amount" validate:"gte=0"`
	DiscountReason string           `json:"discount_reason"`
	TaxAmount      int64            `json:"tax_amount" validate:"gte=0"`
	Notes          string           `json:"notes"`
	ParkedSaleID   *int64           `json:"parked_sale_id"`
}

// ParkSaleRequest saves a draft.
type ParkSaleRequest struct {
	LocationID int64         `json:"location_id" validate:"required,gt=0"`
	ShiftID    *int64        `json:"shift_id"`
	CustomerID *int64        `json:"customer_id"`
	Items      []ItemRequest `json:"items" validate:"required,min=1,dive"`
	Notes      string        `json:"notes"`
}

// VoidSaleRequest reverses a completed sale. The PIN is verified at the
// surface; the engine receives only the resolved approver id.
type VoidSaleRequest struct {
	ApproverPIN string `json:"approver_pin" validate:"required"`
	Reason      string `json:"reason" validate:"required"`
}

// SaleResponse is the wire shape of a sale.
type SaleResponse struct {
	ID             int64             `json:"id"`
	SaleNumber     string            `json:"sale_number"`
	LocationID     int64             `json:"location_id"`
	ShiftID        *int64            `json:"shift_id,omitempty"`
	CustomerID     *int64            `json:"customer_id,omitempty"`
	Subtotal       int64             `json:"subtotal"`
	DiscountAmount int64             `json:"discount_amount"`
	TaxAmount      int64             `json:"tax_amount"`
	TotalAmount    int64             `json:"total_amount"`
	Status         string            `json:"status"`
	Notes          string            `json:"notes,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	Items          []ItemResponse    `json:"items,omitempty"`
	Payments       []PaymentResponse `json:"payments,omitempty"`
}

// ItemResponse is the wire shape of a sale line.
type ItemResponse struct {
	VariantID      int64 `json:"variant_id"`
	Quantity       int64 `json:"quantity"`
	UnitPrice      int64 `json:"unit_price"`
	OriginalPrice  int64 `json:"original_price"`
	DiscountAmount int64 `json:"discount_amount"`
	LineTotal      int64 `json:"line_total"`
}

// PaymentResponse is the wire shape of a tender.
type PaymentResponse struct {
	PaymentMethodID int64  `json:"payment_method_id"`
	Amount          int64  `json:"amount"`
	TenderedAmount  int64  `json:"tendered_amount"`
	ChangeAmount    int64  `json:"change_amount"`
	ReferenceNumber string `json:"reference_number,omitempty"`
}

func toSaleResponse(s *Sale) SaleResponse {
	resp := SaleResponse{
		ID:             s.ID,
		SaleNumber:     s.SaleNumber,
		LocationID:     s.LocationID,
		ShiftID:        s.ShiftID,
		CustomerID:     s.CustomerID,
		Subtotal:       s.Subtotal,
		DiscountAmount: s.DiscountAmount,
		TaxAmount:      s.TaxAmount,
		TotalAmount:    s.TotalAmount,
		Status:         string(s.Status),
		Notes:          s.Notes,
		CreatedAt:      s.CreatedAt,
	}
	for _, item := range s.Items {
		resp.Items = append(resp.Items, ItemResponse{
			VariantID:      item.VariantID,
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			OriginalPrice:  item.OriginalPrice,
			DiscountAmount: item.DiscountAmount,
			LineTotal:      item.LineTotal,
		})
	}
	for _, p := range s.Payments {
		resp.Payments = append(resp.Payments, PaymentResponse{
			PaymentMethodID: p.PaymentMethodID,
			Amount:          p.Amount,
			TenderedAmount:  p.TenderedAmount,
			ChangeAmount:    p.ChangeAmount,
			ReferenceNumber: p.ReferenceNumber,
		})
	}
	return resp
}
