package stock

// AdjustRequest is the manual adjustment payload.
type AdjustRequest struct {
	VariantID  int64  `json:"variant_id" validate:"required,gt=0"`
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	Delta      int64  `json:"delta" validate:"required"`
	Notes      string `json:"notes"`
}

// ReceiveRequest is the inbound stock payload.
type ReceiveRequest struct {
	VariantID  int64  `json:"variant_id" validate:"required,gt=0"`
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
	Notes      string `json:"notes"`
}

// TransferRequest is the inter-location transfer payload.
type TransferRequest struct {
	VariantID    int64  `json:"variant_id" validate:"required,gt=0"`
	FromLocation int64  `json:"from_location_id" validate:"required,gt=0"`
	ToLocation   int64  `json:"to_location_id" validate:"required,gt=0,nefield=FromLocation"`
	Quantity     int64  `json:"quantity" validate:"required,gt=0"`
	Notes        string `json:"notes"`
}

// MovementResponse is the wire shape of a ledger entry.
type MovementResponse struct {
	ID             int64  `json:"id"`
	VariantID      int64  `json:"variant_id"`
	LocationID     int64  `json:"location_id"`
	Type           string `json:"transaction_type"`
	QuantityChange int64  `json:"quantity_change"`
	QuantityBefore int64  `json:"quantity_before"`
	QuantityAfter  int64  `json:"quantity_after"`
	ReferenceType  string `json:"reference_type,omitempty"`
	ReferenceID    int64  `json:"reference_id,omitempty"`
	Notes          string `json:"notes,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func toMovementResponse(m Movement) MovementResponse {
	return MovementResponse{
		ID:             m.ID,
		VariantID:      m.VariantID,
		LocationID:     m.LocationID,
		Type:           string(m.Type),
		QuantityChange: m.QuantityChange,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		ReferenceType:  m.ReferenceType,
		ReferenceID:    m.ReferenceID,
		Notes:          m.Notes,
		CreatedAt:      m.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
