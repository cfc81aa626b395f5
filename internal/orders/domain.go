package orders

import (
	"errors"
	"time"
)

// Status is an online order lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusReady      Status = "ready"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// transitions is the full state machine. Cancellation exits only from
// pending; completed and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing},
	StatusProcessing: {StatusReady},
	StatusReady:      {StatusCompleted},
}

// IsValid reports whether s is a recognized status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusReady,
		StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether s may move to next.
func (s Status) CanTransition(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition exists.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// CanProcess reports whether fulfillment may deduct stock from this state.
func (s Status) CanProcess() bool {
	return s == StatusConfirmed || s == StatusProcessing || s == StatusReady
}

// Order is an externally submitted storefront order. Item prices are captured
// from the catalog at submission time, never from the client.
type Order struct {
	ID            int64
	OrderNumber   string
	Source        string
	CustomerName  string
	CustomerPhone string
	CustomerEmail string
	Subtotal      int64
	TotalAmount   int64
	Status        Status
	ProcessedBy   *int64
	ProcessedAt   *time.Time
	Notes         string
	Items         []Item
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Item is one order line.
type Item struct {
	ID        int64
	OrderID   int64
	VariantID int64
	Quantity  int64
	UnitPrice int64
	LineTotal int64
}

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrEmptyItems         = errors.New("order has no items")
	ErrInvalidItem        = errors.New("invalid order item")
	ErrVariantUnavailable = errors.New("variant unavailable")
	ErrInvalidStatus      = errors.New("unrecognized order status")
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrOrderProcessed     = errors.New("order already processed")
	ErrOrderCancelled     = errors.New("order is cancelled")
)
