// Package sales implements the sale checkout workflow: building a sale,
// committing it atomically with its stock deductions, and the void/park
// operations around it.
package sales

import (
	"errors"
	"time"
)

// Status represents the lifecycle of a sale.
type Status string

const (
	// StatusCompleted is a committed sale with stock deducted.
	StatusCompleted Status = "COMPLETED"
	// StatusVoided is a reversed sale with stock restored.
	StatusVoided Status = "VOIDED"
	// StatusParked is a saved draft reserving no stock.
	StatusParked Status = "PARKED"
	// StatusRefunded is a completed sale refunded after the fact.
	StatusRefunded Status = "REFUNDED"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusCompleted, StatusVoided, StatusParked, StatusRefunded:
		return true
	default:
		return false
	}
}

// CanVoid checks if a sale in this status may be voided.
func (s Status) CanVoid() bool {
	return s == StatusCompleted
}

// Sale is a committed or parked checkout record. Totals are computed at
// creation and never recomputed after commit.
type Sale struct {
	ID             int64
	SaleNumber     string
	LocationID     int64
	ShiftID        *int64
	CustomerID     *int64
	ActorID        int64
	Subtotal       int64
	DiscountAmount int64
	DiscountReason string
	TaxAmount      int64
	TotalAmount    int64
	Status         Status
	IsParked       bool
	Notes          string
	VoidedBy       *int64
	VoidReason     string
	VoidedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Items          []Item
	Payments       []Payment
}

// Item is one sale line.
type Item struct {
	ID             int64
	SaleID         int64
	VariantID      int64
	Quantity       int64
	UnitPrice      int64
	OriginalPrice  int64
	DiscountAmount int64
	LineTotal      int64
}

// Payment is one tender against a sale.
type Payment struct {
	ID              int64
	SaleID          int64
	PaymentMethodID int64
	Amount          int64
	TenderedAmount  int64
	ChangeAmount    int64
	ReferenceNumber string
}

// Domain errors.
var (
	// ErrSaleNotFound indicates the sale does not exist.
	ErrSaleNotFound = errors.New("sale not found")
	// ErrEmptyItems indicates a sale with no lines.
	ErrEmptyItems = errors.New("at least one item is required")
	// ErrInvalidItem indicates a line with quantity < 1 or a negative price.
	ErrInvalidItem = errors.New("item quantity must be >= 1 and price non-negative")
	// ErrNoPayments indicates a checkout without tenders.
	ErrNoPayments = errors.New("at least one payment is required")
	// ErrInsufficientPayment indicates payments do not cover the total.
	ErrInsufficientPayment = errors.New("insufficient payment")
	// ErrInvalidDiscount indicates a negative or oversized discount.
	ErrInvalidDiscount = errors.New("discount must be non-negative and not exceed the subtotal")
	// ErrCannotVoid indicates a void attempt on a non-completed sale.
	ErrCannotVoid = errors.New("only a completed sale can be voided")
	// ErrNotParked indicates the referenced sale is not a parked draft.
	ErrNotParked = errors.New("sale is not parked")
	// ErrApproverRequired indicates a void without a resolved approver.
	ErrApproverRequired = errors.New("approver identity required")
)
