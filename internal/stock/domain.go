package stock

import (
	"errors"
	"time"
)

// TransactionType enumerates ledger-recorded stock movements.
type TransactionType string

const (
	// TransactionTypeSale is an in-store checkout deduction.
	TransactionTypeSale TransactionType = "SALE"
	// TransactionTypeAdjustment is a manual correction.
	TransactionTypeAdjustment TransactionType = "ADJUSTMENT"
	// TransactionTypeReceive is inbound stock from a supplier.
	TransactionTypeReceive TransactionType = "RECEIVE"
	// TransactionTypeOnlineSale is a storefront order deduction.
	TransactionTypeOnlineSale TransactionType = "ONLINE_SALE"
	// TransactionTypeVoidRestore returns stock from a voided sale.
	TransactionTypeVoidRestore TransactionType = "VOID_RESTORE"
	// TransactionTypeTransfer moves stock between locations.
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

// IsValid checks if the transaction type is known.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeSale, TransactionTypeAdjustment, TransactionTypeReceive,
		TransactionTypeOnlineSale, TransactionTypeVoidRestore, TransactionTypeTransfer:
		return true
	default:
		return false
	}
}

// Reference types linking a movement to the record that triggered it.
const (
	ReferenceSale        = "SALE"
	ReferenceOnlineOrder = "ONLINE_ORDER"
	ReferenceManual      = "MANUAL"
	ReferenceTransfer    = "TRANSFER"
)

// Level holds the materialized quantities for one (variant, location) pair.
// QuantityOnHand may go negative on sale-driven deductions; available stock
// is derived, never stored.
type Level struct {
	VariantID        int64
	LocationID       int64
	QuantityOnHand   int64
	QuantityReserved int64
	ReorderLevel     int64
	ReorderQuantity  int64
	UpdatedAt        time.Time
}

// Available returns the only quantity offered for sale.
func (l Level) Available() int64 {
	return l.QuantityOnHand - l.QuantityReserved
}

// Movement is one immutable ledger entry. Every Level mutation produces
// exactly one Movement in the same atomic unit.
type Movement struct {
	ID             int64
	VariantID      int64
	LocationID     int64
	Type           TransactionType
	QuantityChange int64
	QuantityBefore int64
	QuantityAfter  int64
	ReferenceType  string
	ReferenceID    int64
	ActorID        int64
	Notes          string
	CreatedAt      time.Time
}

// DeltaInput describes a single requested quantity change.
type DeltaInput struct {
	VariantID     int64
	LocationID    int64
	Delta         int64
	Type          TransactionType
	ReferenceType string
	ReferenceID   int64
	ActorID       int64
	Notes         string
}

// Availability is the advisory pre-checkout view. It is a non-locking read:
// nothing prevents the quantities changing before a later sale commits.
type Availability struct {
	OnHand    int64 `json:"on_hand"`
	Reserved  int64 `json:"reserved"`
	Available int64 `json:"available"`
}

// MovementFilter filters the movement log.
type MovementFilter struct {
	VariantID  int64
	LocationID int64
	From       time.Time
	To         time.Time
	Limit      int
}

// ErrLevelNotFound indicates a missing stock level row. Absence is not an
// error condition for writes; the row is zero-initialized on first movement.
var ErrLevelNotFound = errors.New("stock level not found")

// ErrInvalidDelta indicates a zero delta or unknown transaction type.
var ErrInvalidDelta = errors.New("stock: invalid delta")

// ErrNegativeAdjustment indicates a manual adjustment that would drive the
// on-hand quantity negative.
var ErrNegativeAdjustment = errors.New("stock: adjustment would drive quantity negative")
