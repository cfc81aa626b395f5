package shift

import (
	"errors"
	"time"
)

// Status is a shift lifecycle state.
type Status string

const (
	// StatusOpen is an active accounting period. An actor holds at most one.
	StatusOpen Status = "OPEN"
	// StatusClosed means the financial fields are frozen and never recomputed.
	StatusClosed Status = "CLOSED"
	// StatusReconciled adds manager sign-off to a closed shift.
	StatusReconciled Status = "RECONCILED"
)

// CanClose reports whether clock-out is allowed from this state.
func (s Status) CanClose() bool { return s == StatusOpen }

// CanReconcile reports whether manager sign-off is allowed from this state.
func (s Status) CanReconcile() bool { return s == StatusClosed }

// VarianceStatus classifies the counted-vs-expected cash difference at close.
type VarianceStatus string

const (
	VarianceOK      VarianceStatus = "OK"
	VarianceFlagged VarianceStatus = "FLAGGED"
)

// ClassifyVariance applies the absolute threshold in currency minor units.
func ClassifyVariance(variance, threshold int64) VarianceStatus {
	if variance < 0 {
		variance = -variance
	}
	if variance > threshold {
		return VarianceFlagged
	}
	return VarianceOK
}

// Shift is one cashier's accounting period. ClosingCash, ExpectedCash and
// CashVariance stay nil until clock-out fixes them.
type Shift struct {
	ID             int64
	ActorID        int64
	LocationID     int64
	Terminal       string
	OpeningCash    int64
	ClosingCash    *int64
	ExpectedCash   *int64
	CashVariance   *int64
	VarianceStatus VarianceStatus
	Status         Status
	Notes          string
	ApproverID     *int64
	OpenedAt       time.Time
	ClosedAt       *time.Time
	ReconciledAt   *time.Time
}

var (
	ErrShiftNotFound    = errors.New("shift not found")
	ErrShiftAlreadyOpen = errors.New("shift already open")
	ErrNoOpenShift      = errors.New("no open shift for actor")
	ErrShiftNotClosed   = errors.New("shift is not closed")
	ErrInvalidCash      = errors.New("cash amount must not be negative")
)
