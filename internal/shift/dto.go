package shift

import "time"

// ClockInRequest opens a shift for the calling actor.
type ClockInRequest struct {
	LocationID  int64  `json:"location_id" validate:"required,gt=0"`
	OpeningCash int64  `json:"opening_cash" validate:"gte=0"`
	Terminal    string `json:"terminal" validate:"max=64"`
}

// ClockOutRequest closes the calling actor's open shift.
type ClockOutRequest struct {
	ClosingCash int64  `json:"closing_cash" validate:"gte=0"`
	Notes       string `json:"notes" validate:"max=500"`
}

// ReconcileRequest records manager sign-off.
type ReconcileRequest struct {
	ApproverPIN string `json:"approver_pin" validate:"required,min=4,max=12"`
	Notes       string `json:"notes" validate:"max=500"`
}

// CloseResponse reports the frozen figures from clock-out.
type CloseResponse struct {
	ShiftID        int64  `json:"shift_id"`
	OpeningCash    int64  `json:"opening_cash"`
	CashIn         int64  `json:"cash_in"`
	CashOut        int64  `json:"cash_out"`
	ExpectedCash   int64  `json:"expected_cash"`
	ClosingCash    int64  `json:"closing_cash"`
	Variance       int64  `json:"variance"`
	VarianceStatus string `json:"variance_status"`
}

// ShiftResponse is the wire form of a shift.
type ShiftResponse struct {
	ID             int64      `json:"id"`
	ActorID        int64      `json:"actor_id"`
	LocationID     int64      `json:"location_id"`
	Terminal       string     `json:"terminal,omitempty"`
	OpeningCash    int64      `json:"opening_cash"`
	ClosingCash    *int64     `json:"closing_cash,omitempty"`
	ExpectedCash   *int64     `json:"expected_cash,omitempty"`
	CashVariance   *int64     `json:"cash_variance,omitempty"`
	VarianceStatus string     `json:"variance_status,omitempty"`
	Status         string     `json:"status"`
	Notes          string     `json:"notes,omitempty"`
	ApproverID     *int64     `json:"approver_id,omitempty"`
	OpenedAt       time.Time  `json:"opened_at"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	ReconciledAt   *time.Time `json:"reconciled_at,omitempty"`
}

func toShiftResponse(sh *Shift) ShiftResponse {
	return ShiftResponse{
		ID:             sh.ID,
		ActorID:        sh.ActorID,
		LocationID:     sh.LocationID,
		Terminal:       sh.Terminal,
		OpeningCash:    sh.OpeningCash,
		ClosingCash:    sh.ClosingCash,
		ExpectedCash:   sh.ExpectedCash,
		CashVariance:   sh.CashVariance,
		VarianceStatus: string(sh.VarianceStatus),
		Status:         string(sh.Status),
		Notes:          sh.Notes,
		ApproverID:     sh.ApproverID,
		OpenedAt:       sh.OpenedAt,
		ClosedAt:       sh.ClosedAt,
		ReconciledAt:   sh.ReconciledAt,
	}
}

func toCloseResponse(r CloseResult) CloseResponse {
	return CloseResponse{
		ShiftID:        r.ShiftID,
		OpeningCash:    r.OpeningCash,
		CashIn:         r.CashIn,
		CashOut:        r.CashOut,
		ExpectedCash:   r.ExpectedCash,
		ClosingCash:    r.ClosingCash,
		Variance:       r.Variance,
		VarianceStatus: string(r.VarianceStatus),
	}
}
