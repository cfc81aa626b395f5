package zreport

import (
	"errors"
	"time"
)

// Report is an immutable end-of-day snapshot for one location and date.
// Once inserted it is never updated; regeneration is rejected.
type Report struct {
	ID           int64
	LocationID   int64
	ReportDate   time.Time
	GrossSales   int64
	Discounts    int64
	Returns      int64
	NetSales     int64
	TaxCollected int64
	CashTotal    int64
	CardTotal    int64
	WalletTotal  int64
	OpeningCash  int64
	ExpectedCash int64
	ActualCash   int64
	Variance     int64
	SaleCount    int64
	GeneratedBy  int64
	CreatedAt    time.Time
}

var (
	ErrReportNotFound   = errors.New("z-report not found")
	ErrAlreadyGenerated = errors.New("z-report already generated for this date")
	ErrInvalidDate      = errors.New("invalid report date")
)
