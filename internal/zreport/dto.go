package zreport

import "time"

// GenerateRequest asks for the day's snapshot at one location.
type GenerateRequest struct {
	LocationID int64  `json:"location_id" validate:"required,gt=0"`
	ReportDate string `json:"report_date" validate:"required,datetime=2006-01-02"`
}

// ReportResponse is the wire form of a z-report.
type ReportResponse struct {
	ID           int64     `json:"id"`
	LocationID   int64     `json:"location_id"`
	ReportDate   string    `json:"report_date"`
	GrossSales   int64     `json:"gross_sales"`
	Discounts    int64     `json:"discounts"`
	Returns      int64     `json:"returns"`
	NetSales     int64     `json:"net_sales"`
	TaxCollected int64     `json:"tax_collected"`
	CashTotal    int64     `json:"cash_total"`
	CardTotal    int64     `json:"card_total"`
	WalletTotal  int64     `json:"wallet_total"`
	OpeningCash  int64     `json:"opening_cash"`
	ExpectedCash int64     `json:"expected_cash"`
	ActualCash   int64     `json:"actual_cash"`
	Variance     int64     `json:"variance"`
	SaleCount    int64     `json:"sale_count"`
	GeneratedBy  int64     `json:"generated_by"`
	CreatedAt    time.Time `json:"created_at"`
}

func toReportResponse(r *Report) ReportResponse {
	return ReportResponse{
		ID:           r.ID,
		LocationID:   r.LocationID,
		ReportDate:   r.ReportDate.Format("2006-01-02"),
		GrossSales:   r.GrossSales,
		Discounts:    r.Discounts,
		Returns:      r.Returns,
		NetSales:     r.NetSales,
		TaxCollected: r.TaxCollected,
		CashTotal:    r.CashTotal,
		CardTotal:    r.CardTotal,
		WalletTotal:  r.WalletTotal,
		OpeningCash:  r.OpeningCash,
		ExpectedCash: r.ExpectedCash,
		ActualCash:   r.ActualCash,
		Variance:     r.Variance,
		SaleCount:    r.SaleCount,
		GeneratedBy:  r.GeneratedBy,
		CreatedAt:    r.CreatedAt,
	}
}
