package zreport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tillworks/tillworks/internal/platform/db"
)

// SalesTotals is the day's aggregate over completed and refunded sales.
type SalesTotals struct {
	GrossSales   int64
	Discounts    int64
	Returns      int64
	TaxCollected int64
	SaleCount    int64
}

// PaymentTotals breaks the day's tenders down by payment method kind.
// Cash is net of change handed back.
type PaymentTotals struct {
	Cash   int64
	Card   int64
	Wallet int64
}

// ShiftTotals sums the day's closed shifts.
type ShiftTotals struct {
	OpeningCash int64
	ActualCash  int64
}

// Repository persists and aggregates z-reports in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reportColumns = `id, location_id, report_date, gross_sales, discounts, returns,
	net_sales, tax_collected, cash_total, card_total, wallet_total,
	opening_cash, expected_cash, actual_cash, variance, sale_count,
	generated_by, created_at`

// Insert writes a report row. The unique constraint on
// (location_id, report_date) makes duplicate generation atomic to detect.
func (r *Repository) Insert(ctx context.Context, report Report) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO z_reports (
			location_id, report_date, gross_sales, discounts, returns,
			net_sales, tax_collected, cash_total, card_total, wallet_total,
			opening_cash, expected_cash, actual_cash, variance, sale_count,
			generated_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now())
		RETURNING id`,
		report.LocationID, report.ReportDate, report.GrossSales, report.Discounts,
		report.Returns, report.NetSales, report.TaxCollected, report.CashTotal,
		report.CardTotal, report.WalletTotal, report.OpeningCash, report.ExpectedCash,
		report.ActualCash, report.Variance, report.SaleCount, report.GeneratedBy,
	).Scan(&id)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return 0, ErrAlreadyGenerated
		}
		return 0, fmt.Errorf("insert z-report: %w", err)
	}
	return id, nil
}

// Get loads the report for a location and date.
func (r *Repository) Get(ctx context.Context, locationID int64, date time.Time) (*Report, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM z_reports WHERE location_id = $1 AND report_date = $2`,
		locationID, date)
	return scanReport(row)
}

// List returns reports for a location, newest first.
func (r *Repository) List(ctx context.Context, locationID int64, limit int) ([]Report, error) {
	if limit <= 0 || limit > 200 {
		limit = 31
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+reportColumns+` FROM z_reports
		 WHERE location_id = $1
		 ORDER BY report_date DESC
		 LIMIT $2`, locationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list z-reports: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *report)
	}
	return out, rows.Err()
}

// SalesTotals aggregates the day's sales. Pure read, no source row changes.
func (r *Repository) SalesTotals(ctx context.Context, locationID int64, date time.Time) (SalesTotals, error) {
	var t SalesTotals
	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(subtotal) FILTER (WHERE status = 'COMPLETED'), 0),
			COALESCE(SUM(discount_amount) FILTER (WHERE status = 'COMPLETED'), 0),
			COALESCE(SUM(total_amount) FILTER (WHERE status = 'REFUNDED'), 0),
			COALESCE(SUM(tax_amount) FILTER (WHERE status = 'COMPLETED'), 0),
			COUNT(*) FILTER (WHERE status = 'COMPLETED')
		FROM sales
		WHERE location_id = $1 AND created_at >= $2 AND created_at < $2 + interval '1 day'`,
		locationID, date,
	).Scan(&t.GrossSales, &t.Discounts, &t.Returns, &t.TaxCollected, &t.SaleCount)
	if err != nil {
		return SalesTotals{}, fmt.Errorf("aggregate sales: %w", err)
	}
	return t, nil
}

// PaymentTotals aggregates the day's tenders by method kind.
func (r *Repository) PaymentTotals(ctx context.Context, locationID int64, date time.Time) (PaymentTotals, error) {
	var t PaymentTotals
	err := r.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(sp.amount - sp.change_amount) FILTER (WHERE pm.kind = 'CASH'), 0),
			COALESCE(SUM(sp.amount) FILTER (WHERE pm.kind = 'CARD'), 0),
			COALESCE(SUM(sp.amount) FILTER (WHERE pm.kind = 'WALLET'), 0)
		FROM sale_payments sp
		JOIN sales s ON s.id = sp.sale_id
		JOIN payment_methods pm ON pm.id = sp.payment_method_id
		WHERE s.location_id = $1 AND s.status = 'COMPLETED'
		  AND s.created_at >= $2 AND s.created_at < $2 + interval '1 day'`,
		locationID, date,
	).Scan(&t.Cash, &t.Card, &t.Wallet)
	if err != nil {
		return PaymentTotals{}, fmt.Errorf("aggregate payments: %w", err)
	}
	return t, nil
}

// ShiftTotals sums opening floats and counted cash across the day's closed
// shifts. Shifts still open are excluded; their cash is not countable yet.
func (r *Repository) ShiftTotals(ctx context.Context, locationID int64, date time.Time) (ShiftTotals, error) {
	var t ShiftTotals
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(opening_cash), 0), COALESCE(SUM(closing_cash), 0)
		FROM shifts
		WHERE location_id = $1 AND status IN ('CLOSED', 'RECONCILED')
		  AND opened_at >= $2 AND opened_at < $2 + interval '1 day'`,
		locationID, date,
	).Scan(&t.OpeningCash, &t.ActualCash)
	if err != nil {
		return ShiftTotals{}, fmt.Errorf("aggregate shifts: %w", err)
	}
	return t, nil
}

func scanReport(row pgx.Row) (*Report, error) {
	var report Report
	err := row.Scan(
		&report.ID, &report.LocationID, &report.ReportDate, &report.GrossSales,
		&report.Discounts, &report.Returns, &report.NetSales, &report.TaxCollected,
		&report.CashTotal, &report.CardTotal, &report.WalletTotal,
		&report.OpeningCash, &report.ExpectedCash, &report.ActualCash,
		&report.Variance, &report.SaleCount, &report.GeneratedBy, &report.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan z-report: %w", err)
	}
	return &report, nil
}
