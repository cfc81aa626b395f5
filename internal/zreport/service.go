package zreport

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/tillworks/tillworks/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Insert(ctx context.Context, report Report) (int64, error)
	Get(ctx context.Context, locationID int64, date time.Time) (*Report, error)
	List(ctx context.Context, locationID int64, limit int) ([]Report, error)
	SalesTotals(ctx context.Context, locationID int64, date time.Time) (SalesTotals, error)
	PaymentTotals(ctx context.Context, locationID int64, date time.Time) (PaymentTotals, error)
	ShiftTotals(ctx context.Context, locationID int64, date time.Time) (ShiftTotals, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service generates and serves z-reports.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	group singleflight.Group
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// Generate computes and inserts the report for one location and date. The
// aggregation is a pure read over sales, payments and shifts; the insert is
// the only write. Duplicate generation is rejected by the unique constraint,
// and concurrent in-process calls for the same key share one flight.
func (s *Service) Generate(ctx context.Context, locationID int64, date time.Time, actorID int64) (*Report, error) {
	if date.IsZero() {
		return nil, ErrInvalidDate
	}
	date = date.Truncate(24 * time.Hour)

	key := fmt.Sprintf("%d:%s", locationID, date.Format("2006-01-02"))
	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.generate(ctx, locationID, date, actorID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Report), nil
}

func (s *Service) generate(ctx context.Context, locationID int64, date time.Time, actorID int64) (*Report, error) {
	sales, err := s.repo.SalesTotals(ctx, locationID, date)
	if err != nil {
		return nil, err
	}
	payments, err := s.repo.PaymentTotals(ctx, locationID, date)
	if err != nil {
		return nil, err
	}
	shifts, err := s.repo.ShiftTotals(ctx, locationID, date)
	if err != nil {
		return nil, err
	}

	report := Report{
		LocationID:   locationID,
		ReportDate:   date,
		GrossSales:   sales.GrossSales,
		Discounts:    sales.Discounts,
		Returns:      sales.Returns,
		NetSales:     sales.GrossSales - sales.Discounts - sales.Returns,
		TaxCollected: sales.TaxCollected,
		CashTotal:    payments.Cash,
		CardTotal:    payments.Card,
		WalletTotal:  payments.Wallet,
		OpeningCash:  shifts.OpeningCash,
		ExpectedCash: shifts.OpeningCash + payments.Cash,
		ActualCash:   shifts.ActualCash,
		SaleCount:    sales.SaleCount,
		GeneratedBy:  actorID,
	}
	report.Variance = report.ActualCash - report.ExpectedCash

	id, err := s.repo.Insert(ctx, report)
	if err != nil {
		return nil, err
	}
	report.ID = id

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "zreport:generate",
			Entity:   "z_report",
			EntityID: fmt.Sprintf("%d", id),
			Meta: map[string]any{
				"location_id": locationID,
				"report_date": date.Format("2006-01-02"),
				"net_sales":   report.NetSales,
				"variance":    report.Variance,
			},
		})
	}
	return &report, nil
}

// Get loads the report for a location and date.
func (s *Service) Get(ctx context.Context, locationID int64, date time.Time) (*Report, error) {
	return s.repo.Get(ctx, locationID, date)
}

// List returns recent reports for a location.
func (s *Service) List(ctx context.Context, locationID int64, limit int) ([]Report, error) {
	return s.repo.List(ctx, locationID, limit)
}
