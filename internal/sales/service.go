package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tillworks/tillworks/internal/realtime"
	"github.com/tillworks/tillworks/internal/shared"
	"github.com/tillworks/tillworks/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetSale(ctx context.Context, saleID int64) (*Sale, error)
	ListParked(ctx context.Context, locationID int64) ([]Sale, error)
	GetCustomerContact(ctx context.Context, customerID int64) (phone string, optedIn bool, err error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// EventPort publishes location-scoped events after commit.
type EventPort interface {
	Publish(ctx context.Context, eventType string, locationID int64, payload map[string]any)
}

// NotifierPort enqueues best-effort outbound notifications. Failure to
// enqueue never rolls back a sale.
type NotifierPort interface {
	EnqueueReceiptSMS(ctx context.Context, phone, saleNumber string, totalAmount int64) error
}

// MetricsPort counts committed and voided sales.
type MetricsPort interface {
	SaleCommitted()
	SaleVoided()
}

// Service coordinates the sale workflow.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	events   EventPort
	notifier NotifierPort
	metrics  MetricsPort
	logger   *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, events EventPort, notifier NotifierPort, metrics MetricsPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, events: events, notifier: notifier, metrics: metrics, logger: logger}
}

// ItemInput is one requested sale line.
type ItemInput struct {
	VariantID      int64
	Quantity       int64
	UnitPrice      int64
	OriginalPrice  int64
	DiscountAmount int64
}

// PaymentInput is one tender.
type PaymentInput struct {
	PaymentMethodID int64
	Amount          int64
	TenderedAmount  int64
	ChangeAmount    int64
	ReferenceNumber string
}

// CreateInput describes a checkout request.
type CreateInput struct {
	LocationID     int64
	ShiftID        *int64
	CustomerID     *int64
	ActorID        int64
	Items          []ItemInput
	Payments       []PaymentInput
	DiscountAmount int64
	DiscountReason string
	TaxAmount      int64
	Notes          string
	// ParkedSaleID converts an existing parked draft: the draft is removed in
	// the same transaction that commits the sale.
	ParkedSaleID *int64
}

// ParkInput describes a draft to save without committing.
type ParkInput struct {
	LocationID int64
	ShiftID    *int64
	CustomerID *int64
	ActorID    int64
	Items      []ItemInput
	Notes      string
}

// CreateResult is returned from a committed checkout.
type CreateResult struct {
	SaleID      int64
	SaleNumber  string
	TotalAmount int64
}

// Create validates and commits a sale. The sale row, its items, the per-item
// stock deductions, the payments, and the customer counters form one atomic
// unit; any failure rolls back all of it.
func (s *Service) Create(ctx context.Context, input CreateInput) (CreateResult, error) {
	subtotal, err := validateItems(input.Items)
	if err != nil {
		return CreateResult{}, err
	}
	if len(input.Payments) == 0 {
		return CreateResult{}, ErrNoPayments
	}
	if input.DiscountAmount < 0 || input.DiscountAmount > subtotal {
		return CreateResult{}, ErrInvalidDiscount
	}
	if input.TaxAmount < 0 {
		return CreateResult{}, fmt.Errorf("%w: negative tax", ErrInvalidItem)
	}

	total := subtotal - input.DiscountAmount + input.TaxAmount
	var paid int64
	for _, p := range input.Payments {
		if p.Amount < 0 {
			return CreateResult{}, fmt.Errorf("%w: negative payment amount", ErrInvalidItem)
		}
		paid += p.Amount
	}
	if paid < total {
		return CreateResult{}, ErrInsufficientPayment
	}

	now := time.Now()
	var result CreateResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		saleNumber, err := tx.NextSaleNumber(ctx, input.LocationID, now)
		if err != nil {
			return fmt.Errorf("allocate sale number: %w", err)
		}

		saleID, err := tx.InsertSale(ctx, Sale{
			SaleNumber:     saleNumber,
			LocationID:     input.LocationID,
			ShiftID:        input.ShiftID,
			CustomerID:     input.CustomerID,
			ActorID:        input.ActorID,
			Subtotal:       subtotal,
			DiscountAmount: input.DiscountAmount,
			DiscountReason: input.DiscountReason,
			TaxAmount:      input.TaxAmount,
			TotalAmount:    total,
			Status:         StatusCompleted,
			Notes:          input.Notes,
		})
		if err != nil {
			return fmt.Errorf("insert sale: %w", err)
		}

		for _, item := range input.Items {
			if _, err := tx.InsertItem(ctx, buildItem(saleID, item)); err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
			if _, err := stock.ApplyDelta(ctx, tx.Stock(), stock.DeltaInput{
				VariantID:     item.VariantID,
				LocationID:    input.LocationID,
				Delta:         -item.Quantity,
				Type:          stock.TransactionTypeSale,
				ReferenceType: stock.ReferenceSale,
				ReferenceID:   saleID,
				ActorID:       input.ActorID,
				Notes:         saleNumber,
			}); err != nil {
				return fmt.Errorf("deduct stock: %w", err)
			}
		}

		for _, p := range input.Payments {
			if err := tx.InsertPayment(ctx, Payment{
				SaleID:          saleID,
				PaymentMethodID: p.PaymentMethodID,
				Amount:          p.Amount,
				TenderedAmount:  p.TenderedAmount,
				ChangeAmount:    p.ChangeAmount,
				ReferenceNumber: p.ReferenceNumber,
			}); err != nil {
				return fmt.Errorf("insert payment: %w", err)
			}
		}

		if input.CustomerID != nil {
			if err := tx.IncrementCustomerTotals(ctx, *input.CustomerID, total); err != nil {
				return fmt.Errorf("update customer totals: %w", err)
			}
		}

		if input.ParkedSaleID != nil {
			if err := tx.DeleteParked(ctx, *input.ParkedSaleID); err != nil {
				return fmt.Errorf("remove parked draft: %w", err)
			}
		}

		result = CreateResult{SaleID: saleID, SaleNumber: saleNumber, TotalAmount: total}
		return nil
	})
	if err != nil {
		return CreateResult{}, err
	}

	s.afterCommit(ctx, input, result)
	return result, nil
}

// Void reverses a completed sale, restoring every item's quantity to the
// ledger. The approver identity must already be verified by the caller.
func (s *Service) Void(ctx context.Context, saleID, approverID int64, reason string) error {
	if approverID == 0 {
		return ErrApproverRequired
	}
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return err
	}
	if !sale.Status.CanVoid() {
		return fmt.Errorf("%w: status %s", ErrCannotVoid, sale.Status)
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateSaleStatus(ctx, saleID, StatusVoided, approverID, reason); err != nil {
			return err
		}
		for _, item := range sale.Items {
			if _, err := stock.ApplyDelta(ctx, tx.Stock(), stock.DeltaInput{
				VariantID:     item.VariantID,
				LocationID:    sale.LocationID,
				Delta:         item.Quantity,
				Type:          stock.TransactionTypeVoidRestore,
				ReferenceType: stock.ReferenceSale,
				ReferenceID:   saleID,
				ActorID:       approverID,
				Notes:         fmt.Sprintf("void %s", sale.SaleNumber),
			}); err != nil {
				return fmt.Errorf("restore stock: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.SaleVoided()
	}
	if s.events != nil {
		s.events.Publish(ctx, realtime.EventSaleVoided, sale.LocationID, map[string]any{
			"sale_id":     saleID,
			"sale_number": sale.SaleNumber,
		})
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  approverID,
			Action:   "sales:void",
			Entity:   "sale",
			EntityID: fmt.Sprintf("%d", saleID),
			Meta:     map[string]any{"reason": reason, "sale_number": sale.SaleNumber},
		})
	}
	return nil
}

// Park saves a draft. No stock moves and no payment is required; the draft
// is later deleted or converted through Create.
func (s *Service) Park(ctx context.Context, input ParkInput) (int64, error) {
	subtotal, err := validateItems(input.Items)
	if err != nil {
		return 0, err
	}
	var parkedID int64
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		saleID, err := tx.InsertSale(ctx, Sale{
			LocationID: input.LocationID,
			ShiftID:    input.ShiftID,
			CustomerID: input.CustomerID,
			ActorID:    input.ActorID,
			Subtotal:   subtotal,
			Status:     StatusParked,
			IsParked:   true,
			Notes:      input.Notes,
		})
		if err != nil {
			return fmt.Errorf("insert parked sale: %w", err)
		}
		for _, item := range input.Items {
			if _, err := tx.InsertItem(ctx, buildItem(saleID, item)); err != nil {
				return fmt.Errorf("insert parked item: %w", err)
			}
		}
		parkedID = saleID
		return nil
	})
	if err != nil {
		return 0, err
	}
	return parkedID, nil
}

// RetrieveParked loads a parked draft for editing. Retrieval never mutates
// inventory or the draft itself.
func (s *Service) RetrieveParked(ctx context.Context, saleID int64) (*Sale, error) {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return nil, err
	}
	if sale.Status != StatusParked {
		return nil, ErrNotParked
	}
	return sale, nil
}

// ListParked lists parked drafts at a location.
func (s *Service) ListParked(ctx context.Context, locationID int64) ([]Sale, error) {
	return s.repo.ListParked(ctx, locationID)
}

// DeleteParked discards a parked draft.
func (s *Service) DeleteParked(ctx context.Context, saleID int64) error {
	sale, err := s.repo.GetSale(ctx, saleID)
	if err != nil {
		return err
	}
	if sale.Status != StatusParked {
		return ErrNotParked
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteParked(ctx, saleID)
	})
}

// Get loads a sale.
func (s *Service) Get(ctx context.Context, saleID int64) (*Sale, error) {
	return s.repo.GetSale(ctx, saleID)
}

func (s *Service) afterCommit(ctx context.Context, input CreateInput, result CreateResult) {
	if s.metrics != nil {
		s.metrics.SaleCommitted()
	}
	if s.events != nil {
		s.events.Publish(ctx, realtime.EventSaleCompleted, input.LocationID, map[string]any{
			"sale_id":      result.SaleID,
			"sale_number":  result.SaleNumber,
			"total_amount": result.TotalAmount,
		})
	}
	if input.CustomerID != nil && s.notifier != nil {
		phone, optedIn, err := s.repo.GetCustomerContact(ctx, *input.CustomerID)
		if err == nil && optedIn && phone != "" {
			if err := s.notifier.EnqueueReceiptSMS(ctx, phone, result.SaleNumber, result.TotalAmount); err != nil && s.logger != nil {
				s.logger.Warn("enqueue receipt sms", slog.Any("error", err))
			}
		} else if err != nil && s.logger != nil {
			s.logger.Warn("load customer contact", slog.Any("error", err))
		}
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "sales:create",
			Entity:   "sale",
			EntityID: fmt.Sprintf("%d", result.SaleID),
			Meta: map[string]any{
				"sale_number":  result.SaleNumber,
				"total_amount": result.TotalAmount,
				"location_id":  input.LocationID,
			},
		})
	}
}

func validateItems(items []ItemInput) (int64, error) {
	if len(items) == 0 {
		return 0, ErrEmptyItems
	}
	var subtotal int64
	for _, item := range items {
		if item.Quantity < 1 || item.UnitPrice < 0 || item.DiscountAmount < 0 {
			return 0, ErrInvalidItem
		}
		subtotal += item.Quantity*item.UnitPrice - item.DiscountAmount
	}
	if subtotal < 0 {
		return 0, ErrInvalidDiscount
	}
	return subtotal, nil
}

func buildItem(saleID int64, in ItemInput) Item {
	original := in.OriginalPrice
	if original == 0 {
		original = in.UnitPrice
	}
	return Item{
		SaleID:         saleID,
		VariantID:      in.VariantID,
		Quantity:       in.Quantity,
		UnitPrice:      in.UnitPrice,
		OriginalPrice:  original,
		DiscountAmount: in.DiscountAmount,
		LineTotal:      in.Quantity*in.UnitPrice - in.DiscountAmount,
	}
}
