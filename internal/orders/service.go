package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tillworks/tillworks/internal/catalog"
	"github.com/tillworks/tillworks/internal/realtime"
	"github.com/tillworks/tillworks/internal/shared"
	"github.com/tillworks/tillworks/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, orderID int64) (*Order, error)
	List(ctx context.Context, status Status, limit int) ([]Order, error)
}

// CatalogPort re-fetches authoritative variant data at submission time.
type CatalogPort interface {
	GetVariant(ctx context.Context, variantID int64) (catalog.Variant, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// EventPort publishes location-scoped events after commit.
type EventPort interface {
	Publish(ctx context.Context, eventType string, locationID int64, payload map[string]any)
}

// IdempotencyPort deduplicates storefront submission retries.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// MetricsPort counts ledger movements triggered by fulfillment.
type MetricsPort interface {
	StockMovement(txType string)
}

// Service coordinates online order fulfillment.
type Service struct {
	repo        RepositoryPort
	catalog     CatalogPort
	audit       AuditPort
	events      EventPort
	idempotency IdempotencyPort
	metrics     MetricsPort
	logger      *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, cat CatalogPort, audit AuditPort, events EventPort, idempotency IdempotencyPort, metrics MetricsPort, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		catalog:     cat,
		audit:       audit,
		events:      events,
		idempotency: idempotency,
		metrics:     metrics,
		logger:      logger,
	}
}

// SubmitItem is a requested line: quantity only, prices come from the catalog.
type SubmitItem struct {
	VariantID int64
	Quantity  int64
}

// SubmitInput describes a storefront order submission.
type SubmitInput struct {
	Source         string
	CustomerName   string
	CustomerPhone  string
	CustomerEmail  string
	Items          []SubmitItem
	Notes          string
	IdempotencyKey string
}

// SubmitResult reports the accepted order.
type SubmitResult struct {
	OrderID     int64
	OrderNumber string
	TotalAmount int64
}

// Submit validates items against the catalog and inserts the order as
// pending. Prices are re-fetched server-side; an inactive or unknown variant
// fails the whole call naming the offending item. No stock moves here.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (SubmitResult, error) {
	if len(input.Items) == 0 {
		return SubmitResult{}, ErrEmptyItems
	}

	items := make([]Item, 0, len(input.Items))
	var subtotal int64
	for _, in := range input.Items {
		if in.Quantity < 1 {
			return SubmitResult{}, fmt.Errorf("%w: variant %d quantity must be at least 1", ErrInvalidItem, in.VariantID)
		}
		variant, err := s.catalog.GetVariant(ctx, in.VariantID)
		if errors.Is(err, catalog.ErrVariantNotFound) {
			return SubmitResult{}, fmt.Errorf("%w: variant %d not found", ErrVariantUnavailable, in.VariantID)
		}
		if err != nil {
			return SubmitResult{}, fmt.Errorf("fetch variant %d: %w", in.VariantID, err)
		}
		if !variant.Active {
			return SubmitResult{}, fmt.Errorf("%w: %s (%s) is no longer available", ErrVariantUnavailable, variant.Name, variant.SKU)
		}
		lineTotal := in.Quantity * variant.Price
		subtotal += lineTotal
		items = append(items, Item{
			VariantID: in.VariantID,
			Quantity:  in.Quantity,
			UnitPrice: variant.Price,
			LineTotal: lineTotal,
		})
	}

	if input.IdempotencyKey != "" && s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, input.IdempotencyKey, "orders"); err != nil {
			return SubmitResult{}, err
		}
	}

	var result SubmitResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		orderNumber, err := tx.NextOrderNumber(ctx, time.Now())
		if err != nil {
			return err
		}
		orderID, err := tx.InsertOrder(ctx, Order{
			OrderNumber:   orderNumber,
			Source:        input.Source,
			CustomerName:  input.CustomerName,
			CustomerPhone: input.CustomerPhone,
			CustomerEmail: input.CustomerEmail,
			Subtotal:      subtotal,
			TotalAmount:   subtotal,
			Status:        StatusPending,
			Notes:         input.Notes,
		})
		if err != nil {
			return err
		}
		for _, item := range items {
			item.OrderID = orderID
			if err := tx.InsertItem(ctx, item); err != nil {
				return err
			}
		}
		result = SubmitResult{OrderID: orderID, OrderNumber: orderNumber, TotalAmount: subtotal}
		return nil
	})
	if err != nil {
		// The key was burned before the insert; release it so the storefront
		// may retry a transient failure.
		if input.IdempotencyKey != "" && s.idempotency != nil {
			if delErr := s.idempotency.Delete(ctx, input.IdempotencyKey); delErr != nil && s.logger != nil {
				s.logger.Warn("release idempotency key", slog.Any("error", delErr))
			}
		}
		return SubmitResult{}, err
	}

	if s.events != nil {
		s.events.Publish(ctx, realtime.EventOnlineOrderReceived, 0, map[string]any{
			"order_id":     result.OrderID,
			"order_number": result.OrderNumber,
			"total_amount": result.TotalAmount,
		})
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Action:   "orders:submit",
			Entity:   "online_order",
			EntityID: fmt.Sprintf("%d", result.OrderID),
			Meta:     map[string]any{"order_number": result.OrderNumber, "source": input.Source},
		})
	}
	return result, nil
}

// UpdateStatus moves an order one step through the state machine. Illegal
// jumps are rejected; entering cancelled clears nothing and stamps nothing.
func (s *Service) UpdateStatus(ctx context.Context, orderID int64, next Status, actorID int64) error {
	if !next.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, next)
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransition(next) {
			return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, order.Status, next)
		}
		var stamp *int64
		if next != StatusPending && next != StatusCancelled {
			stamp = &actorID
		}
		return tx.UpdateStatus(ctx, orderID, next, stamp)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "orders:update_status",
			Entity:   "online_order",
			EntityID: fmt.Sprintf("%d", orderID),
			Meta:     map[string]any{"status": string(next)},
		})
	}
	return nil
}

// Process fulfills an order: one ONLINE_SALE deduction per item plus the
// completed stamp, all in one transaction. The status guard under the row
// lock is the sole idempotency mechanism; a second call is rejected and
// deducts nothing.
func (s *Service) Process(ctx context.Context, orderID, locationID, actorID int64) error {
	var orderNumber string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		switch {
		case order.Status == StatusCompleted:
			return ErrOrderProcessed
		case order.Status == StatusCancelled:
			return ErrOrderCancelled
		case !order.Status.CanProcess():
			return fmt.Errorf("%w: %s order must be confirmed first", ErrIllegalTransition, order.Status)
		}

		for _, item := range order.Items {
			if _, err := stock.ApplyDelta(ctx, tx.Stock(), stock.DeltaInput{
				VariantID:     item.VariantID,
				LocationID:    locationID,
				Delta:         -item.Quantity,
				Type:          stock.TransactionTypeOnlineSale,
				ReferenceType: stock.ReferenceOnlineOrder,
				ReferenceID:   orderID,
				ActorID:       actorID,
				Notes:         order.OrderNumber,
			}); err != nil {
				return fmt.Errorf("deduct stock: %w", err)
			}
		}

		orderNumber = order.OrderNumber
		return tx.UpdateStatus(ctx, orderID, StatusCompleted, &actorID)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.StockMovement(string(stock.TransactionTypeOnlineSale))
	}
	if s.events != nil {
		s.events.Publish(ctx, realtime.EventOnlineOrderCompleted, locationID, map[string]any{
			"order_id":     orderID,
			"order_number": orderNumber,
		})
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "orders:process",
			Entity:   "online_order",
			EntityID: fmt.Sprintf("%d", orderID),
			Meta:     map[string]any{"order_number": orderNumber, "location_id": locationID},
		})
	}
	return nil
}

// Get loads an order with items.
func (s *Service) Get(ctx context.Context, orderID int64) (*Order, error) {
	return s.repo.Get(ctx, orderID)
}

// List returns orders, optionally filtered by status.
func (s *Service) List(ctx context.Context, status Status, limit int) ([]Order, error) {
	if status != "" && !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return s.repo.List(ctx, status, limit)
}
