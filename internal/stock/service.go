package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/tillworks/tillworks/internal/realtime"
	"github.com/tillworks/tillworks/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
	GetLevel(ctx context.Context, variantID, locationID int64) (Level, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// EventPort publishes location-scoped events after commit.
type EventPort interface {
	Publish(ctx context.Context, eventType string, locationID int64, payload map[string]any)
}

// MetricsPort counts ledger movements.
type MetricsPort interface {
	StockMovement(txType string)
}

// Service coordinates stock ledger operations.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	events  EventPort
	metrics MetricsPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, events EventPort, metrics MetricsPort) *Service {
	return &Service{repo: repo, audit: audit, events: events, metrics: metrics}
}

// AdjustInput describes a manual stock correction.
type AdjustInput struct {
	VariantID  int64
	LocationID int64
	Delta      int64
	ActorID    int64
	Notes      string
}

// ReceiveInput describes inbound stock.
type ReceiveInput struct {
	VariantID  int64
	LocationID int64
	Quantity   int64
	ActorID    int64
	Notes      string
}

// TransferInput moves stock between two locations.
type TransferInput struct {
	VariantID    int64
	FromLocation int64
	ToLocation   int64
	Quantity     int64
	ActorID      int64
	Notes        string
}

// Adjust posts a manual adjustment. Unlike sale-driven deductions it may not
// drive the on-hand quantity negative.
func (s *Service) Adjust(ctx context.Context, input AdjustInput) (Movement, error) {
	if input.Delta == 0 {
		return Movement{}, ErrInvalidDelta
	}
	return s.post(ctx, DeltaInput{
		VariantID:     input.VariantID,
		LocationID:    input.LocationID,
		Delta:         input.Delta,
		Type:          TransactionTypeAdjustment,
		ReferenceType: ReferenceManual,
		ActorID:       input.ActorID,
		Notes:         input.Notes,
	})
}

// Receive posts inbound stock from a supplier delivery.
func (s *Service) Receive(ctx context.Context, input ReceiveInput) (Movement, error) {
	if input.Quantity <= 0 {
		return Movement{}, ErrInvalidDelta
	}
	return s.post(ctx, DeltaInput{
		VariantID:     input.VariantID,
		LocationID:    input.LocationID,
		Delta:         input.Quantity,
		Type:          TransactionTypeReceive,
		ReferenceType: ReferenceManual,
		ActorID:       input.ActorID,
		Notes:         input.Notes,
	})
}

// Transfer moves stock between locations with paired OUT and IN movements in
// one atomic unit.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (Movement, Movement, error) {
	if input.Quantity <= 0 {
		return Movement{}, Movement{}, ErrInvalidDelta
	}
	if input.FromLocation == input.ToLocation {
		return Movement{}, Movement{}, errors.New("stock: source and destination location must differ")
	}
	var out, in Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		var err error
		out, err = ApplyDelta(ctx, tx, DeltaInput{
			VariantID:     input.VariantID,
			LocationID:    input.FromLocation,
			Delta:         -input.Quantity,
			Type:          TransactionTypeTransfer,
			ReferenceType: ReferenceTransfer,
			ActorID:       input.ActorID,
			Notes:         fmt.Sprintf("Transfer to location %d: %s", input.ToLocation, input.Notes),
		})
		if err != nil {
			return err
		}
		in, err = ApplyDelta(ctx, tx, DeltaInput{
			VariantID:     input.VariantID,
			LocationID:    input.ToLocation,
			Delta:         input.Quantity,
			Type:          TransactionTypeTransfer,
			ReferenceType: ReferenceTransfer,
			ActorID:       input.ActorID,
			Notes:         fmt.Sprintf("Transfer from location %d: %s", input.FromLocation, input.Notes),
		})
		return err
	})
	if err != nil {
		return Movement{}, Movement{}, err
	}
	s.afterCommit(ctx, out)
	s.afterCommit(ctx, in)
	return out, in, nil
}

// Availability returns the advisory {onHand, reserved, available} view. No
// row lock is held between this check and any later sale commit.
func (s *Service) Availability(ctx context.Context, variantID, locationID int64) (Availability, error) {
	level, err := s.repo.GetLevel(ctx, variantID, locationID)
	if err != nil {
		if errors.Is(err, ErrLevelNotFound) {
			return Availability{}, nil
		}
		return Availability{}, err
	}
	return Availability{
		OnHand:    level.QuantityOnHand,
		Reserved:  level.QuantityReserved,
		Available: level.Available(),
	}, nil
}

// Movements lists the ledger for a (variant, location) pair.
func (s *Service) Movements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.VariantID == 0 || filter.LocationID == 0 {
		return nil, errors.New("stock: variant and location required")
	}
	return s.repo.ListMovements(ctx, filter)
}

func (s *Service) post(ctx context.Context, input DeltaInput) (Movement, error) {
	var movement Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		var err error
		movement, err = ApplyDelta(ctx, tx, input)
		return err
	})
	if err != nil {
		return Movement{}, err
	}
	s.afterCommit(ctx, movement)
	return movement, nil
}

func (s *Service) afterCommit(ctx context.Context, m Movement) {
	if s.metrics != nil {
		s.metrics.StockMovement(string(m.Type))
	}
	if s.events != nil {
		s.events.Publish(ctx, realtime.EventInventoryUpdated, m.LocationID, map[string]any{
			"variant_id":       m.VariantID,
			"quantity_on_hand": m.QuantityAfter,
		})
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  m.ActorID,
			Action:   fmt.Sprintf("stock:%s", m.Type),
			Entity:   "stock_movement",
			EntityID: fmt.Sprintf("%d", m.ID),
			Meta: map[string]any{
				"variant_id":  m.VariantID,
				"location_id": m.LocationID,
				"delta":       m.QuantityChange,
				"after":       m.QuantityAfter,
			},
		})
	}
}
