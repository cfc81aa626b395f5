package shift

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tillworks/tillworks/internal/realtime"
	"github.com/tillworks/tillworks/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	Open(ctx context.Context, sh Shift) (int64, error)
	Get(ctx context.Context, shiftID int64) (*Shift, error)
	ListByLocation(ctx context.Context, locationID int64, limit int) ([]Shift, error)
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// EventPort publishes location-scoped events after commit.
type EventPort interface {
	Publish(ctx context.Context, eventType string, locationID int64, payload map[string]any)
}

// Service coordinates the shift lifecycle.
type Service struct {
	repo              RepositoryPort
	audit             AuditPort
	events            EventPort
	varianceThreshold int64
	logger            *slog.Logger
}

// NewService builds Service. varianceThreshold is in currency minor units.
func NewService(repo RepositoryPort, audit AuditPort, events EventPort, varianceThreshold int64, logger *slog.Logger) *Service {
	return &Service{
		repo:              repo,
		audit:             audit,
		events:            events,
		varianceThreshold: varianceThreshold,
		logger:            logger,
	}
}

// ClockInInput opens a shift.
type ClockInInput struct {
	ActorID     int64
	LocationID  int64
	OpeningCash int64
	Terminal    string
}

// ClockOutInput closes the actor's open shift.
type ClockOutInput struct {
	ActorID     int64
	ClosingCash int64
	Notes       string
}

// CloseResult reports the frozen reconciliation figures.
type CloseResult struct {
	ShiftID        int64
	OpeningCash    int64
	CashIn         int64
	CashOut        int64
	ExpectedCash   int64
	ClosingCash    int64
	Variance       int64
	VarianceStatus VarianceStatus
}

// ClockIn opens a shift for the actor. The uniqueness of the open shift is
// enforced by the repository insert, not by a read-then-write check.
func (s *Service) ClockIn(ctx context.Context, input ClockInInput) (int64, error) {
	if input.OpeningCash < 0 {
		return 0, ErrInvalidCash
	}
	shiftID, err := s.repo.Open(ctx, Shift{
		ActorID:     input.ActorID,
		LocationID:  input.LocationID,
		Terminal:    input.Terminal,
		OpeningCash: input.OpeningCash,
	})
	if err != nil {
		return 0, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "shift:clock_in",
			Entity:   "shift",
			EntityID: fmt.Sprintf("%d", shiftID),
			Meta:     map[string]any{"location_id": input.LocationID, "opening_cash": input.OpeningCash},
		})
	}
	return shiftID, nil
}

// ClockOut closes the actor's open shift. Expected cash is opening float plus
// cash tendered minus change given, computed once here and frozen; later sale
// voids do not reopen the figures.
func (s *Service) ClockOut(ctx context.Context, input ClockOutInput) (CloseResult, error) {
	if input.ClosingCash < 0 {
		return CloseResult{}, ErrInvalidCash
	}

	var result CloseResult
	var locationID int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sh, err := tx.GetOpenForUpdate(ctx, input.ActorID)
		if err != nil {
			return err
		}
		cashIn, cashOut, err := tx.CashTotals(ctx, sh.ID)
		if err != nil {
			return err
		}

		expected := sh.OpeningCash + cashIn - cashOut
		variance := input.ClosingCash - expected
		status := ClassifyVariance(variance, s.varianceThreshold)

		if err := tx.Close(ctx, CloseParams{
			ShiftID:        sh.ID,
			ClosingCash:    input.ClosingCash,
			ExpectedCash:   expected,
			Variance:       variance,
			VarianceStatus: status,
			Notes:          input.Notes,
		}); err != nil {
			return err
		}

		locationID = sh.LocationID
		result = CloseResult{
			ShiftID:        sh.ID,
			OpeningCash:    sh.OpeningCash,
			CashIn:         cashIn,
			CashOut:        cashOut,
			ExpectedCash:   expected,
			ClosingCash:    input.ClosingCash,
			Variance:       variance,
			VarianceStatus: status,
		}
		return nil
	})
	if err != nil {
		return CloseResult{}, err
	}

	if s.events != nil {
		s.events.Publish(ctx, realtime.EventShiftClosed, locationID, map[string]any{
			"shift_id":        result.ShiftID,
			"variance":        result.Variance,
			"variance_status": string(result.VarianceStatus),
		})
	}
	if result.VarianceStatus == VarianceFlagged && s.logger != nil {
		s.logger.Warn("shift closed with flagged cash variance",
			slog.Int64("shift_id", result.ShiftID),
			slog.Int64("variance", result.Variance))
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "shift:clock_out",
			Entity:   "shift",
			EntityID: fmt.Sprintf("%d", result.ShiftID),
			Meta: map[string]any{
				"expected_cash":   result.ExpectedCash,
				"closing_cash":    result.ClosingCash,
				"variance":        result.Variance,
				"variance_status": string(result.VarianceStatus),
			},
		})
	}
	return result, nil
}

// Reconcile records manager sign-off on a closed shift.
func (s *Service) Reconcile(ctx context.Context, shiftID, approverID int64, notes string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sh, err := tx.GetForUpdate(ctx, shiftID)
		if err != nil {
			return err
		}
		if !sh.Status.CanReconcile() {
			return fmt.Errorf("%w: status %s", ErrShiftNotClosed, sh.Status)
		}
		return tx.Reconcile(ctx, shiftID, approverID, notes)
	})
	if err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  approverID,
			Action:   "shift:reconcile",
			Entity:   "shift",
			EntityID: fmt.Sprintf("%d", shiftID),
		})
	}
	return nil
}

// Get loads a shift.
func (s *Service) Get(ctx context.Context, shiftID int64) (*Shift, error) {
	return s.repo.Get(ctx, shiftID)
}

// ListByLocation lists recent shifts at a location.
func (s *Service) ListByLocation(ctx context.Context, locationID int64, limit int) ([]Shift, error) {
	return s.repo.ListByLocation(ctx, locationID, limit)
}
