package shift

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memShiftRepo struct {
	mu      sync.Mutex
	shifts  map[int64]*Shift
	nextID  int64
	cashIn  map[int64]int64
	cashOut map[int64]int64
}

func newMemShiftRepo() *memShiftRepo {
	return &memShiftRepo{
		shifts:  make(map[int64]*Shift),
		cashIn:  make(map[int64]int64),
		cashOut: make(map[int64]int64),
	}
}

// Open mirrors the partial unique index: the duplicate check and the insert
// happen under one lock so concurrent clock-ins serialize.
func (r *memShiftRepo) Open(ctx context.Context, sh Shift) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.shifts {
		if existing.ActorID == sh.ActorID && existing.Status == StatusOpen {
			return 0, ErrShiftAlreadyOpen
		}
	}
	r.nextID++
	sh.ID = r.nextID
	sh.Status = StatusOpen
	sh.OpenedAt = time.Now()
	r.shifts[sh.ID] = &sh
	return sh.ID, nil
}

func (r *memShiftRepo) Get(ctx context.Context, shiftID int64) (*Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sh, ok := r.shifts[shiftID]
	if !ok {
		return nil, ErrShiftNotFound
	}
	dup := *sh
	return &dup, nil
}

func (r *memShiftRepo) ListByLocation(ctx context.Context, locationID int64, limit int) ([]Shift, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Shift
	for _, sh := range r.shifts {
		if sh.LocationID == locationID {
			out = append(out, *sh)
		}
	}
	return out, nil
}

func (r *memShiftRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(ctx, (*memShiftTx)(r))
}

type memShiftTx memShiftRepo

func (t *memShiftTx) GetOpenForUpdate(ctx context.Context, actorID int64) (*Shift, error) {
	for _, sh := range t.shifts {
		if sh.ActorID == actorID && sh.Status == StatusOpen {
			dup := *sh
			return &dup, nil
		}
	}
	return nil, ErrNoOpenShift
}

func (t *memShiftTx) GetForUpdate(ctx context.Context, shiftID int64) (*Shift, error) {
	sh, ok := t.shifts[shiftID]
	if !ok {
		return nil, ErrShiftNotFound
	}
	dup := *sh
	return &dup, nil
}

func (t *memShiftTx) CashTotals(ctx context.Context, shiftID int64) (int64, int64, error) {
	return t.cashIn[shiftID], t.cashOut[shiftID], nil
}

func (t *memShiftTx) Close(ctx context.Context, params CloseParams) error {
	sh, ok := t.shifts[params.ShiftID]
	if !ok || sh.Status != StatusOpen {
		return ErrNoOpenShift
	}
	now := time.Now()
	sh.Status = StatusClosed
	sh.ClosingCash = &params.ClosingCash
	sh.ExpectedCash = &params.ExpectedCash
	sh.CashVariance = &params.Variance
	sh.VarianceStatus = params.VarianceStatus
	sh.Notes = params.Notes
	sh.ClosedAt = &now
	return nil
}

func (t *memShiftTx) Reconcile(ctx context.Context, shiftID, approverID int64, notes string) error {
	sh, ok := t.shifts[shiftID]
	if !ok || sh.Status != StatusClosed {
		return ErrShiftNotClosed
	}
	now := time.Now()
	sh.Status = StatusReconciled
	sh.ApproverID = &approverID
	if notes != "" {
		sh.Notes = notes
	}
	sh.ReconciledAt = &now
	return nil
}

func TestClockInRejectsSecondOpenShift(t *testing.T) {
	repo := newMemShiftRepo()
	svc := NewService(repo, nil, nil, 500, nil)

	_, err := svc.ClockIn(context.Background(), ClockInInput{ActorID: 1, LocationID: 1, OpeningCash: 5000})
	require.NoError(t, err)

	_, err = svc.ClockIn(context.Background(), ClockInInput{ActorID: 1, LocationID: 1, OpeningCash: 5000})
	require.ErrorIs(t, err, ErrShiftAlreadyOpen)

	// A different actor is unaffected.
	_, err = svc.ClockIn(context.Background(), ClockInInput{ActorID: 2, LocationID: 1, OpeningCash: 3000})
	require.NoError(t, err)
}

func TestConcurrentClockInsOnlyOneSucceeds(t *testing.T) {
	repo := newMemShiftRepo()
	svc := NewService(repo, nil, nil, 500, nil)

	const attempts = 16
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ClockIn(context.Background(), ClockInInput{ActorID: 7, LocationID: 1, OpeningCash: 1000})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, ErrShiftAlreadyOpen)
		}
	}
	require.Equal(t, 1, succeeded)

	var open int
	for _, sh := range repo.shifts {
		if sh.ActorID == 7 && sh.Status == StatusOpen {
			open++
		}
	}
	require.Equal(t, 1, open)
}

func TestClockOutVarianceWithinThreshold(t *testing.T) {
	repo := newMemShiftRepo()
	svc := NewService(repo, nil, nil, 500, nil)

	shiftID, err := svc.ClockIn(context.Background(), ClockInInput{ActorID: 1, LocationID: 1, OpeningCash: 5000})
	require.NoError(t, err)
	repo.cashIn[shiftID] = 12000
	repo.cashOut[shiftID] = 500

	result, err := svc.ClockOut(context.Background(), ClockOutInput{ActorID: 1, ClosingCash: 16600})
	require.NoError(t, err)
	require.Equal(t, int64(16500), result.ExpectedCash)
	require.Equal(t, int64(100), result.Variance)
	require.Equal(t, VarianceOK, result.VarianceStatus)

	sh, err := svc.Get(context.Background(), shiftID)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, sh.Status)
	require.Equal(t, int64(16500), *sh.ExpectedCash)
	require.Equal(t, int64(100), *sh.CashVariance)
}

func TestClockOutVarianceFlagged(t *testing.T) {
	repo := newMemShiftRepo()
	svc := NewService(repo, nil, nil, 500, nil)

	shiftID, err := svc.ClockIn(context.Background(), ClockInInput{ActorID: 1, LocationID: 1, OpeningCash: 5000})
	require.NoError(t, err)
	repo.cashIn[shiftID] = 12000
	repo.cashOut[shiftID] = 500

	result, err := svc.ClockOut(context.Background(), ClockOutInput{ActorID: 1, ClosingCash: 15000})
	require.NoError(t, err)
	require.Equal(t, int64(-1500), result.Variance)
	require.Equal(t, VarianceFlagged, result.VarianceStatus)
}

func TestClockOutWithoutOpenShift(t *testing.T) {
	repo := newMemShiftRepo()
	svc := NewService(repo, nil, nil, 500, nil)

	_, err := svc.ClockOut(context.Background(), ClockOutInput{ActorID: 1, ClosingCash: 1000})
	require.ErrorIs(t, err, ErrNoOpenShift)
}

func TestClosedFiguresAreFrozen(t *testing.T) {
	repo := newMemShiftRepo()
	svc := NewService(repo, nil, nil, 500, nil)

	shiftID, err := svc.ClockIn(context.Background(), ClockInInput{ActorID: 1, LocationID: 1, OpeningCash: 5000})
	require.NoError(t, err)
	repo.cashIn[shiftID] = 10000

	_, err = svc.ClockOut(context.Background(), ClockOutInput{ActorID: 1, ClosingCash: 15000})
	require.NoError(t, err)

	// Later cash activity must not move the frozen figures.
	repo.cashIn[shiftID] = 99999
	sh, err := svc.Get(context.Background(), shiftID)
	require.NoError(t, err)
	require.Equal(t, int64(15000), *sh.ExpectedCash)
	require.Equal(t, int64(0), *sh.CashVariance)
}

func TestReconcileGuards(t *testing.T) {
	repo := newMemShiftRepo()
	svc := NewService(repo, nil, nil, 500, nil)

	shiftID, err := svc.ClockIn(context.Background(), ClockInInput{ActorID: 1, LocationID: 1, OpeningCash: 5000})
	require.NoError(t, err)

	// OPEN cannot be reconciled.
	require.ErrorIs(t, svc.Reconcile(context.Background(), shiftID, 99, "early"), ErrShiftNotClosed)

	_, err = svc.ClockOut(context.Background(), ClockOutInput{ActorID: 1, ClosingCash: 5000})
	require.NoError(t, err)
	require.NoError(t, svc.Reconcile(context.Background(), shiftID, 99, "counted twice"))

	sh, err := svc.Get(context.Background(), shiftID)
	require.NoError(t, err)
	require.Equal(t, StatusReconciled, sh.Status)
	require.Equal(t, int64(99), *sh.ApproverID)

	// RECONCILED is terminal.
	require.ErrorIs(t, svc.Reconcile(context.Background(), shiftID, 99, "again"), ErrShiftNotClosed)
}

func TestClockInRejectsNegativeFloat(t *testing.T) {
	repo := newMemShiftRepo()
	svc := NewService(repo, nil, nil, 500, nil)

	_, err := svc.ClockIn(context.Background(), ClockInInput{ActorID: 1, LocationID: 1, OpeningCash: -1})
	require.ErrorIs(t, err, ErrInvalidCash)
}

func TestVarianceClassificationBoundary(t *testing.T) {
	require.Equal(t, VarianceOK, ClassifyVariance(500, 500))
	require.Equal(t, VarianceOK, ClassifyVariance(-500, 500))
	require.Equal(t, VarianceFlagged, ClassifyVariance(501, 500))
	require.Equal(t, VarianceFlagged, ClassifyVariance(-501, 500))
	require.Equal(t, VarianceOK, ClassifyVariance(0, 0))
}
