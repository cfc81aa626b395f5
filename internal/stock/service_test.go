package stock

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	levels    map[string]Level
	movements []Movement
	nextID    int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{levels: make(map[string]Level)}
}

func levelKey(variantID, locationID int64) string {
	return fmt.Sprintf("%d:%d", variantID, locationID)
}

func (s *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return fn(ctx, s)
}

func (s *memoryStore) GetLevel(ctx context.Context, variantID, locationID int64) (Level, error) {
	if level, ok := s.levels[levelKey(variantID, locationID)]; ok {
		return level, nil
	}
	return Level{}, ErrLevelNotFound
}

func (s *memoryStore) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	out := make([]Movement, len(s.movements))
	copy(out, s.movements)
	return out, nil
}

func (s *memoryStore) GetLevelForUpdate(ctx context.Context, variantID, locationID int64) (Level, error) {
	return s.GetLevel(ctx, variantID, locationID)
}

func (s *memoryStore) CreateLevel(ctx context.Context, variantID, locationID int64) error {
	key := levelKey(variantID, locationID)
	if _, ok := s.levels[key]; !ok {
		s.levels[key] = Level{VariantID: variantID, LocationID: locationID}
	}
	return nil
}

func (s *memoryStore) SetOnHand(ctx context.Context, variantID, locationID, qty int64) error {
	key := levelKey(variantID, locationID)
	level, ok := s.levels[key]
	if !ok {
		return ErrLevelNotFound
	}
	level.QuantityOnHand = qty
	s.levels[key] = level
	return nil
}

func (s *memoryStore) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	s.nextID++
	m.ID = s.nextID
	s.movements = append(s.movements, m)
	return m.ID, nil
}

func TestApplyDeltaInitializesMissingLevel(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	m, err := ApplyDelta(ctx, store, DeltaInput{
		VariantID: 1, LocationID: 1, Delta: -3,
		Type: TransactionTypeSale, ReferenceType: ReferenceSale, ReferenceID: 10,
	})
	require.NoError(t, err)
	require.Equal(t, int64(0), m.QuantityBefore)
	require.Equal(t, int64(-3), m.QuantityAfter)

	level, err := store.GetLevel(ctx, 1, 1)
	require.NoError(t, err)
	require.Equal(t, int64(-3), level.QuantityOnHand)
}

func TestLedgerAndLevelNeverDiverge(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	deltas := []int64{10, -3, -4, 5, -6}
	types := []TransactionType{
		TransactionTypeReceive, TransactionTypeSale, TransactionTypeSale,
		TransactionTypeReceive, TransactionTypeOnlineSale,
	}
	for i, d := range deltas {
		_, err := ApplyDelta(ctx, store, DeltaInput{VariantID: 2, LocationID: 1, Delta: d, Type: types[i]})
		require.NoError(t, err)
	}

	var sum int64
	for _, m := range store.movements {
		sum += m.QuantityChange
	}
	level, err := store.GetLevel(ctx, 2, 1)
	require.NoError(t, err)
	require.Equal(t, sum, level.QuantityOnHand)
}

func TestOversellPushesOnHandNegative(t *testing.T) {
	store := newMemoryStore()
	ctx := context.Background()

	_, err := ApplyDelta(ctx, store, DeltaInput{VariantID: 3, LocationID: 1, Delta: 1, Type: TransactionTypeReceive})
	require.NoError(t, err)

	// Two near-simultaneous checkouts of the last unit both go through.
	for i := 0; i < 2; i++ {
		_, err := ApplyDelta(ctx, store, DeltaInput{VariantID: 3, LocationID: 1, Delta: -1, Type: TransactionTypeSale})
		require.NoError(t, err)
	}

	level, err := store.GetLevel(ctx, 3, 1)
	require.NoError(t, err)
	require.Equal(t, int64(-1), level.QuantityOnHand)
}

func TestAdjustmentRejectsNegativeResult(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Adjust(ctx, AdjustInput{VariantID: 4, LocationID: 1, Delta: -1, ActorID: 9})
	require.ErrorIs(t, err, ErrNegativeAdjustment)

	// The failed adjustment left no movement behind.
	require.Empty(t, store.movements)
}

func TestTransferPairsMovements(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Receive(ctx, ReceiveInput{VariantID: 5, LocationID: 1, Quantity: 20, ActorID: 9})
	require.NoError(t, err)

	out, in, err := svc.Transfer(ctx, TransferInput{VariantID: 5, FromLocation: 1, ToLocation: 2, Quantity: 5, ActorID: 9})
	require.NoError(t, err)
	require.Equal(t, int64(15), out.QuantityAfter)
	require.Equal(t, int64(5), in.QuantityAfter)

	_, _, err = svc.Transfer(ctx, TransferInput{VariantID: 5, FromLocation: 1, ToLocation: 2, Quantity: 50, ActorID: 9})
	require.Error(t, err)
}

func TestAvailabilityZeroForUnknownVariant(t *testing.T) {
	store := newMemoryStore()
	svc := NewService(store, nil, nil, nil)

	availability, err := svc.Availability(context.Background(), 99, 1)
	require.NoError(t, err)
	require.Equal(t, Availability{}, availability)
}
