package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tillworks/tillworks/internal/catalog"
	"github.com/tillworks/tillworks/internal/shared"
	"github.com/tillworks/tillworks/internal/stock"
)

type memOrderRepo struct {
	orders    map[int64]*Order
	levels    map[string]stock.Level
	movements []stock.Movement
	counters  map[string]int64

	nextOrderID    int64
	nextMovementID int64
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders:   make(map[int64]*Order),
		levels:   make(map[string]stock.Level),
		counters: make(map[string]int64),
	}
}

func (r *memOrderRepo) snapshot() *memOrderRepo {
	cp := newMemOrderRepo()
	for id, o := range r.orders {
		dup := *o
		dup.Items = append([]Item(nil), o.Items...)
		cp.orders[id] = &dup
	}
	for k, v := range r.levels {
		cp.levels[k] = v
	}
	cp.movements = append([]stock.Movement(nil), r.movements...)
	for k, v := range r.counters {
		cp.counters[k] = v
	}
	cp.nextOrderID = r.nextOrderID
	cp.nextMovementID = r.nextMovementID
	return cp
}

func (r *memOrderRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snap := r.snapshot()
	if err := fn(ctx, (*memOrderTx)(r)); err != nil {
		r.orders = snap.orders
		r.levels = snap.levels
		r.movements = snap.movements
		r.counters = snap.counters
		r.nextOrderID = snap.nextOrderID
		r.nextMovementID = snap.nextMovementID
		return err
	}
	return nil
}

func (r *memOrderRepo) Get(ctx context.Context, orderID int64) (*Order, error) {
	o, ok := r.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	dup := *o
	return &dup, nil
}

func (r *memOrderRepo) List(ctx context.Context, status Status, limit int) ([]Order, error) {
	var out []Order
	for _, o := range r.orders {
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

type memOrderTx memOrderRepo

func (t *memOrderTx) NextOrderNumber(ctx context.Context, date time.Time) (string, error) {
	key := date.Format("2006-01-02")
	t.counters[key]++
	return fmt.Sprintf("ONL-%s-%d", date.Format("20060102"), t.counters[key]), nil
}

func (t *memOrderTx) InsertOrder(ctx context.Context, order Order) (int64, error) {
	t.nextOrderID++
	order.ID = t.nextOrderID
	order.CreatedAt = time.Now()
	t.orders[order.ID] = &order
	return order.ID, nil
}

func (t *memOrderTx) InsertItem(ctx context.Context, item Item) error {
	o, ok := t.orders[item.OrderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Items = append(o.Items, item)
	return nil
}

func (t *memOrderTx) GetForUpdate(ctx context.Context, orderID int64) (*Order, error) {
	o, ok := t.orders[orderID]
	if !ok {
		return nil, ErrOrderNotFound
	}
	dup := *o
	return &dup, nil
}

func (t *memOrderTx) UpdateStatus(ctx context.Context, orderID int64, status Status, processedBy *int64) error {
	o, ok := t.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = status
	if processedBy != nil {
		now := time.Now()
		o.ProcessedBy = processedBy
		o.ProcessedAt = &now
	}
	return nil
}

func (t *memOrderTx) Stock() stock.TxStore {
	return (*memOrderStock)(t)
}

type memOrderStock memOrderRepo

func levelKey(variantID, locationID int64) string {
	return fmt.Sprintf("%d:%d", variantID, locationID)
}

func (s *memOrderStock) GetLevelForUpdate(ctx context.Context, variantID, locationID int64) (stock.Level, error) {
	if level, ok := s.levels[levelKey(variantID, locationID)]; ok {
		return level, nil
	}
	return stock.Level{}, stock.ErrLevelNotFound
}

func (s *memOrderStock) CreateLevel(ctx context.Context, variantID, locationID int64) error {
	key := levelKey(variantID, locationID)
	if _, ok := s.levels[key]; !ok {
		s.levels[key] = stock.Level{VariantID: variantID, LocationID: locationID}
	}
	return nil
}

func (s *memOrderStock) SetOnHand(ctx context.Context, variantID, locationID, qty int64) error {
	key := levelKey(variantID, locationID)
	level, ok := s.levels[key]
	if !ok {
		return stock.ErrLevelNotFound
	}
	level.QuantityOnHand = qty
	s.levels[key] = level
	return nil
}

func (s *memOrderStock) InsertMovement(ctx context.Context, m stock.Movement) (int64, error) {
	s.nextMovementID++
	m.ID = s.nextMovementID
	s.movements = append(s.movements, m)
	return m.ID, nil
}

type memCatalog struct {
	variants map[int64]catalog.Variant
}

func (c *memCatalog) GetVariant(ctx context.Context, variantID int64) (catalog.Variant, error) {
	v, ok := c.variants[variantID]
	if !ok {
		return catalog.Variant{}, catalog.ErrVariantNotFound
	}
	return v, nil
}

// The pg-backed repository must satisfy the same port the fake does.
var _ CatalogPort = (*catalog.Repository)(nil)

type memIdempotency struct {
	keys map[string]bool
}

func (i *memIdempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if i.keys == nil {
		i.keys = make(map[string]bool)
	}
	if i.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	i.keys[key] = true
	return nil
}

func (i *memIdempotency) Delete(ctx context.Context, key string) error {
	delete(i.keys, key)
	return nil
}

func testCatalog() *memCatalog {
	return &memCatalog{variants: map[int64]catalog.Variant{
		1: {ID: 1, ProductID: 1, SKU: "TS-BLK-M", Name: "T-Shirt Black M", Price: 1500, Active: true},
		2: {ID: 2, ProductID: 1, SKU: "TS-BLK-L", Name: "T-Shirt Black L", Price: 1500, Active: true},
		3: {ID: 3, ProductID: 2, SKU: "HD-GRY-S", Name: "Hoodie Grey S", Price: 4500, Active: false},
	}}
}

func newOrderService(repo *memOrderRepo) *Service {
	return NewService(repo, testCatalog(), nil, nil, nil, nil, nil)
}

func submitOrder(t *testing.T, svc *Service, items ...SubmitItem) SubmitResult {
	t.Helper()
	result, err := svc.Submit(context.Background(), SubmitInput{
		CustomerName: "Dana Berg",
		Items:        items,
	})
	require.NoError(t, err)
	return result
}

func TestSubmitUsesServerSidePrices(t *testing.T) {
	repo := newMemOrderRepo()
	svc := newOrderService(repo)

	result := submitOrder(t, svc,
		SubmitItem{VariantID: 1, Quantity: 2},
		SubmitItem{VariantID: 2, Quantity: 1},
	)
	require.Equal(t, int64(4500), result.TotalAmount) // 2*1500 + 1500
	require.NotEmpty(t, result.OrderNumber)

	order, err := repo.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, order.Status)
	require.Len(t, order.Items, 2)
	require.Equal(t, int64(1500), order.Items[0].UnitPrice)

	// Submission never touches stock.
	require.Empty(t, repo.movements)
}

func TestSubmitRejectsUnavailableVariant(t *testing.T) {
	repo := newMemOrderRepo()
	svc := newOrderService(repo)

	_, err := svc.Submit(context.Background(), SubmitInput{
		CustomerName: "Dana Berg",
		Items: []SubmitItem{
			{VariantID: 1, Quantity: 1},
			{VariantID: 3, Quantity: 1},
		},
	})
	require.ErrorIs(t, err, ErrVariantUnavailable)
	require.Contains(t, err.Error(), "HD-GRY-S")
	require.Empty(t, repo.orders)

	_, err = svc.Submit(context.Background(), SubmitInput{
		CustomerName: "Dana Berg",
		Items:        []SubmitItem{{VariantID: 404, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrVariantUnavailable)
	require.Contains(t, err.Error(), "404")
}

func TestSubmitIdempotencyKey(t *testing.T) {
	repo := newMemOrderRepo()
	idem := &memIdempotency{}
	svc := NewService(repo, testCatalog(), nil, nil, idem, nil, nil)

	input := SubmitInput{
		CustomerName:   "Dana Berg",
		Items:          []SubmitItem{{VariantID: 1, Quantity: 1}},
		IdempotencyKey: "retry-abc",
	}
	_, err := svc.Submit(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	require.Len(t, repo.orders, 1)
}

func TestProcessDeductsOnceAndSecondCallRejected(t *testing.T) {
	repo := newMemOrderRepo()
	repo.levels[levelKey(1, 1)] = stock.Level{VariantID: 1, LocationID: 1, QuantityOnHand: 10}
	svc := newOrderService(repo)

	result := submitOrder(t, svc, SubmitItem{VariantID: 1, Quantity: 4})
	require.NoError(t, svc.UpdateStatus(context.Background(), result.OrderID, StatusConfirmed, 5))

	require.NoError(t, svc.Process(context.Background(), result.OrderID, 1, 5))
	require.Equal(t, int64(6), repo.levels[levelKey(1, 1)].QuantityOnHand)
	require.Len(t, repo.movements, 1)
	require.Equal(t, stock.TransactionTypeOnlineSale, repo.movements[0].Type)
	require.Equal(t, int64(-4), repo.movements[0].QuantityChange)

	order, err := repo.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, order.Status)
	require.Equal(t, int64(5), *order.ProcessedBy)
	require.NotNil(t, order.ProcessedAt)

	// The second call fails on the status guard and moves nothing.
	err = svc.Process(context.Background(), result.OrderID, 1, 5)
	require.ErrorIs(t, err, ErrOrderProcessed)
	require.Equal(t, int64(6), repo.levels[levelKey(1, 1)].QuantityOnHand)
	require.Len(t, repo.movements, 1)
}

func TestProcessRejectsPendingAndCancelled(t *testing.T) {
	repo := newMemOrderRepo()
	svc := newOrderService(repo)

	pending := submitOrder(t, svc, SubmitItem{VariantID: 1, Quantity: 1})
	err := svc.Process(context.Background(), pending.OrderID, 1, 5)
	require.ErrorIs(t, err, ErrIllegalTransition)

	cancelled := submitOrder(t, svc, SubmitItem{VariantID: 1, Quantity: 1})
	require.NoError(t, svc.UpdateStatus(context.Background(), cancelled.OrderID, StatusCancelled, 5))
	err = svc.Process(context.Background(), cancelled.OrderID, 1, 5)
	require.ErrorIs(t, err, ErrOrderCancelled)

	require.Empty(t, repo.movements)
}

func TestUpdateStatusEnforcesTransitions(t *testing.T) {
	repo := newMemOrderRepo()
	svc := newOrderService(repo)
	ctx := context.Background()

	result := submitOrder(t, svc, SubmitItem{VariantID: 1, Quantity: 1})

	// pending straight to ready is an illegal jump.
	err := svc.UpdateStatus(ctx, result.OrderID, StatusReady, 5)
	require.ErrorIs(t, err, ErrIllegalTransition)

	require.NoError(t, svc.UpdateStatus(ctx, result.OrderID, StatusConfirmed, 5))
	require.NoError(t, svc.UpdateStatus(ctx, result.OrderID, StatusProcessing, 5))
	require.NoError(t, svc.UpdateStatus(ctx, result.OrderID, StatusReady, 5))
	require.NoError(t, svc.UpdateStatus(ctx, result.OrderID, StatusCompleted, 5))

	// completed is terminal.
	err = svc.UpdateStatus(ctx, result.OrderID, StatusProcessing, 5)
	require.ErrorIs(t, err, ErrIllegalTransition)

	// cancel is only reachable from pending.
	other := submitOrder(t, svc, SubmitItem{VariantID: 1, Quantity: 1})
	require.NoError(t, svc.UpdateStatus(ctx, other.OrderID, StatusConfirmed, 5))
	err = svc.UpdateStatus(ctx, other.OrderID, StatusCancelled, 5)
	require.ErrorIs(t, err, ErrIllegalTransition)

	err = svc.UpdateStatus(ctx, other.OrderID, "shipped", 5)
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestCancelledSkipsProcessedStamp(t *testing.T) {
	repo := newMemOrderRepo()
	svc := newOrderService(repo)

	result := submitOrder(t, svc, SubmitItem{VariantID: 1, Quantity: 1})
	require.NoError(t, svc.UpdateStatus(context.Background(), result.OrderID, StatusCancelled, 5))

	order, err := repo.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, order.Status)
	require.Nil(t, order.ProcessedBy)
	require.Nil(t, order.ProcessedAt)
}

func TestProcessAllowsOversell(t *testing.T) {
	repo := newMemOrderRepo()
	repo.levels[levelKey(1, 1)] = stock.Level{VariantID: 1, LocationID: 1, QuantityOnHand: 1}
	svc := newOrderService(repo)

	result := submitOrder(t, svc, SubmitItem{VariantID: 1, Quantity: 3})
	require.NoError(t, svc.UpdateStatus(context.Background(), result.OrderID, StatusConfirmed, 5))
	require.NoError(t, svc.Process(context.Background(), result.OrderID, 1, 5))

	require.Equal(t, int64(-2), repo.levels[levelKey(1, 1)].QuantityOnHand)
}
