package sales

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tillworks/tillworks/internal/stock"
)

type memRepo struct {
	sales     map[int64]*Sale
	levels    map[string]stock.Level
	movements []stock.Movement
	counters  map[string]int64
	customers map[int64]*memCustomer

	nextSaleID     int64
	nextItemID     int64
	nextMovementID int64

	failPayments bool
}

type memCustomer struct {
	phone      string
	optedIn    bool
	totalSpent int64
	visits     int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		sales:     make(map[int64]*Sale),
		levels:    make(map[string]stock.Level),
		counters:  make(map[string]int64),
		customers: make(map[int64]*memCustomer),
	}
}

func (r *memRepo) snapshot() *memRepo {
	cp := newMemRepo()
	for id, s := range r.sales {
		dup := *s
		dup.Items = append([]Item(nil), s.Items...)
		dup.Payments = append([]Payment(nil), s.Payments...)
		cp.sales[id] = &dup
	}
	for k, v := range r.levels {
		cp.levels[k] = v
	}
	cp.movements = append([]stock.Movement(nil), r.movements...)
	for k, v := range r.counters {
		cp.counters[k] = v
	}
	for id, c := range r.customers {
		dup := *c
		cp.customers[id] = &dup
	}
	cp.nextSaleID = r.nextSaleID
	cp.nextItemID = r.nextItemID
	cp.nextMovementID = r.nextMovementID
	return cp
}

func (r *memRepo) restore(snap *memRepo) {
	r.sales = snap.sales
	r.levels = snap.levels
	r.movements = snap.movements
	r.counters = snap.counters
	r.customers = snap.customers
	r.nextSaleID = snap.nextSaleID
	r.nextItemID = snap.nextItemID
	r.nextMovementID = snap.nextMovementID
}

// WithTx emulates transactional rollback over the in-memory state.
func (r *memRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snap := r.snapshot()
	if err := fn(ctx, (*memTx)(r)); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *memRepo) GetSale(ctx context.Context, saleID int64) (*Sale, error) {
	s, ok := r.sales[saleID]
	if !ok {
		return nil, ErrSaleNotFound
	}
	dup := *s
	return &dup, nil
}

func (r *memRepo) ListParked(ctx context.Context, locationID int64) ([]Sale, error) {
	var out []Sale
	for _, s := range r.sales {
		if s.LocationID == locationID && s.Status == StatusParked {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *memRepo) GetCustomerContact(ctx context.Context, customerID int64) (string, bool, error) {
	c, ok := r.customers[customerID]
	if !ok {
		return "", false, nil
	}
	return c.phone, c.optedIn, nil
}

type memTx memRepo

func (t *memTx) NextSaleNumber(ctx context.Context, locationID int64, date time.Time) (string, error) {
	key := fmt.Sprintf("%d:%s", locationID, date.Format("2006-01-02"))
	t.counters[key]++
	return fmt.Sprintf("MAIN-%s-%d", date.Format("20060102"), t.counters[key]), nil
}

func (t *memTx) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	t.nextSaleID++
	sale.ID = t.nextSaleID
	sale.CreatedAt = time.Now()
	t.sales[sale.ID] = &sale
	return sale.ID, nil
}

func (t *memTx) InsertItem(ctx context.Context, item Item) (int64, error) {
	t.nextItemID++
	item.ID = t.nextItemID
	s, ok := t.sales[item.SaleID]
	if !ok {
		return 0, ErrSaleNotFound
	}
	s.Items = append(s.Items, item)
	return item.ID, nil
}

func (t *memTx) InsertPayment(ctx context.Context, payment Payment) error {
	if t.failPayments {
		return errors.New("payment insert failed")
	}
	s, ok := t.sales[payment.SaleID]
	if !ok {
		return ErrSaleNotFound
	}
	s.Payments = append(s.Payments, payment)
	return nil
}

func (t *memTx) UpdateSaleStatus(ctx context.Context, saleID int64, status Status, voidedBy int64, reason string) error {
	s, ok := t.sales[saleID]
	if !ok {
		return ErrSaleNotFound
	}
	if status == StatusVoided {
		if s.Status != StatusCompleted {
			return ErrCannotVoid
		}
		s.VoidedBy = &voidedBy
		s.VoidReason = reason
	}
	s.Status = status
	return nil
}

func (t *memTx) IncrementCustomerTotals(ctx context.Context, customerID, amount int64) error {
	c, ok := t.customers[customerID]
	if !ok {
		c = &memCustomer{}
		t.customers[customerID] = c
	}
	c.totalSpent += amount
	c.visits++
	return nil
}

func (t *memTx) DeleteParked(ctx context.Context, saleID int64) error {
	sale, ok := t.sales[saleID]
	if !ok {
		return ErrSaleNotFound
	}
	if sale.Status != StatusParked {
		return ErrNotParked
	}
	delete(t.sales, saleID)
	return nil
}

func (t *memTx) Stock() stock.TxStore {
	return (*memStock)(t)
}

type memStock memRepo

func stockKey(variantID, locationID int64) string {
	return fmt.Sprintf("%d:%d", variantID, locationID)
}

func (s *memStock) GetLevelForUpdate(ctx context.Context, variantID, locationID int64) (stock.Level, error) {
	if level, ok := s.levels[stockKey(variantID, locationID)]; ok {
		return level, nil
	}
	return stock.Level{}, stock.ErrLevelNotFound
}

func (s *memStock) CreateLevel(ctx context.Context, variantID, locationID int64) error {
	key := stockKey(variantID, locationID)
	if _, ok := s.levels[key]; !ok {
		s.levels[key] = stock.Level{VariantID: variantID, LocationID: locationID}
	}
	return nil
}

func (s *memStock) SetOnHand(ctx context.Context, variantID, locationID, qty int64) error {
	key := stockKey(variantID, locationID)
	level, ok := s.levels[key]
	if !ok {
		return stock.ErrLevelNotFound
	}
	level.QuantityOnHand = qty
	s.levels[key] = level
	return nil
}

func (s *memStock) InsertMovement(ctx context.Context, m stock.Movement) (int64, error) {
	s.nextMovementID++
	m.ID = s.nextMovementID
	s.movements = append(s.movements, m)
	return m.ID, nil
}

func (r *memRepo) seedStock(variantID, locationID, qty int64) {
	r.levels[stockKey(variantID, locationID)] = stock.Level{
		VariantID: variantID, LocationID: locationID, QuantityOnHand: qty,
	}
}

func (r *memRepo) onHand(variantID, locationID int64) int64 {
	return r.levels[stockKey(variantID, locationID)].QuantityOnHand
}

type fakeNotifier struct {
	receipts []string
	err      error
}

func (n *fakeNotifier) EnqueueReceiptSMS(ctx context.Context, phone, saleNumber string, totalAmount int64) error {
	if n.err != nil {
		return n.err
	}
	n.receipts = append(n.receipts, phone)
	return nil
}

func newTestService(repo *memRepo) *Service {
	return NewService(repo, nil, nil, nil, nil, nil)
}

func cashPayment(amount int64) []PaymentInput {
	return []PaymentInput{{PaymentMethodID: 1, Amount: amount, TenderedAmount: amount}}
}

func TestCreateSaleTotalsAndDeduction(t *testing.T) {
	repo := newMemRepo()
	repo.seedStock(1, 1, 10)
	svc := newTestService(repo)

	result, err := svc.Create(context.Background(), CreateInput{
		LocationID:     1,
		ActorID:        5,
		Items:          []ItemInput{{VariantID: 1, Quantity: 3, UnitPrice: 1000}},
		Payments:       cashPayment(3200),
		DiscountAmount: 100,
		TaxAmount:      300,
	})
	require.NoError(t, err)
	require.Equal(t, int64(3200), result.TotalAmount) // 3000 - 100 + 300
	require.NotEmpty(t, result.SaleNumber)

	sale, err := repo.GetSale(context.Background(), result.SaleID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, sale.Status)
	require.Equal(t, sale.TotalAmount, sale.Subtotal-sale.DiscountAmount+sale.TaxAmount)

	var paid int64
	for _, p := range sale.Payments {
		paid += p.Amount
	}
	require.GreaterOrEqual(t, paid, sale.TotalAmount)

	require.Equal(t, int64(7), repo.onHand(1, 1))
	require.Len(t, repo.movements, 1)
	require.Equal(t, stock.TransactionTypeSale, repo.movements[0].Type)
	require.Equal(t, int64(-3), repo.movements[0].QuantityChange)
}

func TestCreateSaleInsufficientPayment(t *testing.T) {
	repo := newMemRepo()
	repo.seedStock(1, 1, 10)
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		LocationID: 1,
		ActorID:    5,
		Items:      []ItemInput{{VariantID: 1, Quantity: 2, UnitPrice: 1000}},
		Payments:   cashPayment(1500),
	})
	require.ErrorIs(t, err, ErrInsufficientPayment)
	require.Empty(t, repo.sales)
	require.Equal(t, int64(10), repo.onHand(1, 1))
}

func TestCreateSaleRollsBackOnFailure(t *testing.T) {
	repo := newMemRepo()
	repo.seedStock(1, 1, 10)
	repo.failPayments = true
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), CreateInput{
		LocationID: 1,
		ActorID:    5,
		Items:      []ItemInput{{VariantID: 1, Quantity: 2, UnitPrice: 1000}},
		Payments:   cashPayment(2000),
	})
	require.Error(t, err)

	// No partial sale, no partial stock deduction.
	require.Empty(t, repo.sales)
	require.Empty(t, repo.movements)
	require.Equal(t, int64(10), repo.onHand(1, 1))
}

func TestVoidRoundTripRestoresStock(t *testing.T) {
	repo := newMemRepo()
	repo.seedStock(1, 1, 10)
	svc := newTestService(repo)

	result, err := svc.Create(context.Background(), CreateInput{
		LocationID: 1,
		ActorID:    5,
		Items:      []ItemInput{{VariantID: 1, Quantity: 3, UnitPrice: 1000}},
		Payments:   cashPayment(3000),
	})
	require.NoError(t, err)
	require.Equal(t, int64(7), repo.onHand(1, 1))

	require.NoError(t, svc.Void(context.Background(), result.SaleID, 99, "customer changed mind"))
	require.Equal(t, int64(10), repo.onHand(1, 1))

	require.Len(t, repo.movements, 2)
	require.Equal(t, stock.TransactionTypeSale, repo.movements[0].Type)
	require.Equal(t, int64(-3), repo.movements[0].QuantityChange)
	require.Equal(t, stock.TransactionTypeVoidRestore, repo.movements[1].Type)
	require.Equal(t, int64(3), repo.movements[1].QuantityChange)

	sale, err := repo.GetSale(context.Background(), result.SaleID)
	require.NoError(t, err)
	require.Equal(t, StatusVoided, sale.Status)
	require.Equal(t, int64(99), *sale.VoidedBy)
}

func TestVoidGuards(t *testing.T) {
	repo := newMemRepo()
	repo.seedStock(1, 1, 10)
	svc := newTestService(repo)

	result, err := svc.Create(context.Background(), CreateInput{
		LocationID: 1,
		ActorID:    5,
		Items:      []ItemInput{{VariantID: 1, Quantity: 1, UnitPrice: 500}},
		Payments:   cashPayment(500),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Void(context.Background(), result.SaleID, 99, "first void"))

	// A second void must hit the state guard, not run more restores.
	err = svc.Void(context.Background(), result.SaleID, 99, "second void")
	require.ErrorIs(t, err, ErrCannotVoid)
	require.Equal(t, int64(10), repo.onHand(1, 1))

	// Voiding a parked draft is rejected too.
	parkedID, err := svc.Park(context.Background(), ParkInput{
		LocationID: 1,
		ActorID:    5,
		Items:      []ItemInput{{VariantID: 1, Quantity: 1, UnitPrice: 500}},
	})
	require.NoError(t, err)
	require.ErrorIs(t, svc.Void(context.Background(), parkedID, 99, "nope"), ErrCannotVoid)

	require.ErrorIs(t, svc.Void(context.Background(), result.SaleID, 0, "no approver"), ErrApproverRequired)

	// Two voids racing past the read-side check both reach the guarded
	// update; the transaction of the loser fails whole, restoring nothing.
	err = repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateSaleStatus(ctx, result.SaleID, StatusVoided, 99, "late double void"); err != nil {
			return err
		}
		_, err := stock.ApplyDelta(ctx, tx.Stock(), stock.DeltaInput{
			VariantID: 1, LocationID: 1, Delta: 1,
			Type: stock.TransactionTypeVoidRestore, ReferenceType: stock.ReferenceSale,
			ReferenceID: result.SaleID, ActorID: 99,
		})
		return err
	})
	require.ErrorIs(t, err, ErrCannotVoid)
	require.Equal(t, int64(10), repo.onHand(1, 1))
}

func TestParkedSaleMovesNoStock(t *testing.T) {
	repo := newMemRepo()
	repo.seedStock(1, 1, 10)
	svc := newTestService(repo)

	parkedID, err := svc.Park(context.Background(), ParkInput{
		LocationID: 1,
		ActorID:    5,
		Items:      []ItemInput{{VariantID: 1, Quantity: 4, UnitPrice: 1000}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(10), repo.onHand(1, 1))
	require.Empty(t, repo.movements)

	draft, err := svc.RetrieveParked(context.Background(), parkedID)
	require.NoError(t, err)
	require.Equal(t, StatusParked, draft.Status)
	require.Equal(t, int64(10), repo.onHand(1, 1))

	// Converting the draft deducts stock and removes it in one unit.
	result, err := svc.Create(context.Background(), CreateInput{
		LocationID:   1,
		ActorID:      5,
		Items:        []ItemInput{{VariantID: 1, Quantity: 4, UnitPrice: 1000}},
		Payments:     cashPayment(4000),
		ParkedSaleID: &parkedID,
	})
	require.NoError(t, err)
	require.Equal(t, int64(6), repo.onHand(1, 1))
	_, err = repo.GetSale(context.Background(), parkedID)
	require.ErrorIs(t, err, ErrSaleNotFound)

	sale, err := repo.GetSale(context.Background(), result.SaleID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, sale.Status)
}

func TestParkedConversionRejectsCompletedSale(t *testing.T) {
	repo := newMemRepo()
	repo.seedStock(1, 1, 10)
	svc := newTestService(repo)

	victim, err := svc.Create(context.Background(), CreateInput{
		LocationID: 1,
		ActorID:    5,
		Items:      []ItemInput{{VariantID: 1, Quantity: 2, UnitPrice: 1000}},
		Payments:   cashPayment(2000),
	})
	require.NoError(t, err)
	require.Equal(t, int64(8), repo.onHand(1, 1))

	// A checkout naming a committed sale as its draft must fail whole,
	// leaving the committed sale and the ledger untouched.
	_, err = svc.Create(context.Background(), CreateInput{
		LocationID:   1,
		ActorID:      5,
		Items:        []ItemInput{{VariantID: 1, Quantity: 1, UnitPrice: 1000}},
		Payments:     cashPayment(1000),
		ParkedSaleID: &victim.SaleID,
	})
	require.ErrorIs(t, err, ErrNotParked)

	sale, err := repo.GetSale(context.Background(), victim.SaleID)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, sale.Status)
	require.Equal(t, int64(8), repo.onHand(1, 1))
	require.Len(t, repo.movements, 1)
	require.Len(t, repo.sales, 1)
}

func TestDeleteParkedGuards(t *testing.T) {
	repo := newMemRepo()
	repo.seedStock(1, 1, 10)
	svc := newTestService(repo)

	result, err := svc.Create(context.Background(), CreateInput{
		LocationID: 1,
		ActorID:    5,
		Items:      []ItemInput{{VariantID: 1, Quantity: 1, UnitPrice: 100}},
		Payments:   cashPayment(100),
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.DeleteParked(context.Background(), result.SaleID), ErrNotParked)
	require.ErrorIs(t, svc.DeleteParked(context.Background(), 9999), ErrSaleNotFound)
}

func TestSaleNumberSequencePerDay(t *testing.T) {
	repo := newMemRepo()
	repo.seedStock(1, 1, 100)
	svc := newTestService(repo)

	day := time.Now().Format("20060102")
	for i := 1; i <= 3; i++ {
		result, err := svc.Create(context.Background(), CreateInput{
			LocationID: 1,
			ActorID:    5,
			Items:      []ItemInput{{VariantID: 1, Quantity: 1, UnitPrice: 100}},
			Payments:   cashPayment(100),
		})
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("MAIN-%s-%d", day, i), result.SaleNumber)
	}
}

func TestCustomerCountersAndReceipt(t *testing.T) {
	repo := newMemRepo()
	repo.seedStock(1, 1, 10)
	repo.customers[42] = &memCustomer{phone: "+15550100", optedIn: true}
	notifier := &fakeNotifier{}
	svc := NewService(repo, nil, nil, notifier, nil, nil)

	customerID := int64(42)
	_, err := svc.Create(context.Background(), CreateInput{
		LocationID: 1,
		ActorID:    5,
		CustomerID: &customerID,
		Items:      []ItemInput{{VariantID: 1, Quantity: 2, UnitPrice: 750}},
		Payments:   cashPayment(1500),
	})
	require.NoError(t, err)

	require.Equal(t, int64(1500), repo.customers[42].totalSpent)
	require.Equal(t, int64(1), repo.customers[42].visits)
	require.Equal(t, []string{"+15550100"}, notifier.receipts)
}

func TestReceiptFailureDoesNotFailSale(t *testing.T) {
	repo := newMemRepo()
	repo.seedStock(1, 1, 10)
	repo.customers[42] = &memCustomer{phone: "+15550100", optedIn: true}
	notifier := &fakeNotifier{err: errors.New("queue down")}
	svc := NewService(repo, nil, nil, notifier, nil, nil)

	customerID := int64(42)
	result, err := svc.Create(context.Background(), CreateInput{
		LocationID: 1,
		ActorID:    5,
		CustomerID: &customerID,
		Items:      []ItemInput{{VariantID: 1, Quantity: 1, UnitPrice: 100}},
		Payments:   cashPayment(100),
	})
	require.NoError(t, err)
	require.NotZero(t, result.SaleID)
}
