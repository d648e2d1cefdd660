package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sabyrkhan/cafe-pos/internal/domain"
	"github.com/sabyrkhan/cafe-pos/internal/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type orderServiceFixture struct {
	orders  *fakeOrderRepo
	catalog *fakeCatalogRepo
	loyalty *fakeLoyaltyRepo
	audit   *fakeAuditRecorder
	service OrderService
}

func newOrderServiceFixture() *orderServiceFixture {
	f := &orderServiceFixture{
		orders:  newFakeOrderRepo(),
		catalog: newFakeCatalogRepo(),
		loyalty: newFakeLoyaltyRepo(),
		audit:   &fakeAuditRecorder{},
	}
	f.service = NewOrderService(f.orders, f.catalog, f.loyalty, f.audit, zap.NewNop())
	return f
}

func TestCreateOrder_Success(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()

	latte := f.catalog.addProduct("Latte", 12000, false)
	oatMilk := f.catalog.addProduct("Oat Milk", 2000, true)

	order, err := f.service.Create(ctx, uuid.New(), CreateOrderInput{
		Lines: []LineInput{
			{ProductID: latte, Quantity: 2, AddOnIDs: []uuid.UUID{oatMilk}},
		},
	})

	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusPending, order.Status)
	require.Equal(t, int64(1), order.Number)
	require.Equal(t, int64(2*(12000+2000)), order.Total)
	require.Len(t, order.Lines, 1)
	require.Len(t, order.Lines[0].AddOns, 1)
}

func TestCreateOrder_AddOnOverridePriceWins(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()

	latte := f.catalog.addProduct("Latte", 12000, false)
	oatMilk := f.catalog.addProduct("Oat Milk", 2000, true)
	f.catalog.overrides[overrideKey{latte, oatMilk}] = 1500

	order, err := f.service.Create(ctx, uuid.New(), CreateOrderInput{
		Lines: []LineInput{
			{ProductID: latte, Quantity: 1, AddOnIDs: []uuid.UUID{oatMilk}},
		},
	})

	require.NoError(t, err)
	require.Equal(t, int64(12000+1500), order.Total)

	// The snapshot is frozen: deleting the override later changes nothing.
	delete(f.catalog.overrides, overrideKey{latte, oatMilk})
	stored, err := f.service.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, int64(12000+1500), stored.Total)
}

func TestCreateOrder_Validation(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()
	actor := uuid.New()

	latte := f.catalog.addProduct("Latte", 12000, false)
	oatMilk := f.catalog.addProduct("Oat Milk", 2000, true)

	var validationErr *ValidationError

	_, err := f.service.Create(ctx, actor, CreateOrderInput{})
	require.ErrorAs(t, err, &validationErr)

	_, err = f.service.Create(ctx, actor, CreateOrderInput{
		Lines: []LineInput{{ProductID: latte, Quantity: 0}},
	})
	require.ErrorAs(t, err, &validationErr)

	_, err = f.service.Create(ctx, actor, CreateOrderInput{
		Lines: []LineInput{{ProductID: uuid.New(), Quantity: 1}},
	})
	require.ErrorAs(t, err, &validationErr)

	// An add-on cannot be a standalone line.
	_, err = f.service.Create(ctx, actor, CreateOrderInput{
		Lines: []LineInput{{ProductID: oatMilk, Quantity: 1}},
	})
	require.ErrorAs(t, err, &validationErr)

	// A regular product cannot be attached as an add-on.
	espresso := f.catalog.addProduct("Espresso", 9000, false)
	_, err = f.service.Create(ctx, actor, CreateOrderInput{
		Lines: []LineInput{{ProductID: latte, Quantity: 1, AddOnIDs: []uuid.UUID{espresso}}},
	})
	require.ErrorAs(t, err, &validationErr)

	_, err = f.service.Create(ctx, actor, CreateOrderInput{
		Lines:         []LineInput{{ProductID: latte, Quantity: 1}},
		InitialStatus: domain.OrderStatusCompleted,
	})
	require.ErrorAs(t, err, &validationErr)
}

func TestCreateOrder_WithPaymentAtCounter(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()
	latte := f.catalog.addProduct("Latte", 12000, false)

	order, err := f.service.Create(ctx, uuid.New(), CreateOrderInput{
		Lines: []LineInput{{ProductID: latte, Quantity: 1}},
		Payment: &SettlePaymentInput{
			Method:         domain.PaymentMethodCash,
			AmountReceived: 15000,
		},
	})

	require.NoError(t, err)
	require.NotNil(t, order.PaymentMethod)
	require.Equal(t, domain.PaymentMethodCash, *order.PaymentMethod)
	require.Equal(t, int64(3000), order.Change)

	var validationErr *ValidationError
	_, err = f.service.Create(ctx, uuid.New(), CreateOrderInput{
		Lines: []LineInput{{ProductID: latte, Quantity: 1}},
		Payment: &SettlePaymentInput{
			Method:         domain.PaymentMethodCash,
			AmountReceived: 5000,
		},
	})
	require.ErrorAs(t, err, &validationErr)
}

func TestCreateOrder_NumberRaceRetries(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()
	latte := f.catalog.addProduct("Latte", 12000, false)

	// Two lost races still fit inside the retry budget.
	f.orders.takenFailures = 2
	order, err := f.service.Create(ctx, uuid.New(), CreateOrderInput{
		Lines: []LineInput{{ProductID: latte, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), order.Number)

	// Exhausting the budget surfaces the concurrency sentinel.
	f.orders.takenFailures = 5
	_, err = f.service.Create(ctx, uuid.New(), CreateOrderInput{
		Lines: []LineInput{{ProductID: latte, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrConcurrency)
}

func TestCreateOrder_ConcurrentNumbersAreDistinct(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()
	latte := f.catalog.addProduct("Latte", 12000, false)

	const n = 20
	numbers := make(chan int64, n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			order, err := f.service.Create(ctx, uuid.New(), CreateOrderInput{
				Lines: []LineInput{{ProductID: latte, Quantity: 1}},
			})
			require.NoError(t, err)
			numbers <- order.Number
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int64]bool)
	for num := range numbers {
		require.False(t, seen[num], "order number %d assigned twice", num)
		seen[num] = true
	}
	require.Len(t, seen, n)
}

func TestAdvance_HappyPath(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()
	actor := uuid.New()
	latte := f.catalog.addProduct("Latte", 12000, false)

	order, err := f.service.Create(ctx, actor, CreateOrderInput{
		Lines: []LineInput{{ProductID: latte, Quantity: 1}},
	})
	require.NoError(t, err)

	for _, next := range []domain.OrderStatus{
		domain.OrderStatusPreparing,
		domain.OrderStatusReady,
		domain.OrderStatusCompleted,
	} {
		order, err = f.service.Advance(ctx, actor, order.ID, next)
		require.NoError(t, err)
		require.Equal(t, next, order.Status)
	}
}

func TestAdvance_IllegalTransitions(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()
	actor := uuid.New()
	latte := f.catalog.addProduct("Latte", 12000, false)

	order, err := f.service.Create(ctx, actor, CreateOrderInput{
		Lines: []LineInput{{ProductID: latte, Quantity: 1}},
	})
	require.NoError(t, err)

	var transitionErr *InvalidTransitionError

	// Skipping a kitchen stage is rejected.
	_, err = f.service.Advance(ctx, actor, order.ID, domain.OrderStatusCompleted)
	require.ErrorAs(t, err, &transitionErr)
	require.Equal(t, domain.OrderStatusPending, transitionErr.From)

	// Cancelled is terminal for good.
	_, err = f.service.Advance(ctx, actor, order.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)
	_, err = f.service.Advance(ctx, actor, order.ID, domain.OrderStatusPreparing)
	require.ErrorAs(t, err, &transitionErr)
}

func TestVoid_OnlyFromCompleted(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()
	actor := uuid.New()
	latte := f.catalog.addProduct("Latte", 12000, false)

	order, err := f.service.Create(ctx, actor, CreateOrderInput{
		Lines: []LineInput{{ProductID: latte, Quantity: 1}},
	})
	require.NoError(t, err)

	var stateErr *InvalidStateError
	_, err = f.service.Void(ctx, actor, order.ID)
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, domain.OrderStatusPending, stateErr.Current)

	for _, next := range []domain.OrderStatus{
		domain.OrderStatusPreparing, domain.OrderStatusReady, domain.OrderStatusCompleted,
	} {
		_, err = f.service.Advance(ctx, actor, order.ID, next)
		require.NoError(t, err)
	}

	voided, err := f.service.Void(ctx, actor, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusVoided, voided.Status)

	// Voiding twice fails: the order is no longer completed.
	_, err = f.service.Void(ctx, actor, order.ID)
	require.ErrorAs(t, err, &stateErr)
}

func TestUpdate_TerminalOrderRejected(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()
	actor := uuid.New()
	latte := f.catalog.addProduct("Latte", 12000, false)

	order, err := f.service.Create(ctx, actor, CreateOrderInput{
		Lines: []LineInput{{ProductID: latte, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.service.Advance(ctx, actor, order.ID, domain.OrderStatusCancelled)
	require.NoError(t, err)

	var stateErr *InvalidStateError
	_, err = f.service.Update(ctx, actor, order.ID, UpdateOrderInput{
		Lines: []LineInput{{ProductID: latte, Quantity: 3}},
	})
	require.ErrorAs(t, err, &stateErr)
}

func TestUpdate_RecalculatesTotal(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()
	actor := uuid.New()
	latte := f.catalog.addProduct("Latte", 12000, false)
	croissant := f.catalog.addProduct("Croissant", 8000, false)

	order, err := f.service.Create(ctx, actor, CreateOrderInput{
		Lines: []LineInput{{ProductID: latte, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, int64(12000), order.Total)

	updated, err := f.service.Update(ctx, actor, order.ID, UpdateOrderInput{
		Lines: []LineInput{
			{ProductID: latte, Quantity: 1},
			{ProductID: croissant, Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(12000+2*8000), updated.Total)
}

func TestUpdate_CompletionAccruesLoyalty(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()
	actor := uuid.New()
	customer := uuid.New()
	latte := f.catalog.addProduct("Latte", 12000, false)

	order, err := f.service.Create(ctx, actor, CreateOrderInput{
		CustomerID: &customer,
		Lines:      []LineInput{{ProductID: latte, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.service.Advance(ctx, actor, order.ID, domain.OrderStatusPreparing)
	require.NoError(t, err)
	_, err = f.service.Advance(ctx, actor, order.ID, domain.OrderStatusReady)
	require.NoError(t, err)

	// Completing through Update accrues the same points as Advance would.
	updated, err := f.service.Update(ctx, actor, order.ID, UpdateOrderInput{
		CustomerID: &customer,
		Status:     domain.OrderStatusCompleted,
		Lines:      []LineInput{{ProductID: latte, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCompleted, updated.Status)

	balance, err := f.loyalty.GetBalance(ctx, customer)
	require.NoError(t, err)
	require.Equal(t, int64(120), balance)
	require.Equal(t, 1, f.loyalty.calls)
}

func TestUpdate_LosesRaceToAdvance(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()
	actor := uuid.New()
	latte := f.catalog.addProduct("Latte", 12000, false)

	order, err := f.service.Create(ctx, actor, CreateOrderInput{
		Lines: []LineInput{{ProductID: latte, Quantity: 1}},
	})
	require.NoError(t, err)

	// The kitchen pushes the order to ready between the update's read and
	// its write. The stale write must not drag the status backwards.
	f.orders.beforeReplace = func() {
		f.orders.beforeReplace = nil
		_, err := f.service.Advance(ctx, actor, order.ID, domain.OrderStatusPreparing)
		require.NoError(t, err)
		_, err = f.service.Advance(ctx, actor, order.ID, domain.OrderStatusReady)
		require.NoError(t, err)
	}

	var stateErr *InvalidStateError
	_, err = f.service.Update(ctx, actor, order.ID, UpdateOrderInput{
		Status: domain.OrderStatusPreparing,
		Lines:  []LineInput{{ProductID: latte, Quantity: 2}},
	})
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, domain.OrderStatusReady, stateErr.Current)

	stored, err := f.service.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusReady, stored.Status)
	require.Equal(t, int64(12000), stored.Total)
}

func TestSettlePayment_CashChange(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()
	actor := uuid.New()
	latte := f.catalog.addProduct("Latte", 12000, false)

	order, err := f.service.Create(ctx, actor, CreateOrderInput{
		Lines: []LineInput{{ProductID: latte, Quantity: 1}},
	})
	require.NoError(t, err)

	var validationErr *ValidationError
	_, err = f.service.SettlePayment(ctx, actor, order.ID, SettlePaymentInput{
		Method:         domain.PaymentMethodCash,
		AmountReceived: 10000,
	})
	require.ErrorAs(t, err, &validationErr)

	paid, err := f.service.SettlePayment(ctx, actor, order.ID, SettlePaymentInput{
		Method:         domain.PaymentMethodCash,
		AmountReceived: 20000,
		Tips:           500,
	})
	require.NoError(t, err)
	require.Equal(t, int64(20000), paid.AmountReceived)
	require.Equal(t, int64(8000), paid.Change)
	require.Equal(t, int64(500), paid.Tips)
}

func TestSettlePayment_NonCashCapturesExactTotal(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()
	actor := uuid.New()
	latte := f.catalog.addProduct("Latte", 12000, false)

	order, err := f.service.Create(ctx, actor, CreateOrderInput{
		Lines: []LineInput{{ProductID: latte, Quantity: 1}},
	})
	require.NoError(t, err)

	paid, err := f.service.SettlePayment(ctx, actor, order.ID, SettlePaymentInput{
		Method: domain.PaymentMethodGCash,
	})
	require.NoError(t, err)
	require.Equal(t, order.Total, paid.AmountReceived)
	require.Zero(t, paid.Change)

	var validationErr *ValidationError
	_, err = f.service.SettlePayment(ctx, actor, order.ID, SettlePaymentInput{
		Method: "bitcoin",
	})
	require.ErrorAs(t, err, &validationErr)
}

func TestAdvance_LoyaltyAccruesOncePerCompletion(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()
	actor := uuid.New()
	customer := uuid.New()
	latte := f.catalog.addProduct("Latte", 12550, false)

	order, err := f.service.Create(ctx, actor, CreateOrderInput{
		CustomerID: &customer,
		Lines:      []LineInput{{ProductID: latte, Quantity: 1}},
	})
	require.NoError(t, err)

	for _, next := range []domain.OrderStatus{
		domain.OrderStatusPreparing, domain.OrderStatusReady, domain.OrderStatusCompleted,
	} {
		_, err = f.service.Advance(ctx, actor, order.ID, next)
		require.NoError(t, err)
	}

	// 12550 centavos earns 125 whole-peso points.
	balance, err := f.loyalty.GetBalance(ctx, customer)
	require.NoError(t, err)
	require.Equal(t, int64(125), balance)
	require.Equal(t, 1, f.loyalty.calls)

	// Voiding does not claw points back.
	_, err = f.service.Void(ctx, actor, order.ID)
	require.NoError(t, err)
	balance, err = f.loyalty.GetBalance(ctx, customer)
	require.NoError(t, err)
	require.Equal(t, int64(125), balance)
}

func TestAdvance_LoyaltyFailureDoesNotFailCompletion(t *testing.T) {
	f := newOrderServiceFixture()
	ctx := context.Background()
	actor := uuid.New()
	customer := uuid.New()
	latte := f.catalog.addProduct("Latte", 12000, false)

	order, err := f.service.Create(ctx, actor, CreateOrderInput{
		CustomerID: &customer,
		Lines:      []LineInput{{ProductID: latte, Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.service.Advance(ctx, actor, order.ID, domain.OrderStatusPreparing)
	require.NoError(t, err)
	_, err = f.service.Advance(ctx, actor, order.ID, domain.OrderStatusReady)
	require.NoError(t, err)

	f.loyalty.err = errors.New("loyalty store down")
	completed, err := f.service.Advance(ctx, actor, order.ID, domain.OrderStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusCompleted, completed.Status)
}

func TestGet_NotFound(t *testing.T) {
	f := newOrderServiceFixture()

	_, err := f.service.Get(context.Background(), uuid.New())
	require.ErrorIs(t, err, repository.ErrOrderNotFound)
}
