package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sabyrkhan/cafe-pos/internal/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newSalesFixture() (*fakeOrderRepo, SalesService) {
	repo := newFakeOrderRepo()
	return repo, NewSalesService(repo, zap.NewNop())
}

func seedOrder(repo *fakeOrderRepo, status domain.OrderStatus, total int64, createdAt time.Time, mutate ...func(*domain.Order)) *domain.Order {
	order := &domain.Order{
		ID:     uuid.New(),
		Status: status,
		Total:  total,
	}
	for _, m := range mutate {
		m(order)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	var max int64
	for _, o := range repo.orders {
		if o.Number > max {
			max = o.Number
		}
	}
	order.Number = max + 1
	order.CreatedAt = createdAt
	repo.orders[order.ID] = order
	return order
}

func withCustomer(id uuid.UUID) func(*domain.Order) {
	return func(o *domain.Order) { o.CustomerID = &id }
}

func withPayment(method domain.PaymentMethod) func(*domain.Order) {
	return func(o *domain.Order) { o.PaymentMethod = &method }
}

func withLines(lines ...domain.OrderLine) func(*domain.Order) {
	return func(o *domain.Order) { o.Lines = lines }
}

func withTips(tips int64) func(*domain.Order) {
	return func(o *domain.Order) { o.Tips = tips }
}

func TestDailySummary_ExcludesVoidedAndCancelled(t *testing.T) {
	repo, sales := newSalesFixture()
	now := time.Now().UTC()
	customer := uuid.New()

	seedOrder(repo, domain.OrderStatusCompleted, 10000, now, withCustomer(customer), withTips(500))
	seedOrder(repo, domain.OrderStatusCompleted, 5000, now, withCustomer(customer))
	seedOrder(repo, domain.OrderStatusVoided, 3000, now)
	seedOrder(repo, domain.OrderStatusCancelled, 7000, now)

	result, err := sales.DailySummary(context.Background(), now, "")
	require.NoError(t, err)

	require.Equal(t, int64(2), result.Today.TotalOrders)
	require.Equal(t, int64(15000), result.Today.TotalRevenue)
	require.Equal(t, int64(7500), result.Today.AverageOrderValue)
	require.Equal(t, int64(500), result.Today.TotalTips)
	require.Equal(t, int64(1), result.Today.DistinctCustomers)
	require.Equal(t, int64(2), result.Today.VoidCancelledCount)
}

func TestDailySummary_EmptyDayIsAllZeros(t *testing.T) {
	_, sales := newSalesFixture()

	result, err := sales.DailySummary(context.Background(), time.Now().UTC(), "")
	require.NoError(t, err)

	require.Zero(t, result.Today.TotalOrders)
	require.Zero(t, result.Today.TotalRevenue)
	require.Zero(t, result.Today.AverageOrderValue)
	require.Zero(t, result.Today.DistinctCustomers)
}

func TestDailySummary_YesterdayComparison(t *testing.T) {
	repo, sales := newSalesFixture()
	now := time.Now().UTC()

	seedOrder(repo, domain.OrderStatusCompleted, 10000, now)
	seedOrder(repo, domain.OrderStatusCompleted, 4000, now.AddDate(0, 0, -1))

	result, err := sales.DailySummary(context.Background(), now, "")
	require.NoError(t, err)

	require.Equal(t, int64(10000), result.Today.TotalRevenue)
	require.Equal(t, int64(4000), result.Yesterday.TotalRevenue)
}

func TestHourlyRevenue_BucketsInViewerZone(t *testing.T) {
	repo, sales := newSalesFixture()

	// 23:30 UTC on the 10th is 07:30 on the 11th in Manila (UTC+8).
	createdAt := time.Date(2026, 8, 10, 23, 30, 0, 0, time.UTC)
	seedOrder(repo, domain.OrderStatusCompleted, 10000, createdAt)

	day := time.Date(2026, 8, 11, 12, 0, 0, 0, time.UTC)
	points, err := sales.HourlyRevenue(context.Background(), day, "Asia/Manila")
	require.NoError(t, err)
	require.Len(t, points, 24)

	require.Equal(t, int64(10000), points[7].Revenue)
	require.Equal(t, int64(1), points[7].Orders)
	for hour, p := range points {
		require.Equal(t, hour, p.Hour)
		if hour != 7 {
			require.Zero(t, p.Revenue)
		}
	}
}

func TestHourlyRevenue_UnknownZoneFallsBackToUTC(t *testing.T) {
	repo, sales := newSalesFixture()

	createdAt := time.Date(2026, 8, 11, 14, 15, 0, 0, time.UTC)
	seedOrder(repo, domain.OrderStatusCompleted, 8000, createdAt)

	points, err := sales.HourlyRevenue(context.Background(), createdAt, "Not/AZone")
	require.NoError(t, err)
	require.Equal(t, int64(8000), points[14].Revenue)
}

func TestTopProducts_RankingAndTiebreaks(t *testing.T) {
	repo, sales := newSalesFixture()
	now := time.Now().UTC()

	latte := uuid.New()
	mocha := uuid.New()
	tea := uuid.New()

	// latte: revenue 30000. mocha and tea tie on 20000; mocha sold more units.
	seedOrder(repo, domain.OrderStatusCompleted, 0, now, withLines(
		domain.OrderLine{ProductID: latte, Name: "Latte", UnitPrice: 15000, Quantity: 2},
		domain.OrderLine{ProductID: mocha, Name: "Mocha", UnitPrice: 5000, Quantity: 4},
		domain.OrderLine{ProductID: tea, Name: "Tea", UnitPrice: 20000, Quantity: 1},
	))

	ranked, err := sales.TopProducts(context.Background(), now.Add(-time.Hour), now.Add(time.Hour), 5)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	require.Equal(t, "Latte", ranked[0].ProductName)
	require.Equal(t, int64(30000), ranked[0].Revenue)
	require.Equal(t, "Mocha", ranked[1].ProductName)
	require.Equal(t, "Tea", ranked[2].ProductName)
}

func TestTopProducts_NameTiebreakAndLimit(t *testing.T) {
	repo, sales := newSalesFixture()
	now := time.Now().UTC()

	// Identical revenue and quantity; names decide.
	seedOrder(repo, domain.OrderStatusCompleted, 0, now, withLines(
		domain.OrderLine{ProductID: uuid.New(), Name: "Brownie", UnitPrice: 5000, Quantity: 1},
		domain.OrderLine{ProductID: uuid.New(), Name: "Americano", UnitPrice: 5000, Quantity: 1},
	))

	ranked, err := sales.TopProducts(context.Background(), now.Add(-time.Hour), now.Add(time.Hour), 1)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	require.Equal(t, "Americano", ranked[0].ProductName)
}

func TestTopProducts_AddOnRevenueFoldsIntoLine(t *testing.T) {
	repo, sales := newSalesFixture()
	now := time.Now().UTC()
	latte := uuid.New()

	seedOrder(repo, domain.OrderStatusCompleted, 0, now, withLines(
		domain.OrderLine{
			ProductID: latte, Name: "Latte", UnitPrice: 12000, Quantity: 2,
			AddOns: []domain.OrderLine{{ProductID: uuid.New(), Name: "Oat Milk", UnitPrice: 2000, Quantity: 1}},
		},
	))

	ranked, err := sales.TopProducts(context.Background(), now.Add(-time.Hour), now.Add(time.Hour), 5)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	require.Equal(t, int64(2*(12000+2000)), ranked[0].Revenue)
	require.Equal(t, int64(2), ranked[0].Quantity)
}

func TestOrdersByStatus_CollapsesKitchenStates(t *testing.T) {
	repo, sales := newSalesFixture()
	now := time.Now().UTC()

	seedOrder(repo, domain.OrderStatusPending, 1000, now)
	seedOrder(repo, domain.OrderStatusPreparing, 1000, now)
	seedOrder(repo, domain.OrderStatusReady, 1000, now)
	seedOrder(repo, domain.OrderStatusCompleted, 1000, now)
	seedOrder(repo, domain.OrderStatusCancelled, 1000, now)
	seedOrder(repo, domain.OrderStatusVoided, 1000, now)

	counts, err := sales.OrdersByStatus(context.Background(), now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, counts, 4)

	byStatus := make(map[domain.ReportingStatus]int64)
	for _, c := range counts {
		byStatus[c.Status] = c.Count
	}
	require.Equal(t, int64(3), byStatus[domain.ReportingStatusPending])
	require.Equal(t, int64(1), byStatus[domain.ReportingStatusCompleted])
	require.Equal(t, int64(1), byStatus[domain.ReportingStatusCancelled])
	require.Equal(t, int64(1), byStatus[domain.ReportingStatusRefunded])
}

func TestPaymentBreakdown_PercentagesAndOrdering(t *testing.T) {
	repo, sales := newSalesFixture()
	now := time.Now().UTC()

	seedOrder(repo, domain.OrderStatusCompleted, 30000, now, withPayment(domain.PaymentMethodCash))
	seedOrder(repo, domain.OrderStatusCompleted, 45000, now, withPayment(domain.PaymentMethodCash))
	seedOrder(repo, domain.OrderStatusCompleted, 25000, now, withPayment(domain.PaymentMethodCard))
	// Unsettled and non-completed orders never count.
	seedOrder(repo, domain.OrderStatusCompleted, 99000, now)
	seedOrder(repo, domain.OrderStatusPending, 99000, now, withPayment(domain.PaymentMethodGCash))

	breakdown, err := sales.PaymentBreakdown(context.Background(), now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, breakdown, 2)

	require.Equal(t, domain.PaymentMethodCash, breakdown[0].Method)
	require.Equal(t, int64(2), breakdown[0].Count)
	require.Equal(t, int64(75000), breakdown[0].Total)
	require.Equal(t, 75, breakdown[0].Percent)

	require.Equal(t, domain.PaymentMethodCard, breakdown[1].Method)
	require.Equal(t, 25, breakdown[1].Percent)
}

func TestPaymentBreakdown_EmptyWindow(t *testing.T) {
	_, sales := newSalesFixture()
	now := time.Now().UTC()

	breakdown, err := sales.PaymentBreakdown(context.Background(), now.Add(-time.Hour), now)
	require.NoError(t, err)
	require.Empty(t, breakdown)
}
