package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sabyrkhan/cafe-pos/internal/domain"
	"github.com/sabyrkhan/cafe-pos/internal/repository"
	"github.com/sabyrkhan/cafe-pos/pkg/mylogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const DefaultTopProducts = 5

// SalesService computes dashboard views from the order population of a
// [start, end) window. It is strictly read-only and degrades to zero values
// on empty windows instead of erroring.
type SalesService interface {
	DailySummary(ctx context.Context, day time.Time, tz string) (*domain.DailySummaryComparison, error)
	HourlyRevenue(ctx context.Context, day time.Time, tz string) ([]domain.HourlyRevenuePoint, error)
	TopProducts(ctx context.Context, from, to time.Time, n int) ([]domain.TopSellingProduct, error)
	OrdersByStatus(ctx context.Context, from, to time.Time) ([]domain.StatusCount, error)
	PaymentBreakdown(ctx context.Context, from, to time.Time) ([]domain.PaymentMethodBreakdown, error)
}

type salesService struct {
	orderRepo repository.OrderRepository
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewSalesService(orderRepo repository.OrderRepository, logger *zap.Logger) SalesService {
	return &salesService{
		orderRepo: orderRepo,
		logger:    logger,
		tracer:    otel.Tracer("sales_service"),
	}
}

// resolveLocation resolves a viewer-supplied zone identifier, falling back to
// UTC for anything missing or unresolvable. Dashboards bucket by the viewer's
// clock, not the server's.
func resolveLocation(tz string) *time.Location {
	if tz == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.UTC
	}
	return loc
}

// countsRevenue reports whether an order participates in revenue, tips and
// average sums. Voided orders are retroactive corrections and cancelled
// orders never sold anything; both land in the void/cancelled count instead.
func countsRevenue(o *domain.Order) bool {
	return o.Status != domain.OrderStatusVoided && o.Status != domain.OrderStatusCancelled
}

func dayWindow(day time.Time, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

func summarize(orders []domain.Order) domain.DailySummary {
	var summary domain.DailySummary
	customers := make(map[uuid.UUID]struct{})

	for i := range orders {
		o := &orders[i]

		if !countsRevenue(o) {
			summary.VoidCancelledCount++
			continue
		}

		summary.TotalOrders++
		summary.TotalRevenue += o.Total
		summary.TotalTips += o.Tips
		if o.CustomerID != nil {
			customers[*o.CustomerID] = struct{}{}
		}
	}

	summary.DistinctCustomers = int64(len(customers))
	if summary.TotalOrders > 0 {
		summary.AverageOrderValue = summary.TotalRevenue / summary.TotalOrders
	}

	return summary
}

func (s *salesService) DailySummary(ctx context.Context, day time.Time, tz string) (*domain.DailySummaryComparison, error) {
	ctx, span := s.tracer.Start(ctx, "SalesService.DailySummary")
	defer span.End()

	span.SetAttributes(attribute.String("tz", tz))

	loc := resolveLocation(tz)
	start, end := dayWindow(day.In(loc), loc)

	today, err := s.orderRepo.ListWindow(ctx, start, end)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to load today window", zap.Error(err))
		return nil, err
	}

	yesterday, err := s.orderRepo.ListWindow(ctx, start.AddDate(0, 0, -1), start)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to load yesterday window", zap.Error(err))
		return nil, err
	}

	return &domain.DailySummaryComparison{
		Today:     summarize(today),
		Yesterday: summarize(yesterday),
	}, nil
}

func bucketHourly(orders []domain.Order, loc *time.Location) []domain.HourlyRevenuePoint {
	points := make([]domain.HourlyRevenuePoint, 24)
	for hour := range points {
		points[hour].Hour = hour
	}

	for i := range orders {
		o := &orders[i]
		if !countsRevenue(o) {
			continue
		}

		hour := o.CreatedAt.In(loc).Hour()
		points[hour].Revenue += o.Total
		points[hour].Orders++
		points[hour].Tips += o.Tips
	}

	return points
}

func (s *salesService) HourlyRevenue(ctx context.Context, day time.Time, tz string) ([]domain.HourlyRevenuePoint, error) {
	ctx, span := s.tracer.Start(ctx, "SalesService.HourlyRevenue")
	defer span.End()

	span.SetAttributes(attribute.String("tz", tz))

	loc := resolveLocation(tz)
	start, end := dayWindow(day.In(loc), loc)

	orders, err := s.orderRepo.ListWindow(ctx, start, end)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to load hourly window", zap.Error(err))
		return nil, err
	}

	return bucketHourly(orders, loc), nil
}

func rankProducts(orders []domain.Order, n int) []domain.TopSellingProduct {
	type agg struct {
		name     string
		quantity int64
		revenue  int64
	}

	byProduct := make(map[uuid.UUID]*agg)
	for i := range orders {
		o := &orders[i]
		if !countsRevenue(o) {
			continue
		}

		for j := range o.Lines {
			line := &o.Lines[j]
			a, ok := byProduct[line.ProductID]
			if !ok {
				a = &agg{name: line.Name}
				byProduct[line.ProductID] = a
			}
			a.quantity += int64(line.Quantity)
			a.revenue += line.Subtotal()
		}
	}

	ranked := make([]domain.TopSellingProduct, 0, len(byProduct))
	for id, a := range byProduct {
		ranked = append(ranked, domain.TopSellingProduct{
			ProductID:   id.String(),
			ProductName: a.name,
			Quantity:    a.quantity,
			Revenue:     a.revenue,
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Revenue != ranked[j].Revenue {
			return ranked[i].Revenue > ranked[j].Revenue
		}
		if ranked[i].Quantity != ranked[j].Quantity {
			return ranked[i].Quantity > ranked[j].Quantity
		}
		return ranked[i].ProductName < ranked[j].ProductName
	})

	if n <= 0 {
		n = DefaultTopProducts
	}
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	return ranked
}

func (s *salesService) TopProducts(ctx context.Context, from, to time.Time, n int) ([]domain.TopSellingProduct, error) {
	ctx, span := s.tracer.Start(ctx, "SalesService.TopProducts")
	defer span.End()

	span.SetAttributes(attribute.Int("limit", n))

	orders, err := s.orderRepo.ListWindow(ctx, from, to)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to load top products window", zap.Error(err))
		return nil, err
	}

	return rankProducts(orders, n), nil
}

func countByStatus(orders []domain.Order) []domain.StatusCount {
	counts := make(map[domain.ReportingStatus]int64)
	for i := range orders {
		counts[orders[i].Status.Reporting()]++
	}

	// Stable output order for the dashboard.
	statuses := []domain.ReportingStatus{
		domain.ReportingStatusPending,
		domain.ReportingStatusCompleted,
		domain.ReportingStatusCancelled,
		domain.ReportingStatusRefunded,
	}

	result := make([]domain.StatusCount, 0, len(statuses))
	for _, status := range statuses {
		result = append(result, domain.StatusCount{Status: status, Count: counts[status]})
	}

	return result
}

func (s *salesService) OrdersByStatus(ctx context.Context, from, to time.Time) ([]domain.StatusCount, error) {
	ctx, span := s.tracer.Start(ctx, "SalesService.OrdersByStatus")
	defer span.End()

	orders, err := s.orderRepo.ListWindow(ctx, from, to)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to load status window", zap.Error(err))
		return nil, err
	}

	return countByStatus(orders), nil
}

func breakdownPayments(orders []domain.Order) []domain.PaymentMethodBreakdown {
	type agg struct {
		count int64
		total int64
	}

	byMethod := make(map[domain.PaymentMethod]*agg)
	var grand int64

	for i := range orders {
		o := &orders[i]
		if o.Status != domain.OrderStatusCompleted || o.PaymentMethod == nil {
			continue
		}

		a, ok := byMethod[*o.PaymentMethod]
		if !ok {
			a = &agg{}
			byMethod[*o.PaymentMethod] = a
		}
		a.count++
		a.total += o.Total
		grand += o.Total
	}

	result := make([]domain.PaymentMethodBreakdown, 0, len(byMethod))
	for method, a := range byMethod {
		percent := 0
		if grand > 0 {
			percent = int(math.Round(float64(a.total) * 100 / float64(grand)))
		}
		result = append(result, domain.PaymentMethodBreakdown{
			Method:  method,
			Count:   a.count,
			Total:   a.total,
			Percent: percent,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Total != result[j].Total {
			return result[i].Total > result[j].Total
		}
		return result[i].Method < result[j].Method
	})

	return result
}

func (s *salesService) PaymentBreakdown(ctx context.Context, from, to time.Time) ([]domain.PaymentMethodBreakdown, error) {
	ctx, span := s.tracer.Start(ctx, "SalesService.PaymentBreakdown")
	defer span.End()

	orders, err := s.orderRepo.ListWindow(ctx, from, to)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Failed to load payments window", zap.Error(err))
		return nil, err
	}

	return breakdownPayments(orders), nil
}
