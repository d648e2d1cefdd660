package domain

// Derived dashboard views. All of these are recomputed from the order
// population of a [start, end) window on every request and are never stored.

// ReportingStatus is the management-facing status breakdown. The kitchen
// states preparing/ready collapse into pending, and voided shows as refunded.
type ReportingStatus string

const (
	ReportingStatusPending   ReportingStatus = "pending"
	ReportingStatusCompleted ReportingStatus = "completed"
	ReportingStatusCancelled ReportingStatus = "cancelled"
	ReportingStatusRefunded  ReportingStatus = "refunded"
)

func (s OrderStatus) Reporting() ReportingStatus {
	switch s {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady:
		return ReportingStatusPending
	case OrderStatusCompleted:
		return ReportingStatusCompleted
	case OrderStatusCancelled:
		return ReportingStatusCancelled
	case OrderStatusVoided:
		return ReportingStatusRefunded
	}
	return ReportingStatusPending
}

type DailySummary struct {
	TotalOrders        int64 `json:"total_orders"`
	TotalRevenue       int64 `json:"total_revenue"`
	AverageOrderValue  int64 `json:"average_order_value"`
	TotalTips          int64 `json:"total_tips"`
	DistinctCustomers  int64 `json:"distinct_customers"`
	VoidCancelledCount int64 `json:"void_cancelled_count"`
}

type DailySummaryComparison struct {
	Today     DailySummary `json:"today"`
	Yesterday DailySummary `json:"yesterday"`
}

type HourlyRevenuePoint struct {
	Hour    int   `json:"hour"`
	Revenue int64 `json:"revenue"`
	Orders  int64 `json:"orders"`
	Tips    int64 `json:"tips"`
}

type TopSellingProduct struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int64  `json:"quantity"`
	Revenue     int64  `json:"revenue"`
}

type StatusCount struct {
	Status ReportingStatus `json:"status"`
	Count  int64           `json:"count"`
}

type PaymentMethodBreakdown struct {
	Method  PaymentMethod `json:"method"`
	Count   int64         `json:"count"`
	Total   int64         `json:"total"`
	Percent int           `json:"percent"`
}
