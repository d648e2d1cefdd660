package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusVoided    OrderStatus = "voided"
)

func ParseOrderStatus(s string) (OrderStatus, bool) {
	switch OrderStatus(s) {
	case OrderStatusPending, OrderStatusPreparing, OrderStatusReady,
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusVoided:
		return OrderStatus(s), true
	}
	return "", false
}

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusVoided:
		return true
	}
	return false
}

// CanTransition is the full lifecycle table. pending→preparing→ready→completed,
// any non-terminal state can be cancelled, and a completed order can be voided.
// Voiding is a correction, not a reversal: a voided order never becomes active again.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return to == OrderStatusPreparing || to == OrderStatusCancelled
	case OrderStatusPreparing:
		return to == OrderStatusReady || to == OrderStatusCancelled
	case OrderStatusReady:
		return to == OrderStatusCompleted || to == OrderStatusCancelled
	case OrderStatusCompleted:
		return to == OrderStatusVoided
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCash  PaymentMethod = "cash"
	PaymentMethodCard  PaymentMethod = "card"
	PaymentMethodGCash PaymentMethod = "gcash"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodGCash:
		return PaymentMethod(s), true
	}
	return "", false
}

// Order is a single POS ticket. Total is always derived from Lines via
// CalculateTotal and is never taken from input. All money fields are in
// centavos.
type Order struct {
	ID             uuid.UUID      `db:"id"`
	Number         int64          `db:"order_number"`
	CreatedBy      uuid.UUID      `db:"created_by"`
	CustomerID     *uuid.UUID     `db:"customer_id"`
	Status         OrderStatus    `db:"status"`
	Lines          []OrderLine    `db:"lines"`
	Total          int64          `db:"total"`
	PaymentMethod  *PaymentMethod `db:"payment_method"`
	AmountReceived int64          `db:"amount_received"`
	Change         int64          `db:"change_amount"`
	Tips           int64          `db:"tips"`
	Notes          string         `db:"notes"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// OrderLine holds a price snapshot taken at order time; later catalog price
// changes never touch an existing order. AddOns is exactly one level deep:
// an add-on line never carries add-ons of its own.
type OrderLine struct {
	ID        int64       `db:"id"`
	OrderID   uuid.UUID   `db:"order_id"`
	ProductID uuid.UUID   `db:"product_id"`
	Name      string      `db:"name"`
	UnitPrice int64       `db:"unit_price"`
	Quantity  int32       `db:"quantity"`
	Notes     string      `db:"notes"`
	AddOns    []OrderLine `db:"-"`
}

func (l *OrderLine) Subtotal() int64 {
	unit := l.UnitPrice
	for _, a := range l.AddOns {
		unit += a.UnitPrice
	}
	return unit * int64(l.Quantity)
}

func (o *Order) CalculateTotal() {
	var total int64
	for i := range o.Lines {
		total += o.Lines[i].Subtotal()
	}
	o.Total = total
}
