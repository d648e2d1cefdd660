package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateTotal_WithAddOns(t *testing.T) {
	order := &Order{
		Lines: []OrderLine{
			{
				UnitPrice: 12000,
				Quantity:  2,
				AddOns: []OrderLine{
					{UnitPrice: 2000, Quantity: 1},
					{UnitPrice: 1500, Quantity: 1},
				},
			},
			{
				UnitPrice: 8000,
				Quantity:  1,
			},
		},
	}

	order.CalculateTotal()

	// 2 * (12000 + 2000 + 1500) + 1 * 8000
	require.Equal(t, int64(39000), order.Total)
}

func TestCalculateTotal_Empty(t *testing.T) {
	order := &Order{}
	order.CalculateTotal()
	require.Zero(t, order.Total)
}

func TestCanTransition_FullTable(t *testing.T) {
	all := []OrderStatus{
		OrderStatusPending, OrderStatusPreparing, OrderStatusReady,
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusVoided,
	}

	allowed := map[OrderStatus][]OrderStatus{
		OrderStatusPending:   {OrderStatusPreparing, OrderStatusCancelled},
		OrderStatusPreparing: {OrderStatusReady, OrderStatusCancelled},
		OrderStatusReady:     {OrderStatusCompleted, OrderStatusCancelled},
		OrderStatusCompleted: {OrderStatusVoided},
		OrderStatusCancelled: {},
		OrderStatusVoided:    {},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, ok := range allowed[from] {
				if ok == to {
					want = true
				}
			}
			require.Equalf(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	require.False(t, OrderStatusPending.IsTerminal())
	require.False(t, OrderStatusPreparing.IsTerminal())
	require.False(t, OrderStatusReady.IsTerminal())
	require.True(t, OrderStatusCompleted.IsTerminal())
	require.True(t, OrderStatusCancelled.IsTerminal())
	require.True(t, OrderStatusVoided.IsTerminal())
}

func TestParseOrderStatus(t *testing.T) {
	status, ok := ParseOrderStatus("preparing")
	require.True(t, ok)
	require.Equal(t, OrderStatusPreparing, status)

	_, ok = ParseOrderStatus("refunded")
	require.False(t, ok)
}

func TestReporting_Collapse(t *testing.T) {
	require.Equal(t, ReportingStatusPending, OrderStatusPending.Reporting())
	require.Equal(t, ReportingStatusPending, OrderStatusPreparing.Reporting())
	require.Equal(t, ReportingStatusPending, OrderStatusReady.Reporting())
	require.Equal(t, ReportingStatusCompleted, OrderStatusCompleted.Reporting())
	require.Equal(t, ReportingStatusCancelled, OrderStatusCancelled.Reporting())
	require.Equal(t, ReportingStatusRefunded, OrderStatusVoided.Reporting())
}
