package model

import (
	"regexp"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTransitionTable(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderStatusPending:        {OrderStatusConfirmed, OrderStatusCancelled},
		OrderStatusConfirmed:      {OrderStatusShipped, OrderStatusCancelled},
		OrderStatusShipped:        {OrderStatusOutForDelivery},
		OrderStatusOutForDelivery: {OrderStatusDelivered},
		OrderStatusDelivered:      {},
		OrderStatusCancelled:      {},
	}

	all := []OrderStatus{
		OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled,
	}

	for from, tos := range allowed {
		next := make(map[OrderStatus]bool, len(tos))
		for _, to := range tos {
			next[to] = true
		}
		for _, to := range all {
			assert.Equal(t, next[to], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, OrderStatusDelivered.Terminal())
	assert.True(t, OrderStatusCancelled.Terminal())
	assert.False(t, OrderStatusPending.Terminal())
	assert.False(t, OrderStatusOutForDelivery.Terminal())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, OrderStatusPending.Valid())
	assert.False(t, OrderStatus("teleported").Valid())
	assert.False(t, OrderStatus("").Valid())
}

func TestNewOrderNumberFormat(t *testing.T) {
	now := time.Now()
	re := regexp.MustCompile(`^ORD-\d{13}-[0-9A-Z]{5}$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		n := NewOrderNumber(now)
		require.Regexp(t, re, n)
		seen[n] = true
	}
	assert.Greater(t, len(seen), 1, "random suffix must vary")
}

func TestNewDeliveryOTPRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code := NewDeliveryOTP()
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 100000)
		require.LessOrEqual(t, n, 999999)
	}
}

func TestSellerItemFilters(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{ProductID: "p1", SellerID: "s1", Price: 100, Quantity: 2},
		{ProductID: "p2", SellerID: "s2", Price: 50, Quantity: 1},
		{ProductID: "p3", SellerID: "s1", Price: 10, Quantity: 3},
	}}

	assert.Equal(t, 230.0, o.SubtotalFor("s1"))
	assert.Equal(t, 50.0, o.SubtotalFor("s2"))
	assert.Zero(t, o.SubtotalFor("s3"))

	items := o.ItemsFor("s1")
	require.Len(t, items, 2)
	assert.Equal(t, "p1", items[0].ProductID)
	assert.Equal(t, "p3", items[1].ProductID)
	assert.Empty(t, o.ItemsFor("s3"))
}

func TestValidPaymentMethod(t *testing.T) {
	assert.True(t, ValidPaymentMethod(PaymentMethodCOD))
	assert.True(t, ValidPaymentMethod(PaymentMethodUPI))
	assert.False(t, ValidPaymentMethod("barter"))
	assert.False(t, ValidPaymentMethod(""))
}
