package domain

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder(t *testing.T) {
	t.Parallel()

	catalog := IndexProducts([]Product{
		{ID: "p-1", Name: "Keyboard", Price: 49.9},
		{ID: "p-2", Name: "Mouse", Price: 19.5},
	})

	t.Run("computes totals from catalog prices", func(t *testing.T) {
		order, err := NewOrder([]RequestedItem{
			{ProductID: "p-1", Quantity: 2},
			{ProductID: "p-2", Quantity: 3},
		}, catalog)
		require.NoError(t, err)

		assert.InDelta(t, 49.9*2+19.5*3, order.TotalAmount, 1e-9)
		assert.Equal(t, 5, order.TotalItems)
		assert.Equal(t, StatusPending, order.Status)
		assert.False(t, order.Paid)
		assert.Nil(t, order.PaidAt)
		assert.NotEmpty(t, order.ID)
		require.Len(t, order.Items, 2)
		assert.Equal(t, 49.9, order.Items[0].Price)
	})

	t.Run("unknown product id fails with the id named", func(t *testing.T) {
		_, err := NewOrder([]RequestedItem{
			{ProductID: "p-404", Quantity: 1},
		}, catalog)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrUnknownProduct))
		assert.Contains(t, err.Error(), "p-404")
	})

	t.Run("empty item list is rejected", func(t *testing.T) {
		_, err := NewOrder(nil, catalog)
		assert.Error(t, err)
	})
}

func TestOrderPay(t *testing.T) {
	t.Parallel()

	catalog := IndexProducts([]Product{{ID: "p-1", Name: "Keyboard", Price: 10}})
	order, err := NewOrder([]RequestedItem{{ProductID: "p-1", Quantity: 1}}, catalog)
	require.NoError(t, err)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	receipt := OrderReceipt{ReceiptURL: "https://stripe.test/r/1", StripeChargeID: "ch_123"}

	require.NoError(t, order.Pay(receipt, at))
	assert.Equal(t, StatusPaid, order.Status)
	assert.True(t, order.Paid)
	require.NotNil(t, order.PaidAt)
	assert.Equal(t, at, *order.PaidAt)
	require.NotNil(t, order.Receipt)
	assert.Equal(t, "ch_123", order.Receipt.StripeChargeID)

	// 重复支付是空操作信号，凭证保持不变
	err = order.Pay(OrderReceipt{ReceiptURL: "https://stripe.test/r/2"}, at.Add(time.Hour))
	assert.True(t, errors.Is(err, ErrAlreadyPaid))
	assert.Equal(t, "https://stripe.test/r/1", order.Receipt.ReceiptURL)
}

func TestStatusValid(t *testing.T) {
	t.Parallel()

	for _, s := range StatusList {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Status("SHIPPED").Valid())
	assert.False(t, Status("").Valid())
}

func TestPageQueryOffset(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0, PageQuery{Page: 1, Limit: 10}.Offset())
	assert.Equal(t, 20, PageQuery{Page: 3, Limit: 10}.Offset())
}
