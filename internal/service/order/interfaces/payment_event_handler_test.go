package interfaces

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// fakeGuard 模拟先查后标的去重器：只有 MarkHandled 过的订单才算重复。
type fakeGuard struct {
	handled map[string]bool
	checked []string
	marked  []string
}

func (g *fakeGuard) AlreadyHandled(_ context.Context, orderID string) bool {
	g.checked = append(g.checked, orderID)
	return g.handled[orderID]
}

func (g *fakeGuard) MarkHandled(_ context.Context, orderID string) {
	if g.handled == nil {
		g.handled = map[string]bool{}
	}
	g.handled[orderID] = true
	g.marked = append(g.marked, orderID)
}

func newEventHandler(svc *fakeOrderService, guard *fakeGuard) *PaymentEventHandler {
	return NewPaymentEventHandler(svc, guard, nil, testMetrics, otel.Tracer("test"))
}

func eventMessage(value string) kafka.Message {
	return kafka.Message{Topic: "payment.succeeded", Value: []byte(value)}
}

func TestPaymentEventHandlerProcessMessage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("valid event reaches the service and is marked handled", func(t *testing.T) {
		svc := &fakeOrderService{}
		guard := &fakeGuard{}
		h := newEventHandler(svc, guard)

		h.ProcessMessage(ctx, eventMessage(`{"orderId":"`+validUUID+`","receiptUrl":"https://stripe.test/r/1","stripePaymentId":"ch_1"}`))

		require.Equal(t, 1, svc.payCalled)
		assert.Equal(t, validUUID, svc.payIn.OrderID)
		assert.Equal(t, "https://stripe.test/r/1", svc.payIn.ReceiptURL)
		assert.Equal(t, "ch_1", svc.payIn.StripePaymentID)
		assert.Equal(t, []string{validUUID}, guard.checked)
		assert.Equal(t, []string{validUUID}, guard.marked)
	})

	t.Run("malformed event is skipped", func(t *testing.T) {
		svc := &fakeOrderService{}
		h := newEventHandler(svc, &fakeGuard{})

		h.ProcessMessage(ctx, eventMessage(`{not json`))
		assert.Equal(t, 0, svc.payCalled)
	})

	t.Run("event without orderId is skipped", func(t *testing.T) {
		svc := &fakeOrderService{}
		h := newEventHandler(svc, &fakeGuard{})

		h.ProcessMessage(ctx, eventMessage(`{"receiptUrl":"https://stripe.test/r/1"}`))
		assert.Equal(t, 0, svc.payCalled)
	})

	t.Run("duplicate delivery is dropped before the service", func(t *testing.T) {
		svc := &fakeOrderService{}
		guard := &fakeGuard{handled: map[string]bool{validUUID: true}}
		h := newEventHandler(svc, guard)

		h.ProcessMessage(ctx, eventMessage(`{"orderId":"`+validUUID+`","receiptUrl":"u","stripePaymentId":"ch_1"}`))
		assert.Equal(t, 0, svc.payCalled)
	})

	t.Run("service failure is swallowed, no reply channel exists", func(t *testing.T) {
		svc := &fakeOrderService{payErr: errors.New("db gone")}
		guard := &fakeGuard{}
		h := newEventHandler(svc, guard)

		h.ProcessMessage(ctx, eventMessage(`{"orderId":"`+validUUID+`","receiptUrl":"u","stripePaymentId":"ch_1"}`))
		assert.Equal(t, 1, svc.payCalled)
		assert.Empty(t, guard.marked)
	})

	t.Run("redelivery after a failed attempt is processed, not dropped", func(t *testing.T) {
		svc := &fakeOrderService{payErr: errors.New("db gone")}
		guard := &fakeGuard{}
		h := newEventHandler(svc, guard)
		msg := eventMessage(`{"orderId":"` + validUUID + `","receiptUrl":"u","stripePaymentId":"ch_1"}`)

		// 首次投递失败：不落标记，等待总线重投
		h.ProcessMessage(ctx, msg)
		require.Equal(t, 1, svc.payCalled)
		require.Empty(t, guard.marked)

		// 重投同一条消息必须再次到达服务并成功落标
		svc.payErr = nil
		h.ProcessMessage(ctx, msg)
		assert.Equal(t, 2, svc.payCalled)
		assert.Equal(t, []string{validUUID}, guard.marked)

		// 成功之后的再次重投才被去重
		h.ProcessMessage(ctx, msg)
		assert.Equal(t, 2, svc.payCalled)
	})
}
