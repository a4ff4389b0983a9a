package interfaces

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"bazaar/internal/pkg/metrics"
	"bazaar/internal/pkg/mq"
	"bazaar/internal/service/order/application"
	"bazaar/internal/service/order/domain"
	"bazaar/internal/service/order/domain/port"
)

// 指标注册是进程级的，测试里共享一份，避免重复注册
var testMetrics = metrics.NewBusMetrics("order_service_test")

type fakeOrderService struct {
	createIn    *application.CreateOrderRequest
	createOut   *application.OrderWithProducts
	createErr   error
	findAllOut  *application.OrderPage
	findOneIn   string
	findOneOut  *application.OrderWithProducts
	findOneErr  error
	changeIn    domain.Status
	changeOut   *application.OrderWithProducts
	changeErr   error
	sessionOut  port.PaymentSession
	sessionErr  error
	payIn       *application.PaidOrderEvent
	payErr      error
	payCalled   int
}

func (f *fakeOrderService) Create(_ context.Context, req application.CreateOrderRequest) (*application.OrderWithProducts, error) {
	f.createIn = &req
	return f.createOut, f.createErr
}

func (f *fakeOrderService) FindAll(_ context.Context, _ application.PaginationQuery) (*application.OrderPage, error) {
	return f.findAllOut, nil
}

func (f *fakeOrderService) FindOne(_ context.Context, id string) (*application.OrderWithProducts, error) {
	f.findOneIn = id
	return f.findOneOut, f.findOneErr
}

func (f *fakeOrderService) ChangeStatus(_ context.Context, _ string, status domain.Status) (*application.OrderWithProducts, error) {
	f.changeIn = status
	return f.changeOut, f.changeErr
}

func (f *fakeOrderService) CreatePaymentSession(_ context.Context, _ *application.OrderWithProducts) (port.PaymentSession, error) {
	return f.sessionOut, f.sessionErr
}

func (f *fakeOrderService) PayOrder(_ context.Context, event application.PaidOrderEvent) error {
	f.payCalled++
	f.payIn = &event
	return f.payErr
}

func newTestHandler(svc *fakeOrderService) *BusHandler {
	return NewBusHandler(svc, nil, nil, testMetrics, otel.Tracer("test"))
}

const validUUID = "11111111-2222-3333-4444-555555555555"

func TestDispatchUnknownPattern(t *testing.T) {
	t.Parallel()

	h := newTestHandler(&fakeOrderService{})
	env := h.Dispatch(context.Background(), "bogusPattern", nil)

	require.False(t, env.OK)
	assert.Equal(t, 400, env.Error.Status)
	assert.Contains(t, env.Error.Message, "bogusPattern")
}

func TestDispatchCreateOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("happy path replies with order and payment session", func(t *testing.T) {
		svc := &fakeOrderService{
			createOut: &application.OrderWithProducts{
				OrderView: application.OrderView{ID: validUUID, Status: domain.StatusPending},
				Items:     []application.EnrichedItem{{ProductID: "p-1", Name: "Keyboard", Price: 10, Quantity: 1}},
			},
			sessionOut: port.PaymentSession(`{"checkoutUrl":"https://stripe.test/c","sessionId":"cs_1"}`),
		}
		h := newTestHandler(svc)

		env := h.Dispatch(ctx, "createOrder", []byte(`{"items":[{"productId":"p-1","quantity":1}]}`))
		require.True(t, env.OK)

		var reply struct {
			Order          *application.OrderWithProducts `json:"order"`
			PaymentSession map[string]string              `json:"paymentSession"`
		}
		require.NoError(t, json.Unmarshal(env.Data, &reply))
		assert.Equal(t, validUUID, reply.Order.ID)
		assert.Nil(t, reply.Order.PaidAt)
		assert.Equal(t, "cs_1", reply.PaymentSession["sessionId"])

		require.NotNil(t, svc.createIn)
		assert.Equal(t, "p-1", svc.createIn.Items[0].ProductID)
	})

	t.Run("empty items rejected", func(t *testing.T) {
		h := newTestHandler(&fakeOrderService{})
		env := h.Dispatch(ctx, "createOrder", []byte(`{"items":[]}`))
		require.False(t, env.OK)
		assert.Equal(t, 400, env.Error.Status)
	})

	t.Run("non-positive quantity rejected", func(t *testing.T) {
		h := newTestHandler(&fakeOrderService{})
		env := h.Dispatch(ctx, "createOrder", []byte(`{"items":[{"productId":"p-1","quantity":0}]}`))
		require.False(t, env.OK)
		assert.Equal(t, 400, env.Error.Status)
		assert.Contains(t, env.Error.Message, "quantity")
	})

	t.Run("malformed payload rejected", func(t *testing.T) {
		h := newTestHandler(&fakeOrderService{})
		env := h.Dispatch(ctx, "createOrder", []byte(`{`))
		require.False(t, env.OK)
		assert.Equal(t, 400, env.Error.Status)
	})

	t.Run("unknown product surfaces as validation error", func(t *testing.T) {
		svc := &fakeOrderService{createErr: errors.Wrapf(domain.ErrUnknownProduct, "product %s", "p-404")}
		h := newTestHandler(svc)

		env := h.Dispatch(ctx, "createOrder", []byte(`{"items":[{"productId":"p-404","quantity":1}]}`))
		require.False(t, env.OK)
		assert.Equal(t, 400, env.Error.Status)
		assert.Contains(t, env.Error.Message, "p-404")
	})

	t.Run("session failure keeps internal classification", func(t *testing.T) {
		svc := &fakeOrderService{
			createOut:  &application.OrderWithProducts{OrderView: application.OrderView{ID: validUUID}},
			sessionErr: errors.New("gateway down"),
		}
		h := newTestHandler(svc)

		env := h.Dispatch(ctx, "createOrder", []byte(`{"items":[{"productId":"p-1","quantity":1}]}`))
		require.False(t, env.OK)
		assert.Equal(t, 500, env.Error.Status)
	})
}

func TestDispatchFindOneOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("payload must be a valid UUID string", func(t *testing.T) {
		h := newTestHandler(&fakeOrderService{})

		env := h.Dispatch(ctx, "findOneOrder", []byte(`"not-a-uuid"`))
		require.False(t, env.OK)
		assert.Equal(t, 400, env.Error.Status)

		env = h.Dispatch(ctx, "findOneOrder", []byte(`123`))
		require.False(t, env.OK)
		assert.Equal(t, 400, env.Error.Status)
	})

	t.Run("missing order maps to 404", func(t *testing.T) {
		svc := &fakeOrderService{findOneErr: errors.Wrapf(domain.ErrOrderNotFound, "order with %s", validUUID)}
		h := newTestHandler(svc)

		env := h.Dispatch(ctx, "findOneOrder", []byte(`"`+validUUID+`"`))
		require.False(t, env.OK)
		assert.Equal(t, 404, env.Error.Status)
		assert.Contains(t, env.Error.Message, validUUID)
	})

	t.Run("found order is returned enriched", func(t *testing.T) {
		svc := &fakeOrderService{findOneOut: &application.OrderWithProducts{
			OrderView: application.OrderView{ID: validUUID},
			Items:     []application.EnrichedItem{{ProductID: "p-1", Name: "Keyboard", Price: 10, Quantity: 2}},
		}}
		h := newTestHandler(svc)

		env := h.Dispatch(ctx, "findOneOrder", []byte(`"`+validUUID+`"`))
		require.True(t, env.OK)
		assert.Equal(t, validUUID, svc.findOneIn)

		var order application.OrderWithProducts
		require.NoError(t, json.Unmarshal(env.Data, &order))
		assert.Equal(t, "Keyboard", order.Items[0].Name)
	})
}

func TestDispatchFindAllOrders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("invalid status enum rejected", func(t *testing.T) {
		h := newTestHandler(&fakeOrderService{})
		env := h.Dispatch(ctx, "findAllOrders", []byte(`{"status":"SHIPPED"}`))
		require.False(t, env.OK)
		assert.Equal(t, 400, env.Error.Status)
		assert.Contains(t, env.Error.Message, "PENDING")
	})

	t.Run("page payload passes through", func(t *testing.T) {
		svc := &fakeOrderService{findAllOut: &application.OrderPage{
			Data:        []application.OrderView{},
			TotalOrders: 25,
			CurrentPage: 3,
			LastPage:    3,
		}}
		h := newTestHandler(svc)

		env := h.Dispatch(ctx, "findAllOrders", []byte(`{"page":3,"limit":10}`))
		require.True(t, env.OK)

		var page application.OrderPage
		require.NoError(t, json.Unmarshal(env.Data, &page))
		assert.Equal(t, int64(25), page.TotalOrders)
		assert.Equal(t, 3, page.LastPage)
	})

	t.Run("empty payload uses defaults", func(t *testing.T) {
		svc := &fakeOrderService{findAllOut: &application.OrderPage{CurrentPage: 1, LastPage: 0}}
		h := newTestHandler(svc)

		env := h.Dispatch(ctx, "findAllOrders", nil)
		require.True(t, env.OK)
	})
}

func TestDispatchChangeOrderStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("invalid uuid rejected", func(t *testing.T) {
		h := newTestHandler(&fakeOrderService{})
		env := h.Dispatch(ctx, "changeOrderStatus", []byte(`{"id":"nope","status":"PAID"}`))
		require.False(t, env.OK)
		assert.Equal(t, 400, env.Error.Status)
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		h := newTestHandler(&fakeOrderService{})
		env := h.Dispatch(ctx, "changeOrderStatus", []byte(`{"id":"`+validUUID+`","status":"SHIPPED"}`))
		require.False(t, env.OK)
		assert.Equal(t, 400, env.Error.Status)
	})

	t.Run("valid request reaches the service", func(t *testing.T) {
		svc := &fakeOrderService{changeOut: &application.OrderWithProducts{
			OrderView: application.OrderView{ID: validUUID, Status: domain.StatusPaid},
		}}
		h := newTestHandler(svc)

		env := h.Dispatch(ctx, "changeOrderStatus", []byte(`{"id":"`+validUUID+`","status":"PAID"}`))
		require.True(t, env.OK)
		assert.Equal(t, domain.StatusPaid, svc.changeIn)
	})
}

func TestErrorEnvelope(t *testing.T) {
	t.Parallel()

	t.Run("remote error status passes through", func(t *testing.T) {
		env := errorEnvelope(&mq.RemoteError{Message: "some ids were not found", Status: 400})
		assert.Equal(t, 400, env.Error.Status)
		assert.Equal(t, "some ids were not found", env.Error.Message)
	})

	t.Run("unclassified errors default to 500", func(t *testing.T) {
		env := errorEnvelope(errors.New("db gone"))
		assert.Equal(t, 500, env.Error.Status)
	})
}
