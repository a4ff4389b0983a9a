package interfaces

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/metrics"
	"bazaar/internal/pkg/mq"
	"bazaar/internal/service/order/application"
	"bazaar/internal/service/order/domain"
	"bazaar/internal/service/order/domain/port"
)

// 请求/应答操作名，与既有调用方的线上契约一致。
const (
	patternCreateOrder       = "createOrder"
	patternFindAllOrders     = "findAllOrders"
	patternFindOneOrder      = "findOneOrder"
	patternChangeOrderStatus = "changeOrderStatus"
)

// OrderService 是处理器对应用层的依赖面。
type OrderService interface {
	Create(ctx context.Context, req application.CreateOrderRequest) (*application.OrderWithProducts, error)
	FindAll(ctx context.Context, query application.PaginationQuery) (*application.OrderPage, error)
	FindOne(ctx context.Context, id string) (*application.OrderWithProducts, error)
	ChangeStatus(ctx context.Context, id string, status domain.Status) (*application.OrderWithProducts, error)
	CreatePaymentSession(ctx context.Context, order *application.OrderWithProducts) (port.PaymentSession, error)
}

// BusHandler 是驱动适配器：消费订单请求主题，把消息映射到应用服务调用，
// 并把结果按 Envelope 写回调用方的 reply 主题。
type BusHandler struct {
	service OrderService
	reader  *kafka.Reader
	writer  *kafka.Writer
	metrics *metrics.BusMetrics
	tracer  trace.Tracer

	wg      sync.WaitGroup
	stopped bool
}

// NewBusHandler 创建一个订单请求处理器。writer 必须是未绑定主题的生产者。
func NewBusHandler(service OrderService, reader *kafka.Reader, writer *kafka.Writer, busMetrics *metrics.BusMetrics, tracer trace.Tracer) *BusHandler {
	return &BusHandler{
		service: service,
		reader:  reader,
		writer:  writer,
		metrics: busMetrics,
		tracer:  tracer,
	}
}

// Start 开始消费请求主题。这是一个长期运行的方法。
func (h *BusHandler) Start(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", h.reader.Config().Topic).Msg("order request handler started")
		for {
			if h.stopped {
				return
			}
			msg, err := h.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Msg("order request handler shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("could not read request message, retrying")
				time.Sleep(1 * time.Second)
				continue
			}

			h.processMessage(ctx, msg)

			if err := h.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				logger.Ctx(ctx).Error().Err(err).Msg("failed to commit request offset")
			}
		}
	}()
}

// Stop 优雅地停止处理器。
func (h *BusHandler) Stop() {
	h.stopped = true
	h.reader.Close()
	h.wg.Wait()
	logger.Ctx(context.Background()).Info().Msg("order request handler stopped")
}

func (h *BusHandler) processMessage(parentCtx context.Context, msg kafka.Message) {
	start := time.Now()
	ctx := mq.ExtractTraceContext(parentCtx, msg)
	pattern := mq.Header(msg, mq.HeaderPattern)

	ctx, span := h.tracer.Start(ctx, "bus."+pattern, trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	env := h.Dispatch(ctx, pattern, msg.Value)

	outcome := "ok"
	if !env.OK {
		outcome = "error"
		span.RecordError(errors.New(env.Error.Message))
	}
	h.metrics.Observe(pattern, outcome, start)

	if err := mq.Reply(ctx, h.writer, msg, env); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("pattern", pattern).Msg("failed to produce reply")
	}
}

// Dispatch 按 pattern 头路由到具体操作并构造应答 Envelope。
func (h *BusHandler) Dispatch(ctx context.Context, pattern string, payload []byte) mq.Envelope {
	switch pattern {
	case patternCreateOrder:
		return h.createOrder(ctx, payload)
	case patternFindAllOrders:
		return h.findAllOrders(ctx, payload)
	case patternFindOneOrder:
		return h.findOneOrder(ctx, payload)
	case patternChangeOrderStatus:
		return h.changeOrderStatus(ctx, payload)
	default:
		return mq.Fail("unknown message pattern: "+pattern, 400)
	}
}

// createOrderReply 把新订单和支付会话一起返回给调用方。
type createOrderReply struct {
	Order          *application.OrderWithProducts `json:"order"`
	PaymentSession json.RawMessage                `json:"paymentSession"`
}

func (h *BusHandler) createOrder(ctx context.Context, payload []byte) mq.Envelope {
	var req application.CreateOrderRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return mq.Fail("malformed createOrder payload: "+err.Error(), 400)
	}
	if len(req.Items) == 0 {
		return mq.Fail("items must not be empty", 400)
	}
	for _, item := range req.Items {
		if item.ProductID == "" {
			return mq.Fail("productId must not be empty", 400)
		}
		if item.Quantity < 1 {
			return mq.Fail("quantity must be a positive integer", 400)
		}
	}

	order, err := h.service.Create(ctx, req)
	if err != nil {
		return errorEnvelope(err)
	}

	// 与既有契约一致：发给支付网关的订单 paidAt 必须显式为 null，
	// 新建订单的 PaidAt 恰好满足这一点。
	session, err := h.service.CreatePaymentSession(ctx, order)
	if err != nil {
		return errorEnvelope(err)
	}
	return mq.Ok(createOrderReply{Order: order, PaymentSession: json.RawMessage(session)})
}

func (h *BusHandler) findAllOrders(ctx context.Context, payload []byte) mq.Envelope {
	var query application.PaginationQuery
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &query); err != nil {
			return mq.Fail("malformed findAllOrders payload: "+err.Error(), 400)
		}
	}
	if query.Status != nil && !query.Status.Valid() {
		return mq.Fail("status must be one of "+statusValues(), 400)
	}

	page, err := h.service.FindAll(ctx, query)
	if err != nil {
		return errorEnvelope(err)
	}
	return mq.Ok(page)
}

func (h *BusHandler) findOneOrder(ctx context.Context, payload []byte) mq.Envelope {
	var id string
	if err := json.Unmarshal(payload, &id); err != nil {
		return mq.Fail("findOneOrder payload must be a string", 400)
	}
	if _, err := uuid.Parse(id); err != nil {
		return mq.Fail("order id must be a valid UUID", 400)
	}

	order, err := h.service.FindOne(ctx, id)
	if err != nil {
		return errorEnvelope(err)
	}
	return mq.Ok(order)
}

type changeStatusRequest struct {
	ID     string        `json:"id"`
	Status domain.Status `json:"status"`
}

func (h *BusHandler) changeOrderStatus(ctx context.Context, payload []byte) mq.Envelope {
	var req changeStatusRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return mq.Fail("malformed changeOrderStatus payload: "+err.Error(), 400)
	}
	if _, err := uuid.Parse(req.ID); err != nil {
		return mq.Fail("order id must be a valid UUID", 400)
	}
	if !req.Status.Valid() {
		return mq.Fail("status must be one of "+statusValues(), 400)
	}

	order, err := h.service.ChangeStatus(ctx, req.ID, req.Status)
	if err != nil {
		return errorEnvelope(err)
	}
	return mq.Ok(order)
}

// errorEnvelope 把领域/下游错误翻译成应答错误体。
// 缺失订单归为 404，入参类错误归为 400，其余保持保守的 500 分类。
func errorEnvelope(err error) mq.Envelope {
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		return mq.Fail(err.Error(), 404)
	case errors.Is(err, domain.ErrUnknownProduct), errors.Is(err, domain.ErrInvalidStatus):
		return mq.Fail(err.Error(), 400)
	}
	var remote *mq.RemoteError
	if errors.As(err, &remote) {
		return mq.Fail(remote.Message, remote.Status)
	}
	return mq.Fail(err.Error(), 500)
}

func statusValues() string {
	out := ""
	for i, s := range domain.StatusList {
		if i > 0 {
			out += ", "
		}
		out += string(s)
	}
	return out
}
