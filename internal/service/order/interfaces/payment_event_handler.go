package interfaces

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/metrics"
	"bazaar/internal/pkg/mq"
	"bazaar/internal/service/order/application"
)

const patternPaymentSucceeded = "payment.succeeded"

// PaymentService 是事件处理器对应用层的依赖面。
type PaymentService interface {
	PayOrder(ctx context.Context, event application.PaidOrderEvent) error
}

// ReplayGuard 对重放的事件做一次性判定。
// 先查后标：只有事件处理成功之后才落标记，处理失败的投递不消耗判定，
// 留给消息总线重投。
type ReplayGuard interface {
	AlreadyHandled(ctx context.Context, orderID string) bool
	MarkHandled(ctx context.Context, orderID string)
}

// PaymentEventHandler 消费 payment.succeeded 事件。
// 事件没有应答通道：处理失败只记录日志；总线按 at-least-once 投递，
// 重放由 ReplayGuard 和仓储层的已支付检查双重兜底。
type PaymentEventHandler struct {
	service PaymentService
	guard   ReplayGuard
	reader  *kafka.Reader
	metrics *metrics.BusMetrics
	tracer  trace.Tracer

	wg      sync.WaitGroup
	stopped bool
}

func NewPaymentEventHandler(service PaymentService, guard ReplayGuard, reader *kafka.Reader, busMetrics *metrics.BusMetrics, tracer trace.Tracer) *PaymentEventHandler {
	return &PaymentEventHandler{
		service: service,
		guard:   guard,
		reader:  reader,
		metrics: busMetrics,
		tracer:  tracer,
	}
}

// Start 开始消费事件主题。
func (h *PaymentEventHandler) Start(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		logger.Ctx(ctx).Info().Str("topic", h.reader.Config().Topic).Msg("payment event handler started")
		for {
			if h.stopped {
				return
			}
			msg, err := h.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					logger.Ctx(ctx).Info().Msg("payment event handler shutting down")
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("could not read payment event, retrying")
				time.Sleep(1 * time.Second)
				continue
			}

			h.ProcessMessage(ctx, msg)

			if err := h.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				logger.Ctx(ctx).Error().Err(err).Msg("failed to commit payment event offset")
			}
		}
	}()
}

// Stop 优雅地停止处理器。
func (h *PaymentEventHandler) Stop() {
	h.stopped = true
	h.reader.Close()
	h.wg.Wait()
	logger.Ctx(context.Background()).Info().Msg("payment event handler stopped")
}

// ProcessMessage 反序列化事件并调用应用服务。
func (h *PaymentEventHandler) ProcessMessage(parentCtx context.Context, msg kafka.Message) {
	start := time.Now()
	ctx := mq.ExtractTraceContext(parentCtx, msg)

	ctx, span := h.tracer.Start(ctx, "bus."+patternPaymentSucceeded, trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var event application.PaidOrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("malformed payment event, skipping")
		h.metrics.Observe(patternPaymentSucceeded, "malformed", start)
		return
	}
	if event.OrderID == "" {
		logger.Ctx(ctx).Error().Msg("payment event without orderId, skipping")
		h.metrics.Observe(patternPaymentSucceeded, "malformed", start)
		return
	}

	if h.guard.AlreadyHandled(ctx, event.OrderID) {
		logger.Ctx(ctx).Info().Str("order_id", event.OrderID).Msg("duplicate payment event, skipping")
		h.metrics.Observe(patternPaymentSucceeded, "duplicate", start)
		return
	}

	if err := h.service.PayOrder(ctx, event); err != nil {
		span.RecordError(err)
		logger.Ctx(ctx).Error().Err(err).Str("order_id", event.OrderID).Msg("failed to handle payment event")
		h.metrics.Observe(patternPaymentSucceeded, "error", start)
		return
	}
	h.guard.MarkHandled(ctx, event.OrderID)
	h.metrics.Observe(patternPaymentSucceeded, "ok", start)
}
