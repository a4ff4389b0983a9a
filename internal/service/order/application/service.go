package application

import (
	"context"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/service/order/domain"
	"bazaar/internal/service/order/domain/port"
)

// sessionCurrency 是发给支付网关的固定币种。
const sessionCurrency = "usd"

// OrderApplicationService 编排订单生命周期：校验、定价、持久化、
// 状态流转和支付完成。业务规则都在这一层，持久化与远程调用
// 通过注入的仓储和端口完成，服务自身不持有任何存储客户端。
type OrderApplicationService struct {
	repo      domain.OrderRepository
	validator port.ProductValidator
	gateway   port.PaymentGateway
	tracer    trace.Tracer
}

func NewOrderApplicationService(
	repo domain.OrderRepository,
	validator port.ProductValidator,
	gateway port.PaymentGateway,
	tracer trace.Tracer,
) *OrderApplicationService {
	return &OrderApplicationService{
		repo:      repo,
		validator: validator,
		gateway:   gateway,
		tracer:    tracer,
	}
}

// Create 创建订单：去重商品 ID → 目录校验 → 按目录价算总额 →
// 单事务落库 → 返回带展示名的订单视图。
func (s *OrderApplicationService) Create(ctx context.Context, req CreateOrderRequest) (*OrderWithProducts, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()

	requested := make([]domain.RequestedItem, 0, len(req.Items))
	for _, item := range req.Items {
		requested = append(requested, domain.RequestedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	products, err := s.validator.Validate(ctx, dedupeProductIDs(req.Items))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "product validation failed")
		return nil, errors.Wrap(err, "validate products")
	}
	catalog := domain.IndexProducts(products)

	order, err := domain.NewOrder(requested, catalog)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if err := s.repo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to persist order")
		return nil, errors.Wrap(err, "persist order")
	}

	logger.Ctx(ctx).Info().
		Str("order_id", order.ID).
		Float64("total_amount", order.TotalAmount).
		Int("total_items", order.TotalItems).
		Msg("order created")

	return enrichOrder(order, catalog)
}

// FindAll 分页列出订单，可按状态过滤。
func (s *OrderApplicationService) FindAll(ctx context.Context, query PaginationQuery) (*OrderPage, error) {
	ctx, span := s.tracer.Start(ctx, "app.FindAllOrders")
	defer span.End()

	query = query.Normalize()
	if query.Status != nil && !query.Status.Valid() {
		return nil, errors.Wrapf(domain.ErrInvalidStatus, "status %s", *query.Status)
	}

	orders, total, err := s.repo.FindPage(ctx, domain.PageQuery{
		Page:   query.Page,
		Limit:  query.Limit,
		Status: query.Status,
	})
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "list orders")
	}

	data := make([]OrderView, 0, len(orders))
	for i := range orders {
		data = append(data, ToOrderView(&orders[i]))
	}
	return &OrderPage{
		Data:        data,
		TotalOrders: total,
		CurrentPage: query.Page,
		LastPage:    lastPage(total, query.Limit),
	}, nil
}

// FindOne 取单个订单并用目录当前展示名富化行项目。
// 商品在创建后被目录删除时带着 ID 报 ErrUnknownProduct，而不是崩溃。
func (s *OrderApplicationService) FindOne(ctx context.Context, id string) (*OrderWithProducts, error) {
	ctx, span := s.tracer.Start(ctx, "app.FindOneOrder")
	defer span.End()

	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	ids := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.validator.Validate(ctx, ids)
	if err != nil {
		span.RecordError(err)
		return nil, errors.Wrap(err, "re-validate products")
	}

	return enrichOrder(order, domain.IndexProducts(products))
}

// ChangeStatus 更新订单状态。目标状态与当前一致时不做任何写入，
// 原样返回富化后的订单；发生更新时返回未富化的存储记录（Items 为空），
// 与既有调用方约定保持一致。
func (s *OrderApplicationService) ChangeStatus(ctx context.Context, id string, status domain.Status) (*OrderWithProducts, error) {
	ctx, span := s.tracer.Start(ctx, "app.ChangeOrderStatus")
	defer span.End()

	if !status.Valid() {
		return nil, errors.Wrapf(domain.ErrInvalidStatus, "status %s", status)
	}

	current, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return current, nil
	}

	updated, err := s.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("order_id", id).
		Str("from", string(current.Status)).
		Str("to", string(status)).
		Msg("order status changed")

	return &OrderWithProducts{OrderView: ToOrderView(updated)}, nil
}

// CreatePaymentSession 为刚创建的订单申请支付会话，
// 网关返回的描述符原样透传给调用方。
func (s *OrderApplicationService) CreatePaymentSession(ctx context.Context, order *OrderWithProducts) (port.PaymentSession, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreatePaymentSession")
	defer span.End()

	items := make([]port.SessionItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, port.SessionItem{
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}

	session, err := s.gateway.CreateSession(ctx, port.SessionRequest{
		OrderID:  order.ID,
		Currency: sessionCurrency,
		Items:    items,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "payment session creation failed")
		return nil, err
	}
	return session, nil
}

// PayOrder 处理支付完成事件：置为 PAID、打已支付标记，并在同一事务里
// 创建支付凭证。事件重放（订单已是 PAID）按空操作处理，不产生第二张凭证。
func (s *OrderApplicationService) PayOrder(ctx context.Context, event PaidOrderEvent) error {
	ctx, span := s.tracer.Start(ctx, "app.PayOrder", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	_, err := s.repo.MarkPaid(ctx, event.OrderID, domain.OrderReceipt{
		ReceiptURL:     event.ReceiptURL,
		StripeChargeID: event.StripePaymentID,
	})
	if errors.Is(err, domain.ErrAlreadyPaid) {
		logger.Ctx(ctx).Info().
			Str("order_id", event.OrderID).
			Msg("payment event replayed for paid order, ignoring")
		return nil
	}
	if err != nil {
		span.RecordError(err)
		return err
	}

	logger.Ctx(ctx).Info().
		Str("order_id", event.OrderID).
		Str("stripe_payment_id", event.StripePaymentID).
		Msg("order marked as paid")
	return nil
}

func dedupeProductIDs(items []RequestedItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

func lastPage(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
