package application

import (
	"time"

	"bazaar/internal/service/order/domain"
)

// CreateOrderRequest 是创建订单用例的输入数据
type CreateOrderRequest struct {
	Items []RequestedItem `json:"items"`
}

// RequestedItem 是请求方给出的行项目。数量为正整数，由入站边界校验。
type RequestedItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// PaginationQuery 是分页查询用例的输入数据
type PaginationQuery struct {
	Page   int            `json:"page,omitempty"`
	Limit  int            `json:"limit,omitempty"`
	Status *domain.Status `json:"status,omitempty"`
}

// Normalize 补齐缺省值：page 默认 1，limit 默认 10。
func (q PaginationQuery) Normalize() PaginationQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = 10
	}
	return q
}

// OrderView 是订单的标量视图，用于列表页和未加工的更新返回。
type OrderView struct {
	ID          string        `json:"id"`
	TotalAmount float64       `json:"totalAmount"`
	TotalItems  int           `json:"totalItems"`
	Status      domain.Status `json:"status"`
	Paid        bool          `json:"paid"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	PaidAt      *time.Time    `json:"paidAt"`
}

// EnrichedItem 是带目录展示名的行项目视图。
// Price 是下单时刻的快照价，Name 是目录当前的展示名。
type EnrichedItem struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// OrderWithProducts 是订单连同（可能经过目录富化的）行项目的完整视图。
// 未经富化的路径 Items 为空（见 ChangeStatus 的更新分支）。
type OrderWithProducts struct {
	OrderView
	Items []EnrichedItem `json:"items,omitempty"`
}

// OrderPage 是分页查询的输出数据
type OrderPage struct {
	Data        []OrderView `json:"data"`
	TotalOrders int64       `json:"totalOrders"`
	CurrentPage int         `json:"currentPage"`
	LastPage    int         `json:"lastPage"`
}

// PaidOrderEvent 是支付完成事件的载荷
type PaidOrderEvent struct {
	OrderID         string `json:"orderId"`
	ReceiptURL      string `json:"receiptUrl"`
	StripePaymentID string `json:"stripePaymentId"`
}

// ToOrderView 从领域模型转换为标量视图。
func ToOrderView(o *domain.Order) OrderView {
	return OrderView{
		ID:          o.ID,
		TotalAmount: o.TotalAmount,
		TotalItems:  o.TotalItems,
		Status:      o.Status,
		Paid:        o.Paid,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
		PaidAt:      o.PaidAt,
	}
}

// enrichOrder 用目录索引为订单行项目补充展示名。
// 目录中缺失的商品带着 ID 报 ErrUnknownProduct，绝不触发空引用。
func enrichOrder(o *domain.Order, catalog domain.ProductIndex) (*OrderWithProducts, error) {
	items := make([]EnrichedItem, 0, len(o.Items))
	for _, item := range o.Items {
		product, err := catalog.Lookup(item.ProductID)
		if err != nil {
			return nil, err
		}
		items = append(items, EnrichedItem{
			ProductID: item.ProductID,
			Name:      product.Name,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}
	return &OrderWithProducts{OrderView: ToOrderView(o), Items: items}, nil
}
