package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Order 是订单聚合的根实体。
// 金额与件数在创建时由目录价格一次性算定，之后不再重算。
type Order struct {
	ID          string
	TotalAmount float64
	TotalItems  int
	Status      Status
	Paid        bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PaidAt      *time.Time

	Items   []OrderItem
	Receipt *OrderReceipt
}

// OrderItem 是订单的一个行项目。Price 是下单时刻的目录价快照，不可变。
type OrderItem struct {
	ProductID string
	Price     float64
	Quantity  int
}

// OrderReceipt 是支付凭证，与已支付订单一一对应。
type OrderReceipt struct {
	ReceiptURL     string
	StripeChargeID string
}

// RequestedItem 是创建订单时请求方给出的行项目。
type RequestedItem struct {
	ProductID string
	Quantity  int
}

// Product 是商品目录返回的商品记录。
type Product struct {
	ID    string
	Name  string
	Price float64
}

// ProductIndex 按 ID 索引目录记录，替代"数组里 find 再取字段"的不安全写法。
type ProductIndex map[string]Product

func IndexProducts(products []Product) ProductIndex {
	idx := make(ProductIndex, len(products))
	for _, p := range products {
		idx[p.ID] = p
	}
	return idx
}

// Lookup 按 ID 取目录记录，缺失时带着 ID 报 ErrUnknownProduct。
func (idx ProductIndex) Lookup(productID string) (Product, error) {
	p, ok := idx[productID]
	if !ok {
		return Product{}, errors.Wrapf(ErrUnknownProduct, "product %s", productID)
	}
	return p, nil
}

// 工厂函数: NewOrder 依据目录快照创建订单聚合。
// totalAmount = Σ price×quantity、totalItems = Σ quantity，价格取 catalog 当前值。
func NewOrder(requested []RequestedItem, catalog ProductIndex) (*Order, error) {
	if len(requested) == 0 {
		return nil, errors.New("cannot create order without items")
	}

	var (
		totalAmount float64
		totalItems  int
		items       = make([]OrderItem, 0, len(requested))
	)
	for _, req := range requested {
		product, err := catalog.Lookup(req.ProductID)
		if err != nil {
			return nil, err
		}
		totalAmount += product.Price * float64(req.Quantity)
		totalItems += req.Quantity
		items = append(items, OrderItem{
			ProductID: req.ProductID,
			Price:     product.Price,
			Quantity:  req.Quantity,
		})
	}

	now := time.Now().UTC()
	return &Order{
		ID:          uuid.New().String(),
		TotalAmount: totalAmount,
		TotalItems:  totalItems,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		Items:       items,
	}, nil
}

// Pay 将订单置为已支付并挂接凭证。
// 已支付订单再次调用返回 ErrAlreadyPaid，调用方据此把事件重放当作空操作，
// 保证一单一凭证。
func (o *Order) Pay(receipt OrderReceipt, at time.Time) error {
	if o.Status == StatusPaid {
		return ErrAlreadyPaid
	}
	o.Status = StatusPaid
	o.Paid = true
	o.PaidAt = &at
	o.UpdatedAt = at
	o.Receipt = &receipt
	return nil
}
