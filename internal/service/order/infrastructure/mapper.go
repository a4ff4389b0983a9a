package infrastructure

import (
	"database/sql"

	"bazaar/internal/service/order/domain"
)

// ToDomainOrder 将数据库模型转换为领域模型。
func ToDomainOrder(m *OrderModel) *domain.Order {
	order := &domain.Order{
		ID:          m.ID,
		TotalAmount: m.TotalAmount,
		TotalItems:  m.TotalItems,
		Status:      m.Status,
		Paid:        m.Paid,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.PaidAt.Valid {
		t := m.PaidAt.Time
		order.PaidAt = &t
	}
	for _, item := range m.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: item.ProductID,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}
	if m.Receipt != nil {
		order.Receipt = &domain.OrderReceipt{
			ReceiptURL:     m.Receipt.ReceiptURL,
			StripeChargeID: m.Receipt.StripeChargeID,
		}
	}
	return order
}

// ToOrderModel 将领域模型转换为数据库模型（用于创建）。
// 凭证不在这里落库，它只随支付完成事务写入。
func ToOrderModel(o *domain.Order) *OrderModel {
	model := &OrderModel{
		ID:          o.ID,
		TotalAmount: o.TotalAmount,
		TotalItems:  o.TotalItems,
		Status:      o.Status,
		Paid:        o.Paid,
		CreatedAt:   o.CreatedAt,
		UpdatedAt:   o.UpdatedAt,
	}
	if o.PaidAt != nil {
		model.PaidAt = sql.NullTime{Time: *o.PaidAt, Valid: true}
	}
	for _, item := range o.Items {
		model.Items = append(model.Items, OrderItemModel{
			OrderID:   o.ID,
			ProductID: item.ProductID,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}
	return model
}
