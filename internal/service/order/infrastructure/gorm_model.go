package infrastructure

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"bazaar/internal/service/order/domain"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	ID          string        `gorm:"type:char(36);primaryKey"`
	TotalAmount float64       `gorm:"type:decimal(10,2)"`
	TotalItems  int           `gorm:"type:int"`
	Status      domain.Status `gorm:"type:varchar(16);index;default:PENDING"`
	Paid        bool          `gorm:"default:false"`
	PaidAt      sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time

	// 关联关系
	Items   []OrderItemModel   `gorm:"foreignKey:OrderID"`
	Receipt *OrderReceiptModel `gorm:"foreignKey:OrderID"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应数据库中的 order_items 表
type OrderItemModel struct {
	gorm.Model
	OrderID   string  `gorm:"type:char(36);index"`
	ProductID string  `gorm:"type:char(36);index"`
	Price     float64 `gorm:"type:decimal(10,2)"`
	Quantity  int     `gorm:"type:int"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderItemModel) TableName() string {
	return "order_items"
}

// OrderReceiptModel 对应数据库中的 order_receipts 表，
// 与订单一对一，仅在支付完成时创建。
type OrderReceiptModel struct {
	gorm.Model
	OrderID        string `gorm:"type:char(36);uniqueIndex"`
	ReceiptURL     string `gorm:"type:varchar(512)"`
	StripeChargeID string `gorm:"type:varchar(128)"`
}

// TableName 指定 GORM 应该使用的表名
func (OrderReceiptModel) TableName() string {
	return "order_receipts"
}
