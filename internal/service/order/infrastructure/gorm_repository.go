package infrastructure

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"bazaar/internal/service/order/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository 创建一个新的 GORM 仓储实例
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create 在一个事务内写入订单和全部行项目。
func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	model := ToOrderModel(order)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// gorm 会随订单一并插入 Items 关联，但显式事务让意图更清楚
		return tx.Create(model).Error
	})
}

// FindByID 返回订单及其行项目和凭证。
func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Receipt").
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrOrderNotFound, "order with %s", id)
		}
		return nil, err
	}
	return ToDomainOrder(&model), nil
}

// FindPage 分页查询。列表视图只取订单标量字段，不做关联展开。
func (r *GormOrderRepository) FindPage(ctx context.Context, query domain.PageQuery) ([]domain.Order, int64, error) {
	// gorm 的链式语句不宜在终结方法后复用，按查询各建一条
	scoped := func() *gorm.DB {
		scope := r.db.WithContext(ctx).Model(&OrderModel{})
		if query.Status != nil {
			scope = scope.Where("status = ?", *query.Status)
		}
		return scope
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var models []OrderModel
	err := scoped().
		Order("created_at ASC, id ASC").
		Offset(query.Offset()).
		Limit(query.Limit).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	orders := make([]domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, *ToDomainOrder(&models[i]))
	}
	return orders, total, nil
}

// UpdateStatus 更新状态并返回更新后的存储记录（不带关联）。
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id string, status domain.Status) (*domain.Order, error) {
	result := r.db.WithContext(ctx).
		Model(&OrderModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, errors.Wrapf(domain.ErrOrderNotFound, "order with %s", id)
	}

	var model OrderModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, err
	}
	return ToDomainOrder(&model), nil
}

// MarkPaid 在一个事务内落支付状态和凭证。
// 已支付订单直接返回 ErrAlreadyPaid，不产生第二张凭证。
func (r *GormOrderRepository) MarkPaid(ctx context.Context, id string, receipt domain.OrderReceipt) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errors.Wrapf(domain.ErrOrderNotFound, "order with %s", id)
			}
			return err
		}
		if model.Status == domain.StatusPaid {
			return domain.ErrAlreadyPaid
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":  domain.StatusPaid,
			"paid":    true,
			"paid_at": sql.NullTime{Time: now, Valid: true},
		}
		if err := tx.Model(&model).Updates(updates).Error; err != nil {
			return err
		}
		model.Status = domain.StatusPaid
		model.Paid = true
		model.PaidAt = sql.NullTime{Time: now, Valid: true}
		model.UpdatedAt = now

		return tx.Create(&OrderReceiptModel{
			OrderID:        id,
			ReceiptURL:     receipt.ReceiptURL,
			StripeChargeID: receipt.StripeChargeID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return ToDomainOrder(&model), nil
}
