package port

import (
	"context"

	"bazaar/internal/service/order/domain"
)

// ProductValidator 是商品目录服务的出站端口。
// Validate 对给定 ID 集合做存在性校验，全部命中时返回完整商品记录，
// 任一 ID 未知时由目录服务侧直接报错。
type ProductValidator interface {
	Validate(ctx context.Context, ids []string) ([]domain.Product, error)
}
