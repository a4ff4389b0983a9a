package domain

import "context"

// PageQuery 描述分页查询条件。Status 为 nil 时不过滤。
type PageQuery struct {
	Page   int
	Limit  int
	Status *Status
}

func (q PageQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// OrderRepository 定义了订单聚合的持久化接口。
// 它位于领域层，由基础设施层实现。
type OrderRepository interface {
	// Create 在一个事务内写入订单及其全部行项目。
	Create(ctx context.Context, order *Order) error

	// FindByID 返回订单及其行项目，不存在时报 ErrOrderNotFound。
	FindByID(ctx context.Context, id string) (*Order, error)

	// FindPage 返回一页订单（只含标量字段，不带行项目）和满足条件的总数。
	// 结果按 created_at, id 升序，保证分页稳定。
	FindPage(ctx context.Context, query PageQuery) ([]Order, int64, error)

	// UpdateStatus 更新状态并返回更新后的存储记录（不带行项目）。
	UpdateStatus(ctx context.Context, id string, status Status) (*Order, error)

	// MarkPaid 在一个事务内更新支付状态并创建凭证。
	// 订单已是 PAID 时不做任何写入，返回 ErrAlreadyPaid。
	MarkPaid(ctx context.Context, id string, receipt OrderReceipt) (*Order, error)
}
