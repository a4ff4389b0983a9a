package domain

// Status 定义了订单的生命周期状态。
type Status string

const (
	StatusPending   Status = "PENDING"   // 已创建，等待支付
	StatusPaid      Status = "PAID"      // 已支付
	StatusDelivered Status = "DELIVERED" // 已发货
	StatusCancelled Status = "CANCELLED" // 已取消
)

// StatusList 是状态的封闭集合，入站校验依据它做枚举检查。
var StatusList = []Status{StatusPending, StatusPaid, StatusDelivered, StatusCancelled}

func (s Status) Valid() bool {
	for _, v := range StatusList {
		if s == v {
			return true
		}
	}
	return false
}
