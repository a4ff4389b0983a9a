package domain

import "github.com/pkg/errors"

var (
	// ErrOrderNotFound 订单 ID 没有对应记录
	ErrOrderNotFound = errors.New("order not found")
	// ErrUnknownProduct 请求的商品 ID 不在商品目录的返回结果中
	ErrUnknownProduct = errors.New("unknown product id")
	// ErrAlreadyPaid 订单已处于 PAID 状态，重复的支付完成事件应被忽略
	ErrAlreadyPaid = errors.New("order already paid")
	// ErrInvalidStatus 状态值不在枚举集合内
	ErrInvalidStatus = errors.New("invalid order status")
)
