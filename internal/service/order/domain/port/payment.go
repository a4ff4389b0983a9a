package port

import (
	"context"
	"encoding/json"
)

// SessionItem 是发给支付网关的行项目视图：展示名 + 快照价 + 数量。
type SessionItem struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// SessionRequest 是创建支付会话的请求载荷。
type SessionRequest struct {
	OrderID  string        `json:"orderId"`
	Currency string        `json:"currency"`
	Items    []SessionItem `json:"items"`
}

// PaymentSession 是支付网关返回的会话描述符。
// 网关返回什么就透传什么（如 checkoutUrl、sessionId），这里不做解释。
type PaymentSession = json.RawMessage

// PaymentGateway 是支付服务的出站端口。
type PaymentGateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (PaymentSession, error)
}
