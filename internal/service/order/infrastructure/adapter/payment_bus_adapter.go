package adapter

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"bazaar/internal/pkg/mq"
	"bazaar/internal/service/order/domain/port"
)

const createPaymentSessionPattern = "create.payment.session"

// PaymentBusAdapter 是 port.PaymentGateway 的消息总线实现。
type PaymentBusAdapter struct {
	requester *mq.Requester
	topic     string
	timeout   time.Duration
}

// NewPaymentBusAdapter 创建支付网关适配器。
func NewPaymentBusAdapter(requester *mq.Requester, topic string, timeout time.Duration) *PaymentBusAdapter {
	return &PaymentBusAdapter{requester: requester, topic: topic, timeout: timeout}
}

// CreateSession 请求支付网关创建支付会话，返回的会话描述符原样透传。
// 创建会话不是幂等操作，任何失败都不重试，直接上抛。
func (a *PaymentBusAdapter) CreateSession(ctx context.Context, req port.SessionRequest) (port.PaymentSession, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	data, err := a.requester.Request(callCtx, a.topic, createPaymentSessionPattern, req)
	if err != nil {
		return nil, errors.Wrap(err, "create payment session")
	}
	return port.PaymentSession(data), nil
}
