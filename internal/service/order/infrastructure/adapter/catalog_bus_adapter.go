package adapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"bazaar/internal/pkg/logger"
	"bazaar/internal/pkg/mq"
	"bazaar/internal/service/order/domain"
)

// 商品校验的线上协议沿用既有命名（含历史拼写），不可改动。
const validateProductsPattern = "valide_products_ids"

type validateProductsRequest struct {
	IDs []string `json:"ids"`
}

type productRecord struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// CatalogBusAdapter 是 port.ProductValidator 的消息总线实现。
type CatalogBusAdapter struct {
	requester *mq.Requester
	topic     string
	timeout   time.Duration
}

// NewCatalogBusAdapter 创建商品目录适配器。
func NewCatalogBusAdapter(requester *mq.Requester, topic string, timeout time.Duration) *CatalogBusAdapter {
	return &CatalogBusAdapter{requester: requester, topic: topic, timeout: timeout}
}

// Validate 请求目录服务校验一组商品 ID。
// 校验是只读幂等操作，传输层失败时重试一次；目录侧的业务失败不重试。
func (a *CatalogBusAdapter) Validate(ctx context.Context, ids []string) ([]domain.Product, error) {
	payload := validateProductsRequest{IDs: ids}

	data, err := a.request(ctx, payload)
	if err != nil {
		var remote *mq.RemoteError
		if errors.As(err, &remote) {
			return nil, err
		}
		logger.Ctx(ctx).Warn().Err(err).Msg("product validation transport failure, retrying once")
		data, err = a.request(ctx, payload)
		if err != nil {
			return nil, errors.Wrap(err, "validate products")
		}
	}

	var records []productRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, errors.Wrap(err, "decode product records")
	}

	products := make([]domain.Product, 0, len(records))
	for _, r := range records {
		products = append(products, domain.Product{ID: r.ID, Name: r.Name, Price: r.Price})
	}
	return products, nil
}

func (a *CatalogBusAdapter) request(ctx context.Context, payload validateProductsRequest) (json.RawMessage, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.requester.Request(callCtx, a.topic, validateProductsPattern, payload)
}
