package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bazaar/internal/pkg/logger"
)

// paidEventKeyTTL 限定去重键的存活时间。过期后重放仍会被仓储层的
// 已支付检查拦下，这里只是挡掉消息总线 at-least-once 带来的常见短间隔重投。
const paidEventKeyTTL = 24 * time.Hour

// RedisReplayGuard 对支付完成事件做先查后标的一次性判定。
// 标记只在事件处理成功后写入，失败的投递不留痕迹，重投时会再次放行；
// 并发重复投递可能同时通过检查，靠仓储层的已支付检查保证单收据。
type RedisReplayGuard struct {
	client *redis.Client
}

// NewRedisReplayGuard 创建事件去重器。
func NewRedisReplayGuard(addr string) *RedisReplayGuard {
	return &RedisReplayGuard{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func paidEventKey(orderID string) string {
	return fmt.Sprintf("orders:paid-event:{%s}", orderID)
}

// AlreadyHandled 判断该订单的支付完成事件是否已处理过。
// Redis 不可用时放行，由仓储层的状态检查兜底幂等。
func (g *RedisReplayGuard) AlreadyHandled(ctx context.Context, orderID string) bool {
	n, err := g.client.Exists(ctx, paidEventKey(orderID)).Result()
	if err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).
			Msg("replay guard unavailable, falling through to store-level check")
		return false
	}
	return n > 0
}

// MarkHandled 在事件处理成功后记录标记。写入失败只告警：
// 后续重放会穿透到仓储层，被已支付检查拦下。
func (g *RedisReplayGuard) MarkHandled(ctx context.Context, orderID string) {
	if err := g.client.Set(ctx, paidEventKey(orderID), 1, paidEventKeyTTL).Err(); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", orderID).
			Msg("failed to record paid-event marker")
	}
}

// Close 释放底层连接。
func (g *RedisReplayGuard) Close() error {
	return g.client.Close()
}
