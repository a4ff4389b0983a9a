package mq

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"bazaar/internal/pkg/logger"
)

// 请求/应答约定的消息头。消息总线本身只有单向投递，
// 应答路由完全依赖这三个头的配合。
const (
	HeaderPattern       = "pattern"
	HeaderCorrelationID = "correlation-id"
	HeaderReplyTopic    = "reply-topic"
)

// Envelope 是所有请求/应答消息的统一载荷格式。
// 成功时 Data 有效；失败时 Error 带有消息和状态分类。
type Envelope struct {
	OK    bool            `json:"ok"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *ErrorBody      `json:"error,omitempty"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// RemoteError 是下游以 Envelope 形式返回的业务失败。
type RemoteError struct {
	Message string
	Status  int
}

func (e *RemoteError) Error() string { return e.Message }

// ErrReplyTimeout 表示在上下文截止前未等到应答。
var ErrReplyTimeout = errors.New("mq: reply not received before deadline")

// Requester 在 Kafka 上实现点对点请求/应答：
// 请求消息带 correlation-id 和 reply-topic 头发往目标主题，
// 应答方把 Envelope 写回 reply 主题，由后台循环按 correlation-id 派发。
type Requester struct {
	writer *kafka.Writer
	reader *kafka.Reader

	replyTopic string

	mu      sync.Mutex
	pending map[string]chan Envelope

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewRequester 创建一个 Requester。多实例可以共用同一个 replyTopic，
// 但 groupID 必须按实例区分（例如拼接实例 ID）：每个实例都消费全量应答，
// 对不上本实例 correlation-id 的消息直接丢弃。groupID 相同会导致应答
// 被其他实例抢走。
func NewRequester(brokers []string, replyTopic, groupID string) *Requester {
	return &Requester{
		writer:     NewKafkaWriter(brokers, ""),
		reader:     NewKafkaReader(brokers, replyTopic, groupID),
		replyTopic: replyTopic,
		pending:    make(map[string]chan Envelope),
	}
}

// Start 启动应答派发循环。
func (r *Requester) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			msg, err := r.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				logger.Ctx(ctx).Error().Err(err).Msg("could not read reply message")
				continue
			}
			r.dispatch(ctx, msg)
			if err := r.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
				logger.Ctx(ctx).Error().Err(err).Msg("failed to commit reply offset")
			}
		}
	}()
}

func (r *Requester) dispatch(ctx context.Context, msg kafka.Message) {
	correlationID := Header(msg, HeaderCorrelationID)
	if correlationID == "" {
		logger.Ctx(ctx).Warn().Msg("reply without correlation-id header, skipping")
		return
	}

	r.mu.Lock()
	ch, ok := r.pending[correlationID]
	if ok {
		delete(r.pending, correlationID)
	}
	r.mu.Unlock()
	if !ok {
		// 迟到的应答：请求方已超时放弃
		logger.Ctx(ctx).Warn().Str("correlation_id", correlationID).Msg("reply has no waiter, dropping")
		return
	}

	var env Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		env = Envelope{OK: false, Error: &ErrorBody{Message: "malformed reply: " + err.Error(), Status: 500}}
	}
	ch <- env
}

// Request 发送一次请求并阻塞等待应答，超时由 ctx 控制。
// 返回的字节是应答 Envelope 的 Data 部分；下游业务失败转为 *RemoteError。
func (r *Requester) Request(ctx context.Context, topic, pattern string, payload interface{}) (json.RawMessage, error) {
	value, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal request payload")
	}

	correlationID := uuid.New().String()
	ch := make(chan Envelope, 1)
	r.mu.Lock()
	r.pending[correlationID] = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, correlationID)
		r.mu.Unlock()
	}()

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(correlationID),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderPattern, Value: []byte(pattern)},
			{Key: HeaderCorrelationID, Value: []byte(correlationID)},
			{Key: HeaderReplyTopic, Value: []byte(r.replyTopic)},
		},
	}
	if err := ProduceMessage(ctx, r.writer, msg); err != nil {
		return nil, errors.Wrapf(err, "produce request to %s", topic)
	}

	select {
	case <-ctx.Done():
		return nil, errors.Wrapf(ErrReplyTimeout, "pattern %s", pattern)
	case env := <-ch:
		if !env.OK {
			body := env.Error
			if body == nil {
				body = &ErrorBody{Message: "unknown remote failure", Status: 500}
			}
			return nil, &RemoteError{Message: body.Message, Status: body.Status}
		}
		return env.Data, nil
	}
}

// Close 停止派发循环并释放底层连接。
func (r *Requester) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	err := r.reader.Close()
	r.wg.Wait()
	if werr := r.writer.Close(); err == nil {
		err = werr
	}
	return err
}

// Reply 把一个应答 Envelope 写回请求消息指定的 reply 主题。
// 请求缺少应答路由头时视为 fire-and-forget，直接忽略。
func Reply(ctx context.Context, writer *kafka.Writer, request kafka.Message, env Envelope) error {
	replyTopic := Header(request, HeaderReplyTopic)
	correlationID := Header(request, HeaderCorrelationID)
	if replyTopic == "" || correlationID == "" {
		return nil
	}

	value, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal reply envelope")
	}
	return ProduceMessage(ctx, writer, kafka.Message{
		Topic: replyTopic,
		Key:   []byte(correlationID),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderCorrelationID, Value: []byte(correlationID)},
		},
	})
}

// Ok 构造成功应答。data 序列化失败属于编程错误，直接转为失败应答。
func Ok(data interface{}) Envelope {
	raw, err := json.Marshal(data)
	if err != nil {
		return Fail("marshal reply data: "+err.Error(), 500)
	}
	return Envelope{OK: true, Data: raw}
}

// Fail 构造失败应答。
func Fail(message string, status int) Envelope {
	return Envelope{OK: false, Error: &ErrorBody{Message: message, Status: status}}
}
