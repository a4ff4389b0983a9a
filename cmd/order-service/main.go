package main

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"

	"bazaar/internal/pkg/bootstrap"
	"bazaar/internal/pkg/config"
	"bazaar/internal/pkg/metrics"
	"bazaar/internal/pkg/mq"
	"bazaar/internal/service/order/application"
	"bazaar/internal/service/order/infrastructure"
	"bazaar/internal/service/order/infrastructure/adapter"
	"bazaar/internal/service/order/interfaces"
)

const serviceName = "order-service"

// main 函数是应用的"组装根" (Composition Root)
// 它的核心职责是：创建并组装所有依赖项，然后启动应用。
func main() {
	config.Init()
	cfg := config.GetCurrentConfig()

	db, err := infrastructure.NewMysqlDB(cfg.Infra.Mysql.DSN)
	if err != nil {
		panic("failed to connect to mysql: " + err.Error())
	}
	repo := infrastructure.NewGormOrderRepository(db)

	// 请求/应答客户端：商品校验和支付会话都经由它走消息总线
	requester := mq.NewRequester(
		cfg.Infra.Kafka.Brokers,
		cfg.Infra.Kafka.ReplyTopic,
		cfg.Infra.Kafka.GroupID+"."+bootstrap.InstanceID(),
	)
	validator := adapter.NewCatalogBusAdapter(requester, cfg.Infra.Kafka.ProductRequestTopic, cfg.App.RequestTimeout)
	gateway := adapter.NewPaymentBusAdapter(requester, cfg.Infra.Kafka.PaymentRequestTopic, cfg.App.RequestTimeout)
	guard := adapter.NewRedisReplayGuard(cfg.Infra.Redis.Addr)

	tracer := otel.Tracer(serviceName)
	service := application.NewOrderApplicationService(repo, validator, gateway, tracer)

	busMetrics := metrics.NewBusMetrics("order_service")
	replyWriter := mq.NewKafkaWriter(cfg.Infra.Kafka.Brokers, "")
	requestHandler := interfaces.NewBusHandler(
		service,
		mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.OrderRequestTopic, cfg.Infra.Kafka.GroupID),
		replyWriter,
		busMetrics,
		tracer,
	)
	paymentHandler := interfaces.NewPaymentEventHandler(
		service,
		guard,
		mq.NewKafkaReader(cfg.Infra.Kafka.Brokers, cfg.Infra.Kafka.PaymentEventTopic, cfg.Infra.Kafka.GroupID),
		busMetrics,
		tracer,
	)

	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		Port:        cfg.App.Port,
		RegisterHandlers: func(mux *http.ServeMux) {
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
			mux.Handle("/metrics", metrics.Handler())
		},
		StartConsumers: func(ctx context.Context) {
			requester.Start(ctx)
			requestHandler.Start(ctx)
			paymentHandler.Start(ctx)
		},
		Cleanup: func(ctx context.Context) {
			requestHandler.Stop()
			paymentHandler.Stop()
			requester.Close()
			replyWriter.Close()
			guard.Close()
			infrastructure.CloseDB(db)
		},
	})
}
