package bootstrap

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"bazaar/internal/pkg/config"
	"bazaar/internal/pkg/logger"
	"bazaar/internal/tracing"
)

// AppInfo 包含了启动一个微服务所需的所有特定信息。
type AppInfo struct {
	ServiceName string
	Port        int
	// RegisterHandlers 允许服务注册自己的 HTTP 路由（健康检查、指标等）
	RegisterHandlers func(mux *http.ServeMux)
	// StartConsumers 在服务就绪后启动所有消息消费循环；
	// 传入的 ctx 在收到退出信号时被取消
	StartConsumers func(ctx context.Context)
	// Cleanup 在关停流程中执行，按使用方给定的顺序释放资源
	Cleanup func(ctx context.Context)
}

// StartService 封装了所有微服务的通用启动和优雅关停逻辑。
func StartService(info AppInfo) {
	config.Init()
	logger.Init(info.ServiceName)

	// Tracer
	tp, err := tracing.InitTracerProvider(info.ServiceName, config.GetCurrentConfig().Infra.Jaeger.Endpoint)
	if err != nil {
		logger.Ctx(context.Background()).Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 退出信号取消的根上下文，消费循环都挂在它下面
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(mux)
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}

	var group errgroup.Group
	group.Go(func() error {
		logger.Ctx(rootCtx).Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if info.StartConsumers != nil {
		info.StartConsumers(rootCtx)
	}

	// 阻塞，直到接收到退出信号
	<-rootCtx.Done()
	logger.Ctx(context.Background()).Info().Msgf("Shutting down service %s...", info.ServiceName)

	// 关停流程使用独立的有超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 按后进先出顺序清理：先停消费，再断外部连接
	if info.Cleanup != nil {
		info.Cleanup(ctx)
	}

	// 关闭 Tracer Provider，确保缓冲中的 trace 被发送出去
	if err := tp.Shutdown(ctx); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("Error shutting down tracer provider")
	}

	// 关闭 HTTP 服务器
	if err := server.Shutdown(ctx); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("Error shutting down http server")
	}
	if err := group.Wait(); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("http server exited with error")
	}

	logger.Ctx(context.Background()).Info().Msgf("Service %s gracefully shut down.", info.ServiceName)
}

// InstanceID 返回用于区分实例级资源（如 reply 消费组）的标识。
func InstanceID() string {
	host, err := os.Hostname()
	if err != nil {
		return "local"
	}
	return host
}
