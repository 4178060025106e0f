package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/mbeoliero/kit/log"
	"github.com/workhive/chat-server/internal/config"
	"github.com/workhive/chat-server/internal/gateway"
	"github.com/workhive/chat-server/internal/handler"
	"github.com/workhive/chat-server/internal/notify"
	"github.com/workhive/chat-server/internal/repository"
	"github.com/workhive/chat-server/internal/router"
	"github.com/workhive/chat-server/internal/service"
	"github.com/workhive/chat-server/pkg/constant"
)

func main() {
	ctx := context.TODO()

	// Load configuration
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		log.CtxError(ctx, "failed to load config: %v", err)
		panic(err)
	}

	log.CtxInfo(ctx, "config loaded: mode=%s", cfg.Server.Mode)

	// Initialize Redis key prefix
	constant.InitRedisKeyPrefix(cfg.Redis.KeyPrefix)

	// Initialize repositories
	repos, err := repository.NewRepositories(cfg)
	if err != nil {
		log.CtxError(ctx, "failed to initialize repositories: %v", err)
		panic(err)
	}
	defer repos.Close()

	// Check database connection
	if err := repos.CheckConnection(ctx); err != nil {
		log.CtxError(ctx, "database connection check failed: %v", err)
		panic(err)
	}
	log.CtxInfo(ctx, "database connection established")

	// Initialize services
	chatService := service.NewChatService(repos.Conversation, repos.Message)
	convService := service.NewConversationService(repos.Conversation, repos.Message)

	// Initialize WebSocket gateway
	wsServer := gateway.NewWsServer(cfg, repos.Redis, chatService)

	// The gateway owns presence and fan-out; the pipeline consumes both
	chatService.SetPresence(wsServer)
	chatService.SetPusher(wsServer)

	// Optional downstream notification producer
	if cfg.Kafka.Enabled {
		producer := notify.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		chatService.SetNotifier(producer)
		log.CtxInfo(ctx, "notification producer enabled: topic=%s", cfg.Kafka.Topic)
	}

	// Start WebSocket gateway
	wsServer.Run(ctx)
	log.CtxInfo(ctx, "websocket gateway started")

	// Initialize handlers
	handlers := &router.Handlers{
		Message:      handler.NewMessageHandler(chatService, convService),
		Conversation: handler.NewConversationHandler(convService, chatService),
	}

	// Create Hertz server
	h := server.Default(
		server.WithHostPorts(fmt.Sprintf(":%d", cfg.Server.HTTPPort)),
	)

	// Setup routes
	router.SetupRouter(h, handlers, wsServer)

	log.CtxInfo(ctx, "server starting on port %d", cfg.Server.HTTPPort)

	// Start server in goroutine
	go func() {
		h.Spin()
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.CtxInfo(ctx, "shutting down server...")

	// Graceful shutdown
	if err := h.Shutdown(ctx); err != nil {
		log.CtxError(ctx, "server shutdown error: %v", err)
	}

	log.CtxInfo(ctx, "server stopped")
}
