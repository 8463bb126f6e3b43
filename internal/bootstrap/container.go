package bootstrap

import (
	"context"
	"log"

	"agro-assistant-be/internal/config"
	"agro-assistant-be/internal/controller"
	"agro-assistant-be/internal/handler"
	"agro-assistant-be/internal/pkg/logger"
	"agro-assistant-be/internal/pkg/mailer"
	"agro-assistant-be/internal/repository/implementation"
	"agro-assistant-be/internal/repository/unitofwork"
	"agro-assistant-be/internal/service"
	"agro-assistant-be/internal/websocket"
	"agro-assistant-be/pkg/assistant"
	"agro-assistant-be/pkg/llm/factory"
	pktNats "agro-assistant-be/pkg/nats"
	"agro-assistant-be/pkg/queue"
	"agro-assistant-be/pkg/tools"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AuthController     controller.IAuthController
	ChatController     controller.IChatController
	DocumentController controller.IDocumentController
	PaymentController  controller.IPaymentController

	// WebSockets & Notification
	NotificationHandler *handler.NotificationHandler
	WebSocketHub        *websocket.Hub

	// Background infrastructure (exposed for main.go lifecycle control)
	JobQueue      *queue.Queue
	NatsPublisher *pktNats.Publisher
	NatsSub       *pktNats.Subscriber
	Logger        logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// Core facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	emailService := mailer.NewEmailService(
		cfg.SMTP.Host,
		cfg.SMTP.Port,
		cfg.SMTP.Email,
		cfg.SMTP.Password,
		cfg.SMTP.Email,
		cfg.SMTP.SenderName,
		cfg.App.ClientURL,
	)

	// LLM provider
	llmProvider, err := factory.NewProvider(
		cfg.Ai.Provider,
		cfg.Ai.APIKey,
		cfg.Ai.BaseURL,
		cfg.Ai.Model,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM provider: %v", err)
	}
	sysLogger.Info("bootstrap", "llm provider configured", map[string]interface{}{
		"provider": cfg.Ai.Provider,
		"model":    cfg.Ai.Model,
	})

	// Tool registry: weather plus the Agrofit catalog mirror.
	agrofitRepo := implementation.NewAgrofitRepository(db)
	registry := tools.NewRegistry()
	registry.Register(tools.NewWeatherTool())
	registry.Register(tools.NewProductSearchTool(agrofitRepo))
	registry.Register(tools.NewCropListTool(agrofitRepo))
	registry.Register(tools.NewPestListTool(agrofitRepo))

	driver := assistant.NewDriver(llmProvider, registry, sysLogger)

	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{Addr: cfg.App.RedisURL}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
		rdb = nil
	}

	// WebSocket hub
	wsHub := websocket.NewHub(rdb, sysLogger)
	go wsHub.Run()

	// Job queue + chat worker
	jobQueue := queue.NewQueue(queue.Config{
		Workers:          cfg.Queue.Workers,
		MaxAttempts:      cfg.Queue.MaxAttempts,
		BackoffBase:      cfg.Queue.BackoffBase,
		CompletedHistory: cfg.Queue.CompletedHistory,
		FailedHistory:    cfg.Queue.FailedHistory,
	}, sysLogger)

	chatWorker := service.NewChatWorker(uowFactory, driver, service.NewTitleGenerator(llmProvider), natsPub, wsHub, sysLogger)
	jobQueue.Register(service.JobTypeChatCompletion, chatWorker.Handle)
	jobQueue.OnExhausted(chatWorker.Exhausted)

	// Services
	subscriptionService := service.NewSubscriptionService(uowFactory, sysLogger)
	authService := service.NewAuthService(uowFactory, emailService, cfg.Auth)
	chatService := service.NewChatService(uowFactory, jobQueue, sysLogger)
	documentService := service.NewDocumentService(uowFactory, sysLogger)
	paymentService := service.NewPaymentService(
		uowFactory,
		subscriptionService,
		emailService,
		natsPub,
		cfg.Payment,
		cfg.App.ClientURL,
		sysLogger,
	)

	// Notification consumer: bus events become stored notifications and
	// websocket pushes.
	notifRepo := implementation.NewNotificationRepository(db)
	notifService := service.NewNotificationService(notifRepo, wsHub, sysLogger)
	if natsSub != nil {
		if err := natsSub.Subscribe("events.>", "notifications", notifService.HandleEvent); err != nil {
			log.Printf("[WARN] Failed to subscribe to event bus: %v", err)
		}
	}
	notifHandler := handler.NewNotificationHandler(notifService, wsHub, sysLogger)

	return &Container{
		AuthController:     controller.NewAuthController(authService),
		ChatController:     controller.NewChatController(chatService, subscriptionService, sysLogger),
		DocumentController: controller.NewDocumentController(documentService),
		PaymentController:  controller.NewPaymentController(paymentService, sysLogger),

		NotificationHandler: notifHandler,
		WebSocketHub:        wsHub,

		JobQueue:      jobQueue,
		NatsPublisher: natsPub,
		NatsSub:       natsSub,
		Logger:        sysLogger,
	}
}
