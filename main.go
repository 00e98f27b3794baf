package main

import (
	"context"
	"log"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"botfactory/bots"
	"botfactory/chat"
	"botfactory/config"
	"botfactory/database"
	"botfactory/database/queries"
	"botfactory/handlers"
	"botfactory/knowledge"
	"botfactory/llm"
	"botfactory/logging"
	"botfactory/middleware"
	"botfactory/models"
	"botfactory/payments"
	"botfactory/scheduler"
	"botfactory/websocket"
)

func main() {
	cfg := config.Load()

	if err := logging.Init(cfg.Debug); err != nil {
		log.Fatalf("Ошибка инициализации логирования: %v", err)
	}
	defer logging.Sync()

	// База данных
	db, err := database.Init(cfg)
	if err != nil {
		logging.DB.Fatal("подключение к базе данных не удалось", zap.Error(err))
	}
	defer db.Close()

	usersQ := queries.NewUsers(db)
	botsQ := queries.NewBots(db)
	knowledgeQ := queries.NewKnowledge(db)
	chatsQ := queries.NewChats(db)
	paymentsQ := queries.NewPayments(db)

	// Redis нужен только лимитеру; без него лимитер выключен
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logging.API.Fatal("неверный REDIS_URL", zap.Error(err))
		}
		rdb = redis.NewClient(opt)
	}

	// Gemini
	llmClient, err := llm.NewClient(context.Background(), cfg.GoogleAPIKey, cfg.AIModel, cfg.AIEmbedModel, cfg.AITimeout)
	if err != nil {
		logging.AI.Fatal("инициализация Gemini не удалась", zap.Error(err))
	}

	// Живая лента диалогов
	hub := websocket.NewHub()
	go hub.Run()

	// Пайплайн обработки сообщений
	retriever := knowledge.NewRetriever(knowledgeQ)
	chatSvc := chat.NewService(chatsQ, botsQ, usersQ, retriever, llmClient, hub, cfg.AIModel)

	// Платформенные адаптеры
	registry := bots.NewRegistry()
	registry.Register(models.PlatformTelegram, bots.TelegramFactory)
	cache := bots.NewCache(registry)
	manager := bots.NewManager(cache, cfg.WebhookBaseURL)

	// Платёжные провайдеры
	activator := payments.NewSubscriptionActivator(usersQ)
	payme := payments.NewPayme(cfg.PaymeMerchantID, cfg.PaymeSecretKey, paymentsQ, activator)
	click := payments.NewClick(cfg.ClickMerchantID, cfg.ClickServiceID, cfg.ClickSecretKey, paymentsQ, activator)
	providers := payments.Registry{
		models.ProviderPayme: payme,
		models.ProviderClick: click,
	}

	auth := middleware.NewAuth(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)

	authHandler := handlers.NewAuthHandler(usersQ, auth)
	botsHandler := handlers.NewBotsHandler(botsQ, usersQ, manager)
	knowledgeHandler := handlers.NewKnowledgeHandler(knowledgeQ, botsQ)
	chatsHandler := handlers.NewChatsHandler(chatsQ, botsQ)
	paymentsHandler := handlers.NewPaymentsHandler(paymentsQ, usersQ, botsQ, providers,
		cfg.PriceStarter, cfg.PriceBasic, cfg.PricePremium)
	webhookHandler := handlers.NewWebhookHandler(botsQ, cache, chatSvc, payme, click)
	wsHandler := handlers.NewWebSocketHandler(hub, botsQ, auth)

	// Роутер
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.RateLimit(rdb, cfg.RateLimitPerMinute))

	// CORS для фронтенда
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	api := r.Group("/api/v1")
	{
		// Публичные эндпоинты авторизации
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/refresh", authHandler.Refresh)
		}

		// Защищённые маршруты
		authorized := api.Group("/")
		authorized.Use(auth.RequireAuth())
		{
			authorized.GET("/auth/me", authHandler.Me)
			authorized.POST("/auth/change-password", authHandler.ChangePassword)

			botGroup := authorized.Group("/bots")
			{
				botGroup.POST("", botsHandler.Create)
				botGroup.GET("", botsHandler.List)
				botGroup.GET("/:botId", botsHandler.Get)
				botGroup.PUT("/:botId", botsHandler.Update)
				botGroup.DELETE("/:botId", botsHandler.Delete)
				botGroup.POST("/:botId/activate", botsHandler.Activate)
				botGroup.POST("/:botId/deactivate", botsHandler.Deactivate)

				botGroup.POST("/:botId/knowledge", knowledgeHandler.Create)
				botGroup.GET("/:botId/knowledge", knowledgeHandler.List)
				botGroup.GET("/:botId/knowledge/search", knowledgeHandler.Search)
				botGroup.PUT("/:botId/knowledge/:id", knowledgeHandler.Update)
				botGroup.DELETE("/:botId/knowledge/:id", knowledgeHandler.Delete)

				botGroup.GET("/:botId/chats", chatsHandler.Sessions)
				botGroup.GET("/:botId/chats/:sessionId", chatsHandler.Messages)
				botGroup.POST("/:botId/messages/:messageId/feedback", chatsHandler.Feedback)
			}

			payGroup := authorized.Group("/payments")
			{
				payGroup.GET("/plans", paymentsHandler.Plans)
				payGroup.GET("/subscription", paymentsHandler.Subscription)
				payGroup.POST("", paymentsHandler.Create)
				payGroup.GET("", paymentsHandler.List)
				payGroup.GET("/:id", paymentsHandler.Get)
			}
		}

		// Webhook'и внешних систем (проверяют подлинность сами)
		webhooks := api.Group("/webhooks")
		{
			webhooks.GET("/telegram/:token", webhookHandler.TelegramVerify)
			webhooks.POST("/telegram/:token", webhookHandler.Telegram)
			webhooks.POST("/payme", webhookHandler.Payme)
			webhooks.POST("/click/prepare", webhookHandler.ClickPrepare)
			webhooks.POST("/click/complete", webhookHandler.ClickComplete)
		}
	}

	// Лента диалогов для дашборда
	r.GET("/ws", wsHandler.Feed)

	// Фоновые задачи подписок и платежей
	sched, err := scheduler.Start(usersQ, paymentsQ)
	if err != nil {
		logging.API.Fatal("запуск планировщика не удался", zap.Error(err))
	}
	defer func() { _ = sched.Shutdown() }()

	logging.API.Info("сервер запущен", zap.String("addr", cfg.Addr))
	if err := r.Run(cfg.Addr); err != nil {
		logging.API.Fatal("ошибка запуска сервера", zap.Error(err))
	}
}
