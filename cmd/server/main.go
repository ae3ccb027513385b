package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tutor_chat/internal/config"
	"tutor_chat/internal/events"
	"tutor_chat/internal/handler"
	"tutor_chat/internal/middleware"
	"tutor_chat/internal/realtime"
	"tutor_chat/internal/repository"
	"tutor_chat/internal/service"
	"tutor_chat/internal/storage"
	"tutor_chat/pkg/logger"

	"github.com/dgraph-io/badger/v4"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	appLogger := logger.New(cfg.Log.Level)
	defer appLogger.Sync()

	ctx := context.Background()

	// Хранилище сообщений
	messages, dbPool, closeStorage := openMessageStore(ctx, cfg, appLogger)
	defer closeStorage()

	// Подключение к Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	// Вложения
	objectStore, err := storage.NewS3Store(ctx, cfg.S3, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to init object store", "error", err)
	}

	// Доменные события
	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, appLogger)
		appLogger.Info("Kafka publisher enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	defer publisher.Close()

	registry := realtime.NewRegistry(appLogger)

	repos := repository.NewRepositories(messages, dbPool, rdb, appLogger)
	services := service.NewServices(repos, registry, objectStore, publisher, cfg, appLogger)

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret, cfg.JWT.Issuer, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)

	handlers := handler.NewHandlers(services, registry, cfg, appLogger)

	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     router,
		ReadTimeout: cfg.Server.ReadTimeout,
		// без WriteTimeout: он рвет долгоживущие websocket
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Shutdown не ждет hijacked соединения, их закрывает реестр
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}
	registry.Close()
	if err := handlers.WebSocket.Wait(shutdownCtx); err != nil {
		appLogger.Warn("Websocket sessions did not finish in time", "error", err)
	}

	appLogger.Info("Server exited")
}

// openMessageStore поднимает выбранное хранилище. Пул Postgres возвращается
// отдельно, потому что на нем же живет аудит.
func openMessageStore(ctx context.Context, cfg *config.Config, appLogger logger.Logger) (repository.MessageRepository, *pgxpool.Pool, func()) {
	switch cfg.Storage.Driver {
	case config.StorageDriverBadger:
		db, err := badger.Open(badger.DefaultOptions(cfg.Storage.BadgerDir).WithLoggingLevel(badger.WARNING))
		if err != nil {
			appLogger.Fatal("Failed to open badger", "dir", cfg.Storage.BadgerDir, "error", err)
		}
		repo, err := repository.NewBadgerMessageRepository(db, appLogger)
		if err != nil {
			appLogger.Fatal("Failed to init badger message store", "error", err)
		}
		appLogger.Info("Badger message store opened", "dir", cfg.Storage.BadgerDir)

		return repo, nil, func() {
			if err := repo.Close(); err != nil {
				appLogger.Error("Failed to release message sequence", "error", err)
			}
			if err := db.Close(); err != nil {
				appLogger.Error("Failed to close badger", "error", err)
			}
		}

	default:
		poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
		if err != nil {
			appLogger.Fatal("Invalid database DSN", "error", err)
		}
		poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
		poolCfg.MaxConnIdleTime = cfg.Database.MaxIdleTime
		poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

		dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			appLogger.Fatal("Failed to connect to database", "error", err)
		}
		if err := dbPool.Ping(ctx); err != nil {
			appLogger.Fatal("Failed to ping database", "error", err)
		}
		appLogger.Info("Database connection established")

		if err := repository.Migrate(ctx, dbPool, appLogger); err != nil {
			appLogger.Fatal("Failed to apply migrations", "error", err)
		}

		return repository.NewMessageRepository(dbPool, appLogger), dbPool, dbPool.Close
	}
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler(log))
	router.MaxMultipartMemory = cfg.S3.MaxUploadBytes

	// Health check
	router.GET("/health", handlers.Health.Check)

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware.RequireAuth())
	{
		conversations := v1.Group("/conversations/:participantId")
		{
			conversations.GET("", handlers.Chat.GetSummary)
			conversations.GET("/messages", handlers.Chat.GetMessages)
			conversations.POST("/read", handlers.Chat.MarkRead)
		}

		v1.DELETE("/messages/:messageId", handlers.Chat.DeleteMessage)
		v1.POST("/attachments", rateLimitMiddleware.Limit("attachments", 30, time.Minute), handlers.Attachment.Upload)
		v1.GET("/users/:id/presence", handlers.Presence.GetPresence)
	}

	// WebSocket endpoint для чата
	router.GET("/ws/chat", authMiddleware.RequireAuth(), handlers.WebSocket.HandleChat)

	return router
}
