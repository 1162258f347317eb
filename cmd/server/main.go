package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskpulse/api/handler"
	"github.com/fastygo/taskpulse/internal/config"
	"github.com/fastygo/taskpulse/internal/infrastructure/monitor"
	"github.com/fastygo/taskpulse/internal/infrastructure/outbox"
	pgInfra "github.com/fastygo/taskpulse/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskpulse/internal/infrastructure/redis"
	tg "github.com/fastygo/taskpulse/internal/infrastructure/telegram"
	"github.com/fastygo/taskpulse/internal/middleware"
	"github.com/fastygo/taskpulse/internal/router"
	"github.com/fastygo/taskpulse/internal/services"
	"github.com/fastygo/taskpulse/internal/services/lifecycle"
	"github.com/fastygo/taskpulse/pkg/httpcontext"
	"github.com/fastygo/taskpulse/pkg/logger"
	"github.com/fastygo/taskpulse/repository/postgres"
	redisRepo "github.com/fastygo/taskpulse/repository/redis"
	messageUC "github.com/fastygo/taskpulse/usecase/message"
	"github.com/fastygo/taskpulse/usecase/report"
	taskUC "github.com/fastygo/taskpulse/usecase/task"
	telegramUC "github.com/fastygo/taskpulse/usecase/telegram"
	userUC "github.com/fastygo/taskpulse/usecase/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:      cfg.Logger.Level,
		Encoding:   cfg.Logger.Encoding,
		File:       cfg.Logger.File,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAgeDays: cfg.Logger.MaxAgeDays,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	if cfg.JWT.Secret == "" {
		zapLogger.Fatal("JWT_SECRET is required")
	}

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	stopSignals := manager.Listen(cancel)
	defer stopSignals()

	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		zapLogger.Fatal("migrations failed", zap.Error(err))
	}

	pool, err := pgInfra.NewPool(appCtx, cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("postgres connection failed", zap.Error(err))
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	redisClient, err := redisInfra.NewClient(appCtx, cfg.Redis, zapLogger)
	if err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	outboxStore, err := outbox.Open(cfg.Outbox.Path, "outbox")
	if err != nil {
		zapLogger.Fatal("failed to open outbox store", zap.Error(err))
	}
	manager.Register("outbox", func(ctx context.Context) error {
		return outboxStore.Close()
	})

	telegramClient := tg.New(cfg.Telegram, zapLogger)
	if !telegramClient.Enabled() {
		zapLogger.Warn("TELEGRAM_BOT_TOKEN is not set, notifications are disabled")
	}

	mon := monitor.New(pool, redisClient, outboxStore, telegramClient, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	userRepo := postgres.NewUserRepository(pool)
	taskRepo := postgres.NewTaskRepository(pool)
	eventRepo := postgres.NewTaskEventRepository(pool)
	messageRepo := postgres.NewMessageRepository(pool)
	profileRepo := postgres.NewTelegramProfileRepository(pool)
	linkTokens := redisRepo.NewLinkTokenRepository(redisClient, cfg.Telegram.LinkTTL)
	dedup := redisRepo.NewUpdateDeduplicator(redisClient)

	outboxProcessor := services.NewOutboxProcessor(
		outboxStore,
		mon,
		taskRepo,
		eventRepo,
		telegramClient,
		zapLogger,
		services.ProcessorConfig{
			Interval:   cfg.Outbox.SyncInterval,
			BatchSize:  cfg.Outbox.BatchSize,
			MaxRetries: cfg.Outbox.MaxRetry,
		},
	)
	outboxProcessor.Start()
	manager.Register("outbox_processor", func(ctx context.Context) error {
		outboxProcessor.Stop(ctx)
		return nil
	})

	outboxBridge := services.NewOutboxBridge(outboxProcessor, profileRepo)

	userUseCase := userUC.New(userRepo, profileRepo, zapLogger)
	taskUseCase := taskUC.New(taskRepo, userRepo, eventRepo, outboxBridge, outboxBridge, zapLogger)
	messageUseCase := messageUC.New(taskRepo, messageRepo, outboxBridge, zapLogger)
	reportService := report.New(taskRepo, cfg.Location, zapLogger)
	telegramUseCase := telegramUC.New(
		profileRepo,
		linkTokens,
		dedup,
		taskRepo,
		messageUseCase,
		outboxBridge,
		telegramUC.Config{
			BotUsername:   cfg.Telegram.BotUsername,
			WebhookSecret: cfg.Telegram.WebhookSecret,
			LinkTTL:       cfg.Telegram.LinkTTL,
			UpdateTTL:     cfg.Telegram.UpdateTTL,
		},
		zapLogger,
	)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		Profile:  apiHandler.NewProfileHandler(userUseCase, ctxAdapter, zapLogger),
		Task:     apiHandler.NewTaskHandler(taskUseCase, ctxAdapter, zapLogger),
		Report:   apiHandler.NewReportHandler(reportService, userUseCase, ctxAdapter, zapLogger),
		Message:  apiHandler.NewMessageHandler(messageUseCase, ctxAdapter, zapLogger),
		Telegram: apiHandler.NewTelegramHandler(telegramUseCase, ctxAdapter, zapLogger),
		Health:   apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, cfg.JWT.Issuer, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Concurrency:  cfg.HTTP.MaxConn,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started",
			zap.String("address", cfg.Address()),
			zap.String("timezone", cfg.Location.String()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}
