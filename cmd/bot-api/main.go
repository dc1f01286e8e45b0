package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/medekzamen/medbot-api/internal/bot"
	"github.com/medekzamen/medbot-api/internal/handler"
	"github.com/medekzamen/medbot-api/internal/repository"
	"github.com/medekzamen/medbot-api/internal/service"
	"github.com/medekzamen/medbot-api/internal/session"
	"github.com/medekzamen/medbot-api/internal/telegram"
	"github.com/medekzamen/medbot-api/pkg/cache"
	"github.com/medekzamen/medbot-api/pkg/config"
	"github.com/medekzamen/medbot-api/pkg/database"
	"github.com/medekzamen/medbot-api/pkg/logger"
)

// @title MedEkzamen Bot API
// @version 1.0.0
// @description Study-materials Telegram bot with a companion HTTP API for the mini-app.
// @BasePath /
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	sugar := logr.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database. The API degrades instead of crashing when it is missing so
	// the config-echo and health endpoints stay reachable.
	var userRepo *repository.UserRepository
	var materialRepo *repository.MaterialRepository
	if cfg.DatabaseConfigured() {
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			sugar.Fatalw("database connection failed", "error", err)
		}
		defer db.Close()

		if err := repository.EnsureSchema(ctx, db); err != nil {
			sugar.Fatalw("schema migration failed", "error", err)
		}
		userRepo = repository.NewUserRepository(db)
		materialRepo = repository.NewMaterialRepository(db)
	} else {
		sugar.Warnw("no database configured, data endpoints will report NOT_CONFIGURED")
	}

	// Telegram client, optional for the same reason.
	var tgClient *telegram.Client
	if cfg.BotToken != "" {
		tgClient, err = telegram.NewClient(cfg.BotToken, cfg.Telegram.Timeout, logr)
		if err != nil {
			sugar.Fatalw("telegram authorization failed", "error", err)
		}
		sugar.Infow("telegram authorized", "username", tgClient.Self())
	} else {
		sugar.Warnw("BOT_TOKEN is empty, bot and file resolution disabled")
	}

	// Conversation state backend.
	var sessions session.Store = session.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			sugar.Fatalw("redis connection failed", "error", err)
		}
		defer redisClient.Close()
		sessions = session.NewRedisStore(redisClient)
		sugar.Infow("session store backed by redis", "addr", cfg.Redis.Addr)
	}

	validate := validator.New()

	var resolver service.FileResolver
	var downloader handler.Downloader
	if tgClient != nil {
		resolver = tgClient
		downloader = tgClient
	}

	userService := service.NewUserService(nil, validate, logr)
	materialService := service.NewMaterialService(nil, resolver, cfg.Telegram.FileURLConcurrency, logr)
	if userRepo != nil {
		userService = service.NewUserService(userRepo, validate, logr)
		materialService = service.NewMaterialService(materialRepo, resolver, cfg.Telegram.FileURLConcurrency, logr)
	}

	metricsService := service.NewMetricsService()

	// Bot long-polling loop, only with both a token and a database.
	if tgClient != nil && userRepo != nil {
		broadcastService := service.NewBroadcastService(userRepo, tgClient, cfg.Broadcast.Delay, logr)
		broadcastService.Start(ctx)
		defer broadcastService.Stop()

		b := bot.New(bot.Deps{
			Client:     tgClient,
			Sessions:   sessions,
			Users:      userService,
			Materials:  materialService,
			Broadcasts: broadcastService,
			AdminIDs:   cfg.AdminIDs,
			Logger:     logr,
		})
		go func() {
			if err := b.Run(ctx, cfg.Telegram.PollTimeout); err != nil && err != context.Canceled {
				sugar.Errorw("bot stopped", "error", err)
			}
		}()
	}

	router := handler.NewRouter(handler.RouterDeps{
		Config:    cfg,
		Logger:    logr,
		Health:    handler.NewHealthHandler(cfg, materialService),
		Materials: handler.NewMaterialHandler(materialService, downloader, cfg.IsAdmin),
		Users:     handler.NewUserHandler(userService),
		Metrics:   metricsService,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: router}

	go func() {
		sugar.Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	sugar.Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("server shutdown failed", "error", err)
	}
}
