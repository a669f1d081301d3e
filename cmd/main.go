package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pairgogo/backend/internal/api/handler"
	"pairgogo/backend/internal/config"
	"pairgogo/backend/internal/matchhub"
	"pairgogo/backend/internal/models"
	"pairgogo/backend/internal/observability"
	"pairgogo/backend/internal/storage"
	"pairgogo/backend/internal/telegram"
)

func setupDependencies(cfg *config.Config, logger *zap.Logger) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect PostgreSQL", zap.Error(err))
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Fatal("failed to connect Redis", zap.Error(err))
	}

	if cfg.Postgres.RunMigrations {
		if err := db.AutoMigrate(&models.User{}, &models.ChatRoom{}); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	logger.Info("database and redis connections established")
	return db, rdb
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	logger.Info("starting pairgogo backend", zap.String("addr", cfg.App.Addr()))

	db, rdb := setupDependencies(cfg, logger)
	s := storage.NewStorageService(db, rdb, logger)

	svc := matchhub.NewService(s, cfg.Match, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go svc.Scheduler.Run(ctx)
	go svc.RunEventFanout(ctx)

	if cfg.Telegram.BotToken != "" {
		botService, err := telegram.NewBotService(cfg.Telegram.BotToken, svc, s, logger)
		if err != nil {
			logger.Fatal("failed to start telegram bot", zap.Error(err))
		}
		go botService.Run()
	}

	r := gin.Default()
	h := handler.NewHandler(svc, cfg.Auth, logger)

	r.GET("/healthz", h.Healthz)
	r.GET("/stats", h.GetStats)
	r.GET("/rooms/:id", h.GetRoom)
	r.GET("/anonid", h.GetAnonID)
	r.GET("/ws", h.ServeWebSocket)

	server := &http.Server{
		Addr:           cfg.App.Addr(),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	logger.Fatal("server stopped", zap.Error(server.ListenAndServe()))
}
