package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"kyucards-backend/internal/config"
	"kyucards-backend/internal/database"
	"kyucards-backend/internal/handlers"
	"kyucards-backend/internal/logger"
	"kyucards-backend/internal/middleware"
	"kyucards-backend/internal/repository"
	"kyucards-backend/internal/router"
	"kyucards-backend/internal/services"
	"kyucards-backend/internal/websocket"
	"kyucards-backend/migrations"
)

// cardBackend is what both card stores provide.
type cardBackend interface {
	services.CardStore
	ListOwners(ctx context.Context) ([]uuid.UUID, error)
}

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	logMode := "development"
	if cfg.IsProduction() {
		logMode = "production"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Starting kyucards backend", "env", cfg.Env, "store", cfg.StoreDriver)

	// ──── Step 2: Open the Card Store ────
	var store cardBackend
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		db, err := database.NewSQLite(cfg.SQLitePath)
		if err != nil {
			log.Fatal("SQLite open failed", "path", cfg.SQLitePath, "error", err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		local := repository.NewLocalCardRepo(db)
		if err := local.AutoMigrate(context.Background()); err != nil {
			log.Fatal("SQLite migration failed", "error", err)
		}
		store = local
		log.Info("SQLite card store ready", "path", cfg.SQLitePath)
	default:
		pool, err := database.NewPostgresPool(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("PostgreSQL connection failed", "error", err)
		}
		defer pool.Close()

		if err := database.RunMigrations(pool, migrations.Files, log); err != nil {
			log.Fatal("Database migration failed", "error", err)
		}
		store = repository.NewCardRepo(pool)
		log.Info("PostgreSQL card store ready")
	}

	// ──── Step 3: Initialize Redis Clients (optional) ────
	var events, pubsub *redis.Client
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatal("Redis connection failed", "error", err)
		}
		defer redisClients.Close()
		events, pubsub = redisClients.Events, redisClients.PubSub
		log.Info("Redis connected")
	} else {
		log.Info("REDIS_URL not set; events are delivered in-process")
	}

	// ──── Step 4: Initialize Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)
	wsHub := websocket.NewHub(pubsub, jwtAuth, log.With("component", "websocket"))
	defer wsHub.Close()

	publisher := services.NewPublisher(events, log.With("component", "publisher")).WithLocal(wsHub)
	cardService := services.NewCardService(store, publisher)
	reviewService := services.NewReviewService(store, publisher, cfg.ReviewSessionTTL, log.With("component", "reviews"))
	cardService.OnChange(reviewService.RefreshUser)
	reviewService.StartCleanup()

	dueReminder := services.NewDueReminder(store, publisher, cfg.DueReminderInterval, log.With("component", "due_reminder"))
	dueReminder.Start()

	// ──── Step 5: Start HTTP Server ────
	r, stopLimiter := router.New(
		jwtAuth,
		handlers.NewCardHandler(cardService, log),
		handlers.NewReviewHandler(reviewService, log),
		wsHub,
		router.Options{
			FrontendURL:        cfg.FrontendURL,
			RateLimitPerMinute: cfg.RateLimitPerMinute,
		},
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down...")
		dueReminder.Stop()
		reviewService.Stop()
		stopLimiter()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Warn("HTTP shutdown did not complete", "error", err)
		}
	}()

	log.Info("kyucards backend ready",
		"api", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port),
		"ws", fmt.Sprintf("ws://localhost:%s/api/v1/ws", cfg.Port),
	)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal("Server error", "error", err)
	}
}
