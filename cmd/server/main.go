package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clicker-admin/internal/config"
	"github.com/clicker-admin/internal/directory"
	"github.com/clicker-admin/internal/discord"
	"github.com/clicker-admin/internal/handler"
	"github.com/clicker-admin/internal/kafka"
	"github.com/clicker-admin/internal/postgres"
	"github.com/clicker-admin/internal/redis"
	"github.com/clicker-admin/internal/service"
	"github.com/clicker-admin/internal/store"
	"github.com/clicker-admin/internal/websocket"
	"github.com/clicker-admin/internal/worker"
	"github.com/joho/godotenv"
)

// documentStore is a store driver that can also be mirrored.
type documentStore interface {
	store.Store
	worker.Primary
}

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Optional dotenv file loaded before the config")
	flag.Parse()

	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(*envPath); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load env file", "path", *envPath, "error", err)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Warn("failed to load config file, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]handler.Pinger{}

	// Initialize the document store
	var docs documentStore
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		logger.Warn("using in-memory document store; data is lost on exit unless mirrored")
		docs = store.NewMemoryStore()
	default:
		logger.Info("connecting to Redis", "addr", cfg.Redis.Addr)
		redisStore, err := redis.NewDocumentStore(&cfg.Redis, logger)
		if err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		checks["redis"] = redisStore
		docs = redisStore
		logger.Info("connected to Redis")
	}

	// Initialize PostgreSQL
	var (
		audit      service.AuditLog
		syncWorker *worker.SyncWorker
	)
	if cfg.Postgres.Enabled {
		logger.Info("connecting to PostgreSQL", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
		postgresRepo, err := postgres.NewRepository(&cfg.Postgres, logger)
		if err != nil {
			logger.Error("failed to connect to PostgreSQL", "error", err)
			os.Exit(1)
		}
		defer postgresRepo.Close()
		logger.Info("connected to PostgreSQL")

		// Run database migrations
		if err := postgresRepo.RunMigrations(ctx); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		checks["postgres"] = postgresRepo
		audit = postgresRepo

		syncWorker = worker.NewSyncWorker(docs, postgresRepo, directory.Collections, &cfg.Sync, logger)

		// Restore empty collections from the mirror (recovery)
		if cfg.Sync.RestoreOnStart {
			logger.Info("restoring collections from mirror")
			restored := syncWorker.RestoreAll(ctx)
			logger.Info("restore finished", "collections", restored)
		}

		if cfg.Sync.Enabled {
			if err := syncWorker.Start(ctx); err != nil {
				logger.Error("failed to start sync worker", "error", err)
				os.Exit(1)
			}
		}
	} else {
		logger.Warn("PostgreSQL disabled: no audit log and no store mirror")
	}

	dir := directory.New(docs, logger)

	// Initialize WebSocket hub
	wsHub := websocket.NewHub(dir, logger)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	// Initialize services
	bulk := service.NewBulkCoordinator(dir, logger)
	adminService := service.NewAdminService(dir, bulk, audit, wsHub, &cfg.Leaderboard, logger)
	linkCache := service.NewLinkCache(dir)
	botService := service.NewBotService(dir, adminService, linkCache, &cfg.Discord, &cfg.Leaderboard, logger)
	ingestor := service.NewIngestor(dir, wsHub, logger)

	// Initialize Kafka consumer for game-save ingestion
	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		var err error
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, ingestor, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	// Initialize the Discord bot
	destinations := []worker.Destination{wsHub}
	var bot *discord.Bot
	if cfg.Discord.Enabled {
		router := discord.NewRouter(botService, &cfg.Discord, logger)
		bot, err = discord.NewBot(&cfg.Discord, &cfg.Relay, router, logger)
		if err != nil {
			logger.Error("failed to create Discord bot", "error", err)
			os.Exit(1)
		}
		if err := bot.Start(); err != nil {
			logger.Warn("failed to start Discord bot, continuing without it", "error", err)
			bot = nil
		} else {
			destinations = append(destinations, bot)
		}
	}

	// Start the announcement relay
	relay := worker.NewAnnouncementRelay(dir, destinations, &cfg.Relay, logger)
	if cfg.Relay.Enabled {
		if err := relay.Start(ctx); err != nil {
			logger.Error("failed to start announcement relay", "error", err)
			os.Exit(1)
		}
	}

	// Initialize HTTP handler with WebSocket hub
	auth := handler.NewAuthenticator(&cfg.Admin)
	httpHandler := handler.NewHandler(adminService, wsHub, auth, checks, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port)
		logger.Info("WebSocket endpoint available at /ws")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	// Stop the relay before its destinations
	if err := relay.Stop(); err != nil {
		logger.Error("failed to stop announcement relay", "error", err)
	}

	if bot != nil {
		if err := bot.Stop(); err != nil {
			logger.Error("failed to stop Discord bot", "error", err)
		}
	}

	// Stop WebSocket hub
	wsHub.Stop()

	// Stop Kafka consumer
	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	// Stop sync worker; it flushes once more before returning
	if syncWorker != nil {
		if err := syncWorker.Stop(); err != nil {
			logger.Error("failed to stop sync worker", "error", err)
		}
	}

	logger.Info("server stopped")
}
