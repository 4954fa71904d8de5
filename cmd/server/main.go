package main

import (
	"context"   // context package is needed for Redis operations
	"errors"    // Server shutdown errors
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Graceful shutdown
	"syscall"   // SIGTERM
	"time"      // Shutdown timeout

	"passport_studio/internal/api"      // Custom package for API handlers
	"passport_studio/internal/config"   // Custom package for configuration
	"passport_studio/internal/db"       // Store selection
	"passport_studio/internal/imagegen" // Image model client
	"passport_studio/internal/notify"   // Change feed and alerts
	"passport_studio/internal/service"  // Business services
	"passport_studio/internal/storage"  // Photo storage
	"passport_studio/internal/utils"    // Cache
	"passport_studio/internal/workers"  // Scheduled jobs

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET must be set")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Record store: MySQL, PostgreSQL or memory
	st, _, err := db.OpenStore(cfg)
	if err != nil {
		logrus.Fatalf("failed to open store: %v", err)
	}

	// Redis backs the cache and the cross-instance change feed when configured
	var (
		cache  utils.Cache   = utils.NopCache{}
		broker notify.Broker = notify.NewLocalBroker()
	)
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr, // Redis server address
			Password: cfg.RedisPass, // Redis password
			DB:       cfg.RedisDB,   // Redis database number
		})
		// Test Redis connection
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logrus.Fatalf("failed to connect to Redis: %v", err)
		}
		cache = utils.NewRedisCache(redisClient)
		broker = notify.NewRedisBroker(redisClient)
	}

	model, err := imagegen.NewGenAIModel(ctx, cfg.GenAIAPIKey, cfg.GenAIImageModel, cfg.GenAITextModel)
	if err != nil {
		logrus.Fatalf("failed to create image model client: %v", err)
	}

	var images storage.ImageStore = storage.InlineStore{}
	if cfg.S3.Bucket != "" {
		s3Store, err := storage.NewS3Store(ctx, cfg.S3)
		if err != nil {
			logrus.Fatalf("failed to configure object storage: %v", err)
		}
		images = s3Store
	}

	policy := cfg.Policy()
	ledger := service.NewLedger(st, cache, broker)
	users := service.NewUsers(st, ledger, policy)
	photos := service.NewPhotos(st, ledger, imagegen.NewClient(model), images, broker, policy)
	dashboard := service.NewDashboard(st)

	if cfg.StoreDriver == config.DriverMemory && cfg.AdminPassword != "" {
		// Memory stores start empty, so there is nothing the migrate command could have seeded
		if _, _, err := users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword, cfg.AdminName); err != nil {
			logrus.Fatalf("failed to seed admin: %v", err)
		}
	}

	// Scheduled jobs
	var sinks []notify.Sink
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := notify.NewTelegramSink(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			logrus.WithError(err).Warn("Telegram alerts disabled")
		} else {
			sinks = append(sinks, tg)
		}
	}
	sched, err := workers.Start(ctx, workers.Jobs{
		Siren:             workers.NewSiren(dashboard, broker, sinks...),
		SirenInterval:     cfg.SirenInterval,
		Retention:         workers.NewRetention(photos, cfg.GalleryMaxImages),
		RetentionInterval: cfg.RetentionInterval,
	})
	if err != nil {
		logrus.Fatalf("failed to start scheduler: %v", err)
	}

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	api.SetupRoutes(r, api.Deps{
		Store:     st,
		Users:     users,
		Ledger:    ledger,
		Recharges: service.NewRecharges(st, ledger, broker, policy),
		Photos:    photos,
		Chat:      service.NewChat(st, broker),
		Assistant: service.NewAssistant(model, policy),
		Dashboard: dashboard,
		Backups:   service.NewBackups(st, cache, broker),
		Events:    broker,
		JWTSecret: cfg.JWTSecret,
	})

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: r}
	go func() {
		logrus.Info("Server running on " + cfg.AppPort) // Log server start
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown incomplete")
	}
	if err := sched.Shutdown(); err != nil {
		logrus.WithError(err).Warn("Scheduler shutdown incomplete")
	}
}
