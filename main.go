package main

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/iRail/occupancy-api/config"
	"github.com/iRail/occupancy-api/db"
	"github.com/iRail/occupancy-api/handlers"
	"github.com/iRail/occupancy-api/internal/audit"
	"github.com/iRail/occupancy-api/internal/events"
	"github.com/iRail/occupancy-api/internal/store/postgres"
	"github.com/iRail/occupancy-api/logger"
	"github.com/iRail/occupancy-api/models/occupancy/validation"
	"github.com/iRail/occupancy-api/router"
	"github.com/iRail/occupancy-api/services"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Initialize logger
	logger.InitLogger()
	log := logger.GetLogger()
	defer logger.Close()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	if cfg.Database.RunMigrations {
		if err := db.RunMigrations(cfg.Database.URL()); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize Redis client with TLS when configured
	redisOptions := &redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	}
	if cfg.Redis.UseTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOptions)
	defer redisClient.Close()

	auditLog := audit.New(cfg.Audit)
	defer func() {
		if err := auditLog.Close(); err != nil {
			log.Warnw("Failed to flush audit log", "error", err)
		}
	}()

	var publisher services.FeedbackPublisher
	if cfg.Occupancy.PublishEvents {
		publisher = events.NewRedisPublisher(redisClient, events.Config{Channel: cfg.Occupancy.EventChannel})
	}

	ingestor := services.NewFeedbackIngestor(
		validation.NewValidator(cfg.Occupancy.StrictDates),
		postgres.NewOccupancyStore(pool),
		auditLog,
		publisher,
		cfg.Server.VehicleResourceURL,
	)

	r := router.SetupRouter(router.Dependencies{
		Config:           cfg,
		OccupancyHandler: handlers.NewOccupancyHandler(ingestor, cfg.Server.MaxBodyBytes),
		HealthHandler:    handlers.NewHealthHandler(services.NewHealthService(pool, redisClient, cfg.Server.Version)),
		RateLimiter:      services.NewRateLimitService(redisClient),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Infof("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Server shutdown failed", "error", err)
	}
}
