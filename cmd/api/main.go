package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linkpulse/linkpulse/internal/config"
	"github.com/linkpulse/linkpulse/internal/infrastructure/db"
	"github.com/linkpulse/linkpulse/internal/infrastructure/logger"
	"github.com/linkpulse/linkpulse/internal/infrastructure/telemetry"
	"github.com/linkpulse/linkpulse/internal/processing/analytics"
	"github.com/linkpulse/linkpulse/internal/processing/links"
	"github.com/linkpulse/linkpulse/internal/storage/mongo"
	redisStorage "github.com/linkpulse/linkpulse/internal/storage/redis"
	httpTransport "github.com/linkpulse/linkpulse/internal/transport/http"
	"github.com/linkpulse/linkpulse/internal/transport/http/middleware"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.App.Env, cfg.App.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting application",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Env),
	)

	var shutdownTracer func(context.Context) error
	if cfg.OTel.Enabled {
		var err error
		shutdownTracer, err = telemetry.InitTracer(cfg.OTel.Endpoint, cfg.App.Name, cfg.App.Version)
		if err != nil {
			logger.Warn("Failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			logger.Info("OpenTelemetry tracer initialized", zap.String("endpoint", cfg.OTel.Endpoint))
		}
	}

	mongoConn, err := db.ConnectMongo(cfg.MongoDB.URI, cfg.MongoDB.Database)
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer func() { _ = mongoConn.Disconnect() }()

	linkRepo, err := mongo.NewLinksRepository(mongoConn)
	if err != nil {
		logger.Fatal("Failed to initialize links repository", zap.Error(err))
	}
	clickRepo, err := mongo.NewClicksRepository(mongoConn)
	if err != nil {
		logger.Fatal("Failed to initialize clicks repository", zap.Error(err))
	}

	redisClient, err := redisStorage.New(redisStorage.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() { _ = redisClient.Close() }()

	cachedLinks := redisStorage.NewCachedLinksRepository(linkRepo, redisClient, cfg.Redis.CacheTTL)

	linkSvc := links.NewService(cachedLinks, clickRepo, links.NewCryptoTokenGenerator(), cfg.Shortener.TokenLength)
	recorder := analytics.NewRecorder(clickRepo)
	aggregator := analytics.NewAggregator(cachedLinks, clickRepo)

	opts := httpTransport.DefaultRouterOptions()
	opts.RedirectOptions.ClickTimeout = cfg.Shortener.ClickTimeout

	if cfg.Kafka.Enabled {
		outboxRepo, err := mongo.NewClickOutboxRepository(mongoConn)
		if err != nil {
			logger.Fatal("Failed to initialize click outbox repository", zap.Error(err))
		}
		opts.RedirectOptions.Outbox = outboxRepo
		logger.Info("Durable click pipeline enabled", zap.String("topic", cfg.Kafka.ClickTopic))
	}

	limiterStore := redisStorage.NewFixedWindowLimiter(redisClient, "rl:create", time.Minute)
	opts.RateLimiter = middleware.NewRedisFixedWindowLimiter(limiterStore, cfg.RateLimit.CreatePerMinute)

	router := httpTransport.NewRouterWithOptions(cfg, httpTransport.RouterDeps{
		LinkService: linkSvc,
		Recorder:    recorder,
		Aggregator:  aggregator,
	}, opts)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if shutdownTracer != nil {
			_ = shutdownTracer(shutdownCtx)
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("Server starting",
		zap.String("port", cfg.Server.Port),
		zap.String("env", cfg.App.Env),
		zap.String("address", fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)),
	)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("Server error", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}
