package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/cookmate/internal/cache"
	"github.com/benvon/cookmate/internal/config"
	"github.com/benvon/cookmate/internal/database"
	"github.com/benvon/cookmate/internal/logger"
	"github.com/benvon/cookmate/internal/queue"
	"github.com/benvon/cookmate/internal/realtime"
	"github.com/benvon/cookmate/internal/services/progress"
	"github.com/benvon/cookmate/internal/services/sessions"
	"github.com/benvon/cookmate/internal/telemetry"
	"github.com/benvon/cookmate/internal/workers"
	"go.uber.org/zap"
)

const (
	serviceName       = "cookmate-worker"
	maxConnectRetries = 10
	initialRetryDelay = 2 * time.Second
	maxRetryDelay     = 30 * time.Second
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	if cfg.RabbitMQURL == "" {
		zapLogger.Fatal("rabbitmq_url_required")
	}

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Duration("stale_session_after", cfg.StaleSessionAfter),
		zap.Duration("sweep_interval", cfg.SweepInterval),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
	)

	if cfg.OTELEnabled && cfg.OTELEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), telemetry.Config{
			ServiceName: serviceName,
			Endpoint:    cfg.OTELEndpoint,
			Insecure:    true,
		})
		if err != nil {
			zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(ctx, tp); err != nil {
					zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
				}
			}()
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_database")

	redisClient, err := cache.Connect(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	jobQueue := connectQueue(cfg.RabbitMQURL, zapLogger)
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()

	sessionRepo := database.NewSessionRepository(db)
	progressRepo := database.NewProgressRepository(db)

	// Abandoning a session publishes session_updated to any browser still watching it.
	bus := realtime.NewRedisBus(redisClient, cfg.RealtimeChannel, zapLogger)
	orchestrator := sessions.NewOrchestrator(
		sessionRepo,
		database.NewInteractionRepository(db),
		cache.NewSessionCache(redisClient, cfg.SessionCacheTTL),
		progress.NewAggregator(progressRepo, sessionRepo, zapLogger),
		bus,
		zapLogger,
	)

	scheduler := workers.NewSweepScheduler(jobQueue, sessionRepo, cfg.StaleSessionAfter, cfg.SweepInterval, zapLogger)
	processor := workers.NewJobProcessor(orchestrator, jobQueue, cfg.StaleSessionAfter, zapLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msgChan, errChan, err := jobQueue.Consume(ctx, cfg.RabbitMQPrefetch)
	if err != nil {
		zapLogger.Fatal("failed_to_start_consuming", zap.Error(err))
	}

	go scheduler.Start(ctx)

	done := make(chan struct{})
	go func() {
		processor.Run(ctx, msgChan, errChan)
		close(done)
	}()

	zapLogger.Info("worker_started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zapLogger.Info("worker_shutting_down")
	case <-done:
		zapLogger.Error("worker_consumer_stopped")
	}

	cancel()
	zapLogger.Info("worker_stopped")
}

// connectQueue retries with exponential backoff so the worker survives RabbitMQ starting late
func connectQueue(url string, zapLogger *zap.Logger) *queue.RabbitMQQueue {
	var lastErr error
	for attempt := 0; attempt < maxConnectRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(url, zapLogger)
		if err == nil {
			zapLogger.Info("connected_to_rabbitmq")
			return q
		}
		lastErr = err

		delay := initialRetryDelay * time.Duration(1<<uint(attempt))
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
		zapLogger.Warn("failed_to_connect_to_rabbitmq_retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxConnectRetries),
			zap.Duration("retry_delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
	}

	zapLogger.Fatal("failed_to_connect_to_rabbitmq_after_retries",
		zap.Int("max_retries", maxConnectRetries),
		zap.Error(lastErr),
	)
	return nil
}
