package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/benvon/cookmate/internal/cache"
	"github.com/benvon/cookmate/internal/config"
	"github.com/benvon/cookmate/internal/database"
	"github.com/benvon/cookmate/internal/handlers"
	"github.com/benvon/cookmate/internal/logger"
	"github.com/benvon/cookmate/internal/middleware"
	"github.com/benvon/cookmate/internal/models"
	"github.com/benvon/cookmate/internal/queue"
	"github.com/benvon/cookmate/internal/realtime"
	"github.com/benvon/cookmate/internal/services/ai"
	"github.com/benvon/cookmate/internal/services/auth"
	"github.com/benvon/cookmate/internal/services/coach"
	"github.com/benvon/cookmate/internal/services/progress"
	"github.com/benvon/cookmate/internal/services/sessions"
	"github.com/benvon/cookmate/internal/telemetry"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	serviceName          = "cookmate-api"
	realtimePrefix       = "/api/v1/realtime/"
	ratelimitReloadEvery = time.Minute
)

// Set at build time with -ldflags "-X main.version=..."
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug mode for LLM API logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	debugMode := cfg.ServerDebugMode || *debugFlag

	zapLogger, err := logger.NewProductionLogger(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("frontend_url", cfg.FrontendURL),
		zap.Int("ai_providers", len(cfg.AIProviders)),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	shutdownTracing, tracingEnabled := initTracing(cfg, zapLogger)
	defer shutdownTracing()

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

	// The server only reports on RabbitMQ; the worker owns the sweep jobs.
	var jobQueue *queue.RabbitMQQueue
	if cfg.RabbitMQURL != "" {
		jobQueue, err = queue.NewRabbitMQQueue(cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Warn("failed_to_connect_to_rabbitmq", zap.Error(err))
			jobQueue = nil
		} else {
			zapLogger.Info("connected_to_rabbitmq")
			defer func() {
				if err := jobQueue.Close(); err != nil {
					zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
				}
			}()
		}
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// Repositories
	userRepo := database.NewUserRepository(db)
	sessionRepo := database.NewSessionRepository(db)
	interactionRepo := database.NewInteractionRepository(db)
	progressRepo := database.NewProgressRepository(db)
	ratelimitConfigRepo := database.NewRatelimitConfigRepository(db)

	// Realtime: events go out over Redis and every instance fans them into its own hub.
	hub := realtime.NewHub(zapLogger)
	bus := realtime.NewRedisBus(redisClient, cfg.RealtimeChannel, zapLogger)
	if err := bus.StartForwarder(bgCtx, hub.Broadcast); err != nil {
		zapLogger.Fatal("failed_to_start_realtime_forwarder", zap.Error(err))
	}

	// Services
	gateway := ai.NewFallbackChain(buildProviders(cfg, zapLogger, debugMode), cfg.AITimeout, zapLogger)
	aggregator := progress.NewAggregator(progressRepo, sessionRepo, zapLogger)
	orchestrator := sessions.NewOrchestrator(
		sessionRepo,
		interactionRepo,
		cache.NewSessionCache(redisClient, cfg.SessionCacheTTL),
		aggregator,
		bus,
		zapLogger,
	)
	engine, err := coach.NewEngine(orchestrator, interactionRepo, gateway, bus, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_load_coaching_prompts", zap.Error(err))
	}
	authService, err := auth.NewService(userRepo, auth.Config{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.JWTExpiresIn,
		RefreshTTL: cfg.JWTRefreshExpiresIn,
	}, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_create_auth_service", zap.Error(err))
	}

	// Handlers
	secureCookie := strings.HasPrefix(cfg.BaseURL, "https://")
	authHandler := handlers.NewAuthHandler(authService, secureCookie, zapLogger)
	sessionHandler := handlers.NewSessionHandler(orchestrator, zapLogger)
	coachHandler := handlers.NewCoachHandler(engine, zapLogger)
	userHandler := handlers.NewUserHandler(userRepo, sessionRepo, interactionRepo, progressRepo, aggregator, authService, zapLogger)
	realtimeHandler := handlers.NewRealtimeHandler(hub, orchestrator, zapLogger)

	pingers := map[string]handlers.Pinger{
		"database": handlers.PingFunc(db.PingContext),
		"redis": handlers.PingFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}),
	}
	if jobQueue != nil {
		pingers["rabbitmq"] = jobQueue
	}
	healthChecker := handlers.NewHealthChecker(pingers)

	// Rate limiters, one per scope, each reloading its rate from the database
	limiters := make(map[string]*middleware.RateLimitReloader, len(models.RatelimitScopes))
	for _, scope := range models.RatelimitScopes {
		rl, err := middleware.NewRateLimitReloader(redisClient, ratelimitConfigRepo, scope,
			middleware.DefaultRateForScope(scope), zapLogger, ratelimitReloadEvery)
		if err != nil {
			zapLogger.Fatal("failed_to_create_rate_limiter", zap.String("scope", scope), zap.Error(err))
		}
		limiters[scope] = rl
		go rl.Start(bgCtx)
	}

	r := mux.NewRouter()

	// gorilla/mux runs middleware in registration order, first registered outermost
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.Logging(zapLogger))
	if tracingEnabled {
		r.Use(telemetry.Middleware(serviceName))
	}
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize, zapLogger))
	r.Use(middleware.ContentType(zapLogger))
	r.Use(middleware.Timeout(requestTimeout(cfg), realtimePrefix))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", handlers.VersionHandler(handlers.VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildDate: buildDate,
	})).Methods(http.MethodGet)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	requireAuth := middleware.Auth(authService, zapLogger)

	authRouter := apiRouter.PathPrefix("/auth").Subrouter()
	publicAuthRouter := authRouter.PathPrefix("").Subrouter()
	publicAuthRouter.Use(limiters[models.RatelimitScopeAuth].Middleware())
	authHandler.RegisterPublicRoutes(publicAuthRouter)
	protectedAuthRouter := authRouter.PathPrefix("").Subrouter()
	protectedAuthRouter.Use(requireAuth, limiters[models.RatelimitScopeDefault].Middleware())
	authHandler.RegisterRoutes(protectedAuthRouter)

	sessionsRouter := apiRouter.PathPrefix("/sessions").Subrouter()
	sessionsRouter.Use(requireAuth, limiters[models.RatelimitScopeDefault].Middleware())
	sessionHandler.RegisterRoutes(sessionsRouter)

	coachRouter := apiRouter.PathPrefix("/coach").Subrouter()
	coachRouter.Use(requireAuth, limiters[models.RatelimitScopeCoach].Middleware())
	coachHandler.RegisterRoutes(coachRouter)

	usersRouter := apiRouter.PathPrefix("/users").Subrouter()
	usersRouter.Use(requireAuth, limiters[models.RatelimitScopeDefault].Middleware())
	userHandler.RegisterRoutes(usersRouter)

	realtimeRouter := apiRouter.PathPrefix("/realtime").Subrouter()
	realtimeRouter.Use(requireAuth)
	realtimeHandler.RegisterRoutes(realtimeRouter)

	// CORS wraps the router so preflight requests never need a matching route
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           middleware.CORS(middleware.ParseOrigins(cfg.FrontendURL))(r),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		// No WriteTimeout: SSE streams stay open. Other routes are bounded by middleware.Timeout.
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		zapLogger.Info("server_starting", zap.String("port", cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("server_shutting_down")
	// Stopping the forwarder and limiters first lets open SSE streams drain.
	bgCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}

	zapLogger.Info("server_exited")
}

// initTracing installs the OTLP tracer when enabled. The returned func flushes it.
func initTracing(cfg *config.Config, zapLogger *zap.Logger) (func(), bool) {
	noop := func() {}
	if !cfg.OTELEnabled {
		return noop, false
	}
	if cfg.OTELEndpoint == "" {
		zapLogger.Warn("otel_enabled_but_endpoint_not_configured")
		return noop, false
	}

	tp, err := telemetry.InitTracer(context.Background(), telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		Endpoint:       cfg.OTELEndpoint,
		Insecure:       true,
	})
	if err != nil {
		zapLogger.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		return noop, false
	}
	zapLogger.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx, tp); err != nil {
			zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
		}
	}, true
}

// buildProviders creates the fallback chain members in AI_PROVIDERS order
func buildProviders(cfg *config.Config, zapLogger *zap.Logger, debugMode bool) []ai.Provider {
	providers := make([]ai.Provider, 0, len(cfg.AIProviders))
	for _, p := range cfg.AIProviders {
		providers = append(providers, ai.NewOpenAIProvider(ai.OpenAIProviderConfig{
			Name:    p.Name,
			APIKey:  p.APIKey,
			BaseURL: p.BaseURL,
			Model:   p.Model,
			Timeout: cfg.AITimeout,
		}, zapLogger, debugMode))
		zapLogger.Info("ai_provider_configured",
			zap.String("provider", p.Name),
			zap.String("model", p.Model),
		)
	}
	if len(providers) == 0 {
		zapLogger.Warn("no_ai_providers_configured_coaching_disabled")
	}
	return providers
}

// requestTimeout leaves room for every provider in the chain to time out once
func requestTimeout(cfg *config.Config) time.Duration {
	timeout := 30 * time.Second
	if chain := cfg.AITimeout*time.Duration(len(cfg.AIProviders)) + 5*time.Second; chain > timeout {
		timeout = chain
	}
	return timeout
}
