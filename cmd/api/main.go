// Package main is the entry point for the API server.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nabeul-archive/poemap/internal/api"
	"github.com/nabeul-archive/poemap/internal/auth"
	"github.com/nabeul-archive/poemap/internal/catalog"
	"github.com/nabeul-archive/poemap/internal/config"
	"github.com/nabeul-archive/poemap/internal/db"
	"github.com/nabeul-archive/poemap/internal/events"
	"github.com/nabeul-archive/poemap/internal/gen"
	"github.com/nabeul-archive/poemap/internal/health"
	"github.com/nabeul-archive/poemap/internal/idempotency"
	"github.com/nabeul-archive/poemap/internal/jobs"
	"github.com/nabeul-archive/poemap/internal/location"
	"github.com/nabeul-archive/poemap/internal/middleware"
	"github.com/nabeul-archive/poemap/internal/notify"
	"github.com/nabeul-archive/poemap/internal/payment"
	"github.com/nabeul-archive/poemap/internal/profile"
	"github.com/nabeul-archive/poemap/internal/purchase"
	"github.com/nabeul-archive/poemap/internal/session"
	"github.com/nabeul-archive/poemap/internal/submission"
	"github.com/nabeul-archive/poemap/internal/tracing"
	"github.com/nabeul-archive/poemap/internal/upload"
)

// viewFlushInterval is how often Redis-side view counters are drained into
// the durable store.
const viewFlushInterval = 30 * time.Second

// idempotencyCleanupInterval is how often expired idempotency keys are purged.
const idempotencyCleanupInterval = time.Hour

// serviceName identifies this server in traces.
const serviceName = "poemap-api"

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Poemap API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	ctx := context.Background()

	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.TracingOTLPEndpoint,
		SamplingRate: cfg.TracingSamplingRate,
		InsecureMode: cfg.TracingInsecure,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	conn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Redis is optional; without it view counting and the catalog snapshot
	// degrade to direct store access.
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable at startup, continuing without it", "error", err)
		}
	}

	// Repositories
	locationRepo := location.NewPostgresRepository(conn, logger)
	profileRepo := profile.NewPostgresRepository(conn, logger)
	grantStore := purchase.NewPostgresGrantStore(conn, logger)
	credentialStore := auth.NewPostgresCredentialStore(conn)

	// Catalog: in-memory serving copy over the store, with a Redis snapshot
	// and websocket fan-out.
	broadcaster := events.NewBroadcaster()
	var snapshot *catalog.Cache
	if redisClient != nil {
		snapshot = catalog.NewCache(redisClient, 0)
	}
	cat := catalog.New(locationRepo, snapshot, broadcaster, logger)
	cat.Hydrate(ctx)

	viewCounter := location.NewViewCounter(redisClient, cat, logger)

	// Generation client (poems, murals, narration)
	genClient, err := gen.NewClient(ctx, cfg.GeminiAPIKey, logger)
	if err != nil {
		logger.Error("failed to create generation client", "error", err)
		os.Exit(1)
	}

	// Object storage is optional; submissions without it reject attachments.
	var uploadService *upload.Service
	if cfg.R2BucketName != "" {
		uploadService, err = upload.NewService(upload.ServiceConfig{
			BucketName:      cfg.R2BucketName,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			Endpoint:        cfg.R2Endpoint,
			PublicBaseURL:   cfg.R2PublicBaseURL,
			MaxSizeMB:       cfg.R2MaxUploadSizeMB,
		})
		if err != nil {
			logger.Error("failed to create upload service", "error", err)
			os.Exit(1)
		}
	}

	// Services
	var jwtService *auth.JWTService
	if cfg.JWTPreviousSecret != "" {
		jwtService = auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	} else {
		jwtService = auth.NewJWTService(cfg.JWTSecret)
	}
	credentials := auth.NewCredentials(credentialStore)
	sessions := session.NewManager(profileRepo, logger)
	purchases := purchase.NewService(profileRepo, cat, grantStore, logger)

	var uploader submission.FileUploader
	if uploadService != nil {
		uploader = uploadService
	}
	wizard := submission.NewService(cat, uploader, genClient, logger)

	notifier := notify.NewCenter()

	var topups *payment.Service
	if cfg.StripeAPIKey != "" {
		topups = payment.NewService(
			payment.NewPostgresTopUpRepository(conn, logger),
			payment.NewPostgresWebhookRepository(conn),
			profileRepo,
			payment.NewStripeClient(cfg.StripeAPIKey),
			cfg.TopUpSuccessURL,
			cfg.TopUpCancelURL,
			logger,
		)
	}

	// Handlers and routes
	routerCfg := api.RouterConfig{
		JWT:           jwtService,
		Auth:          api.NewAuthHandlers(credentials, jwtService, sessions),
		Profiles:      api.NewProfileHandlers(profileRepo),
		Locations:     api.NewLocationHandlers(cat, purchases, viewCounter, cfg.PublicBaseURL),
		Purchases:     api.NewPurchaseHandlers(purchases, cat, notifier, sessions),
		Submissions:   api.NewSubmissionHandlers(wizard),
		Narration:     api.NewNarrationHandlers(genClient),
		Notifications: api.NewNotificationHandlers(notifier),
		Events:        api.NewEventHandlers(broadcaster),
		Uploads:       api.NewUploadHandlers(uploadService),
	}

	healthCfg := api.HealthHandlersConfig{DBChecker: health.NewDBChecker(conn)}
	if redisClient != nil {
		healthCfg.RedisChecker = health.NewRedisChecker(redisClient)
	}
	routerCfg.Health = api.NewHealthHandlers(healthCfg)

	if topups != nil {
		routerCfg.Wallet = api.NewWalletHandlers(topups)
		routerCfg.Webhooks = api.NewWebhookHandlers(cfg.StripeWebhookSecret, topups)
	}

	mux := api.NewRouter(routerCfg)

	// Prometheus metrics on a dedicated registry
	metrics := middleware.NewMetrics()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		logger.Error("failed to register metrics", "error", err)
		os.Exit(1)
	}
	jobMetrics := jobs.NewMetrics()
	if err := jobMetrics.Register(registry); err != nil {
		logger.Error("failed to register job metrics", "error", err)
		os.Exit(1)
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	// Rate limiting: Redis-backed when available so replicas share state.
	var limitStore middleware.RateLimitStore = middleware.NewInMemoryRateLimitStore()
	if redisClient != nil {
		limitStore = middleware.NewRedisRateLimitStore(redisClient)
	}

	// Top-ups are retried by clients on flaky networks; replays of the same
	// Idempotency-Key get the cached checkout session instead of a new one.
	idempotencyRepo := idempotency.NewInMemoryRepository()
	idempotentRoutes := map[string]bool{"/wallet/topup": true}

	// Middleware chain, outermost first
	var handler http.Handler = mux
	handler = middleware.IdempotencyMiddleware(idempotencyRepo, idempotentRoutes)(handler)
	handler = middleware.RateLimiterWithMetrics(limitStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc(), metrics, "ip")(handler)
	handler = middleware.HTTPMetrics(metrics)(handler)
	if cfg.CanaryEnabled {
		canary := middleware.NewCanaryRouter(middleware.CanaryConfig{
			Enabled:          true,
			TrafficPercent:   cfg.CanaryTrafficPercent,
			ErrorThreshold:   5,
			LatencyThreshold: 2,
			AutoRollback:     true,
			Version:          cfg.CanaryVersion,
		}, logger)
		canary.SetPrometheusMetrics(metrics)
		handler = canary.Middleware(handler)
	}
	handler = middleware.CORS(middleware.CORSConfig{AllowedOrigins: []string{cfg.PublicBaseURL}})(handler)
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing(serviceName)(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Periodic view counter flush
	flushCtx, stopFlush := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(viewFlushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-flushCtx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := viewCounter.Flush(flushCtx); err != nil {
					logger.Warn("view counter flush failed", "error", err)
					jobMetrics.IncJobsTotal(jobs.JobTypeViewFlush, jobs.StatusFailure)
					jobMetrics.IncJobErrors(jobs.JobTypeViewFlush, "flush_error")
				} else {
					jobMetrics.IncJobsTotal(jobs.JobTypeViewFlush, jobs.StatusSuccess)
				}
				jobMetrics.ObserveJobDuration(jobs.JobTypeViewFlush, time.Since(start).Seconds())
			}
		}
	}()

	// Expired idempotency keys are purged hourly.
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	go idempotency.RunPeriodicCleanup(cleanupCtx, idempotencyRepo, idempotencyCleanupInterval, idempotency.DefaultExpiry)

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopFlush()
	stopCleanup()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	// One last drain so counted views survive the restart.
	if err := viewCounter.Flush(shutdownCtx); err != nil {
		logger.Warn("final view counter flush failed", "error", err)
	}

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		logger.Warn("tracer shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
