// Package main is the entry point for the NewsTrust API server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/veridia/newstrust/internal/ai"
	"github.com/veridia/newstrust/internal/analysis"
	"github.com/veridia/newstrust/internal/api"
	"github.com/veridia/newstrust/internal/archive"
	"github.com/veridia/newstrust/internal/article"
	"github.com/veridia/newstrust/internal/auth"
	"github.com/veridia/newstrust/internal/config"
	"github.com/veridia/newstrust/internal/events"
	"github.com/veridia/newstrust/internal/health"
	"github.com/veridia/newstrust/internal/jobs"
	"github.com/veridia/newstrust/internal/middleware"
	"github.com/veridia/newstrust/internal/pipeline"
	"github.com/veridia/newstrust/internal/quota"
	"github.com/veridia/newstrust/internal/scraper"
	"github.com/veridia/newstrust/internal/tracing"
)

func main() {
	configFile := flag.String("config", "", "path to YAML config file (optional)")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("NewsTrust API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configFile)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// Tracing
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "newstrust-api",
		Enabled:      cfg.OTLPEndpoint != "",
		Environment:  cfg.Env,
		ExporterType: "otlp-grpc",
		OTLPEndpoint: cfg.OTLPEndpoint,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracer provider", "error", err)
		}
	}()

	// Database
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	err = db.PingContext(pingCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	logger.Info("database connected")

	// Metrics registry
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	analysisMetrics := analysis.NewMetrics()
	if err := analysisMetrics.Register(registry); err != nil {
		return fmt.Errorf("register analysis metrics: %w", err)
	}
	jobMetrics := jobs.NewMetrics()
	if err := jobMetrics.Register(registry); err != nil {
		return fmt.Errorf("register job metrics: %w", err)
	}
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		return fmt.Errorf("register http metrics: %w", err)
	}

	// Redis (optional): rate limiting and readiness
	var (
		redisClient    *redis.Client
		rateLimitStore middleware.RateLimitStore
		redisChecker   api.HealthChecker
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient).WithMetrics(httpMetrics)
		redisChecker = health.NewRedisChecker(redisClient)
		logger.Info("redis connected for rate limiting", "addr", cfg.RedisAddr)
	} else {
		store := middleware.NewInMemoryRateLimitStore()
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for range ticker.C {
				store.Cleanup()
			}
		}()
		rateLimitStore = store
		logger.Info("using in-memory rate limit store")
	}

	// Object storage archive (optional)
	var archiver archive.Archiver
	archiveCfg := archive.Config{
		BucketName:      cfg.R2BucketName,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		Endpoint:        cfg.R2Endpoint,
	}
	if archiveCfg.Configured() {
		svc, err := archive.NewService(archiveCfg)
		if err != nil {
			return fmt.Errorf("init archive: %w", err)
		}
		archiver = svc
		logger.Info("article text archive enabled", "bucket", cfg.R2BucketName)
	}

	// Quota limits, with config overrides
	limits := quota.DefaultPlanLimits()
	if cfg.QuotaFreeAnalyses > 0 {
		l := limits[quota.PlanFree]
		l.Analyses = cfg.QuotaFreeAnalyses
		limits[quota.PlanFree] = l
	}
	if cfg.QuotaProAnalyses > 0 {
		l := limits[quota.PlanPro]
		l.Analyses = cfg.QuotaProAnalyses
		limits[quota.PlanPro] = l
	}

	// Pipeline
	repo := article.NewPostgresRepository(db, logger)
	users := article.NewPostgresUserStore(db)
	analyzer := ai.NewClient(ai.Config{
		Endpoint:      cfg.AIEndpoint,
		APIKey:        cfg.AIAPIKey,
		LowCostModel:  cfg.AILowCostModel,
		ModerateModel: cfg.AIModerateModel,
		Timeout:       time.Duration(cfg.AITimeoutSeconds) * time.Second,
	})
	broadcaster := events.NewBroadcaster()
	resolver := pipeline.NewContentResolver(scraper.NewHTTPFetcher(), repo, archiver, logger)
	orchestrator := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
		Repo:        repo,
		Guard:       quota.NewGuard(limits),
		Resolver:    resolver,
		Analyzer:    analyzer,
		Metrics:     analysisMetrics,
		Broadcaster: broadcaster,
		Logger:      logger,
	})
	batchRunner := pipeline.NewBatchRunner(repo, orchestrator, jobMetrics, logger)

	// Auth
	var jwtService *auth.JWTService
	if cfg.JWTPreviousSecret != "" {
		jwtService = auth.NewJWTServiceWithRotation(cfg.JWTSecret, cfg.JWTPreviousSecret)
	} else {
		jwtService = auth.NewJWTService(cfg.JWTSecret)
	}

	// Routes
	router := api.NewRouter(api.RouterConfig{
		Articles: api.NewArticleHandlers(repo, logger),
		Analysis: api.NewAnalysisHandlers(orchestrator, batchRunner, users, logger),
		Auth:     api.NewAuthHandlers(jwtService, users, logger),
		Events:   api.NewEventHandlers(broadcaster, logger),
		Health: api.NewHealthHandlers(api.HealthHandlersConfig{
			DBChecker:    health.NewDBChecker(db),
			RedisChecker: redisChecker,
			AIChecker:    health.NewAIChecker(cfg.AIEndpoint),
		}),
		Metrics: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	// Middleware chain, outermost first
	var handler http.Handler = router
	handler = middleware.RateLimiter(rateLimitStore, middleware.DefaultGlobalLimit(), middleware.UserKeyFunc())(handler)
	handler = middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	})(handler)
	handler = middleware.Authentication(jwtService)(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Tracing("newstrust-api")(handler)
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down server...", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
