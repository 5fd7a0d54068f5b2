package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Conversly/whatsapp-faq-bot/internal/api/admin"
	"github.com/Conversly/whatsapp-faq-bot/internal/api/channels/whatsapp"
	"github.com/Conversly/whatsapp-faq-bot/internal/config"
	"github.com/Conversly/whatsapp-faq-bot/internal/controllers"
	"github.com/Conversly/whatsapp-faq-bot/internal/core"
	"github.com/Conversly/whatsapp-faq-bot/internal/embedder"
	"github.com/Conversly/whatsapp-faq-bot/internal/llm"
	"github.com/Conversly/whatsapp-faq-bot/internal/loaders"
	"github.com/Conversly/whatsapp-faq-bot/internal/observability/metrics"
	"github.com/Conversly/whatsapp-faq-bot/internal/rag"
	"github.com/Conversly/whatsapp-faq-bot/internal/routes"
	"github.com/Conversly/whatsapp-faq-bot/internal/tenant"
	"github.com/Conversly/whatsapp-faq-bot/internal/throttle"
	"github.com/Conversly/whatsapp-faq-bot/internal/utils"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		fmt.Println("Warning: Error loading .env file", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	cleanup := utils.InitLogger(cfg)
	defer cleanup()

	utils.Zlog.Info("Starting application",
		zap.String("service", cfg.ServiceName),
		zap.String("environment", cfg.Environment),
		zap.String("port", cfg.ServerPort))

	ctx := context.Background()

	db, err := loaders.NewPostgresClient(cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		utils.Zlog.Error("Failed to create database client", zap.Error(err))
		os.Exit(1)
	}
	defer func() {
		if err := db.Close(); err != nil {
			utils.Zlog.Error("Error closing database connection", zap.Error(err))
		}
	}()

	rdb, err := connectRedis(ctx, cfg.RedisURL)
	if err != nil {
		utils.Zlog.Error("Failed to connect to redis", zap.Error(err))
		os.Exit(1)
	}
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	botMetrics := metrics.NewBotMetrics(reg)

	emb, err := embedder.NewGeminiEmbedder(ctx, cfg.GeminiAPIKeys, embedder.Config{
		Model:      cfg.EmbeddingModel,
		Dimensions: cfg.EmbeddingDimensions,
		Timeout:    cfg.EmbeddingTimeout,
	})
	if err != nil {
		utils.Zlog.Error("Failed to create embedder", zap.Error(err))
		os.Exit(1)
	}

	matcher := rag.NewMatcher(emb, db, rag.MatcherConfig{
		Threshold:  cfg.SimilarityThreshold,
		SharedPool: cfg.SharedFAQPool,
	}, botMetrics)

	provider := llm.NewGeminiProvider(llm.GeminiFactory(cfg.GeminiAPIKeys, 0.7, 1024), cfg.GeminiModel)
	resolver := tenant.NewResolver(db, cfg.TenantCacheTTL)

	generator := core.NewGenerator(resolver, matcher, db, provider, core.GeneratorConfig{
		HistoryLimit:    cfg.HistoryLimit,
		HistoryMaxChars: cfg.HistoryMaxChars,
		MaxAttempts:     cfg.ModelMaxRetries,
		BaseDelay:       cfg.ModelRetryBaseDelay,
		ModelTimeout:    cfg.ModelTimeout,
		DefaultModel:    cfg.GeminiModel,
	}, botMetrics)

	var (
		limiter   throttle.Limiter
		deduper   throttle.Deduper
		redisPing controllers.Pinger
	)
	if rdb != nil {
		limiter = throttle.NewRedisLimiter(rdb, cfg.RateLimitInterval)
		deduper = throttle.NewRedisDeduper(rdb, throttle.DedupeWindow)
		redisPing = controllers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		utils.Zlog.Warn("REDIS_URL not set, rate limiting and dedupe are per process")
		limiter = throttle.NewMemoryLimiter(cfg.RateLimitInterval)
		deduper = throttle.NewMemoryDeduper(throttle.DedupeWindow)
	}

	waService := whatsapp.NewService(whatsapp.ServiceDeps{
		Generator: generator,
		Tenants:   resolver,
		Limiter:   limiter,
		Deduper:   deduper,
		Sender:    whatsapp.NewAdapter(cfg.WhatsAppGraphURL, cfg.WhatsAppAPIToken, botMetrics),
		Recorder:  core.NewRecorder(db),
		Metrics:   botMetrics,
	})

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	routes.SetupRoutes(router, routes.Deps{
		Config:   cfg,
		DB:       db,
		Redis:    redisPing,
		WhatsApp: whatsapp.NewController(waService, cfg.WhatsAppVerifyToken, cfg.WhatsAppAppSecret),
		Admin:    admin.NewService(db, emb, resolver),
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	})

	// Webhook handling blocks on the model and Graph API calls.
	writeTimeout := cfg.ModelTimeout*time.Duration(cfg.ModelMaxRetries) +
		cfg.ModelRetryBaseDelay*time.Duration(1<<uint(cfg.ModelMaxRetries)) + 30*time.Second

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		utils.Zlog.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Zlog.Error("Failed to start server", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	utils.Zlog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Zlog.Error("Server forced to shutdown", zap.Error(err))
		os.Exit(1)
	}

	utils.Zlog.Info("Server exited")
}

// connectRedis returns nil when url is empty.
func connectRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	utils.Zlog.Info("Connected to redis", zap.String("addr", opts.Addr))
	return client, nil
}
