package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hcplus/scheduling-agent/cmd/mainconfig"
	"github.com/hcplus/scheduling-agent/internal/agent"
	"github.com/hcplus/scheduling-agent/internal/api/router"
	"github.com/hcplus/scheduling-agent/internal/audit"
	"github.com/hcplus/scheduling-agent/internal/calendly"
	appconfig "github.com/hcplus/scheduling-agent/internal/config"
	"github.com/hcplus/scheduling-agent/internal/http/handlers"
	"github.com/hcplus/scheduling-agent/internal/knowledge"
	"github.com/hcplus/scheduling-agent/internal/observability/metrics"
	"github.com/hcplus/scheduling-agent/internal/scheduling"
	"github.com/hcplus/scheduling-agent/internal/session"
	"github.com/hcplus/scheduling-agent/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting scheduling-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Scheduling provider. A 401 here is a configuration error, not a
	// transient fault, so it fails startup.
	provider := calendly.NewClient(cfg.CalendlyAPIKey, logger,
		calendly.WithBaseURL(cfg.CalendlyBaseURL),
		calendly.WithTimeout(cfg.CalendlyTimeout),
	)
	startupCtx, cancelStartup := context.WithTimeout(ctx, 10*time.Second)
	userURI, err := provider.CurrentUser(startupCtx)
	cancelStartup()
	switch {
	case errors.Is(err, calendly.ErrUnauthorized):
		logger.Error("scheduling provider rejected the configured credential")
		os.Exit(1)
	case err != nil:
		logger.Warn("could not verify scheduling provider at startup", "error", err)
	default:
		logger.Info("scheduling provider verified", "user_uri", userURI)
	}

	providerMetrics := metrics.NewProviderMetrics(nil)
	instrumented := scheduling.NewInstrumentedProvider(provider, providerMetrics)

	// Audit store is optional: without DATABASE_URL outcomes are only logged.
	var auditStore *audit.Store
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to open audit database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		auditStore = audit.NewStore(db)
	}

	resolver := scheduling.NewResolver(instrumented, cfg.Timezone, cfg.ClinicPhone, logger)
	executor := scheduling.NewExecutor(instrumented, auditStore, cfg.Timezone, cfg.ClinicPhone, logger)

	// LLM: Bedrock primary, Gemini fallback when configured.
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	var llm agent.LLMClient = agent.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
	if cfg.GeminiAPIKey != "" {
		gemini, err := agent.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Warn("failed to create gemini fallback client", "error", err)
		} else {
			defer gemini.Close()
			llm = agent.NewFallbackLLMClient(llm, gemini, logger)
		}
	}

	// Knowledge lookup: cached FAQ answers plus an optional remote service.
	knowledgeOpts := []knowledge.Option{}
	if cfg.KnowledgeBaseURL != "" {
		remote, err := knowledge.NewRemoteClient(knowledge.RemoteConfig{
			BaseURL: cfg.KnowledgeBaseURL,
			APIKey:  cfg.KnowledgeAPIKey,
		})
		if err != nil {
			logger.Warn("failed to create remote knowledge client", "error", err)
		} else {
			knowledgeOpts = append(knowledgeOpts, knowledge.WithRemote(remote))
		}
	}
	knowledgeService := knowledge.NewService(logger, knowledgeOpts...)

	// Session state: in-memory LRU, mirrored to Redis when configured.
	sessions := session.NewStore(cfg.SessionCapacity, logger)
	var historyStore *session.HistoryStore
	if cfg.RedisAddr != "" {
		redisOpts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		historyStore = session.NewHistoryStore(redis.NewClient(redisOpts), otel.Tracer("scheduling-agent"))
	}

	conversationMetrics := metrics.NewConversationMetrics(nil, sessions.Len)
	toolbox := agent.NewToolbox(resolver, executor, knowledgeService, logger)
	service := agent.NewService(llm, toolbox, sessions, historyStore, conversationMetrics, agent.ServiceConfig{
		Model:         cfg.BedrockModelID,
		MaxTokens:     int32(cfg.LLMMaxTokens),
		Temperature:   float32(cfg.LLMTemperature),
		MaxToolRounds: cfg.MaxToolRounds,
		ClinicName:    cfg.ClinicName,
		ClinicPhone:   cfg.ClinicPhone,
		Timezone:      cfg.Timezone,
	}, logger)

	// Turn dispatch: in-memory queue by default, SQS when configured.
	var dispatcher *agent.Dispatcher
	if cfg.UseMemoryQueue || cfg.TurnQueueURL == "" {
		dispatcher = agent.NewDispatcher(service, agent.NewMemoryQueue(128), logger,
			agent.WithWorkerCount(cfg.WorkerCount),
		)
	} else {
		sqsQueue := agent.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.TurnQueueURL, logger)
		dispatcher = agent.NewDispatcher(service, sqsQueue, logger,
			agent.WithWorkerCount(cfg.WorkerCount),
		)
	}

	r := router.New(&router.Config{
		Logger:             logger,
		ChatHandler:        handlers.NewChatHandler(dispatcher, logger),
		HealthHandler:      handlers.NewHealthHandler("scheduling-agent", cfg.Env),
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: []string{"*"},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}
