package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/adapter/repo"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/domain"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/envelope"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/http/handlers"
	httpapi "github.com/JI-DeepSleep/DocuSnap-Backend/internal/http/httpapi"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/infra"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/infra/credentials"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/providers/llm"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/providers/ocr"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/service/submission"
	"github.com/JI-DeepSleep/DocuSnap-Backend/internal/worker"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Task store: Postgres when configured, otherwise process memory.
	var store domain.TaskRepository
	llmKey := cfg.LLMAPIKey
	if cfg.DatabaseURL != "" {
		dbpool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer dbpool.Close()
		runner := infra.NewSQLRunner(dbpool, logger)
		if err := repo.EnsureSchema(ctx, runner); err != nil {
			logger.Fatal().Err(err).Msg("failed to apply schema")
		}
		store = repo.NewTaskRepository(runner)

		if llmKey == "" {
			stored, err := credentials.NewStore(runner).LLMAPIKey(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("failed to read stored llm api key")
			}
			llmKey = stored
		}
	} else {
		logger.Warn().Msg("DATABASE_URL not set, task cache is kept in memory")
		store = repo.NewMemoryTaskRepository(nil)
	}

	priv, err := envelope.LoadPrivateKey(cfg.RSAPrivateKey, cfg.RSAPrivateKeyPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load rsa private key")
	}
	codec, err := envelope.NewCodec(priv)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build envelope codec")
	}
	publicPEM, err := codec.PublicKeyPEM()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to encode public key")
	}

	ocrClient, err := ocr.NewClient(ocr.Options{
		BaseURL:        cfg.OCRAPIPrefix,
		Logger:         &logger,
		RequestTimeout: cfg.OCRTimeout,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build ocr client")
	}
	llmClient, err := llm.NewClient(llm.Options{
		APIKey:       llmKey,
		BaseURL:      cfg.LLMBaseURL,
		Model:        cfg.LLMModel,
		PollInterval: cfg.LLMPollInterval,
		MaxWait:      cfg.LLMMaxWait,
		Logger:       &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build llm client")
	}
	if !llmClient.HasCredentials() {
		logger.Warn().Msg("no llm api key configured, tasks will fail with LLM_FAILURE")
	}

	queue := worker.NewQueue()
	pipeline := worker.NewPipeline(store, ocr.NewFanOut(ocrClient, cfg.MaxOCRConcurrency), llmClient, logger)
	pool := worker.NewPool(queue, pipeline, cfg.MaxRequestConcurrency, logger)
	sweeper := worker.NewSweeper(store, cfg.Retention, cfg.SweepInterval, logger)

	workCtx, cancelWork := context.WithCancel(context.Background())
	poolDone := make(chan struct{})
	go func() {
		pool.Run(workCtx)
		close(poolDone)
	}()
	go sweeper.Run(workCtx)

	app := handlers.NewApp(submission.NewService(store, codec, queue, logger), publicPEM, cfg.MaxBodyBytes, logger)
	router := httpapi.NewRouter(app, logger, httpapi.Options{
		AllowedOrigins:  cfg.CORSAllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
	})
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Int("workers", cfg.MaxRequestConcurrency).
			Int("ocr_concurrency", cfg.MaxOCRConcurrency).
			Str("model", llmClient.Model()).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}

	// Queued tasks that have not started are dropped; their rows expire
	// with the retention window.
	queue.Close()
	cancelWork()
	select {
	case <-poolDone:
	case <-time.After(15 * time.Second):
		logger.Warn().Int("queued", queue.Len()).Msg("workers did not stop in time")
	}
	logger.Info().Msg("server stopped")
}
