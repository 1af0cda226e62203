package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nabdhq/nabd/internal/chat"
	"github.com/nabdhq/nabd/internal/config"
	"github.com/nabdhq/nabd/internal/fileagent"
	"github.com/nabdhq/nabd/internal/health"
	"github.com/nabdhq/nabd/internal/httpapi"
	"github.com/nabdhq/nabd/internal/metrics"
	"github.com/nabdhq/nabd/internal/nlu"
	"github.com/nabdhq/nabd/internal/objectstore"
	"github.com/nabdhq/nabd/internal/store"
)

func main() {
	// Setup structured logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()

	if os.Getenv("ENVIRONMENT") == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	log.Logger = logger

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Int("http_port", cfg.HTTPPort).
		Str("auth_mode", cfg.AuthMode).
		Bool("openai_enabled", cfg.OpenAIEnabled()).
		Msg("starting nabd")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Persistence
	st, err := store.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	if cfg.TipsSeedPath != "" {
		n, err := st.SeedTips(cfg.TipsSeedPath)
		if err != nil {
			logger.Warn().Err(err).Str("path", cfg.TipsSeedPath).Msg("tips seeding failed (non-fatal)")
		} else if n > 0 {
			logger.Info().Int("count", n).Msg("tips seeded")
		}
	}

	objects, err := objectstore.NewDisk(cfg.DataDir, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object storage")
	}

	// Health checker
	checker := health.NewChecker(logger)
	checker.Register("sqlite", func(ctx context.Context) health.Status {
		if err := st.DB().PingContext(ctx); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	// Model collaborators: the real client when a key is configured,
	// otherwise the offline fallbacks.
	var (
		classifier nlu.Classifier
		generator  nlu.TaskGenerator
		replier    nlu.ReplyGenerator
		analyzer   nlu.DocumentAnalyzer
	)
	if cfg.OpenAIEnabled() {
		client := nlu.NewClient(cfg.OpenAIAPIKey, logger, nlu.WithModel(cfg.OpenAIModel))
		classifier, generator, replier, analyzer = client, client, client, client
	} else {
		logger.Warn().Msg("OPENAI_API_KEY not set, assistant runs in degraded mode")
		offline := nlu.Offline{}
		classifier, generator, replier = offline, offline, offline
	}

	m := metrics.New()
	dispatcher := chat.NewDispatcher(st, classifier, generator, replier, logger)
	agent := fileagent.New(st, objects, analyzer, logger)
	agent.OnProcessed = m.RecordFileProcessed

	// Rate limiter stores sweep expired windows until shutdown.
	limiters := httpapi.NewLimiters()
	limiters.Start(ctx)
	defer limiters.Stop()

	server := httpapi.NewServer(cfg, st, dispatcher, agent, objects, checker, m, limiters, logger)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("api server error")
		}
	}()

	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("shutting down gracefully")

	cancel()

	if err := server.Shutdown(); err != nil {
		logger.Error().Err(err).Msg("api server shutdown error")
	}

	wg.Wait()
	logger.Info().Msg("shutdown complete")
}
