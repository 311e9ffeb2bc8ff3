package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	badgeradapter "github.com/couchcryptid/blow-storage/internal/adapter/badger"
	httpadapter "github.com/couchcryptid/blow-storage/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/blow-storage/internal/adapter/kafka"
	"github.com/couchcryptid/blow-storage/internal/adapter/openai"
	"github.com/couchcryptid/blow-storage/internal/config"
	"github.com/couchcryptid/blow-storage/internal/domain"
	"github.com/couchcryptid/blow-storage/internal/observability"
	"github.com/couchcryptid/blow-storage/internal/pipeline"
	"github.com/couchcryptid/blow-storage/internal/service"
	"github.com/couchcryptid/blow-storage/internal/store"
)

// alwaysReady is the readiness checker when no moderation pipeline runs.
type alwaysReady struct{}

func (alwaysReady) CheckReadiness(context.Context) error { return nil }

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var storeOpts []store.Option

	// Durable storage (feature-flagged via STORAGE_PATH).
	var persister *badgeradapter.Persister
	if cfg.StoragePath != "" {
		persister, err = badgeradapter.Open(badgeradapter.DefaultConfig(cfg.StoragePath), logger)
		if err != nil {
			logger.Error("failed to open storage", "path", cfg.StoragePath, "error", err)
			os.Exit(1)
		}
		storeOpts = append(storeOpts, store.WithPersister(persister))
		logger.Info("badger storage enabled", "path", cfg.StoragePath)
	} else {
		logger.Warn("STORAGE_PATH not set, blows are kept in memory only")
	}

	// Lifecycle events (feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS).
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, logger)
		storeOpts = append(storeOpts, store.WithEventPublisher(publisher))
		logger.Info("kafka event publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaEventsTopic)
	}

	if cfg.VoteDedup {
		storeOpts = append(storeOpts, store.WithVoterDedup())
	}

	st := store.New(logger, metrics, storeOpts...)
	if err := st.Load(ctx); err != nil {
		logger.Error("failed to restore blows", "error", err)
		os.Exit(1)
	}

	// Trust judge (feature-flagged via OPENAI_ENABLED / OPENAI_API_KEY).
	var judge domain.Judge
	if cfg.OpenAIEnabled {
		client := openai.NewJudge(openai.Config{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.OpenAITimeout,
		}, logger, metrics)
		judge = openai.NewCachedJudge(client, cfg.JudgeCacheSize, cfg.OpenAITimeout, metrics)
		logger.Info("openai judge enabled", "model", cfg.OpenAIModel, "cache_size", cfg.JudgeCacheSize)
	} else {
		logger.Info("openai judge disabled, using rule judge")
	}

	svc := service.New(st, judge, logger)

	// Moderation pipeline (feature-flagged via MODERATION_ENABLED).
	var (
		reader *kafkaadapter.Reader
		ready  sharedobs.ReadinessChecker = alwaysReady{}
	)
	if cfg.ModerationEnabled {
		reader = kafkaadapter.NewReader(cfg, logger)
		p := pipeline.New(reader, svc, logger, metrics, cfg.BatchSize, cfg.ModerationFlagThreshold)
		ready = p

		go func() {
			if err := p.Run(ctx); err != nil {
				logger.Error("moderation pipeline error", "error", err)
			}
		}()
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, svc, ready, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if reader != nil {
		if err := reader.Close(); err != nil {
			logger.Error("kafka reader close error", "error", err)
		}
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if persister != nil {
		if err := persister.Close(); err != nil {
			logger.Error("storage close error", "error", err)
		}
	}

	logger.Info("shutdown complete", "blows", st.Len())
}
