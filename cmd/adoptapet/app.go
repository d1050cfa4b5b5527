package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/adoptapet/internal/config"
	"github.com/kailas-cloud/adoptapet/internal/db"
	"github.com/kailas-cloud/adoptapet/internal/db/postgres"
	"github.com/kailas-cloud/adoptapet/internal/db/valkey"
	"github.com/kailas-cloud/adoptapet/internal/domain"
	"github.com/kailas-cloud/adoptapet/internal/domain/pet"
	logpkg "github.com/kailas-cloud/adoptapet/internal/logger"
	"github.com/kailas-cloud/adoptapet/internal/metrics"
	"github.com/kailas-cloud/adoptapet/internal/repository/embcache"
	petrepo "github.com/kailas-cloud/adoptapet/internal/repository/pet"
	openaiEmb "github.com/kailas-cloud/adoptapet/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/adoptapet/internal/usecase/embedding"
	searchuc "github.com/kailas-cloud/adoptapet/internal/usecase/search"
)

// app is the composition root shared by all commands.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
	store  db.Store
	repo   *petrepo.Repo
}

// newApp loads configuration, builds the logger and connects to the database.
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	env, _ := cmd.Flags().GetString("env")
	if env == "" {
		env = config.GetEnv()
	}

	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	store, err := openStore(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}

	timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database", zap.String("driver", cfg.Database.Driver))

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	repo := petrepo.New(store, petrepo.IndexConfig{
		Name:        cfg.Index.Name,
		KeyPrefix:   cfg.Index.KeyPrefix,
		Dimensions:  cfg.Index.Dimensions,
		Algorithm:   db.VectorAlgorithm(strings.ToUpper(cfg.Index.Algorithm)),
		M:           cfg.Index.HNSWM,
		EFConstruct: cfg.Index.HNSWEFConstruct,
	})

	return &app{env: env, cfg: cfg, logger: logger, store: store, repo: repo}, nil
}

func (a *app) close() {
	a.store.Close()
	_ = a.logger.Sync()
}

func openStore(cfg config.DatabaseConfig) (db.Store, error) {
	switch cfg.Driver {
	case config.DriverValkey:
		return valkey.NewStore(valkey.Config{
			Addrs:    cfg.Addrs,
			Password: cfg.Password,
		})
	case config.DriverPostgres:
		return postgres.NewStore(postgres.Config{
			DSN:          cfg.DSN,
			MaxOpenConns: cfg.MaxOpenConns,
		})
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// embedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
func (a *app) embedder() *embeddinguc.InstrumentedEmbedder {
	ec := a.cfg.Embedding
	base := openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		TextModel:  ec.TextModel,
		ImageModel: ec.ImageModel,
		Dimensions: ec.Dimensions,
		ImageSize:  ec.ImageSize,
		Provider:   ec.Provider,
		Logger:     a.logger,
	})

	var embedder domain.Embedder = base
	if ec.CacheTTLSec > 0 {
		embedder = embcache.New(
			base, a.store, ec.TextModel,
			time.Duration(ec.CacheTTLSec)*time.Second,
			metrics.EmbeddingCacheTotal, a.logger,
		)
	}

	a.logger.Info("Embedder created",
		zap.String("provider", ec.Provider),
		zap.String("text_model", ec.TextModel),
		zap.Int("dimensions", ec.Dimensions),
		zap.Bool("cache", ec.CacheTTLSec > 0),
	)
	return embeddinguc.NewInstrumentedEmbedder(embedder, ec.Provider, ec.TextModel, a.logger)
}

func (a *app) searchService(embedder searchuc.Embedder) (*searchuc.Service, error) {
	cfg, err := searchConfig(a.cfg.Search)
	if err != nil {
		return nil, err
	}
	return searchuc.New(a.repo, embedder, a.cfg.Index.Dimensions, cfg, a.logger), nil
}

// searchConfig converts the validated YAML search section into service settings.
func searchConfig(sc config.SearchConfig) (searchuc.Config, error) {
	primary, err := pet.ParsePartition(sc.PrimaryPartition)
	if err != nil {
		return searchuc.Config{}, fmt.Errorf("primary partition: %w", err)
	}

	shares := make([]searchuc.Share, 0, len(sc.Partitions))
	for _, p := range sc.Partitions {
		part, err := pet.ParsePartition(p.Name)
		if err != nil {
			return searchuc.Config{}, fmt.Errorf("search partitions: %w", err)
		}
		shares = append(shares, searchuc.Share{Partition: part, Proportion: p.Proportion})
	}

	return searchuc.Config{
		Primary:         primary,
		Shares:          shares,
		Oversample:      sc.Oversample,
		OversampleFloor: sc.OversampleFloor,
		EmbedTimeout:    time.Duration(sc.EmbedTimeoutMs) * time.Millisecond,
		FetchTimeout:    time.Duration(sc.FetchTimeoutMs) * time.Millisecond,
		RetryAttempts:   sc.Retry.MaxAttempts,
		RetryBaseDelay:  time.Duration(sc.Retry.BaseDelayMs) * time.Millisecond,
	}, nil
}
