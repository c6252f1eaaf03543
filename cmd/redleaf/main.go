// Command redleaf indexes a directory of documents into a local entity graph.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/redleaf/internal/adapters/driven/config/file"
	"github.com/custodia-labs/redleaf/internal/adapters/driven/embedding"
	"github.com/custodia-labs/redleaf/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/redleaf/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/redleaf/internal/adapters/driven/nlp/prose"
	"github.com/custodia-labs/redleaf/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/redleaf/internal/adapters/driving/cli"
	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
	"github.com/custodia-labs/redleaf/internal/core/services"
	"github.com/custodia-labs/redleaf/internal/extractors"
	"github.com/custodia-labs/redleaf/internal/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errReported marks a command error cobra has already printed.
var errReported = errors.New("command failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	logger.Sync()
	if err != nil {
		if !errors.Is(err, errReported) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	configStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	cfg, err := file.LoadAppConfig(configStore, ".env")
	if err != nil {
		return err
	}
	if cfg.LogFile != "" {
		logger.SetLogFile(cfg.LogFile)
	}

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	staging, err := sqlite.NewStagingStore(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("opening staging database: %w", err)
	}
	defer staging.Close()

	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return err
	}
	if embedder != nil {
		defer embedder.Close()
	}

	var (
		docs     = store.DocumentStore()
		index    = store.IndexStore()
		settings = store.SettingsStore()
		history  = store.SchedulerStore()
		registry = extractors.NewDefaultRegistry()
		loader   = prose.NewLoader()
	)

	processor := services.NewProcessor(docs, index, registry, embedder, cfg.DocumentsDir)
	discovery := services.NewDiscoveryService(docs, cfg.DocumentsDir)
	cache := services.NewBrowseCache(index)

	coordCfg := services.DefaultCoordinatorConfig()
	coordCfg.TickInterval = cfg.TickInterval
	coordCfg.PoolCooldown = cfg.PoolCooldown
	coordCfg.ModelDir = cfg.ProseModelDir
	coordinator := services.NewCoordinator(coordCfg, services.CoordinatorDeps{
		Documents:  docs,
		Settings:   settings,
		Loader:     loader,
		Processor:  processor,
		Discoverer: discovery,
		Cache:      cache,
		History:    history,
	})

	pipeline := services.NewPipeline(services.PipelineDeps{
		Documents:  docs,
		Batch:      store.BatchStore(),
		Staging:    staging,
		Extractors: registry,
		Settings:   settings,
		Loader:     loader,
		Embedder:   embedder,
		History:    history,
	}, cfg.DocumentsDir, cfg.DataDir, cfg.ProseModelDir)

	cli.SetVersion(version)
	cli.Configure(cli.Services{
		Coordinator: coordinator,
		Discoverer:  discovery,
		Cache:       cache,
		Processor:   services.NewOneShotProcessor(processor, loader, settings, cfg.ProseModelDir),
		Pipeline:    pipeline,
		Documents:   services.NewDocumentService(docs, index, registry, cfg.DocumentsDir),
		Settings:    services.NewSettingsService(settings, coordinator),
		History:     services.NewHistoryService(history),
		Config:      configStore,
		ConfigKeys:  file.KnownKeys(),
		Daemon: cli.Daemon{
			Coordinator: coordinator,
			Scheduler:   services.NewScheduler(cfg.Scheduler, history, coordinator),
			Watcher:     services.NewWatcher(cfg.DocumentsDir, coordinator, 0),
		},
		AppConfig: cfg,
	})

	if err := cli.Execute(ctx); err != nil {
		return errReported
	}
	return nil
}

// newEmbedder returns the configured embedding service, or nil when
// embeddings are disabled.
func newEmbedder(cfg domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	limit := embedding.RateLimitConfig{RequestsPerSecond: cfg.RequestsPerSecond, BurstSize: 1}

	switch cfg.Provider {
	case domain.AIProviderOllama:
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			RateLimit: limit,
		}), nil
	case domain.AIProviderOpenAI:
		if !cfg.IsConfigured() {
			logger.Warn("embedding: openai selected without an API key, embeddings disabled")
			return nil, nil
		}
		svc, err := openai.NewEmbeddingService(openai.Config{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			RateLimit: limit,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding: %w", err)
		}
		return svc, nil
	default:
		return nil, nil
	}
}
