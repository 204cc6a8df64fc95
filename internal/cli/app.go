package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mvp-joe/smolex/internal/config"
	"github.com/mvp-joe/smolex/internal/embed"
	"github.com/mvp-joe/smolex/internal/indexer"
	"github.com/mvp-joe/smolex/internal/resolver"
	"github.com/mvp-joe/smolex/internal/semantic"
	"github.com/mvp-joe/smolex/internal/storage"
)

// app holds the components shared by the index, serve and lookup commands.
type app struct {
	rootDir  string
	cfg      *config.Config
	provider embed.Provider
	store    *storage.Store
	semantic *semantic.Index
	indexer  *indexer.Indexer
	resolver *resolver.Resolver
}

// openApp loads configuration for the root directory and wires both
// indexes, the refresh pipeline and the resolver.
func openApp(ctx context.Context, progress indexer.ProgressReporter) (*app, error) {
	rootDir, err := resolveRootDir()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfigFromDir(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	provider, err := embed.NewProvider(cfg.ToEmbedConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	if err := provider.Initialize(ctx); err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	a := &app{rootDir: rootDir, cfg: cfg, provider: provider}
	if err := a.wire(progress); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(progress indexer.ProgressReporter) error {
	store, err := storage.Open(a.cfg.StructuredDBPath(a.rootDir), storage.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to open structured index: %w", err)
	}
	a.store = store

	synth, err := semantic.NewSynthesizer(a.cfg.Semantic.Synthesizer, a.cfg.Semantic.APIKey, a.cfg.Semantic.BaseURL, a.cfg.Semantic.Model)
	if err != nil {
		return err
	}

	sem, err := semantic.Open(a.cfg.SemanticDirPath(a.rootDir), a.provider, semantic.Options{
		TopK:        a.cfg.Semantic.TopK,
		BatchSize:   a.cfg.Embedding.BatchSize,
		Synthesizer: synth,
		Logger:      logger,
		OnEmbed: func(p embed.BatchProgress) {
			progress.OnEmbeddingProgress(p.ProcessedChunks)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to open semantic index: %w", err)
	}
	a.semantic = sem

	idx, err := indexer.New(a.cfg.ToIndexerConfig(a.rootDir), store, sem,
		indexer.WithLogger(logger),
		indexer.WithProgress(progress),
	)
	if err != nil {
		return fmt.Errorf("failed to create indexer: %w", err)
	}
	a.indexer = idx

	a.resolver = resolver.New(store, sem, resolver.Options{
		FallbackTimeout: a.cfg.Semantic.Timeout,
		Logger:          logger,
	})
	return nil
}

// buildState reports which indexes exist on disk.
func (a *app) buildState() indexer.BuildState {
	return indexer.DetectBuildState(a.cfg.StructuredDBPath(a.rootDir), a.cfg.SemanticDirPath(a.rootDir))
}

// ensureBuilt refreshes both indexes when either is missing.
func (a *app) ensureBuilt(ctx context.Context) error {
	state := a.buildState()
	if !state.RequiresRefresh() {
		return nil
	}

	logger.WithFields(logrus.Fields{
		"structured_ready": state.StructuredReady,
		"semantic_ready":   state.SemanticReady,
	}).Info("index missing, refreshing")

	if _, err := a.indexer.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("indexing cancelled")
		}
		return fmt.Errorf("indexing failed: %w", err)
	}
	return nil
}

// watch refreshes on file changes until ctx is cancelled.
func (a *app) watch(ctx context.Context) error {
	w, err := indexer.NewWatcher(a.indexer.Discovery(), a.indexer, logger, indexer.DefaultDebounce)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	w.Start(ctx)
	logger.WithField("root", a.rootDir).Info("watching for changes")

	<-ctx.Done()
	w.Stop()
	return nil
}

// Close releases the indexes and the embedding provider.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.provider != nil {
		errs = append(errs, a.provider.Close())
	}
	return errors.Join(errs...)
}
