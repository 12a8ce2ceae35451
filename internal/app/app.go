// Package app builds the service context shared by every entry point.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dshills/askdocs/internal/config"
	"github.com/dshills/askdocs/internal/embedder"
	"github.com/dshills/askdocs/internal/fingerprint"
	"github.com/dshills/askdocs/internal/index"
	"github.com/dshills/askdocs/internal/indexer"
	"github.com/dshills/askdocs/internal/llm"
	"github.com/dshills/askdocs/internal/logger"
	"github.com/dshills/askdocs/internal/relevance"
	"github.com/dshills/askdocs/internal/router"
	"github.com/dshills/askdocs/internal/storage"
	"github.com/dshills/askdocs/internal/websearch"
)

// App owns every backend connection. Create it once with New and release it with Close.
type App struct {
	Config      *config.Config
	Store       storage.Storage
	Embedder    embedder.Embedder
	Generator   llm.Generator
	Web         websearch.Searcher
	Fingerprint fingerprint.Store
	Index       *index.Index
	Indexer     *indexer.Indexer
	Filter      *relevance.Filter
	Router      *router.Router
}

// New validates cfg and wires the components. No network call is made.
func New(cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger.SetVerbose(cfg.Verbose)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	store, err := storage.NewSQLiteStorage(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	emb, err := embedder.New(embedder.Config{
		Provider:  cfg.Embedder.Provider,
		Model:     cfg.Embedder.Model,
		BaseURL:   cfg.Embedder.BaseURL,
		APIKey:    cfg.Embedder.APIKey(),
		Dimension: cfg.Embedder.Dimension,
		CacheSize: cfg.Embedder.CacheSize,
		Timeout:   cfg.Embedder.Timeout(),
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	gen, err := llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		Model:    cfg.LLM.Model,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey(),
		Timeout:  cfg.LLM.Timeout(),
	})
	if err != nil {
		_ = emb.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}

	return Assemble(cfg, store, emb, gen, websearch.New(websearch.Config{
		Endpoint: cfg.WebSearch.Endpoint,
		Interval: cfg.WebSearch.Interval(),
		Timeout:  cfg.WebSearch.Timeout(),
	})), nil
}

// Assemble wires already constructed backends. Tests use it to inject fakes.
func Assemble(cfg *config.Config, store storage.Storage, emb embedder.Embedder, gen llm.Generator, web websearch.Searcher) *App {
	var fp fingerprint.Store = fingerprint.NewMetaStore(store)
	if cfg.Index.FingerprintStore == config.FingerprintFile {
		fp = fingerprint.NewFileStore(cfg.DataDir)
	}

	idx := index.New(store, emb, &index.Config{
		Workers:   cfg.Index.Workers,
		BatchSize: cfg.Index.BatchSize,
		MinScore:  cfg.Index.MinScore,
	})
	filter := relevance.New(cfg.Categories)

	return &App{
		Config:      cfg,
		Store:       store,
		Embedder:    emb,
		Generator:   gen,
		Web:         web,
		Fingerprint: fp,
		Index:       idx,
		Indexer:     indexer.New(cfg.DocsDir, idx, fp),
		Filter:      filter,
		Router: router.New(idx, filter, gen, web, &router.Config{
			TopK:          cfg.Index.TopK,
			ContextChunks: cfg.Index.ContextChunks,
		}),
	}
}

// WaitForBackends polls the generator and embedder until they answer, then
// pulls the Ollama model when configured to. Only startup calls this.
func (a *App) WaitForBackends(ctx context.Context) error {
	timeout := a.Config.LLM.ReadyTimeout()
	interval := a.Config.LLM.ReadyInterval()

	logger.Info("Waiting for %s (up to %s)", a.Config.LLM.Provider, timeout)
	if err := llm.WaitForReady(ctx, a.Generator, timeout, interval); err != nil {
		return err
	}
	if p, ok := a.Embedder.(llm.Pinger); ok {
		if err := llm.WaitForReady(ctx, p, timeout, interval); err != nil {
			return fmt.Errorf("embedder: %w", err)
		}
	}

	if o, ok := a.Generator.(*llm.Ollama); ok && a.Config.LLM.PullModel {
		if err := o.EnsureModel(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases every backend
func (a *App) Close() error {
	return errors.Join(
		a.Generator.Close(),
		a.Embedder.Close(),
		a.Store.Close(),
	)
}
