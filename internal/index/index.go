package index

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/askdocs/internal/embedder"
	"github.com/dshills/askdocs/internal/fingerprint"
	"github.com/dshills/askdocs/internal/logger"
	"github.com/dshills/askdocs/internal/storage"
	"github.com/dshills/askdocs/pkg/types"
)

const (
	DefaultBatchSize = 32
	DefaultTopK      = 10
)

// ErrEmptyQuery is returned by Search for a blank query
var ErrEmptyQuery = errors.New("query cannot be empty")

// Config contains configuration for the vector index
type Config struct {
	Workers   int     // Concurrent embedding batches (default: runtime.NumCPU())
	BatchSize int     // Texts per embedding request (default: 32)
	MinScore  float64 // Drop search hits below this similarity, 0 disables
}

// RebuildStats describes one completed rebuild
type RebuildStats struct {
	Chunks      int
	Sources     int
	Replaced    int // Chunks removed from the previous index
	Fingerprint fingerprint.Fingerprint
	Duration    time.Duration
}

// Index stores chunk embeddings and answers similarity queries.
// Rebuild takes the write lock, Search the read lock.
type Index struct {
	store    storage.Storage
	embedder embedder.Embedder

	mu    sync.RWMutex
	count int

	workers   int
	batchSize int
	minScore  float64
}

// New creates an Index over store, embedding with emb
func New(store storage.Storage, emb embedder.Embedder, cfg *Config) *Index {
	if cfg == nil {
		cfg = &Config{}
	}
	idx := &Index{
		store:     store,
		embedder:  emb,
		workers:   cfg.Workers,
		batchSize: cfg.BatchSize,
		minScore:  cfg.MinScore,
	}
	if idx.workers <= 0 {
		idx.workers = runtime.NumCPU()
	}
	if idx.batchSize <= 0 {
		idx.batchSize = DefaultBatchSize
	}
	if idx.batchSize > embedder.MaxBatchSize {
		idx.batchSize = embedder.MaxBatchSize
	}
	return idx
}

// Open loads the size of a previously built index
func (idx *Index) Open(ctx context.Context) error {
	chunks, err := idx.store.ListChunks(ctx, "")
	if err != nil {
		return fmt.Errorf("failed to load index: %w", err)
	}

	idx.mu.Lock()
	idx.count = len(chunks)
	idx.mu.Unlock()

	logger.Debug("Opened index with %d chunks", len(chunks))
	return nil
}

// Count returns the number of indexed chunks
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.count
}

// EmbedderChanged reports whether the last build used a different embedding
// provider, model or dimension than the current embedder. Search only matches
// vectors of the current model, so such an index answers nothing until rebuilt.
// An index that was never built has not changed.
func (idx *Index) EmbedderChanged(ctx context.Context) (bool, error) {
	build, err := idx.store.LastBuild(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load last build: %w", err)
	}

	if build.Provider != idx.embedder.Provider() || build.Model != idx.embedder.Model() {
		logger.Debug("Index built with %s/%s, embedder is %s/%s",
			build.Provider, build.Model, idx.embedder.Provider(), idx.embedder.Model())
		return true, nil
	}
	if build.Dimension != 0 && build.Dimension != idx.embedder.Dimension() {
		logger.Debug("Index built with dimension %d, embedder has %d", build.Dimension, idx.embedder.Dimension())
		return true, nil
	}
	return false, nil
}

// Rebuild replaces the whole index with chunks.
// All embeddings are computed before the store is touched, so a failure leaves the previous index in place.
func (idx *Index) Rebuild(ctx context.Context, chunks []types.Chunk) (*RebuildStats, error) {
	start := time.Now()

	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return nil, fmt.Errorf("chunk %s: %w", chunks[i].Key(), err)
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	vectors, err := idx.embedAll(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks: %w", err)
	}

	stats := &RebuildStats{
		Chunks:      len(chunks),
		Fingerprint: fingerprint.Compute(chunks),
	}

	tx, err := idx.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stats.Replaced, err = tx.DeleteAllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to clear index: %w", err)
	}

	sources := make(map[string]struct{})
	for i := range chunks {
		c := chunks[i]
		c.ComputeContentHash()
		sc := storage.FromTypesChunk(c)
		if err := tx.UpsertChunk(ctx, sc); err != nil {
			return nil, fmt.Errorf("failed to store chunk %s: %w", c.Key(), err)
		}

		vec := vectors[i]
		if err := tx.UpsertEmbedding(ctx, &storage.Embedding{
			ChunkID:   sc.ID,
			Vector:    storage.SerializeVector(vec),
			Dimension: len(vec),
			Provider:  idx.embedder.Provider(),
			Model:     idx.embedder.Model(),
		}); err != nil {
			return nil, fmt.Errorf("failed to store embedding for %s: %w", c.Key(), err)
		}
		sources[c.SourceID] = struct{}{}
	}
	stats.Sources = len(sources)
	stats.Duration = time.Since(start)

	if err := tx.RecordBuild(ctx, &storage.Build{
		Fingerprint: string(stats.Fingerprint),
		ChunkCount:  stats.Chunks,
		SourceCount: stats.Sources,
		Provider:    idx.embedder.Provider(),
		Model:       idx.embedder.Model(),
		Dimension:   idx.embedder.Dimension(),
		Duration:    stats.Duration,
	}); err != nil {
		return nil, fmt.Errorf("failed to record build: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	idx.count = len(chunks)
	logger.Info("Rebuilt index: %d chunks from %d documents in %s", stats.Chunks, stats.Sources, stats.Duration.Round(time.Millisecond))
	return stats, nil
}

// embedAll embeds chunk texts in batches on a bounded number of goroutines.
// Each batch writes a disjoint range of the result slice.
func (idx *Index) embedAll(ctx context.Context, chunks []types.Chunk) ([][]float32, error) {
	vectors := make([][]float32, len(chunks))
	if len(chunks) == 0 {
		return vectors, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for i := 0; i < len(chunks); i += idx.batchSize {
		start := i
		end := min(i+idx.batchSize, len(chunks))

		g.Go(func() error {
			texts := make([]string, end-start)
			for j := range texts {
				texts[j] = chunks[start+j].Text
			}
			resp, err := idx.embedder.GenerateBatch(gctx, embedder.BatchEmbeddingRequest{Texts: texts})
			if err != nil {
				return err
			}
			if len(resp.Embeddings) != len(texts) {
				return fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Embeddings))
			}
			for j, emb := range resp.Embeddings {
				vectors[start+j] = emb.Vector
			}
			logger.Debug("Embedded chunks %d-%d of %d", start+1, end, len(chunks))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// Search returns up to k chunks most similar to query, highest score first.
// An empty index answers with no hits and no embedding call.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]types.ScoredChunk, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = DefaultTopK
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.count == 0 {
		return nil, nil
	}

	emb, err := idx.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := idx.store.SearchVector(ctx, emb.Vector, k, &storage.SearchFilters{
		Model:        idx.embedder.Model(),
		MinRelevance: idx.minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	hits := make([]types.ScoredChunk, 0, len(results))
	for _, r := range results {
		c, err := idx.store.GetChunk(ctx, r.ChunkID)
		if err != nil {
			return nil, fmt.Errorf("failed to load chunk %d: %w", r.ChunkID, err)
		}
		hits = append(hits, types.ScoredChunk{Chunk: c.ToTypesChunk(), Score: r.SimilarityScore})
	}
	return hits, nil
}
