package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// Embedding represents a vector embedding with metadata
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // Content hash for caching
}

// EmbeddingRequest represents a request to generate embeddings
type EmbeddingRequest struct {
	Text  string
	Model string // Optional: override default model
}

// BatchEmbeddingRequest represents a batch request
type BatchEmbeddingRequest struct {
	Texts []string
	Model string // Optional: override default model
}

// BatchEmbeddingResponse represents a batch response
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder interface defines methods for generating embeddings
type Embedder interface {
	// GenerateEmbedding generates a single embedding for the given text
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch generates embeddings for multiple texts, preserving order
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	// Dimension returns the embedding dimension for this provider
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// Cache provides in-memory LRU caching of embeddings keyed by model and content hash
type Cache struct {
	cache *lru.Cache[string, *Embedding]
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = DefaultCacheSize
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		cache, _ = lru.New[string, *Embedding](DefaultCacheSize)
	}
	return &Cache{
		cache: cache,
	}
}

// cacheKey scopes a content hash to a model, since vectors from different models are not comparable
func cacheKey(model, hash string) string {
	return model + ":" + hash
}

// Get retrieves a deep copy of an embedding from cache.
// Returns a copy to prevent caller mutations from affecting cached values.
func (c *Cache) Get(model, hash string) (*Embedding, bool) {
	emb, ok := c.cache.Get(cacheKey(model, hash))
	if !ok {
		return nil, false
	}

	vectorCopy := make([]float32, len(emb.Vector))
	copy(vectorCopy, emb.Vector)

	return &Embedding{
		Vector:    vectorCopy,
		Dimension: emb.Dimension,
		Provider:  emb.Provider,
		Model:     emb.Model,
		Hash:      emb.Hash,
	}, true
}

// Set stores an embedding in cache with automatic LRU eviction
func (c *Cache) Set(model, hash string, emb *Embedding) {
	c.cache.Add(cacheKey(model, hash), emb)
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash computes SHA-256 hash of text for caching
func ComputeHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// ValidateRequest validates an embedding request
func ValidateRequest(req EmbeddingRequest) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatchRequest validates a batch embedding request
func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}

	for i, text := range req.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}

	return nil
}

// callFunc embeds texts with one backend round trip
type callFunc func(ctx context.Context, texts []string, model string) ([]*Embedding, error)

// client holds what every remote provider shares: cache lookup, batching and retry
type client struct {
	name      string
	model     string
	batchSize int
	retry     RetryConfig
	cache     *Cache
	call      callFunc
}

func (c *client) generateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	resp, err := c.generateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}, Model: req.Model})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}
	return resp.Embeddings[0], nil
}

// generateBatch serves cached texts locally and sends the rest in chunks of batchSize
func (c *client) generateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}
	if len(req.Texts) > MaxBatchSize {
		return nil, fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	out := make([]*Embedding, len(req.Texts))
	hashes := make([]string, len(req.Texts))
	var missing []int
	for i, text := range req.Texts {
		hashes[i] = ComputeHash(text)
		if c.cache != nil {
			if emb, ok := c.cache.Get(model, hashes[i]); ok {
				out[i] = emb
				continue
			}
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += c.batchSize {
		end := min(start+c.batchSize, len(missing))
		idx := missing[start:end]
		texts := make([]string, len(idx))
		for j, i := range idx {
			texts[j] = req.Texts[i]
		}

		embeddings, err := retryWithBackoff(ctx, c.retry, func() ([]*Embedding, error) {
			return c.call(ctx, texts, model)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProviderFailed, err)
		}
		if len(embeddings) != len(texts) {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrProviderFailed, len(texts), len(embeddings))
		}

		for j, i := range idx {
			emb := embeddings[j]
			emb.Hash = hashes[i]
			if c.cache != nil {
				c.cache.Set(model, hashes[i], emb)
			}
			out[i] = emb
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: out,
		Provider:   c.name,
		Model:      model,
	}, nil
}
