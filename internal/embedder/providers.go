package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/dshills/askdocs/pkg/types"
	openai "github.com/sashabaranov/go-openai"
)

// Provider constants
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultOllamaModel = "nomic-embed-text"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultLocalModel  = "local-hash"

	// Default endpoints
	DefaultOllamaURL = "http://localhost:11434"

	// Embedding dimensions
	OllamaDimension = 768
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch configuration
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	DefaultTimeout   = 30 * time.Second
	DefaultCacheSize = 10000
)

// OllamaProvider implements Embedder against a local Ollama server
type OllamaProvider struct {
	client
	baseURL    string
	dimension  int
	httpClient *http.Client
}

// NewOllamaProvider creates an Ollama embedder. Empty values fall back to defaults.
func NewOllamaProvider(baseURL, model string, dimension int, timeout time.Duration, cache *Cache) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if dimension <= 0 {
		dimension = OllamaDimension
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	p := &OllamaProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		dimension:  dimension,
		httpClient: &http.Client{Timeout: timeout},
	}
	p.client = client{
		name:      ProviderOllama,
		model:     model,
		batchSize: DefaultBatchSize,
		retry:     DefaultRetryConfig(),
		cache:     cache,
		call:      p.callAPI,
	}
	return p
}

func (o *OllamaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return o.generateEmbedding(ctx, req)
}

func (o *OllamaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	return o.generateBatch(ctx, req)
}

// callAPI embeds each text in turn; the embeddings endpoint takes a single prompt
func (o *OllamaProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	embeddings := make([]*Embedding, 0, len(texts))
	for _, text := range texts {
		vec, err := o.embedOne(ctx, text, model)
		if err != nil {
			return nil, err
		}
		embeddings = append(embeddings, &Embedding{
			Vector:    vec,
			Dimension: len(vec),
			Provider:  ProviderOllama,
			Model:     model,
		})
	}
	return embeddings, nil
}

func (o *OllamaProvider) embedOne(ctx context.Context, text, model string) ([]float32, error) {
	body, err := json.Marshal(map[string]string{
		"model":  model,
		"prompt": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, types.NewBackendError(ProviderOllama, types.KindUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, types.NewBackendError(ProviderOllama, types.KindForStatus(resp.StatusCode),
			fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes))))
	}

	var apiResp struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, types.NewBackendError(ProviderOllama, types.KindUnavailable,
			fmt.Errorf("decode response: %w", err))
	}
	if len(apiResp.Embedding) == 0 {
		return nil, types.NewBackendError(ProviderOllama, types.KindInvalidRequest,
			fmt.Errorf("empty embedding for model %s", model))
	}

	vec := make([]float32, len(apiResp.Embedding))
	for i, v := range apiResp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Ping checks that the Ollama server answers
func (o *OllamaProvider) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return types.NewBackendError(ProviderOllama, types.KindUnavailable, err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.NewBackendError(ProviderOllama, types.KindForStatus(resp.StatusCode),
			fmt.Errorf("ping returned status %d", resp.StatusCode))
	}
	return nil
}

func (o *OllamaProvider) Dimension() int {
	return o.dimension
}

func (o *OllamaProvider) Provider() string {
	return ProviderOllama
}

func (o *OllamaProvider) Model() string {
	return o.model
}

func (o *OllamaProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// OpenAIProvider implements Embedder using the OpenAI embeddings API or a compatible server
type OpenAIProvider struct {
	client
	api *openai.Client
}

// NewOpenAIProvider creates an OpenAI embedder. baseURL may point at any compatible server.
func NewOpenAIProvider(apiKey, baseURL, model string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	p := &OpenAIProvider{api: openai.NewClientWithConfig(cfg)}
	p.client = client{
		name:      ProviderOpenAI,
		model:     model,
		batchSize: MaxBatchSize,
		retry:     DefaultRetryConfig(),
		cache:     cache,
		call:      p.callAPI,
	}
	return p, nil
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return o.generateEmbedding(ctx, req)
}

func (o *OpenAIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	return o.generateBatch(ctx, req)
}

func (o *OpenAIProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	resp, err := o.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(model),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, openAIError(ProviderOpenAI, err)
	}

	embeddings := make([]*Embedding, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrProviderFailed, data.Index)
		}
		embeddings[data.Index] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  ProviderOpenAI,
			Model:     model,
		}
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, fmt.Errorf("%w: missing embedding for text %d", ErrProviderFailed, i)
		}
	}
	return embeddings, nil
}

func (o *OpenAIProvider) Dimension() int {
	return OpenAIDimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	return nil
}

// openAIError classifies go-openai errors by HTTP status. Transport failures count as unavailable.
func openAIError(backend string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return types.NewBackendError(backend, types.KindForStatus(apiErr.HTTPStatusCode), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return types.NewBackendError(backend, types.KindForStatus(reqErr.HTTPStatusCode), err)
	}
	return types.NewBackendError(backend, types.KindUnavailable, err)
}

// LocalProvider is an offline embedder using feature hashing over word tokens.
// Texts sharing words get similar vectors, which is enough for tests and air-gapped use.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: DefaultLocalModel,
		cache: cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hash := ComputeHash(req.Text)
	if l.cache != nil {
		if emb, ok := l.cache.Get(l.model, hash); ok {
			return emb, nil
		}
	}

	emb := &Embedding{
		Vector:    hashVector(req.Text, LocalDimension),
		Dimension: LocalDimension,
		Provider:  ProviderLocal,
		Model:     l.model,
		Hash:      hash,
	}

	if l.cache != nil {
		l.cache.Set(l.model, hash, emb)
	}

	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text, Model: req.Model})
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// hashVector buckets lowercased word tokens into dim slots and normalizes the result
func hashVector(text string, dim int) []float32 {
	vector := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vector[h.Sum32()%uint32(dim)] += 1
	}
	return NormalizeVector(vector)
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
