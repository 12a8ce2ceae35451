package embedder

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Environment variables read by NewFromEnv
const (
	EnvProvider      = "ASKDOCS_EMBEDDING_PROVIDER"
	EnvOllamaHost    = "OLLAMA_HOST"
	EnvOpenAIAPIKey  = "OPENAI_API_KEY"
	EnvOpenAIBaseURL = "OPENAI_BASE_URL"
)

// Config holds embedder configuration
type Config struct {
	Provider  string
	Model     string
	BaseURL   string
	APIKey    string
	Dimension int
	CacheSize int
	Timeout   time.Duration
}

// NewFromEnv creates an embedder based on environment variables
// Priority:
// 1. ASKDOCS_EMBEDDING_PROVIDER (ollama, openai, local)
// 2. OPENAI_API_KEY selects openai
// 3. Default to ollama at OLLAMA_HOST or localhost
func NewFromEnv() (Embedder, error) {
	cfg := Config{
		Provider:  DetectProvider(),
		CacheSize: DefaultCacheSize,
	}
	switch cfg.Provider {
	case ProviderOpenAI:
		cfg.APIKey = os.Getenv(EnvOpenAIAPIKey)
		cfg.BaseURL = os.Getenv(EnvOpenAIBaseURL)
	case ProviderOllama:
		cfg.BaseURL = ollamaURL(os.Getenv(EnvOllamaHost))
	}
	return New(cfg)
}

// New creates an embedder with explicit configuration
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(cfg.Provider)
	switch provider {
	case ProviderOllama, "":
		return NewOllamaProvider(cfg.BaseURL, cfg.Model, cfg.Dimension, cfg.Timeout, cache), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider that would be used based on current environment
func DetectProvider() string {
	provider := os.Getenv(EnvProvider)
	if provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderOllama
}

// ollamaURL accepts OLLAMA_HOST in its bare host:port form as well as a full URL
func ollamaURL(host string) string {
	if host == "" {
		return DefaultOllamaURL
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		return "http://" + host
	}
	return host
}
