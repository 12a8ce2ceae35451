package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/dshills/askdocs/internal/relevance"
)

// Environment overrides
const (
	EnvDocsDir           = "ASKDOCS_DOCS_DIR"
	EnvDataDir           = "ASKDOCS_DATA_DIR"
	EnvEmbeddingProvider = "ASKDOCS_EMBEDDING_PROVIDER"
	EnvLLMProvider       = "ASKDOCS_LLM_PROVIDER"
	EnvVerbose           = "ASKDOCS_VERBOSE"
	EnvOllamaHost        = "OLLAMA_HOST"
	EnvOpenAIBaseURL     = "OPENAI_BASE_URL"
)

// Fingerprint store kinds
const (
	FingerprintMeta = "meta"
	FingerprintFile = "file"
)

// ErrUnsupportedFormat is returned for config files that are neither YAML nor TOML
var ErrUnsupportedFormat = errors.New("unsupported config format")

// EmbedderConfig selects and configures the embedding backend.
type EmbedderConfig struct {
	Provider    string `yaml:"provider" toml:"provider"`
	Model       string `yaml:"model" toml:"model"`
	BaseURL     string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env" toml:"api_key_env"`
	Dimension   int    `yaml:"dimension" toml:"dimension"`
	CacheSize   int    `yaml:"cache_size" toml:"cache_size"`
	TimeoutSecs int    `yaml:"timeout_secs" toml:"timeout_secs"`
}

// APIKey reads the key from the configured environment variable
func (e EmbedderConfig) APIKey() string {
	return os.Getenv(e.APIKeyEnv)
}

// Timeout returns the request timeout
func (e EmbedderConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSecs) * time.Second
}

// LLMConfig selects and configures the generation backend.
type LLMConfig struct {
	Provider          string `yaml:"provider" toml:"provider"`
	Model             string `yaml:"model" toml:"model"`
	BaseURL           string `yaml:"base_url" toml:"base_url"`
	APIKeyEnv         string `yaml:"api_key_env" toml:"api_key_env"`
	TimeoutSecs       int    `yaml:"timeout_secs" toml:"timeout_secs"`
	ReadyTimeoutSecs  int    `yaml:"ready_timeout_secs" toml:"ready_timeout_secs"`
	ReadyIntervalSecs int    `yaml:"ready_interval_secs" toml:"ready_interval_secs"`
	PullModel         bool   `yaml:"pull_model" toml:"pull_model"`
}

// APIKey reads the key from the configured environment variable
func (l LLMConfig) APIKey() string {
	return os.Getenv(l.APIKeyEnv)
}

// Timeout returns the request timeout
func (l LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSecs) * time.Second
}

// ReadyTimeout returns how long startup waits for the backend
func (l LLMConfig) ReadyTimeout() time.Duration {
	return time.Duration(l.ReadyTimeoutSecs) * time.Second
}

// ReadyInterval returns the startup polling interval
func (l LLMConfig) ReadyInterval() time.Duration {
	return time.Duration(l.ReadyIntervalSecs) * time.Second
}

// IndexConfig configures indexing and retrieval.
type IndexConfig struct {
	Workers          int     `yaml:"workers" toml:"workers"`
	BatchSize        int     `yaml:"batch_size" toml:"batch_size"`
	MinScore         float64 `yaml:"min_score" toml:"min_score"`
	TopK             int     `yaml:"top_k" toml:"top_k"`
	ContextChunks    int     `yaml:"context_chunks" toml:"context_chunks"`
	FingerprintStore string  `yaml:"fingerprint_store" toml:"fingerprint_store"`
}

// WebSearchConfig configures the web search backend.
type WebSearchConfig struct {
	Endpoint     string  `yaml:"endpoint" toml:"endpoint"`
	IntervalSecs float64 `yaml:"interval_secs" toml:"interval_secs"`
	TimeoutSecs  int     `yaml:"timeout_secs" toml:"timeout_secs"`
}

// Interval returns the minimum spacing between searches
func (w WebSearchConfig) Interval() time.Duration {
	return time.Duration(w.IntervalSecs * float64(time.Second))
}

// Timeout returns the request timeout
func (w WebSearchConfig) Timeout() time.Duration {
	return time.Duration(w.TimeoutSecs) * time.Second
}

// WatchConfig configures the documents directory watcher.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms" toml:"debounce_ms"`
}

// Debounce returns the quiet period before a change triggers a sync
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}

// Config is the root application configuration structure.
type Config struct {
	DocsDir    string               `yaml:"docs_dir" toml:"docs_dir"`
	DataDir    string               `yaml:"data_dir" toml:"data_dir"`
	Verbose    bool                 `yaml:"verbose" toml:"verbose"`
	Embedder   EmbedderConfig       `yaml:"embedder" toml:"embedder"`
	LLM        LLMConfig            `yaml:"llm" toml:"llm"`
	Index      IndexConfig          `yaml:"index" toml:"index"`
	WebSearch  WebSearchConfig      `yaml:"web_search" toml:"web_search"`
	Watch      WatchConfig          `yaml:"watch" toml:"watch"`
	Categories []relevance.Category `yaml:"categories,omitempty" toml:"categories,omitempty"`
}

// DBPath returns the sqlite database location
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "askdocs.db")
}

// Load reads a config from path, choosing the decoder by extension.
// A missing file yields defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, err
	}

	cfg := defaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	applyConfigDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// LoadDefault loads .env, then tries ./askdocs.yaml, ./askdocs.toml and
// ~/.config/askdocs/config.yaml in that order. Defaults are returned when none exist.
func LoadDefault() (*Config, string, error) {
	if err := LoadEnv(".env"); err != nil {
		return nil, "", err
	}

	candidates := []string{"askdocs.yaml", "askdocs.toml"}
	if userPath, err := defaultUserConfigPath(); err == nil {
		candidates = append(candidates, userPath)
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			cfg, err := Load(path)
			return cfg, path, err
		}
	}

	cfg := defaultConfig()
	applyEnv(cfg)
	return cfg, "", nil
}

// LoadEnv loads KEY=value pairs from path without overriding the environment. A missing file is ignored.
func LoadEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		data, err = toml.Marshal(cfg)
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks required fields and ranges
func (c *Config) Validate() error {
	var errs []error
	if c.DocsDir == "" {
		errs = append(errs, errors.New("docs_dir is required"))
	}
	if c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required"))
	}
	switch c.Embedder.Provider {
	case "ollama", "openai", "local":
	default:
		errs = append(errs, fmt.Errorf("embedder.provider %q must be ollama, openai or local", c.Embedder.Provider))
	}
	switch c.LLM.Provider {
	case "ollama", "openai":
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q must be ollama or openai", c.LLM.Provider))
	}
	if c.Index.MinScore < -1 || c.Index.MinScore > 1 {
		errs = append(errs, fmt.Errorf("index.min_score %v must be within [-1, 1]", c.Index.MinScore))
	}
	if c.Index.TopK <= 0 {
		errs = append(errs, errors.New("index.top_k must be positive"))
	}
	if c.Index.FingerprintStore != FingerprintMeta && c.Index.FingerprintStore != FingerprintFile {
		errs = append(errs, fmt.Errorf("index.fingerprint_store %q must be meta or file", c.Index.FingerprintStore))
	}
	for i, cat := range c.Categories {
		if cat.Name == "" || len(cat.Keywords) == 0 {
			errs = append(errs, fmt.Errorf("categories[%d] needs a name and keywords", i))
		}
	}
	return errors.Join(errs...)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "askdocs", "config.yaml"), nil
}

func defaultConfig() *Config {
	cfg := &Config{
		DocsDir: "docs",
		DataDir: "data",
		Embedder: EmbedderConfig{
			Provider: "ollama",
		},
		LLM: LLMConfig{
			Provider:  "ollama",
			PullModel: true,
		},
		Categories: relevance.DefaultCategories(),
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *Config) {
	if cfg.Embedder.Provider == "" {
		cfg.Embedder.Provider = "ollama"
	}
	if cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedder.CacheSize == 0 {
		cfg.Embedder.CacheSize = 10000
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "ollama"
	}
	if cfg.LLM.APIKeyEnv == "" {
		cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 120
	}
	if cfg.LLM.ReadyTimeoutSecs == 0 {
		cfg.LLM.ReadyTimeoutSecs = 60
	}
	if cfg.LLM.ReadyIntervalSecs == 0 {
		cfg.LLM.ReadyIntervalSecs = 5
	}

	if cfg.Index.BatchSize == 0 {
		cfg.Index.BatchSize = 32
	}
	if cfg.Index.TopK == 0 {
		cfg.Index.TopK = 10
	}
	if cfg.Index.ContextChunks == 0 {
		cfg.Index.ContextChunks = 4
	}
	if cfg.Index.FingerprintStore == "" {
		cfg.Index.FingerprintStore = FingerprintMeta
	}

	if cfg.WebSearch.IntervalSecs == 0 {
		cfg.WebSearch.IntervalSecs = 2
	}
	if cfg.WebSearch.TimeoutSecs == 0 {
		cfg.WebSearch.TimeoutSecs = 15
	}

	if cfg.Watch.DebounceMs == 0 {
		cfg.Watch.DebounceMs = 500
	}
}

// applyEnv overrides file values with environment variables
func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvDocsDir); v != "" {
		cfg.DocsDir = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvEmbeddingProvider); v != "" {
		cfg.Embedder.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLLMProvider); v != "" {
		cfg.LLM.Provider = strings.ToLower(v)
	}
	if v := os.Getenv(EnvVerbose); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Verbose = b
		}
	}

	if host := os.Getenv(EnvOllamaHost); host != "" {
		url := ollamaURL(host)
		if cfg.Embedder.Provider == "ollama" && cfg.Embedder.BaseURL == "" {
			cfg.Embedder.BaseURL = url
		}
		if cfg.LLM.Provider == "ollama" && cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = url
		}
	}
	if base := os.Getenv(EnvOpenAIBaseURL); base != "" {
		if cfg.Embedder.Provider == "openai" && cfg.Embedder.BaseURL == "" {
			cfg.Embedder.BaseURL = base
		}
		if cfg.LLM.Provider == "openai" && cfg.LLM.BaseURL == "" {
			cfg.LLM.BaseURL = base
		}
	}
}

// ollamaURL accepts OLLAMA_HOST in its bare host:port form as well as a full URL
func ollamaURL(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "http://" + host
}
