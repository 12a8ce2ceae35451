package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/askdocs/pkg/types"
)

// Provider names
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"

	DefaultOllamaURL   = "http://localhost:11434"
	DefaultOllamaModel = "llama2"
	DefaultOpenAIModel = "gpt-4o-mini"
	DefaultTimeout     = 120 * time.Second
)

var (
	// ErrUnknownProvider is returned by New for an unrecognized provider name
	ErrUnknownProvider = errors.New("unknown llm provider")
	// ErrEmptyPrompt is returned when Generate is called without a prompt
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
	// ErrNotReady is returned by WaitForReady when the backend never answered
	ErrNotReady = errors.New("llm backend not ready")
)

// Pinger reports whether a backend is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Generator produces free text from a prompt
type Generator interface {
	Pinger

	// Generate returns the completion for prompt. Backend failures are *types.BackendError.
	Generate(ctx context.Context, prompt string) (types.Answer, error)

	// Model returns the model name answers are generated with
	Model() string

	// Close releases any resources held by the generator
	Close() error
}

// Config selects and configures a generation backend
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
}

// New creates a generator for cfg.Provider
func New(cfg Config) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "":
		return NewOllama(cfg.BaseURL, cfg.Model, cfg.Timeout), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// WaitForReady polls p every interval until it answers or timeout elapses
func WaitForReady(ctx context.Context, p Pinger, timeout, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		if lastErr = p.Ping(ctx); lastErr == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w after %s: %w", ErrNotReady, timeout, lastErr)
		case <-ticker.C:
		}
	}
}
