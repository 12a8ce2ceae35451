package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dshills/askdocs/internal/logger"
	"github.com/dshills/askdocs/pkg/types"
)

// Ollama generates answers with a local Ollama server
type Ollama struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllama creates an Ollama generator. Empty values fall back to defaults.
func NewOllama(baseURL, model string, timeout time.Duration) *Ollama {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Ollama{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

func (o *Ollama) Generate(ctx context.Context, prompt string) (types.Answer, error) {
	if strings.TrimSpace(prompt) == "" {
		return types.Answer{}, ErrEmptyPrompt
	}

	var resp generateResponse
	if err := o.post(ctx, "/api/generate", generateRequest{Model: o.model, Prompt: prompt}, &resp); err != nil {
		return types.Answer{}, err
	}

	return types.Answer{
		Text:    resp.Response,
		Backend: ProviderOllama,
		Model:   o.model,
	}, nil
}

// Ping checks that the server answers on /api/tags
func (o *Ollama) Ping(ctx context.Context) error {
	_, err := o.listModels(ctx)
	return err
}

// HasModel reports whether the configured model is installed
func (o *Ollama) HasModel(ctx context.Context) (bool, error) {
	names, err := o.listModels(ctx)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if name == o.model || name == o.model+":latest" {
			return true, nil
		}
	}
	return false, nil
}

// EnsureModel pulls the configured model when the server does not have it
func (o *Ollama) EnsureModel(ctx context.Context) error {
	ok, err := o.HasModel(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	logger.Info("Pulling model %s", o.model)
	var resp struct {
		Status string `json:"status"`
	}
	if err := o.post(ctx, "/api/pull", map[string]any{"name": o.model, "stream": false}, &resp); err != nil {
		return fmt.Errorf("pull %s: %w", o.model, err)
	}
	logger.Info("Pull %s: %s", o.model, resp.Status)
	return nil
}

func (o *Ollama) listModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, types.NewBackendError(ProviderOllama, types.KindUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, types.NewBackendError(ProviderOllama, types.KindForStatus(resp.StatusCode),
			fmt.Errorf("list models: status %d", resp.StatusCode))
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, types.NewBackendError(ProviderOllama, types.KindUnavailable,
			fmt.Errorf("decode models: %w", err))
	}
	names := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		names[i] = m.Name
	}
	return names, nil
}

func (o *Ollama) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return types.NewBackendError(ProviderOllama, types.KindUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(resp.Body)
		return types.NewBackendError(ProviderOllama, types.KindForStatus(resp.StatusCode),
			fmt.Errorf("%s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg))))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewBackendError(ProviderOllama, types.KindUnavailable,
			fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (o *Ollama) Model() string {
	return o.model
}

func (o *Ollama) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}
