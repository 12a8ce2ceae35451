package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/askdocs/pkg/types"
	openai "github.com/sashabaranov/go-openai"
)

// OpenAI generates answers with chat completions from OpenAI or a compatible server
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a chat completion generator
func NewOpenAI(apiKey, baseURL, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}, nil
}

func (o *OpenAI) Generate(ctx context.Context, prompt string) (types.Answer, error) {
	if strings.TrimSpace(prompt) == "" {
		return types.Answer{}, ErrEmptyPrompt
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		if ctx.Err() != nil {
			return types.Answer{}, ctx.Err()
		}
		return types.Answer{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return types.Answer{}, types.NewBackendError(ProviderOpenAI, types.KindUnavailable,
			errors.New("no choices in response"))
	}

	return types.Answer{
		Text:    resp.Choices[0].Message.Content,
		Backend: ProviderOpenAI,
		Model:   o.model,
	}, nil
}

// Ping lists models, which needs a valid key and a reachable server
func (o *OpenAI) Ping(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", classify(err))
	}
	return nil
}

func (o *OpenAI) Model() string {
	return o.model
}

func (o *OpenAI) Close() error {
	return nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return types.NewBackendError(ProviderOpenAI, types.KindForStatus(apiErr.HTTPStatusCode), err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return types.NewBackendError(ProviderOpenAI, types.KindForStatus(reqErr.HTTPStatusCode), err)
	}
	return types.NewBackendError(ProviderOpenAI, types.KindUnavailable, err)
}
