// Package websearch answers questions from the DuckDuckGo instant answer API.
package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dshills/askdocs/pkg/types"
	"golang.org/x/time/rate"
)

const (
	// Backend is the name reported in answers and errors
	Backend = "duckduckgo"

	DefaultEndpoint = "https://api.duckduckgo.com/"
	DefaultInterval = 2 * time.Second
	DefaultTimeout  = 15 * time.Second

	// UnavailableMessage is shown to the user when web search was the chosen strategy and failed
	UnavailableMessage = "Unable to search the web at this time. Please try again later."

	maxRelatedTopics = 3
)

// ErrNoResults is wrapped when the API answered but had nothing to say
var ErrNoResults = errors.New("no web results")

// Searcher answers a query from the web
type Searcher interface {
	Search(ctx context.Context, query string) (types.Answer, error)
}

// Config configures the DuckDuckGo client
type Config struct {
	Endpoint string
	Interval time.Duration // minimum spacing between requests
	Timeout  time.Duration
}

// DuckDuckGo is a rate-limited instant answer client
type DuckDuckGo struct {
	endpoint   string
	limiter    *rate.Limiter
	httpClient *http.Client
}

// New creates a DuckDuckGo searcher. Zero values fall back to defaults.
func New(cfg Config) *DuckDuckGo {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &DuckDuckGo{
		endpoint:   cfg.Endpoint,
		limiter:    rate.NewLimiter(rate.Every(cfg.Interval), 1),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type instantAnswer struct {
	Heading       string         `json:"Heading"`
	AbstractText  string         `json:"AbstractText"`
	AbstractURL   string         `json:"AbstractURL"`
	Answer        string         `json:"Answer"`
	Definition    string         `json:"Definition"`
	RelatedTopics []relatedTopic `json:"RelatedTopics"`
}

type relatedTopic struct {
	Text   string         `json:"Text"`
	Topics []relatedTopic `json:"Topics"`
}

// Search waits for the rate limiter, queries the API and condenses the result to text
func (d *DuckDuckGo) Search(ctx context.Context, query string) (types.Answer, error) {
	if strings.TrimSpace(query) == "" {
		return types.Answer{}, types.NewBackendError(Backend, types.KindInvalidRequest, errors.New("empty query"))
	}
	if err := d.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return types.Answer{}, ctx.Err()
		}
		return types.Answer{}, types.NewBackendError(Backend, types.KindRateLimited, err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return types.Answer{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return types.Answer{}, ctx.Err()
		}
		return types.Answer{}, types.NewBackendError(Backend, types.KindUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return types.Answer{}, types.NewBackendError(Backend, types.KindForStatus(resp.StatusCode),
			fmt.Errorf("search returned status %d", resp.StatusCode))
	}

	var ia instantAnswer
	if err := json.NewDecoder(resp.Body).Decode(&ia); err != nil {
		return types.Answer{}, types.NewBackendError(Backend, types.KindUnavailable,
			fmt.Errorf("decode response: %w", err))
	}

	text := summarize(ia)
	if text == "" {
		return types.Answer{}, types.NewBackendError(Backend, types.KindUnavailable,
			fmt.Errorf("%w for %q", ErrNoResults, query))
	}

	return types.Answer{Text: text, Backend: Backend}, nil
}

// summarize prefers a direct answer, then the abstract, then a few related topics
func summarize(ia instantAnswer) string {
	if s := strings.TrimSpace(ia.Answer); s != "" {
		return s
	}
	if s := strings.TrimSpace(ia.AbstractText); s != "" {
		if ia.AbstractURL != "" {
			s += "\n\n" + ia.AbstractURL
		}
		return s
	}
	if s := strings.TrimSpace(ia.Definition); s != "" {
		return s
	}

	var lines []string
	var walk func([]relatedTopic)
	walk = func(topics []relatedTopic) {
		for _, t := range topics {
			if len(lines) == maxRelatedTopics {
				return
			}
			if s := strings.TrimSpace(t.Text); s != "" {
				lines = append(lines, "- "+s)
			}
			walk(t.Topics)
		}
	}
	walk(ia.RelatedTopics)
	return strings.Join(lines, "\n")
}
