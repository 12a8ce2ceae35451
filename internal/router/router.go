package router

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/askdocs/internal/formatter"
	"github.com/dshills/askdocs/internal/llm"
	"github.com/dshills/askdocs/internal/logger"
	"github.com/dshills/askdocs/internal/relevance"
	"github.com/dshills/askdocs/internal/websearch"
	"github.com/dshills/askdocs/pkg/types"
)

const (
	DefaultTopK          = 10
	DefaultContextChunks = 4
)

var (
	// ErrBackendsExhausted is joined with every attempt's error when no strategy produced an answer
	ErrBackendsExhausted = errors.New("all answer backends failed")
	// ErrEmptyQuestion is returned by Ask for a blank question
	ErrEmptyQuestion = errors.New("question cannot be empty")
)

// liveKeywords mark questions that need current information
var liveKeywords = []string{"current", "latest", "today", "real-time", "now"}

// Retriever finds candidate chunks for a question
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]types.ScoredChunk, error)
}

// QuestionContext carries one question through the pipeline
type QuestionContext struct {
	ID         string
	Question   string
	Candidates []types.ScoredChunk
	Filtered   []types.Chunk
	Categories []string
}

// Config tunes retrieval
type Config struct {
	TopK          int // Candidates requested from the index
	ContextChunks int // Filtered chunks placed in the prompt and cited as sources
}

// Router picks a strategy per question and walks its fallback chain
type Router struct {
	retriever Retriever
	filter    *relevance.Filter
	generator llm.Generator
	web       websearch.Searcher

	topK          int
	contextChunks int
}

// New creates a Router. All collaborators are required.
func New(retriever Retriever, filter *relevance.Filter, generator llm.Generator, web websearch.Searcher, cfg *Config) *Router {
	if cfg == nil {
		cfg = &Config{}
	}
	r := &Router{
		retriever:     retriever,
		filter:        filter,
		generator:     generator,
		web:           web,
		topK:          cfg.TopK,
		contextChunks: cfg.ContextChunks,
	}
	if r.topK <= 0 {
		r.topK = DefaultTopK
	}
	if r.contextChunks <= 0 {
		r.contextChunks = DefaultContextChunks
	}
	return r
}

// Route applies the decision rules in order: relevant documents always win,
// then live-information keywords, then direct generation.
func Route(query string, filtered []types.Chunk) types.Strategy {
	if len(filtered) > 0 {
		return types.DocumentRetrieval
	}
	if NeedsCurrentInfo(query) {
		return types.WebSearch
	}
	return types.DirectGeneration
}

// NeedsCurrentInfo reports whether query contains a live-information keyword
func NeedsCurrentInfo(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range liveKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// Chain returns the strategies tried for a routing decision, in order
func Chain(s types.Strategy) []types.Strategy {
	switch s {
	case types.DocumentRetrieval:
		return []types.Strategy{types.DocumentRetrieval, types.DirectGeneration, types.WebSearch}
	case types.DirectGeneration:
		return []types.Strategy{types.DirectGeneration, types.WebSearch}
	case types.WebSearch:
		return []types.Strategy{types.WebSearch}
	default:
		return nil
	}
}

// Ask answers question. Only unavailable or rate-limited backends trigger a fallback;
// any other failure is returned as is.
func (r *Router) Ask(ctx context.Context, question string) (*types.Response, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	start := time.Now()

	qc := r.prepare(ctx, question)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	requested := Route(question, qc.Filtered)
	logger.Debug("[%s] route=%s candidates=%d filtered=%d categories=%v",
		qc.ID[:8], requested, len(qc.Candidates), len(qc.Filtered), qc.Categories)

	var attempts []error
	for _, strategy := range Chain(requested) {
		answer, err := r.run(ctx, strategy, qc)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if strategy == types.WebSearch && requested == types.WebSearch {
				logger.Warn("[%s] web search failed: %v", qc.ID[:8], err)
				answer = types.Answer{Text: websearch.UnavailableMessage, Backend: websearch.Backend}
			} else if !types.IsFallbackEligible(err) {
				return nil, fmt.Errorf("%s: %w", strategy.Label(), err)
			} else {
				logger.Warn("[%s] %s failed, falling back: %v", qc.ID[:8], strategy.Label(), err)
				attempts = append(attempts, fmt.Errorf("%s: %w", strategy.Label(), err))
				continue
			}
		}

		resp, err := formatter.Format(answer, strategy, r.contextFor(qc))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", strategy.Label(), err)
		}
		resp.ID = qc.ID
		resp.Question = question
		resp.Requested = requested
		resp.Duration = time.Since(start)
		logger.Debug("[%s] answered by %s in %s", qc.ID[:8], strategy, resp.Duration.Round(time.Millisecond))
		return resp, nil
	}

	return nil, errors.Join(append([]error{ErrBackendsExhausted}, attempts...)...)
}

// prepare retrieves and filters candidates. A retrieval failure counts as no candidates.
func (r *Router) prepare(ctx context.Context, question string) *QuestionContext {
	qc := &QuestionContext{
		ID:         uuid.NewString(),
		Question:   question,
		Categories: r.filter.MatchedCategories(question),
	}

	candidates, err := r.retriever.Search(ctx, question, r.topK)
	if err != nil {
		logger.Warn("[%s] document search failed, continuing without documents: %v", qc.ID[:8], err)
		candidates = nil
	}
	qc.Candidates = candidates
	qc.Filtered = r.filter.Filter(question, candidates)
	return qc
}

func (r *Router) contextFor(qc *QuestionContext) []types.Chunk {
	if len(qc.Filtered) > r.contextChunks {
		return qc.Filtered[:r.contextChunks]
	}
	return qc.Filtered
}

func (r *Router) run(ctx context.Context, strategy types.Strategy, qc *QuestionContext) (types.Answer, error) {
	switch strategy {
	case types.DocumentRetrieval:
		return r.generator.Generate(ctx, BuildPrompt(qc.Question, r.contextFor(qc)))
	case types.DirectGeneration:
		return r.generator.Generate(ctx, qc.Question)
	case types.WebSearch:
		return r.web.Search(ctx, qc.Question)
	default:
		return types.Answer{}, fmt.Errorf("%w: %s", types.ErrUnknownRoute, strategy)
	}
}
