// Package formatter turns a backend answer into the response shown to users.
package formatter

import (
	"errors"
	"strings"

	"github.com/dshills/askdocs/internal/chunker"
	"github.com/dshills/askdocs/pkg/types"
)

// ErrEmptyResponse is returned when a backend answered with no usable text
var ErrEmptyResponse = errors.New("backend returned an empty response")

// Format builds a Response from answer. Sources are listed only for document retrieval,
// one per distinct (document, header) pair in chunk order.
func Format(answer types.Answer, strategy types.Strategy, chunks []types.Chunk) (*types.Response, error) {
	text := strings.TrimSpace(answer.Text)
	if text == "" {
		return nil, ErrEmptyResponse
	}

	resp := &types.Response{
		Answer:   text,
		Sources:  []types.Source{},
		Strategy: strategy,
		Backend:  answer.Backend,
		Model:    answer.Model,
	}
	if strategy == types.DocumentRetrieval {
		resp.Sources = Sources(chunks)
	}
	return resp, nil
}

// Sources projects chunks to deduplicated sources with cleaned headers
func Sources(chunks []types.Chunk) []types.Source {
	sources := make([]types.Source, 0, len(chunks))
	seen := make(map[types.Source]struct{}, len(chunks))
	for _, c := range chunks {
		s := types.Source{SourceID: c.SourceID, Header: chunker.CleanHeader(c.Header)}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		sources = append(sources, s)
	}
	return sources
}
