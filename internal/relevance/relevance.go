// Package relevance narrows similarity search hits to the documents a
// question is about and reorders them by header overlap.
package relevance

import (
	"sort"
	"strings"

	"github.com/dshills/askdocs/pkg/types"
)

// Category ties query keywords to the documents allowed to answer them
type Category struct {
	Name     string   `yaml:"name" toml:"name" json:"name"`
	Keywords []string `yaml:"keywords" toml:"keywords" json:"keywords"`
	Sources  []string `yaml:"sources" toml:"sources" json:"sources"`
}

// matches reports whether any keyword is a substring of the lower-cased query
func (c Category) matches(q string) bool {
	for _, kw := range c.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(q, kw) {
			return true
		}
	}
	return false
}

// DefaultCategories returns the built-in topic categories
func DefaultCategories() []Category {
	return []Category{
		{
			Name: "HR Manual",
			Keywords: []string{
				"workplace policies", "working hours", "leaves", "holidays",
				"code of conduct", "employee rights", "responsibilities",
				"vacation", "sick days", "employee", "hr", "policy",
			},
			Sources: []string{"hr_manual.md"},
		},
		{
			Name: "Labor Rules",
			Keywords: []string{
				"legal labor", "obligations", "safety regulations",
				"employee protections", "statutory benefits", "employment law",
				"labor law", "overtime", "safety", "employment",
			},
			Sources: []string{"labor_rules.md", "hr_manual.md"},
		},
		{
			Name: "Product Usage Manual",
			Keywords: []string{
				"technical specifications", "hardware setup", "board components",
				"usb", "hdmi", "interface", "boot process", "operating systems",
				"rock960", "board", "setup", "product", "specifications",
			},
			Sources: []string{"product_manual.md"},
		},
	}
}

// Filter applies the category gate and header ranking
type Filter struct {
	categories []Category
}

// New creates a Filter. A nil slice selects DefaultCategories; an empty one disables the gate.
func New(categories []Category) *Filter {
	if categories == nil {
		categories = DefaultCategories()
	}
	return &Filter{categories: categories}
}

// Categories returns the configured categories
func (f *Filter) Categories() []Category {
	return f.categories
}

// MatchedCategories returns the names of every category whose keywords occur in query
func (f *Filter) MatchedCategories(query string) []string {
	q := strings.ToLower(query)
	var names []string
	for _, c := range f.categories {
		if c.matches(q) {
			names = append(names, c.Name)
		}
	}
	return names
}

// allowList returns the union of sources of all matching categories, or nil when nothing matched.
// Matching categories without sources do not gate.
func (f *Filter) allowList(query string) map[string]struct{} {
	q := strings.ToLower(query)
	var allowed map[string]struct{}
	for _, c := range f.categories {
		if len(c.Sources) == 0 || !c.matches(q) {
			continue
		}
		if allowed == nil {
			allowed = make(map[string]struct{})
		}
		for _, s := range c.Sources {
			allowed[s] = struct{}{}
		}
	}
	return allowed
}

const (
	rankExact = iota
	rankPartial
	rankRest
)

// Filter drops candidates outside the query's allow-list, then orders the
// survivors exact header match first, partial match second, the rest last.
// Each group keeps the incoming order.
func (f *Filter) Filter(query string, candidates []types.ScoredChunk) []types.Chunk {
	allowed := f.allowList(query)

	kept := make([]types.Chunk, 0, len(candidates))
	for _, c := range candidates {
		if allowed != nil {
			if _, ok := allowed[c.Chunk.SourceID]; !ok {
				continue
			}
		}
		kept = append(kept, c.Chunk)
	}

	q := strings.ToLower(query)
	tokens := strings.Fields(q)
	ranks := make([]int, len(kept))
	for i := range kept {
		ranks[i] = headerRank(strings.ToLower(kept[i].Header), q, tokens)
	}

	order := make([]int, len(kept))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return ranks[order[a]] < ranks[order[b]]
	})

	out := make([]types.Chunk, len(kept))
	for i, j := range order {
		out[i] = kept[j]
	}
	return out
}

func headerRank(header, query string, tokens []string) int {
	if header == query {
		return rankExact
	}
	for _, t := range tokens {
		if strings.Contains(header, t) {
			return rankPartial
		}
	}
	return rankRest
}
