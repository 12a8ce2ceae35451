package relevance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dshills/askdocs/pkg/types"
)

func scored(source, header string) types.ScoredChunk {
	return types.ScoredChunk{Chunk: types.Chunk{SourceID: source, Header: header, Text: "## " + header + "\n"}}
}

func headers(chunks []types.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Header
	}
	return out
}

func TestCategoryGate(t *testing.T) {
	f := New(nil)
	candidates := []types.ScoredChunk{
		scored("product_manual.md", "HDMI Output"),
		scored("hr_manual.md", "Vacation Policy"),
		scored("labor_rules.md", "Overtime Pay"),
		scored("notes.md", "Misc"),
	}

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{
			name:  "hr keyword keeps only hr sources",
			query: "How many vacation days do I get?",
			want:  []string{"Vacation Policy"},
		},
		{
			name:  "overlapping categories use the union",
			query: "overtime rules for product setup",
			want:  []string{"Overtime Pay", "HDMI Output", "Vacation Policy"},
		},
		{
			name:  "no keyword means no gate",
			query: "what is the capital of france",
			want:  []string{"HDMI Output", "Vacation Policy", "Overtime Pay", "Misc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, headers(f.Filter(tt.query, candidates)))
		})
	}
}

func TestGateNeverLeaksDisallowedSources(t *testing.T) {
	f := New(nil)
	candidates := []types.ScoredChunk{
		scored("notes.md", "Vacation"),
		scored("product_manual.md", "Vacation"),
	}

	for _, q := range []string{"vacation", "hdmi vacation", "employee usb", "sick days"} {
		for _, c := range f.Filter(q, candidates) {
			assert.NotEqual(t, "notes.md", c.SourceID, q)
		}
	}
}

func TestGateDropsEverything(t *testing.T) {
	f := New(nil)
	out := f.Filter("hdmi cable", []types.ScoredChunk{scored("hr_manual.md", "Leave Policy")})
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestHeaderRanking(t *testing.T) {
	f := New([]Category{})
	candidates := []types.ScoredChunk{
		scored("a.md", "Benefits"),
		scored("a.md", "Leave Policy"),
		scored("a.md", "Code of Conduct"),
		scored("a.md", "Leave Policy Exceptions"),
		scored("a.md", "leave policy"),
	}

	got := headers(f.Filter("Leave Policy", candidates))
	assert.Equal(t, []string{
		"Leave Policy",
		"leave policy",
		"Leave Policy Exceptions",
		"Benefits",
		"Code of Conduct",
	}, got)
}

func TestExactMatchIsVerbatim(t *testing.T) {
	f := New([]Category{})
	candidates := []types.ScoredChunk{
		scored("a.md", "Leave Policy Exceptions"),
		scored("a.md", "Leave Policy"),
	}

	assert.Equal(t, []string{"Leave Policy", "Leave Policy Exceptions"},
		headers(f.Filter("leave policy", candidates)))

	// surrounding whitespace makes it a partial match, so incoming order holds
	assert.Equal(t, []string{"Leave Policy Exceptions", "Leave Policy"},
		headers(f.Filter("  leave policy ", candidates)))
}

func TestPartialMatchIsSubstring(t *testing.T) {
	f := New([]Category{})
	got := headers(f.Filter("ports", []types.ScoredChunk{
		scored("p.md", "Pricing"),
		scored("p.md", "USB Ports"),
	}))
	assert.Equal(t, []string{"USB Ports", "Pricing"}, got)
}

func TestLeavePolicyScenario(t *testing.T) {
	f := New([]Category{{Name: "HR", Keywords: []string{"policy"}, Sources: []string{"hr.md"}}})
	got := f.Filter("What is the leave policy", []types.ScoredChunk{
		scored("hr.md", "Code of Conduct"),
		scored("hr.md", "Leave Policy"),
	})
	assert.Equal(t, []string{"Leave Policy", "Code of Conduct"}, headers(got))
}

func TestMatchedCategories(t *testing.T) {
	f := New(nil)
	assert.Equal(t, []string{"HR Manual", "Labor Rules"}, f.MatchedCategories("Employee overtime"))
	assert.Empty(t, f.MatchedCategories("weather in paris"))
	// substring matching: "hr" inside "three"
	assert.Equal(t, []string{"HR Manual"}, f.MatchedCategories("three"))
}

func TestCategoryWithoutSourcesDoesNotGate(t *testing.T) {
	f := New([]Category{{Name: "Open", Keywords: []string{"anything"}}})
	got := f.Filter("anything goes", []types.ScoredChunk{scored("x.md", "X")})
	assert.Len(t, got, 1)
}

func TestEmptyCandidates(t *testing.T) {
	assert.Empty(t, New(nil).Filter("vacation", nil))
}
