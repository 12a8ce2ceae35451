package types

import "time"

// Strategy names the way a question is answered
type Strategy string

const (
	DocumentRetrieval Strategy = "document_retrieval"
	WebSearch         Strategy = "web_search"
	DirectGeneration  Strategy = "direct_generation"
)

// Valid reports whether s is a known strategy
func (s Strategy) Valid() bool {
	switch s {
	case DocumentRetrieval, WebSearch, DirectGeneration:
		return true
	}
	return false
}

// Label returns the human readable strategy name
func (s Strategy) Label() string {
	switch s {
	case DocumentRetrieval:
		return "Document Retriever"
	case WebSearch:
		return "Web Search"
	case DirectGeneration:
		return "Final Answer (LLM)"
	default:
		return string(s)
	}
}

// Answer is the uniform output of every backend adapter
type Answer struct {
	Text    string
	Backend string // e.g. "ollama", "openai", "duckduckgo"
	Model   string // Optional
}

// Source attributes part of an answer to a document section
type Source struct {
	SourceID string `json:"source"`
	Header   string `json:"header"`
}

// Response is the formatted answer returned to callers
type Response struct {
	ID        string        `json:"id"`
	Question  string        `json:"question"`
	Answer    string        `json:"answer"`
	Sources   []Source      `json:"sources"`
	Strategy  Strategy      `json:"strategy"`
	Requested Strategy      `json:"requested_strategy"`
	Backend   string        `json:"backend,omitempty"`
	Model     string        `json:"model,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// FellBack reports whether the answer came from a fallback strategy
func (r *Response) FellBack() bool {
	return r.Requested != "" && r.Requested != r.Strategy
}
