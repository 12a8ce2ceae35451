package types

import (
	"crypto/sha256"
	"errors"
	"strconv"
	"strings"
)

// Chunk is one "## " section of a source document, the unit of embedding and retrieval
type Chunk struct {
	// Identification
	SourceID string // Originating document name, e.g. "hr_manual.md"
	Index    int    // Position of the section within its document (0-based)

	// Content
	Header      string   // Marker line with the leading #'s and whitespace removed
	Text        string   // Raw section text, marker line included
	ContentHash [32]byte // SHA-256 of Text

	// Location
	Offset int // Byte offset of the marker line in the source document
}

// ComputeContentHash computes the SHA-256 hash of the chunk text
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Text))
}

// Validate checks the chunk invariants
func (c *Chunk) Validate() error {
	if c.SourceID == "" {
		return ErrMissingSource
	}
	if strings.TrimSpace(c.Header) == "" {
		return ErrEmptyHeader
	}
	if c.Text == "" {
		return ErrEmptyContent
	}
	if c.Index < 0 || c.Offset < 0 {
		return errors.New("chunk position must be non-negative")
	}
	return nil
}

// Key identifies a chunk across rebuilds by source and position
func (c *Chunk) Key() string {
	return c.SourceID + "#" + strconv.Itoa(c.Index)
}

// ScoredChunk is a chunk returned by similarity search, higher score is more similar
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Chunks strips scores, keeping order
func Chunks(scored []ScoredChunk) []Chunk {
	out := make([]Chunk, len(scored))
	for i := range scored {
		out[i] = scored[i].Chunk
	}
	return out
}
