package chunker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/askdocs/pkg/types"
)

const (
	// MarkerPrefix starts every section heading line
	MarkerPrefix = "##"

	// DocumentExt is the extension of files picked up by LoadDir
	DocumentExt = ".md"
)

// ErrNotDirectory is returned when LoadDir is given a file path
var ErrNotDirectory = errors.New("documents path is not a directory")

// Chunker splits markdown documents into "## " sections
type Chunker struct{}

// New creates a new Chunker instance
func New() *Chunker {
	return &Chunker{}
}

// DocumentStats describes how a single document was chunked
type DocumentStats struct {
	SourceID string
	Bytes    int
	Chunks   int
	Skipped  bool // true when the document had no section markers
}

// Corpus is the ordered chunk sequence of a documents directory
type Corpus struct {
	Chunks    []types.Chunk
	Documents []DocumentStats
}

// ChunkDocument splits text into one chunk per "## " section.
// Text before the first marker is dropped; a document without markers yields no chunks.
func (c *Chunker) ChunkDocument(text, sourceID string) []types.Chunk {
	markers := findMarkers(text)
	if len(markers) == 0 {
		return nil
	}

	chunks := make([]types.Chunk, 0, len(markers))
	for i, m := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1].offset
		}
		chunk := types.Chunk{
			SourceID: sourceID,
			Index:    i,
			Header:   m.header,
			Text:     text[m.offset:end],
			Offset:   m.offset,
		}
		chunk.ComputeContentHash()
		chunks = append(chunks, chunk)
	}
	return chunks
}

// ChunkFile reads a document from disk and chunks it, using the base name as source ID
func (c *Chunker) ChunkFile(path string) ([]types.Chunk, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	return c.ChunkDocument(string(content), filepath.Base(path)), nil
}

// LoadDir chunks every markdown file directly inside dir in file name order
func (c *Chunker) LoadDir(dir string) (*Corpus, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat documents directory: %w", err)
	}
	if !info.IsDir() {
		return nil, ErrNotDirectory
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), DocumentExt) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	corpus := &Corpus{
		Chunks:    make([]types.Chunk, 0),
		Documents: make([]DocumentStats, 0, len(names)),
	}
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read document %s: %w", name, err)
		}
		chunks := c.ChunkDocument(string(content), name)
		corpus.Chunks = append(corpus.Chunks, chunks...)
		corpus.Documents = append(corpus.Documents, DocumentStats{
			SourceID: name,
			Bytes:    len(content),
			Chunks:   len(chunks),
			Skipped:  len(chunks) == 0,
		})
	}
	return corpus, nil
}

// marker is a section heading found in a document
type marker struct {
	offset int
	header string
}

// findMarkers scans text line by line and returns every section marker,
// ignoring lines inside fenced code blocks
func findMarkers(text string) []marker {
	var (
		markers []marker
		fence   string
	)

	offset := 0
	for offset < len(text) {
		lineEnd := strings.IndexByte(text[offset:], '\n')
		var line string
		next := len(text)
		if lineEnd >= 0 {
			line = text[offset : offset+lineEnd]
			next = offset + lineEnd + 1
		} else {
			line = text[offset:]
		}

		if f := fenceDelimiter(line); f != "" {
			switch {
			case fence == "":
				fence = f
			case strings.HasPrefix(f, fence):
				fence = ""
			}
		} else if fence == "" {
			if header, ok := parseMarker(line); ok {
				markers = append(markers, marker{offset: offset, header: header})
			}
		}

		offset = next
	}
	return markers
}

// parseMarker reports whether line is a "## " heading and returns its title.
// "##" must be followed by a space or tab and a non-empty title; "###" is not a marker.
func parseMarker(line string) (string, bool) {
	if !strings.HasPrefix(line, MarkerPrefix) {
		return "", false
	}
	rest := line[len(MarkerPrefix):]
	if rest == "" || (rest[0] != ' ' && rest[0] != '\t') {
		return "", false
	}
	header := CleanHeader(line)
	if header == "" {
		return "", false
	}
	return header, true
}

// fenceDelimiter returns the ``` or ~~~ run opening line, or "" when line is not a fence
func fenceDelimiter(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return ""
	}
	for _, ch := range []byte{'`', '~'} {
		n := 0
		for n < len(trimmed) && trimmed[n] == ch {
			n++
		}
		if n >= 3 {
			return trimmed[:n]
		}
	}
	return ""
}

// CleanHeader strips leading '#' characters and surrounding whitespace from a heading
func CleanHeader(header string) string {
	return strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(header), "#"))
}
