package storage

import (
	"context"
	"time"

	"github.com/dshills/askdocs/pkg/types"
)

// Storage defines the interface for persisting the document index
type Storage interface {
	// Chunk operations
	UpsertChunk(ctx context.Context, chunk *Chunk) error
	GetChunk(ctx context.Context, chunkID int64) (*Chunk, error)
	ListChunks(ctx context.Context, sourceID string) ([]*Chunk, error)
	DeleteAllChunks(ctx context.Context) (deletedCount int, err error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error)

	// Search operations
	SearchVector(ctx context.Context, vector []float32, limit int, filters *SearchFilters) ([]VectorResult, error)

	// Metadata operations
	GetMeta(ctx context.Context, key string) (string, error)
	SetMeta(ctx context.Context, key, value string) error
	DeleteMeta(ctx context.Context, key string) error

	// Build history operations
	RecordBuild(ctx context.Context, build *Build) error
	LastBuild(ctx context.Context) (*Build, error)

	// Status operations
	GetStatus(ctx context.Context) (*IndexStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Well-known metadata keys
const (
	MetaDocumentHash = "document_hash"
)

// Chunk represents an indexed document section
type Chunk struct {
	ID          int64
	SourceID    string
	ChunkIndex  int
	Header      string
	Content     string
	ContentHash [32]byte
	ByteOffset  int
	CreatedAt   time.Time
}

// Embedding represents a vector embedding for a chunk
type Embedding struct {
	ID        int64
	ChunkID   int64
	Vector    []byte // Serialized float32 array
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// Build records one completed index rebuild
type Build struct {
	ID          int64
	Fingerprint string
	ChunkCount  int
	SourceCount int
	Provider    string
	Model       string
	Dimension   int // 0 when unknown
	Duration    time.Duration
	CreatedAt   time.Time
}

// SearchFilters contains filters for narrowing search results
type SearchFilters struct {
	Sources      []string // Restrict to these source documents
	Model        string   // Only consider embeddings produced by this model
	MinRelevance float64  // Minimum similarity score
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	ChunkID         int64
	SimilarityScore float64
}

// SourceCount is the number of chunks indexed for one document
type SourceCount struct {
	SourceID string
	Chunks   int
}

// IndexStatus contains statistics about the document index
type IndexStatus struct {
	ChunksCount     int
	EmbeddingsCount int
	Sources         []SourceCount
	DocumentHash    string
	SchemaVersion   string
	IndexSizeMB     float64
	LastBuild       *Build // Nil when the index was never built
	Health          HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	VectorExtension     bool
}

// ToTypesChunk converts storage Chunk to types.Chunk
func (c *Chunk) ToTypesChunk() types.Chunk {
	return types.Chunk{
		SourceID:    c.SourceID,
		Index:       c.ChunkIndex,
		Header:      c.Header,
		Text:        c.Content,
		ContentHash: c.ContentHash,
		Offset:      c.ByteOffset,
	}
}

// FromTypesChunk converts types.Chunk to storage Chunk
func FromTypesChunk(c types.Chunk) *Chunk {
	return &Chunk{
		SourceID:    c.SourceID,
		ChunkIndex:  c.Index,
		Header:      c.Header,
		Content:     c.Text,
		ContentHash: c.ContentHash,
		ByteOffset:  c.Offset,
	}
}
