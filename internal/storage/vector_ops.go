package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"strings"
)

// searchVector performs vector similarity search using cosine similarity
func searchVector(ctx context.Context, q querier, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	if limit <= 0 || len(queryVector) == 0 {
		return []VectorResult{}, nil
	}
	// Use SQL-side distance when sqlite-vec is available
	if VectorExtensionAvailable {
		return searchVectorOptimized(ctx, q, queryVector, limit, filters)
	}
	// Fall back to Go-based computation for purego builds
	return searchVectorFallback(ctx, q, queryVector, limit, filters)
}

// searchVectorOptimized uses the sqlite-vec extension to rank inside SQLite
func searchVectorOptimized(ctx context.Context, q querier, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	queryVectorBlob := serializeVector(queryVector)

	// vec_distance_cosine returns distance (lower is better); convert to similarity
	query := `
		SELECT
			c.id as chunk_id,
			1.0 - vec_distance_cosine(e.vector, ?) as similarity
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		WHERE e.dimension = ?
	`
	args := []interface{}{queryVectorBlob, len(queryVector)}

	query, args = applyVectorFilters(query, args, filters)

	if filters != nil && filters.MinRelevance > 0 {
		query += " AND (1.0 - vec_distance_cosine(e.vector, ?)) >= ?"
		args = append(args, queryVectorBlob, filters.MinRelevance)
	}

	// Ties broken by insertion order so ranking is deterministic
	query += " ORDER BY similarity DESC, c.id ASC LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]VectorResult, 0, limit)
	for rows.Next() {
		var result VectorResult
		if err := rows.Scan(&result.ChunkID, &result.SimilarityScore); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// searchVectorFallback loads candidate vectors and ranks them in Go.
// Used when the sqlite-vec extension is not available (purego builds).
func searchVectorFallback(ctx context.Context, q querier, queryVector []float32, limit int, filters *SearchFilters) ([]VectorResult, error) {
	query := `
		SELECT
			c.id as chunk_id,
			e.vector
		FROM chunks c
		INNER JOIN embeddings e ON c.id = e.chunk_id
		WHERE 1 = 1
	`
	args := []interface{}{}
	query, args = applyVectorFilters(query, args, filters)
	query += " ORDER BY c.id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeSimilarityScores(rows, queryVector, filters)
	if err != nil {
		return nil, err
	}

	sortCandidates(candidates)
	return buildVectorResults(candidates, limit), nil
}

// applyVectorFilters adds WHERE clause filters for vector search
func applyVectorFilters(query string, args []interface{}, filters *SearchFilters) (string, []interface{}) {
	if filters == nil {
		return query, args
	}

	if len(filters.Sources) > 0 {
		placeholders := make([]string, len(filters.Sources))
		for i, src := range filters.Sources {
			placeholders[i] = "?"
			args = append(args, src)
		}
		query += " AND c.source_id IN (" + strings.Join(placeholders, ",") + ")"
	}

	if filters.Model != "" {
		query += " AND e.model = ?"
		args = append(args, filters.Model)
	}

	return query, args
}

// computeSimilarityScores processes rows and computes cosine similarity
func computeSimilarityScores(rows *sql.Rows, queryVector []float32, filters *SearchFilters) ([]candidate, error) {
	candidates := make([]candidate, 0, 256)

	for rows.Next() {
		var chunkID int64
		var vectorBlob []byte
		if err := rows.Scan(&chunkID, &vectorBlob); err != nil {
			return nil, err
		}

		vector := deserializeVector(vectorBlob)
		if len(vector) != len(queryVector) {
			continue // Dimension mismatch, skip
		}

		similarity := cosineSimilarity(queryVector, vector)

		if filters != nil && filters.MinRelevance > 0 && similarity < filters.MinRelevance {
			continue
		}

		candidates = append(candidates, candidate{chunkID: chunkID, score: similarity})
	}

	return candidates, rows.Err()
}

// buildVectorResults creates VectorResult slice from the top candidates
func buildVectorResults(candidates []candidate, limit int) []VectorResult {
	if limit > len(candidates) {
		limit = len(candidates)
	}

	results := make([]VectorResult, limit)
	for i := 0; i < limit; i++ {
		results[i] = VectorResult{
			ChunkID:         candidates[i].chunkID,
			SimilarityScore: candidates[i].score,
		}
	}
	return results
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// candidate represents a chunk with its similarity score
type candidate struct {
	chunkID int64
	score   float64
}

// sortCandidates sorts by score descending; equal scores keep insertion order
func sortCandidates(candidates []candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
}

// SerializeVector is exported for callers that build Embedding rows
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is exported for callers that read Embedding rows
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
