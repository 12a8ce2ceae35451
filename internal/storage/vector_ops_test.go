package storage

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedVectors stores one chunk per vector and returns the chunk IDs in order
func seedVectors(t *testing.T, s *SQLiteStorage, sources []string, vectors [][]float32, model string) []int64 {
	t.Helper()
	ctx := context.Background()
	ids := make([]int64, len(vectors))
	for i, v := range vectors {
		c := newChunk(sources[i], i, "H", "## H\n")
		require.NoError(t, s.UpsertChunk(ctx, c))
		require.NoError(t, s.UpsertEmbedding(ctx, &Embedding{
			ChunkID: c.ID, Vector: serializeVector(v), Dimension: len(v),
			Provider: "local", Model: model,
		}))
		ids[i] = c.ID
	}
	return ids
}

func TestSearchVector_Ranking(t *testing.T) {
	s := setupTestDB(t)
	ids := seedVectors(t, s,
		[]string{"a.md", "b.md", "c.md"},
		[][]float32{{0, 1}, {1, 0}, {1, 1}},
		"m")

	results, err := s.SearchVector(context.Background(), []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, ids[1], results[0].ChunkID)
	assert.InDelta(t, 1.0, results[0].SimilarityScore, 1e-6)
	assert.Equal(t, ids[2], results[1].ChunkID)
	assert.InDelta(t, 1/math.Sqrt2, results[1].SimilarityScore, 1e-6)
	assert.Equal(t, ids[0], results[2].ChunkID)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].SimilarityScore, results[i].SimilarityScore)
	}
}

func TestSearchVector_Filters(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	ids := seedVectors(t, s,
		[]string{"hr.md", "labor.md", "hr.md"},
		[][]float32{{1, 0}, {1, 0.1}, {0, 1}},
		"m")

	testCases := []struct {
		name    string
		filters *SearchFilters
		limit   int
		want    []int64
	}{
		{"limit", nil, 1, []int64{ids[0]}},
		{"sources", &SearchFilters{Sources: []string{"hr.md"}}, 10, []int64{ids[0], ids[2]}},
		{"min relevance", &SearchFilters{MinRelevance: 0.9}, 10, []int64{ids[0], ids[1]}},
		{"model mismatch", &SearchFilters{Model: "other"}, 10, []int64{}},
		{"zero limit", nil, 0, []int64{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			results, err := s.SearchVector(ctx, []float32{1, 0}, tc.limit, tc.filters)
			require.NoError(t, err)
			got := make([]int64, 0, len(results))
			for _, r := range results {
				got = append(got, r.ChunkID)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSearchVector_EdgeCases(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	// Empty index
	results, err := s.SearchVector(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	seedVectors(t, s, []string{"a.md"}, [][]float32{{1, 0, 0}}, "m")

	// Dimension mismatch is skipped, not an error
	results, err = s.SearchVector(ctx, []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.SearchVector(ctx, []float32{}, 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchVector_TiesKeepInsertionOrder(t *testing.T) {
	s := setupTestDB(t)
	ids := seedVectors(t, s,
		[]string{"a.md", "b.md", "c.md"},
		[][]float32{{1, 0}, {2, 0}, {3, 0}},
		"m")

	results, err := s.SearchVector(context.Background(), []float32{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, ids, []int64{results[0].ChunkID, results[1].ChunkID, results[2].ChunkID})
}

func TestVectorSerialization(t *testing.T) {
	v := []float32{0, -1.5, 3.25, float32(math.Pi)}
	blob := SerializeVector(v)
	assert.Len(t, blob, 16)
	assert.Equal(t, v, DeserializeVector(blob))
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 1}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 1}))
}
