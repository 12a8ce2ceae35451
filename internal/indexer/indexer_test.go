package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/askdocs/internal/embedder"
	"github.com/dshills/askdocs/internal/fingerprint"
	"github.com/dshills/askdocs/internal/index"
	"github.com/dshills/askdocs/internal/storage"
)

// mockEmbedder implements embedder.Embedder for testing
type mockEmbedder struct {
	dimension        int
	model            string
	generateBatchErr error
	callCount        int
	mu               sync.Mutex
}

func newMockEmbedder() *mockEmbedder {
	return &mockEmbedder{dimension: 8, model: "test-v1"}
}

func (m *mockEmbedder) vector(text string) []float32 {
	v := make([]float32, m.dimension)
	for i, b := range []byte(text) {
		v[i%m.dimension] += float32(b)
	}
	return v
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	return &embedder.Embedding{Vector: m.vector(req.Text), Dimension: m.dimension, Provider: "mock", Model: m.model}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++

	if m.generateBatchErr != nil {
		return nil, m.generateBatchErr
	}

	embeddings := make([]*embedder.Embedding, len(req.Texts))
	for i, text := range req.Texts {
		embeddings[i] = &embedder.Embedding{Vector: m.vector(text), Dimension: m.dimension, Provider: "mock", Model: m.model}
	}
	return &embedder.BatchEmbeddingResponse{Embeddings: embeddings, Provider: "mock", Model: m.model}, nil
}

func (m *mockEmbedder) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *mockEmbedder) Dimension() int   { return m.dimension }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return m.model }
func (m *mockEmbedder) Close() error     { return nil }

type fixture struct {
	dir   string
	store storage.Storage
	emb   *mockEmbedder
	fp    fingerprint.Store
	x     *Indexer
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{
		dir:   t.TempDir(),
		store: store,
		emb:   newMockEmbedder(),
		fp:    fingerprint.NewMetaStore(store),
	}
	f.x = New(f.dir, index.New(store, f.emb, &index.Config{BatchSize: 2}), f.fp)
	return f
}

func (f *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0o644))
}

const hrDoc = "# HR\n\n## Leave Policy\nTwenty days.\n\n## Code of Conduct\nBe kind.\n"

func TestSync_FirstRunRebuilds(t *testing.T) {
	f := setup(t)
	f.write(t, "hr.md", hrDoc)
	f.write(t, "readme.md", "no sections here\n")

	stats, err := f.x.Sync(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, stats.Rebuilt)
	assert.Equal(t, ReasonNoFingerprint, stats.Reason)
	assert.Equal(t, 2, stats.Documents)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, []string{"readme.md"}, stats.SkippedDocs)
	assert.Empty(t, stats.Previous)

	stored, ok, err := f.fp.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, stats.Fingerprint, stored)
}

func TestSync_UnchangedMakesNoEmbeddingCalls(t *testing.T) {
	f := setup(t)
	f.write(t, "hr.md", hrDoc)

	_, err := f.x.Sync(context.Background(), false)
	require.NoError(t, err)
	before := f.emb.calls()

	stats, err := f.x.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, stats.Rebuilt)
	assert.Equal(t, ReasonUnchanged, stats.Reason)
	assert.Equal(t, before, f.emb.calls())
}

func TestSync_ChangedDocumentRebuilds(t *testing.T) {
	f := setup(t)
	f.write(t, "hr.md", hrDoc)
	first, err := f.x.Sync(context.Background(), false)
	require.NoError(t, err)

	f.write(t, "hr.md", hrDoc+"\n## Remote Work\nAllowed on Fridays.\n")
	second, err := f.x.Sync(context.Background(), false)
	require.NoError(t, err)

	assert.True(t, second.Rebuilt)
	assert.Equal(t, ReasonChanged, second.Reason)
	assert.Equal(t, first.Fingerprint, second.Previous)
	assert.NotEqual(t, first.Fingerprint, second.Fingerprint)
	assert.Equal(t, 3, second.Chunks)
}

func TestSync_Force(t *testing.T) {
	f := setup(t)
	f.write(t, "hr.md", hrDoc)
	_, err := f.x.Sync(context.Background(), false)
	require.NoError(t, err)

	stats, err := f.x.Sync(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, stats.Rebuilt)
	assert.Equal(t, ReasonForced, stats.Reason)
}

func TestSync_EmptyIndexWithMatchingFingerprint(t *testing.T) {
	f := setup(t)
	f.write(t, "hr.md", hrDoc)
	first, err := f.x.Sync(context.Background(), false)
	require.NoError(t, err)

	// index lost independently of the stored fingerprint
	_, err = f.store.DeleteAllChunks(context.Background())
	require.NoError(t, err)
	fresh := New(f.dir, index.New(f.store, f.emb, nil), f.fp)

	stats, err := fresh.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, stats.Rebuilt)
	assert.Equal(t, ReasonIndexEmpty, stats.Reason)
	assert.Equal(t, first.Fingerprint, stats.Fingerprint)
}

func TestSync_EmbedderChangeRebuilds(t *testing.T) {
	tests := []struct {
		name   string
		change func(m *mockEmbedder)
	}{
		{name: "model", change: func(m *mockEmbedder) { m.model = "test-v2" }},
		{name: "dimension", change: func(m *mockEmbedder) { m.dimension = 16 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			f.write(t, "hr.md", hrDoc)
			ctx := context.Background()
			first, err := f.x.Sync(ctx, false)
			require.NoError(t, err)

			emb := newMockEmbedder()
			tt.change(emb)
			idx := index.New(f.store, emb, nil)
			x := New(f.dir, idx, f.fp)

			stats, err := x.Sync(ctx, false)
			require.NoError(t, err)
			assert.True(t, stats.Rebuilt)
			assert.Equal(t, ReasonModelChanged, stats.Reason)
			assert.Equal(t, first.Fingerprint, stats.Fingerprint)

			hits, err := idx.Search(ctx, "leave policy", 5)
			require.NoError(t, err)
			assert.NotEmpty(t, hits)

			again, err := x.Sync(ctx, false)
			require.NoError(t, err)
			assert.False(t, again.Rebuilt)
			assert.Equal(t, ReasonUnchanged, again.Reason)
		})
	}
}

func TestSync_FailedRebuildKeepsOldFingerprint(t *testing.T) {
	f := setup(t)
	f.write(t, "hr.md", hrDoc)
	first, err := f.x.Sync(context.Background(), false)
	require.NoError(t, err)

	f.write(t, "hr.md", "## Changed\nNew text.\n")
	f.emb.generateBatchErr = errors.New("embedding backend down")

	_, err = f.x.Sync(context.Background(), false)
	require.Error(t, err)

	stored, ok, err := f.fp.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.Fingerprint, stored)

	// next sync retries once the backend is back
	f.emb.generateBatchErr = nil
	stats, err := f.x.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, stats.Rebuilt)
	assert.Equal(t, ReasonChanged, stats.Reason)
}

func TestSync_EmptyCorpus(t *testing.T) {
	f := setup(t)

	stats, err := f.x.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Chunks)
	assert.True(t, stats.Rebuilt)

	again, err := f.x.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, again.Rebuilt)
}

func TestSync_MissingDirectory(t *testing.T) {
	f := setup(t)
	x := New(filepath.Join(f.dir, "missing"), index.New(f.store, f.emb, nil), f.fp)

	_, err := x.Sync(context.Background(), false)
	assert.Error(t, err)
}

func TestSync_FileStore(t *testing.T) {
	f := setup(t)
	f.write(t, "hr.md", hrDoc)
	fs := fingerprint.NewFileStore(t.TempDir())
	x := New(f.dir, index.New(f.store, f.emb, nil), fs)

	stats, err := x.Sync(context.Background(), false)
	require.NoError(t, err)

	data, err := os.ReadFile(fs.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), string(stats.Fingerprint))
}

func TestTrySync_InProgress(t *testing.T) {
	f := setup(t)
	f.write(t, "hr.md", hrDoc)

	f.x.mu.Lock()
	_, err := f.x.TrySync(context.Background(), false)
	f.x.mu.Unlock()
	assert.ErrorIs(t, err, ErrSyncInProgress)

	stats, err := f.x.TrySync(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, stats.Rebuilt)
	assert.False(t, f.x.InProgress())
}

func TestSync_ConcurrentCallsSerialize(t *testing.T) {
	f := setup(t)
	f.write(t, "hr.md", hrDoc)

	var wg sync.WaitGroup
	rebuilt := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats, err := f.x.Sync(context.Background(), false)
			assert.NoError(t, err)
			if err == nil {
				rebuilt <- stats.Rebuilt
			}
		}()
	}
	wg.Wait()
	close(rebuilt)

	count := 0
	for r := range rebuilt {
		if r {
			count++
		}
	}
	assert.Equal(t, 1, count)
}
