package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/askdocs/internal/config"
	"github.com/dshills/askdocs/internal/embedder"
	"github.com/dshills/askdocs/internal/fingerprint"
	"github.com/dshills/askdocs/internal/storage"
	"github.com/dshills/askdocs/pkg/types"
)

type echoGenerator struct{}

func (echoGenerator) Generate(_ context.Context, prompt string) (types.Answer, error) {
	return types.Answer{Text: "answer to: " + prompt, Backend: "echo"}, nil
}
func (echoGenerator) Ping(context.Context) error { return nil }
func (echoGenerator) Model() string              { return "echo" }
func (echoGenerator) Close() error               { return nil }

type noWeb struct{}

func (noWeb) Search(context.Context, string) (types.Answer, error) {
	return types.Answer{Text: "web", Backend: "web"}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.DocsDir = t.TempDir()
	cfg.DataDir = t.TempDir()
	cfg.Embedder.Provider = "local"
	return cfg
}

func TestAssembleEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DocsDir, "hr_manual.md"),
		[]byte("# HR\n\n## Vacation Policy\nEmployees get twenty vacation days.\n\n## Code of Conduct\nBe respectful.\n"), 0o644))

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	a := Assemble(cfg, store, emb, echoGenerator{}, noWeb{})
	defer func() { _ = a.Close() }()

	stats, err := a.Indexer.Sync(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, stats.Rebuilt)

	resp, err := a.Router.Ask(context.Background(), "What is the vacation policy?")
	require.NoError(t, err)
	assert.Equal(t, types.DocumentRetrieval, resp.Strategy)
	require.NotEmpty(t, resp.Sources)
	assert.Equal(t, types.Source{SourceID: "hr_manual.md", Header: "Vacation Policy"}, resp.Sources[0])
	assert.Contains(t, resp.Answer, "twenty vacation days")
}

func TestAssembleFileFingerprintStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Index.FingerprintStore = config.FingerprintFile

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	a := Assemble(cfg, store, emb, echoGenerator{}, noWeb{})
	defer func() { _ = a.Close() }()

	fs, ok := a.Fingerprint.(*fingerprint.FileStore)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(cfg.DataDir, fingerprint.FileName), fs.Path())
}

func TestNew(t *testing.T) {
	cfg := testConfig(t)
	cfg.DataDir = filepath.Join(t.TempDir(), "nested", "data")

	a, err := New(cfg)
	require.NoError(t, err)
	assert.FileExists(t, cfg.DBPath())
	assert.Equal(t, embedder.ProviderLocal, a.Embedder.Provider())
	require.NoError(t, a.Close())
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.Provider = "nope"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestWaitForBackends(t *testing.T) {
	cfg := testConfig(t)
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	a := Assemble(cfg, store, emb, echoGenerator{}, noWeb{})
	defer func() { _ = a.Close() }()

	assert.NoError(t, a.WaitForBackends(context.Background()))
}
