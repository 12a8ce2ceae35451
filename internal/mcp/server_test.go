package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/askdocs/internal/app"
	"github.com/dshills/askdocs/internal/config"
	"github.com/dshills/askdocs/internal/embedder"
	"github.com/dshills/askdocs/internal/storage"
	"github.com/dshills/askdocs/pkg/types"
)

type stubGenerator struct {
	err error
}

func (g stubGenerator) Generate(context.Context, string) (types.Answer, error) {
	if g.err != nil {
		return types.Answer{}, g.err
	}
	return types.Answer{Text: "Twenty days.", Backend: "stub", Model: "stub-1"}, nil
}
func (stubGenerator) Ping(context.Context) error { return nil }
func (stubGenerator) Model() string              { return "stub-1" }
func (stubGenerator) Close() error               { return nil }

type stubWeb struct {
	err error
}

func (w stubWeb) Search(context.Context, string) (types.Answer, error) {
	if w.err != nil {
		return types.Answer{}, w.err
	}
	return types.Answer{Text: "from the web", Backend: "web"}, nil
}

const hrManual = "# HR Manual\n\n## Vacation Policy\nEmployees get twenty vacation days.\n\n## Code of Conduct\nBe respectful to colleagues.\n"

func newTestServer(t *testing.T, gen stubGenerator, web stubWeb) *Server {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	cfg.DocsDir = t.TempDir()
	cfg.DataDir = t.TempDir()
	cfg.Embedder.Provider = "local"
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DocsDir, "hr_manual.md"), []byte(hrManual), 0o644))

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	emb, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	a := app.Assemble(cfg, store, emb, gen, web)
	t.Cleanup(func() { _ = a.Close() })

	s, err := NewServer(a)
	require.NoError(t, err)
	return s
}

func call(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	if args != nil {
		req.Params.Arguments = args
	}
	return req
}

func decode(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &out))
	return out
}

func requireCode(t *testing.T, err error, code int) {
	t.Helper()
	var mcpErr *MCPError
	require.True(t, errors.As(err, &mcpErr), "expected MCPError, got %v", err)
	assert.Equal(t, code, mcpErr.Code)
}

func TestNewServer(t *testing.T) {
	t.Run("nil app", func(t *testing.T) {
		_, err := NewServer(nil)
		assert.Error(t, err)
	})

	t.Run("server has all required components", func(t *testing.T) {
		s := newTestServer(t, stubGenerator{}, stubWeb{})
		assert.NotNil(t, s.mcp, "MCP server should be initialized")
		assert.NotNil(t, s.storage, "Storage should be initialized")
		assert.NotNil(t, s.indexer, "Indexer should be initialized")
		assert.NotNil(t, s.router, "Router should be initialized")
	})
}

func TestToolDefinitions(t *testing.T) {
	tools := []mcp.Tool{askQuestionTool(), rebuildIndexTool(), getStatusTool(), inspectChunksTool()}
	names := make([]string, 0, len(tools))
	for _, tool := range tools {
		names = append(names, tool.Name)
		assert.Equal(t, "object", tool.InputSchema.Type)
		assert.NotEmpty(t, tool.Description)
	}
	assert.Equal(t, []string{"ask_question", "rebuild_index", "get_status", "inspect_chunks"}, names)
	assert.Equal(t, []string{"question"}, askQuestionTool().InputSchema.Required)
}

func TestRebuildIndex(t *testing.T) {
	s := newTestServer(t, stubGenerator{}, stubWeb{})

	out := decode(t, invoke(t, s.handleRebuildIndex, nil))
	assert.Equal(t, true, out["rebuilt"])
	assert.Equal(t, float64(1), out["documents"])
	assert.Equal(t, float64(2), out["chunks"])
	assert.NotEmpty(t, out["fingerprint"])

	out = decode(t, invoke(t, s.handleRebuildIndex, nil))
	assert.Equal(t, false, out["rebuilt"])
	assert.Equal(t, "unchanged", out["reason"])

	out = decode(t, invoke(t, s.handleRebuildIndex, map[string]interface{}{"force": true}))
	assert.Equal(t, true, out["rebuilt"])
	assert.Equal(t, "forced", out["reason"])
}

func TestAskQuestion(t *testing.T) {
	ctx := context.Background()

	t.Run("document retrieval", func(t *testing.T) {
		s := newTestServer(t, stubGenerator{}, stubWeb{})
		_ = invoke(t, s.handleRebuildIndex, nil)

		out := decode(t, invoke(t, s.handleAskQuestion, map[string]interface{}{
			"question": "What is the vacation policy?",
		}))
		assert.Equal(t, "Twenty days.", out["answer"])
		assert.Equal(t, string(types.DocumentRetrieval), out["strategy"])
		assert.Equal(t, false, out["fell_back"])
		assert.Equal(t, "stub", out["backend"])

		sources, ok := out["sources"].([]interface{})
		require.True(t, ok)
		require.NotEmpty(t, sources)
		first := sources[0].(map[string]interface{})
		assert.Equal(t, "hr_manual.md", first["source"])
	})

	t.Run("empty question", func(t *testing.T) {
		s := newTestServer(t, stubGenerator{}, stubWeb{})
		_, err := s.handleAskQuestion(ctx, call("ask_question", map[string]interface{}{"question": "   "}))
		requireCode(t, err, ErrorCodeEmptyQuery)

		_, err = s.handleAskQuestion(ctx, call("ask_question", nil))
		requireCode(t, err, ErrorCodeEmptyQuery)
	})

	t.Run("fallback to web", func(t *testing.T) {
		down := types.NewBackendError("ollama", types.KindUnavailable, errors.New("connection refused"))
		s := newTestServer(t, stubGenerator{err: down}, stubWeb{})

		out := decode(t, invoke(t, s.handleAskQuestion, map[string]interface{}{
			"question": "Tell me a joke",
		}))
		assert.Equal(t, string(types.WebSearch), out["strategy"])
		assert.Equal(t, string(types.DirectGeneration), out["requested_strategy"])
		assert.Equal(t, true, out["fell_back"])
	})

	t.Run("backends exhausted", func(t *testing.T) {
		down := types.NewBackendError("ollama", types.KindUnavailable, errors.New("connection refused"))
		webDown := types.NewBackendError("duckduckgo", types.KindRateLimited, errors.New("429"))
		s := newTestServer(t, stubGenerator{err: down}, stubWeb{err: webDown})

		_, err := s.handleAskQuestion(ctx, call("ask_question", map[string]interface{}{
			"question": "Tell me a joke",
		}))
		requireCode(t, err, ErrorCodeBackendsExhausted)
	})

	t.Run("invalid request is not retried", func(t *testing.T) {
		bad := types.NewBackendError("ollama", types.KindInvalidRequest, errors.New("bad model"))
		s := newTestServer(t, stubGenerator{err: bad}, stubWeb{})

		_, err := s.handleAskQuestion(ctx, call("ask_question", map[string]interface{}{
			"question": "Tell me a joke",
		}))
		requireCode(t, err, ErrorCodeInternalError)
	})
}

func TestGetStatus(t *testing.T) {
	s := newTestServer(t, stubGenerator{}, stubWeb{})

	out := decode(t, invoke(t, s.handleGetStatus, nil))
	assert.Equal(t, false, out["indexed"])
	assert.Contains(t, out, "message")
	assert.Equal(t, false, out["indexing"])

	_ = invoke(t, s.handleRebuildIndex, nil)

	out = decode(t, invoke(t, s.handleGetStatus, nil))
	assert.Equal(t, true, out["indexed"])
	stats := out["statistics"].(map[string]interface{})
	assert.Equal(t, float64(2), stats["chunks_count"])
	assert.Equal(t, float64(2), stats["embeddings_count"])
	assert.Equal(t, map[string]interface{}{"hr_manual.md": float64(2)}, stats["sources"])

	build, ok := out["last_build"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(2), build["chunks"])
	assert.Equal(t, "local", build["provider"])
}

func TestInspectChunks(t *testing.T) {
	s := newTestServer(t, stubGenerator{}, stubWeb{})
	ctx := context.Background()
	_ = invoke(t, s.handleRebuildIndex, nil)

	out := decode(t, invoke(t, s.handleInspectChunks, map[string]interface{}{
		"source": "hr_manual.md",
	}))))
	assert.Equal(t, float64(2), out["total"])
	chunks := out["chunks"].([]interface{})
	require.Len(t, chunks, 2)
	first := chunks[0].(map[string]interface{})
	assert.Equal(t, "Vacation Policy", first["header"])
	assert.Equal(t, "Employees get twenty vacation days.", first["preview"])

	out = decode(t, invoke(t, s.handleInspectChunks, map[string]interface{}{
		"limit": float64(1),
	}))))
	assert.Equal(t, float64(1), out["returned"])
	assert.Equal(t, true, out["truncated"])

	out = decode(t, invoke(t, s.handleInspectChunks, map[string]interface{}{
		"source": "missing.md",
	}))))
	assert.Equal(t, float64(0), out["total"])

	_, err := s.handleInspectChunks(ctx, call("inspect_chunks", map[string]interface{}{"limit": float64(0)}))
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestInvalidArguments(t *testing.T) {
	s := newTestServer(t, stubGenerator{}, stubWeb{})
	var req mcp.CallToolRequest
	req.Params.Arguments = "not a map"

	_, err := s.handleRebuildIndex(context.Background(), req)
	requireCode(t, err, ErrorCodeInvalidParams)
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "", preview("## Only Header"))
	assert.Equal(t, "one two", preview("## H\none\n  two\n"))

	p := preview("## H\n" + strings.Repeat("é", 100))
	assert.LessOrEqual(t, len(p), previewLength+3)
	assert.True(t, strings.HasSuffix(p, "..."))
	assert.True(t, utf8.ValidString(p))
}

type handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func invoke(t *testing.T, h handler, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := h(context.Background(), call("", args))
	require.NoError(t, err)
	return result
}
