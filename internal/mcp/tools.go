package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/askdocs/internal/chunker"
	"github.com/dshills/askdocs/internal/indexer"
	"github.com/dshills/askdocs/internal/router"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery         = -32004 // Question parameter is empty
	ErrorCodeBackendsExhausted  = -32005 // Every strategy in the fallback chain failed
)

const (
	defaultInspectLimit = 100
	maxInspectLimit     = 1000
	previewLength       = 80
)

// handleAskQuestion handles the ask_question tool invocation
func (s *Server) handleAskQuestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	question := strings.TrimSpace(getStringDefault(args, "question", ""))
	if question == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "question parameter is required and cannot be empty", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}

	resp, err := s.router.Ask(ctx, question)
	switch {
	case errors.Is(err, router.ErrEmptyQuestion):
		return nil, newMCPError(ErrorCodeEmptyQuery, "question cannot be empty", nil)
	case errors.Is(err, router.ErrBackendsExhausted):
		return nil, newMCPError(ErrorCodeBackendsExhausted, "no backend could answer the question", map[string]interface{}{
			"error": err.Error(),
		})
	case err != nil:
		return nil, newMCPError(ErrorCodeInternalError, "question failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	sources := make([]map[string]interface{}, 0, len(resp.Sources))
	for _, src := range resp.Sources {
		sources = append(sources, map[string]interface{}{
			"source": src.SourceID,
			"header": src.Header,
		})
	}

	response := map[string]interface{}{
		"id":                 resp.ID,
		"answer":             resp.Answer,
		"strategy":           string(resp.Strategy),
		"strategy_label":     resp.Strategy.Label(),
		"requested_strategy": string(resp.Requested),
		"fell_back":          resp.FellBack(),
		"sources":            sources,
		"duration_ms":        resp.Duration.Milliseconds(),
	}
	if resp.Backend != "" {
		response["backend"] = resp.Backend
	}
	if resp.Model != "" {
		response["model"] = resp.Model
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRebuildIndex handles the rebuild_index tool invocation
func (s *Server) handleRebuildIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}
	force := getBoolDefault(args, "force", false)

	stats, err := s.indexer.TrySync(ctx, force)
	if errors.Is(err, indexer.ErrSyncInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"rebuilt":     stats.Rebuilt,
		"reason":      stats.Reason,
		"documents":   stats.Documents,
		"chunks":      stats.Chunks,
		"fingerprint": string(stats.Fingerprint),
		"duration_ms": stats.Duration.Milliseconds(),
	}
	if stats.Previous != "" {
		response["previous_fingerprint"] = string(stats.Previous)
	}
	if len(stats.SkippedDocs) > 0 {
		response["skipped_documents"] = stats.SkippedDocs
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.storage.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	sources := make(map[string]interface{}, len(status.Sources))
	for _, sc := range status.Sources {
		sources[sc.SourceID] = sc.Chunks
	}

	response := map[string]interface{}{
		"indexed":        status.ChunksCount > 0,
		"docs_dir":       s.indexer.DocsDir(),
		"indexing":       s.indexer.InProgress(),
		"schema_version": status.SchemaVersion,
		"statistics": map[string]interface{}{
			"chunks_count":     status.ChunksCount,
			"embeddings_count": status.EmbeddingsCount,
			"sources":          sources,
			"document_hash":    status.DocumentHash,
			"index_size_mb":    fmt.Sprintf("%.2f", status.IndexSizeMB),
		},
		"health": map[string]interface{}{
			"database_accessible":  status.Health.DatabaseAccessible,
			"embeddings_available": status.Health.EmbeddingsAvailable,
			"vector_extension":     status.Health.VectorExtension,
		},
	}

	if b := status.LastBuild; b != nil {
		response["last_build"] = map[string]interface{}{
			"fingerprint": b.Fingerprint,
			"chunks":      b.ChunkCount,
			"sources":     b.SourceCount,
			"provider":    b.Provider,
			"model":       b.Model,
			"dimension":   b.Dimension,
			"duration_ms": b.Duration.Milliseconds(),
			"built_at":    b.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	} else {
		response["message"] = "Index not built. Use rebuild_index tool to index the documents."
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleInspectChunks handles the inspect_chunks tool invocation
func (s *Server) handleInspectChunks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	source := getStringDefault(args, "source", "")
	limit := getIntDefault(args, "limit", defaultInspectLimit)
	if limit < 1 || limit > maxInspectLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 1000", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	chunks, err := s.storage.ListChunks(ctx, source)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list chunks", map[string]interface{}{
			"error": err.Error(),
		})
	}

	total := len(chunks)
	if total > limit {
		chunks = chunks[:limit]
	}

	items := make([]map[string]interface{}, 0, len(chunks))
	for _, c := range chunks {
		items = append(items, map[string]interface{}{
			"source":  c.SourceID,
			"index":   c.ChunkIndex,
			"header":  chunker.CleanHeader(c.Header),
			"offset":  c.ByteOffset,
			"length":  len(c.Content),
			"preview": preview(c.Content),
		})
	}

	response := map[string]interface{}{
		"total":     total,
		"returned":  len(items),
		"truncated": total > len(items),
		"chunks":    items,
	}
	if source != "" {
		response["source"] = source
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// arguments returns the call arguments, treating absent arguments as empty
func arguments(request mcp.CallToolRequest) (map[string]interface{}, error) {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}
	return args, nil
}

// preview returns the first line after the marker, shortened
func preview(content string) string {
	_, body, _ := strings.Cut(content, "\n")
	body = strings.Join(strings.Fields(body), " ")
	if len(body) <= previewLength {
		return body
	}
	cut := previewLength
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut] + "..."
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
