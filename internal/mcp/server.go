package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/askdocs/internal/app"
	"github.com/dshills/askdocs/internal/indexer"
	"github.com/dshills/askdocs/internal/logger"
	"github.com/dshills/askdocs/internal/router"
	"github.com/dshills/askdocs/internal/storage"
)

const (
	// ServerName is the MCP server name
	ServerName = "askdocs"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp     *server.MCPServer
	storage storage.Storage
	indexer *indexer.Indexer
	router  *router.Router
}

// NewServer creates a new MCP server over an assembled App. The caller owns a.
func NewServer(a *app.App) (*Server, error) {
	if a == nil {
		return nil, fmt.Errorf("app is required")
	}

	s := &Server{
		mcp:     server.NewMCPServer(ServerName, ServerVersion),
		storage: a.Store,
		indexer: a.Indexer,
		router:  a.Router,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	logger.Info("MCP server %s %s listening on stdio", ServerName, ServerVersion)
	errCh := make(chan error, 1)
	go func() { errCh <- server.ServeStdio(s.mcp) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(askQuestionTool(), s.handleAskQuestion)
	s.mcp.AddTool(rebuildIndexTool(), s.handleRebuildIndex)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(inspectChunksTool(), s.handleInspectChunks)
	return nil
}
