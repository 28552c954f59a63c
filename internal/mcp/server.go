package mcp

import (
	"context"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/dirrag/internal/indexer"
	"github.com/dshills/dirrag/internal/searcher"
)

const (
	// ServerName is the MCP server name
	ServerName = "dirrag"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp       *server.MCPServer
	indexer   *indexer.Indexer
	searcher  *searcher.Searcher
	docsPaths []string
	logger    *slog.Logger
}

// NewServer creates a new MCP server over an indexer and a searcher sharing
// the same store. docsPaths are synchronized when a sync call names none.
func NewServer(idx *indexer.Indexer, srch *searcher.Searcher, docsPaths []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		mcp:       server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		indexer:   idx,
		searcher:  srch,
		docsPaths: docsPaths,
		logger:    logger,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio and blocks until the client disconnects
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("MCP server listening on stdio", "name", ServerName, "version", ServerVersion)
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(syncDocumentsTool(), s.handleSyncDocuments)
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}
