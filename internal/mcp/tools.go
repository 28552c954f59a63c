package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/dirrag/internal/indexer"
	"github.com/dshills/dirrag/internal/searcher"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeSyncInProgress = -32002 // Another sync pass is already running
	ErrorCodeNotIndexed     = -32003 // Nothing has been indexed yet
	ErrorCodeEmptyQuery     = -32004 // Query parameter is empty
)

// maxReportedErrors caps the per-file errors echoed by sync_documents
const maxReportedErrors = 5

// handleSyncDocuments handles the sync_documents tool invocation
func (s *Server) handleSyncDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	paths, err := getStringList(args, "docs_paths")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "docs_paths must be a list of strings", map[string]interface{}{
			"param":  "docs_paths",
			"reason": err.Error(),
		})
	}
	// explicit paths only purge files inside themselves
	scoped := len(paths) > 0
	if !scoped {
		paths = s.docsPaths
	}
	if len(paths) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "docs_paths parameter is required", map[string]interface{}{
			"param":  "docs_paths",
			"reason": "missing or empty and no default configured",
		})
	}
	for _, p := range paths {
		if err := validatePath(p); err != nil {
			return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
				"param":  "docs_paths",
				"path":   p,
				"reason": err.Error(),
			})
		}
	}

	force := getBoolDefault(args, "force", false)

	stats, err := s.indexer.SyncWithOptions(ctx, paths, indexer.SyncOptions{Force: force, Scoped: scoped})
	if errors.Is(err, indexer.ErrSyncInProgress) {
		return nil, newMCPError(ErrorCodeSyncInProgress, "a sync pass is already running", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "sync failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
	s.searcher.InvalidateCache()

	response := map[string]interface{}{
		"synced":           true,
		"files_discovered": stats.FilesDiscovered,
		"files_processed":  stats.FilesProcessed,
		"files_skipped":    stats.FilesSkipped,
		"files_failed":     stats.FilesFailed,
		"files_deleted":    stats.FilesDeleted,
		"chunks_added":     stats.ChunksAdded,
		"chunks_removed":   stats.ChunksRemoved,
		"duration_ms":      stats.Duration.Milliseconds(),
	}
	if n := len(stats.Errors); n > 0 {
		if n > maxReportedErrors {
			response["errors"] = stats.Errors[:maxReportedErrors]
			response["error_count"] = n
		} else {
			response["errors"] = stats.Errors
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := arguments(request)
	if err != nil {
		return nil, err
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", searcher.MaxLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{Query: query, Limit: limit, UseCache: true})
	if errors.Is(err, searcher.ErrNoIndex) {
		return nil, newMCPError(ErrorCodeNotIndexed, "no documents have been indexed yet", map[string]interface{}{
			"hint": "call sync_documents first",
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, map[string]interface{}{
			"rank":       r.Rank,
			"source":     r.Source,
			"similarity": r.Similarity,
			"content":    r.Content,
			"metadata":   r.Metadata,
		})
	}

	response := map[string]interface{}{
		"query":         query,
		"results":       results,
		"total_results": resp.TotalResults,
		"cache_hit":     resp.CacheHit,
		"duration_ms":   resp.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tracked, err := s.indexer.Tracker().Count(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read ledger", map[string]interface{}{
			"error": err.Error(),
		})
	}

	chunks := 0
	store, indexed := s.indexer.Mutator().Store()
	if indexed {
		chunks, err = store.Count(ctx)
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to count chunks", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	response := map[string]interface{}{
		"indexed":       indexed,
		"sync_running":  s.indexer.Running(),
		"tracked_files": tracked,
		"chunks":        chunks,
		"ledger_path":   s.indexer.Tracker().Path(),
		"docs_paths":    s.docsPaths,
	}
	if !indexed {
		response["message"] = "Nothing indexed. Use sync_documents to index a directory."
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
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

// validatePath checks that a path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
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

// getStringList accepts a JSON array of strings or a single string
func getStringList(args map[string]interface{}, key string) ([]string, error) {
	switch val := args[key].(type) {
	case nil:
		return nil, nil
	case string:
		if val == "" {
			return nil, nil
		}
		return []string{val}, nil
	case []string:
		return val, nil
	case []interface{}:
		out := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is %T", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected type %T", val)
	}
}

// Validation errors

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
