package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// syncDocumentsTool returns the tool definition for sync_documents
func syncDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "sync_documents",
		Description: "Synchronize the vector index with the PDF and text files in one or more directories",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"docs_paths": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Absolute directory paths to synchronize. Only files directly inside them are added, updated or purged. Defaults to the configured documents paths, in which case every indexed file outside them is purged",
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, re-embed every file ignoring stored digests",
					"default":     false,
				},
			},
		},
	}
}

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Semantic search over the indexed document chunks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language query",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of chunks to return",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report the number of tracked files and stored chunks",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
