// Package mcp exposes document synchronization and search as Model Context
// Protocol tools over stdio.
//
// Tools:
//   - sync_documents: run one sync pass over docs_paths (or the configured
//     directories), optionally with force to re-embed everything
//   - search_documents: return the chunks most similar to a query
//   - get_status: report tracked files and stored chunks
//
// Failures are returned as *MCPError carrying a JSON-RPC error code:
//
//	-32602  invalid parameters
//	-32603  internal error
//	-32002  a sync pass is already running
//	-32003  nothing indexed yet
//	-32004  empty query
//
// The search cache is purged after every successful sync so results never
// reflect a previous pass.
package mcp
