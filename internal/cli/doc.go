// Package cli implements the dirrag command line.
//
// Commands:
//
//	dirrag embed   sync the index with the documents directories (--watch to keep syncing)
//	dirrag query   interactive question answering over the index
//	dirrag status  tracked files and chunk count
//	dirrag serve   MCP server on stdio
//	dirrag config  effective configuration as YAML
//
// Settings come from defaults, ./dirrag.yaml (or --config), the environment
// (DIRRAG_* plus DOCS_PATH, VECTOR_DB_PATH, OPENAI_API_KEY, OLLAMA_HOST) and
// flags, in increasing priority.
package cli
