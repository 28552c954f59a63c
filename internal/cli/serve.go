package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/dshills/dirrag/internal/mcp"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an MCP server on stdio exposing sync and search tools",
		Long: `Serve starts a Model Context Protocol server on standard input and output.
Logs go to standard error; standard output is reserved for the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if err := cfg.Validate(); err != nil {
				return err
			}

			docs := make([]string, 0, len(cfg.DocsPaths))
			for _, d := range cfg.DocsPaths {
				abs, err := filepath.Abs(d)
				if err != nil {
					return fmt.Errorf("invalid documents path %s: %w", d, err)
				}
				docs = append(docs, abs)
			}

			ctx := cmd.Context()
			p, err := a.openPipeline(ctx, nil)
			if err != nil {
				return err
			}
			defer p.Close()

			return mcp.NewServer(p.indexer, p.searcher, docs, a.logger).Serve(ctx)
		},
	}
	cmd.Flags().String("docs-paths", "", "default documents directories for sync_documents")
	return cmd
}
