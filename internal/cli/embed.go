package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/dirrag/internal/indexer"
	"github.com/dshills/dirrag/internal/watcher"
)

func newEmbedCommand(a *app) *cobra.Command {
	var force, watch, quiet bool

	cmd := &cobra.Command{
		Use:   "embed",
		Short: "Synchronize the vector index with the documents directories",
		Long: `Embed lists the PDF and text files directly inside each documents directory,
re-embeds the ones that are new or changed since the last run and removes
the chunks of files that no longer exist.

Examples:
  # Index two directories
  dirrag embed --docs-paths ./papers:./notes --vector-db-path ./db

  # Re-embed everything
  dirrag embed --force

  # Keep syncing as files change
  dirrag embed --watch
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if err := errors.Join(cfg.Validate(), cfg.ValidateDocs()); err != nil {
				return err
			}

			ctx := cmd.Context()
			p, err := a.openPipeline(ctx, newProgressObserver(cmd.ErrOrStderr(), quiet))
			if err != nil {
				return err
			}
			defer p.Close()

			stats, err := p.indexer.SyncWithOptions(ctx, cfg.DocsPaths, indexer.SyncOptions{Force: force})
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			printStatistics(cmd.OutOrStdout(), stats)

			if !watch {
				return nil
			}
			return a.watch(ctx, cmd, p)
		},
	}

	f := cmd.Flags()
	f.String("docs-paths", "", "documents directories, separated by the OS path list separator")
	f.String("docs-directory", "", "alias for --docs-paths")
	_ = f.MarkHidden("docs-directory")
	f.Int("chunk-size", 0, "chunk size in characters")
	f.Int("chunk-overlap", 0, "overlap between consecutive chunks in characters")
	f.BoolVar(&force, "force", false, "re-embed every file regardless of stored digests")
	f.BoolVarP(&watch, "watch", "w", false, "keep running and sync again when files change")
	f.BoolVarP(&quiet, "quiet", "q", false, "disable the progress bar")
	return cmd
}

// watch runs one pass per debounced batch of file events until ctx ends.
func (a *app) watch(ctx context.Context, cmd *cobra.Command, p *pipeline) error {
	w, err := watcher.New(a.cfg.DocsPaths, a.cfg.Extensions, a.logger)
	if err != nil {
		return err
	}
	defer w.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Watching for changes (Ctrl+C to stop)...")

	return w.Run(ctx, func(ctx context.Context, files []string) {
		a.logger.Info("Changes detected", "files", len(files))
		stats, err := p.indexer.Sync(ctx, a.cfg.DocsPaths)
		if err != nil {
			if ctx.Err() == nil {
				a.logger.Error("Sync failed", "error", err)
			}
			return
		}
		printStatistics(out, stats)
	})
}
