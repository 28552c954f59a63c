package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/dirrag/internal/tracker"
	"github.com/dshills/dirrag/internal/vectorstore"
)

func newStatusCommand(a *app) *cobra.Command {
	var listFiles bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the tracked files and the size of the index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if err := cfg.ValidateStore(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if _, err := os.Stat(cfg.VectorDBPath); errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintf(out, "No index at %s\n", cfg.VectorDBPath)
				return nil
			}

			ctx := cmd.Context()
			tr, err := tracker.Open(ctx, cfg.VectorDBPath, a.logger)
			if err != nil {
				return err
			}
			defer tr.Close()

			files, err := tr.List(ctx)
			if err != nil {
				return err
			}

			backend, err := vectorstore.NewBackend(cfg.Store.Backend)
			if err != nil {
				return err
			}
			store, err := vectorstore.OpenIfExists(ctx, backend, cfg.VectorDBPath)
			if err != nil {
				return err
			}
			chunks := 0
			if store != nil {
				defer store.Close()
				if chunks, err = store.Count(ctx); err != nil {
					return err
				}
			}

			fmt.Fprintf(out, "Index:         %s (%s)\n", cfg.VectorDBPath, backend.Name())
			fmt.Fprintf(out, "Tracked files: %d\n", len(files))
			fmt.Fprintf(out, "Chunks:        %d\n", chunks)

			if listFiles && len(files) > 0 {
				fmt.Fprintln(out)
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "DIGEST\tINDEXED AT\tPATH")
				for _, f := range files {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", f.Digest.String()[:12], f.IndexedAt.Local().Format(time.DateTime), f.Path)
				}
				return tw.Flush()
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&listFiles, "files", "f", false, "list every tracked file")
	return cmd
}
