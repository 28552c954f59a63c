package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/dirrag/internal/config"
)

// app carries state shared by every subcommand.
type app struct {
	configFile string
	cfg        *config.Config
	logger     *slog.Logger
}

// NewRootCommand builds the dirrag command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "dirrag",
		Short: "Keep a vector index in sync with directories of documents",
		Long: `dirrag embeds the PDF and text files of one or more directories into a
local vector store and answers questions about them.

Only new and modified files are re-embedded on each run; files that
disappeared from the directories are purged from the index.`,
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configFile, "config", "", "config file (default is ./dirrag.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("vector-db-path", "", "directory holding the vector store and the file ledger")
	pf.String("backend", "", "vector store backend: chromem or sqlite")
	pf.String("embedding-provider", "", "embedding provider: openai, ollama or local")
	pf.String("embedding-model", "", "embedding model name")

	root.AddCommand(
		newEmbedCommand(a),
		newQueryCommand(a),
		newStatusCommand(a),
		newServeCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.LoadOptions{
		ConfigFile: a.configFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	return nil
}
