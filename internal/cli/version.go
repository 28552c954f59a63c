package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/dirrag/internal/sqlitedb"
)

// Set with -ldflags "-X github.com/dshills/dirrag/internal/cli.version=..."
var (
	version   = "dev"
	buildTime = "unknown"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build information",
		Args:  cobra.NoArgs,
		// Skip configuration loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dirrag %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", sqlitedb.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", sqlitedb.DriverName)
			fmt.Fprintf(out, "Vector Extension: %v\n", sqlitedb.VectorExtensionAvailable)
		},
	}
}
