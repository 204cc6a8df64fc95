package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	quietFlag bool
	watchFlag bool
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the structured and semantic indexes",
	Long: `Index rebuilds both indexes from scratch:

  - Parses every Python file and stores its classes, functions and methods
    in the structured index (.smolex/entities.db)
  - Cuts every code and documentation file into overlapping line windows,
    embeds them and stores them in the semantic index (.smolex/semantic)

Files with syntax errors are skipped and reported. Each build replaces the
previous one atomically, so a running server keeps answering from the old
indexes until the new ones are complete.

Examples:
  # Index the current directory
  smolex index

  # Index with progress bars disabled
  smolex index --quiet

  # Rebuild whenever files change
  smolex index --watch
`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars and non-error output")
	indexCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch for file changes and rebuild")
}

func runIndex(cmd *cobra.Command, args []string) error {
	// Cancel on Ctrl+C
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	progress := NewCLIProgressReporter(cmd.ErrOrStderr(), logger, quietFlag)
	a, err := openApp(ctx, progress)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.indexer.Refresh(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("indexing cancelled")
		}
		return fmt.Errorf("indexing failed: %w", err)
	}

	for _, path := range stats.SkippedFiles {
		logger.WithField("file", path).Warn("skipped file with syntax errors")
	}
	if quietFlag {
		fmt.Fprintf(cmd.OutOrStdout(), "Indexing complete: %d entities, %d chunks in %.2fs\n",
			stats.Entities, stats.Chunks, stats.Duration.Seconds())
	}

	if watchFlag {
		return a.watch(ctx)
	}
	return nil
}
