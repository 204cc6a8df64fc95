package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/smolex/internal/config"
	"github.com/mvp-joe/smolex/internal/indexer"
	"github.com/mvp-joe/smolex/internal/semantic"
	"github.com/mvp-joe/smolex/internal/storage"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the indexes",
	Long: `Status reports whether each index exists, when the structured index was
built and how many entities and chunks they hold. It needs no embedding
provider.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
}

// statusReport is the output of the status command.
type statusReport struct {
	Root            string    `json:"root"`
	StructuredPath  string    `json:"structured_path"`
	SemanticPath    string    `json:"semantic_path"`
	StructuredReady bool      `json:"structured_ready"`
	SemanticReady   bool      `json:"semantic_ready"`
	BuildID         string    `json:"build_id,omitempty"`
	BuiltAt         time.Time `json:"built_at,omitempty"`
	Entities        int       `json:"entities"`
	Chunks          int       `json:"chunks"`
	RequiresRefresh bool      `json:"requires_refresh"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	rootDir, err := resolveRootDir()
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfigFromDir(rootDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	report, err := collectStatus(cmd.Context(), cfg, rootDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if statusJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printStatus(out, report)
	return nil
}

func collectStatus(ctx context.Context, cfg *config.Config, rootDir string) (*statusReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	report := &statusReport{
		Root:           rootDir,
		StructuredPath: cfg.StructuredDBPath(rootDir),
		SemanticPath:   cfg.SemanticDirPath(rootDir),
	}
	state := indexer.DetectBuildState(report.StructuredPath, report.SemanticPath)
	report.StructuredReady = state.StructuredReady
	report.SemanticReady = state.SemanticReady
	report.RequiresRefresh = state.RequiresRefresh()

	if state.StructuredReady {
		store, err := storage.Open(report.StructuredPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open structured index: %w", err)
		}
		defer store.Close()

		info, err := store.Info(ctx)
		if err != nil && !errors.Is(err, storage.ErrNotInitialized) {
			return nil, err
		}
		report.BuildID = info.BuildID
		report.BuiltAt = info.BuiltAt
		report.Entities = info.EntityCount
	}

	if state.SemanticReady {
		chunks, err := semantic.DocumentCount(report.SemanticPath)
		if err != nil {
			return nil, err
		}
		report.Chunks = chunks
	}

	return report, nil
}

func printStatus(w io.Writer, r *statusReport) {
	fmt.Fprintf(w, "Root: %s\n\n", r.Root)

	fmt.Fprintf(w, "Structured index: %s\n", readyString(r.StructuredReady))
	fmt.Fprintf(w, "  Path:     %s\n", r.StructuredPath)
	if r.StructuredReady {
		fmt.Fprintf(w, "  Build:    %s\n", r.BuildID)
		fmt.Fprintf(w, "  Built at: %s\n", r.BuiltAt.Local().Format(time.RFC1123))
		fmt.Fprintf(w, "  Entities: %s\n", formatNumber(r.Entities))
	}

	fmt.Fprintf(w, "Semantic index:   %s\n", readyString(r.SemanticReady))
	fmt.Fprintf(w, "  Path:     %s\n", r.SemanticPath)
	if r.SemanticReady {
		fmt.Fprintf(w, "  Chunks:   %s\n", formatNumber(r.Chunks))
	}

	if r.RequiresRefresh {
		fmt.Fprintln(w, "\nRun 'smolex index' to build the missing index.")
	}
}

func readyString(ready bool) string {
	if ready {
		return "ready"
	}
	return "missing"
}
