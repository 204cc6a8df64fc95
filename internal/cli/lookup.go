package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/smolex/internal/iface"
	"github.com/mvp-joe/smolex/internal/resolver"
)

// errNoResult mirrors the service treating an empty answer as a failure.
var errNoResult = errors.New("no result")

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Look up classes, functions and methods from the command line",
	Long: `Lookup runs the same queries as the service endpoints and prints the result.

Examples:
  smolex lookup interface UserRepository Config
  smolex lookup code parse_config Router.dispatch`,
}

var lookupInterfaceCmd = &cobra.Command{
	Use:   "interface CLASS...",
	Short: "Print the interface of existing classes",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLookup(cmd, func(ctx context.Context, r *resolver.Resolver) error {
			result, err := r.LookupInterface(ctx, args)
			if err != nil {
				return err
			}
			return writeInterfaceResult(cmd.OutOrStdout(), result)
		})
	},
}

var lookupCodeCmd = &cobra.Command{
	Use:   "code ITEM...",
	Short: "Print the source of existing classes, functions or methods",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLookup(cmd, func(ctx context.Context, r *resolver.Resolver) error {
			result, err := r.LookupCode(ctx, args)
			if err != nil {
				return err
			}
			return writeCodeResult(cmd.OutOrStdout(), result)
		})
	},
}

func init() {
	rootCmd.AddCommand(lookupCmd)
	lookupCmd.AddCommand(lookupInterfaceCmd)
	lookupCmd.AddCommand(lookupCodeCmd)
}

func runLookup(cmd *cobra.Command, query func(context.Context, *resolver.Resolver) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := openApp(ctx, NewCLIProgressReporter(cmd.ErrOrStderr(), logger, false))
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.ensureBuilt(ctx); err != nil {
		return err
	}
	return query(ctx, a.resolver)
}

// writeInterfaceResult prints each view under a location comment, or the
// semantic answer.
func writeInterfaceResult(w io.Writer, result resolver.Result[*iface.InterfaceView]) error {
	if result.Empty() {
		return errNoResult
	}
	if result.Source == resolver.SourceSemantic {
		_, err := fmt.Fprintln(w, strings.TrimRight(result.Semantic, "\n"))
		return err
	}

	for i, view := range result.Structured {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "# %s (%s)\n", view.QualifiedName(), view.Location)
		if _, err := io.WriteString(w, view.Render()); err != nil {
			return err
		}
	}
	return nil
}

// writeCodeResult prints each source block, or the semantic answer.
func writeCodeResult(w io.Writer, result resolver.Result[string]) error {
	if result.Empty() {
		return errNoResult
	}
	if result.Source == resolver.SourceSemantic {
		_, err := fmt.Fprintln(w, strings.TrimRight(result.Semantic, "\n"))
		return err
	}

	for i, source := range result.Structured {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if _, err := fmt.Fprintln(w, strings.TrimRight(source, "\n")); err != nil {
			return err
		}
	}
	return nil
}
