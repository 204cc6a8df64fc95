package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mvp-joe/smolex/internal/config"
)

var (
	rootDirFlag string
	verbose     bool

	// logger is configured from the global flags before any command runs.
	logger = logrus.New()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "smolex",
	Short: "smolex - look up classes and functions of your codebase",
	Long: `smolex indexes a Python codebase twice: a structured index of every class,
function and method, and a semantic index of the whole tree. Lookups by name
are answered exactly from the structured index and fall back to a semantic
search when nothing matches.

Configuration is read from .smolex/config.yml under the root directory and
SMOLEX_* environment variables; .env.local and .env files in the root
directory are loaded into the environment first.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configureLogger(verbose)

		rootDir, err := resolveRootDir()
		if err != nil {
			return err
		}
		loaded, err := config.LoadEnvFiles(rootDir)
		if err != nil {
			return err
		}
		for _, path := range loaded {
			logger.WithField("file", path).Debug("loaded environment file")
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDirFlag, "root", "", "root directory of the codebase (default is the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// configureLogger sends logs to stderr so stdout stays free for command
// output and the MCP stdio transport.
func configureLogger(debug bool) {
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
}

// resolveRootDir returns the --root flag or the working directory.
func resolveRootDir() (string, error) {
	if rootDirFlag != "" {
		return rootDirFlag, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return wd, nil
}
