package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildDate = "unknown"

	homeDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "github-discussions",
	Short: "Fetch GitHub Discussions as LLM-ready text",
	Long: `github-discussions searches the discussions of a GitHub repository,
stores every matching discussion as JSON and turns it into a compact,
XML-like text that is ready to be handed to a language model.

Every run writes to a timestamped directory. Re-running with --resume
skips discussions that are already on disk.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&homeDir, "home", "m", "", "Home directory with .env and config.yaml (default: ~/.github-discussions)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log debug messages to the console")
}

// Execute runs the root command
func Execute(v, date string) {
	version, buildDate = v, date
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, buildDate)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
