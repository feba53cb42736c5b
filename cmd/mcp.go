package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wham/github-discussions/internal/config"
	"github.com/wham/github-discussions/internal/github"
	"github.com/wham/github-discussions/internal/logging"
	"github.com/wham/github-discussions/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start a Model Context Protocol server on stdin/stdout.

Tools:
  search_discussions  one page of matching discussions with a cursor
  get_discussion      one discussion as LLM-ready text`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().StringP("repo", "r", "", "Repository as owner/repo or GitHub URL (env GITHUB_REPOSITORY)")
	mcpCmd.Flags().StringP("token", "t", "", "GitHub token (env GITHUB_TOKEN)")
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoadOptions{Home: homeDir, Flags: cmd.Flags()})
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	repo, err := cfg.Repo()
	if err != nil {
		return err
	}

	// stdout carries the protocol
	logging.Discard()

	client, err := github.NewClient(cfg.Token)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return mcpserver.New(client, repo).Run(ctx, version)
}
