package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/wham/github-discussions/internal/config"
	"github.com/wham/github-discussions/internal/github"
	"github.com/wham/github-discussions/internal/login"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with GitHub",
	Long: `Authenticate with GitHub through the device flow.

The token and an optional default repository are written to the .env file
of the home directory, where fetch and mcp pick them up.

Login needs an OAuth App of your own with device flow enabled
(GitHub settings, Developer settings, OAuth Apps). Pass its client ID with
--client-id, GITHUB_DISCUSSIONS_CLIENT_ID or client_id in config.yaml.`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().String("client-id", "", "OAuth App client ID (env GITHUB_DISCUSSIONS_CLIENT_ID)")
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.LoadOptions{Home: homeDir, Flags: cmd.Flags()})
	if err != nil {
		return err
	}

	return login.Run(cmd.Context(), login.Options{
		EnvPath:    cfg.EnvPath(),
		ClientID:   cfg.ClientID,
		Repository: cfg.Repository,
		Verify:     verifyToken,
	})
}

func verifyToken(ctx context.Context, token string) (string, error) {
	client, err := github.NewClient(token)
	if err != nil {
		return "", err
	}
	return client.Viewer(ctx)
}
