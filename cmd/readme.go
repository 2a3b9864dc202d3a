package cmd

import (
	"fmt"

	"github.com/dani-ai/dani/internal/github"
	"github.com/spf13/cobra"
)

var readmeCmd = &cobra.Command{
	Use:   "readme <github-url>",
	Short: "Fetch and print a repository README",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := github.NewClient(cfg.GitHub.BaseURL, github.WithRateLimit(cfg.GitHub.RPS, cfg.GitHub.Burst))

		body, err := c.FetchReadme(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), body)
		return nil
	},
}
