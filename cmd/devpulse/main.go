// Package main provides the entry point for the devpulse CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/devpulse/devpulse/cmd/devpulse/commands"
	"github.com/devpulse/devpulse/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "devpulse",
		Short: "Developer productivity dashboard backend",
		Long: `Devpulse fetches commit, pull request, and issue activity from
GitHub and Jira, aggregates it into per-user and per-repository
statistics, and serves the results over HTTP.

Commands:
  fetch      Fetch raw events and rebuild derived caches
  serve      Run the dashboard HTTP API
  export     Write derived datasets as CSV/JSON
  render     Render a user's activity chart as HTML
  map-users  Build the GitHub-to-Jira identity mapping table`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(commands.NewFetchCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewExportCommand())
	rootCmd.AddCommand(commands.NewRenderCommand())
	rootCmd.AddCommand(commands.NewMapUsersCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "devpulse %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
