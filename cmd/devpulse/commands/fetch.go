package commands

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const (
	noCacheFlag      = "no-cache"
	noCacheFlagUsage = "refetch every scope even when a cache file exists"
)

// NewFetchCommand creates the fetch subcommand.
func NewFetchCommand() *cobra.Command {
	var (
		configPath string
		verbose    bool
		noCache    bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch raw events and rebuild derived caches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(configPath, verbose)
			if err != nil {
				return err
			}

			results := a.runFetchStages(cmd.Context(), !noCache)

			failed := false

			for _, result := range results {
				if result.Success {
					color.New(color.FgGreen).Fprintf(os.Stdout, "  ok   %-20s %ss\n",
						result.Stage, humanize.FtoaWithDigits(result.Duration, 2))

					continue
				}

				failed = true

				color.New(color.FgRed).Fprintf(os.Stdout, "  FAIL %-20s %s\n", result.Stage, result.Error)
			}

			if failed {
				return fmt.Errorf("refresh incomplete: %d/%d stages ran", len(results), stageCount)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, configFlag, "", configFlagUsage)
	cmd.Flags().BoolVarP(&verbose, verboseFlag, "v", false, verboseFlagUsage)
	cmd.Flags().BoolVar(&noCache, noCacheFlag, false, noCacheFlagUsage)

	return cmd
}
