package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/devpulse/devpulse/internal/dashboard"
	"github.com/devpulse/devpulse/internal/export"
)

// NewExportCommand creates the export subcommand. It writes the PR
// metrics table, the issue cycles table, and dated snapshot exports,
// then prints a per-user summary.
func NewExportCommand() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write derived datasets as CSV/JSON",
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := loadApp(configPath, verbose)
			if err != nil {
				return err
			}

			return a.export()
		},
	}

	cmd.Flags().StringVar(&configPath, configFlag, "", configFlagUsage)
	cmd.Flags().BoolVarP(&verbose, verboseFlag, "v", false, verboseFlagUsage)

	return cmd
}

func (a *app) export() error {
	service := a.dashboards()

	snapshot, refreshErr := service.Refresh(false)
	if refreshErr != nil {
		return fmt.Errorf("load snapshot: %w", refreshErr)
	}

	exportsDir := a.cfg.Data.ExportsDir()

	jsonName, jsonErr := export.SnapshotJSON(exportsDir, snapshot)
	if jsonErr != nil {
		return jsonErr
	}

	csvName, csvErr := export.SnapshotCSV(exportsDir, snapshot)
	if csvErr != nil {
		return csvErr
	}

	prRows, prErr := export.BuildPRTable(a.prs, exportsDir, time.Now())
	if prErr != nil {
		return prErr
	}

	cyclesErr := a.rebuildCycles(context.Background())
	if cyclesErr != nil {
		return cyclesErr
	}

	a.logger.Info("exports written",
		"dir", exportsDir,
		"snapshot_json", jsonName+".json",
		"snapshot_csv", csvName,
		"pr_rows", len(prRows),
	)

	printSummaryTable(snapshot)

	return nil
}

func printSummaryTable(snapshot *dashboard.Snapshot) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"User", "Commits", "Additions", "Deletions", "Net", "Active Days"})

	for _, username := range snapshot.Usernames() {
		s := snapshot.Users[username].Summary
		tbl.AppendRow(table.Row{
			username,
			humanize.Comma(int64(s.TotalCommits)),
			humanize.Comma(int64(s.TotalAdditions)),
			humanize.Comma(int64(s.TotalDeletions)),
			humanize.Comma(int64(s.NetLines)),
			s.TotalDays,
		})
	}

	tbl.Render()
}
