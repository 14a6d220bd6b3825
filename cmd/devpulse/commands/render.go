package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/spf13/cobra"

	"github.com/devpulse/devpulse/internal/dashboard"
	"github.com/devpulse/devpulse/internal/stats"
)

const (
	userFlag      = "user"
	userFlagUsage = "username to render (default: first user)"

	outputFlag      = "output"
	outputFlagShort = "o"
	outputFlagUsage = "output HTML file"

	defaultRenderOutput = "activity.html"

	renderChartWidth  = "1200px"
	renderChartHeight = "600px"
)

// ErrNoUsers is returned when the snapshot holds no user activity.
var ErrNoUsers = errors.New("no users in snapshot")

// NewRenderCommand creates the render subcommand.
func NewRenderCommand() *cobra.Command {
	var (
		configPath string
		verbose    bool
		username   string
		output     string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a user's activity chart as HTML",
		RunE: func(_ *cobra.Command, _ []string) error {
			a, err := loadApp(configPath, verbose)
			if err != nil {
				return err
			}

			return a.render(username, output)
		},
	}

	cmd.Flags().StringVar(&configPath, configFlag, "", configFlagUsage)
	cmd.Flags().BoolVarP(&verbose, verboseFlag, "v", false, verboseFlagUsage)
	cmd.Flags().StringVar(&username, userFlag, "", userFlagUsage)
	cmd.Flags().StringVarP(&output, outputFlag, outputFlagShort, defaultRenderOutput, outputFlagUsage)

	return cmd
}

func (a *app) render(username, output string) error {
	service := a.dashboards()

	snapshot, refreshErr := service.Refresh(false)
	if refreshErr != nil {
		return fmt.Errorf("load snapshot: %w", refreshErr)
	}

	if username == "" {
		usernames := snapshot.Usernames()
		if len(usernames) == 0 {
			return ErrNoUsers
		}

		username = usernames[0]
	}

	user, ok := snapshot.User(username)
	if !ok {
		return fmt.Errorf("user %s not found in snapshot", username)
	}

	line := buildActivityChart(username, user)

	mkdirErr := os.MkdirAll(filepath.Dir(filepath.Clean(output)), 0o755)
	if mkdirErr != nil {
		return fmt.Errorf("create output dir: %w", mkdirErr)
	}

	file, createErr := os.Create(output)
	if createErr != nil {
		return fmt.Errorf("create output file: %w", createErr)
	}
	defer file.Close()

	renderErr := line.Render(file)
	if renderErr != nil {
		return fmt.Errorf("render chart: %w", renderErr)
	}

	a.logger.Info("chart rendered", "user", username, "output", output)

	return nil
}

func buildActivityChart(username string, user *dashboard.UserStats) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: renderChartWidth, Height: renderChartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Daily activity: " + username,
			Subtitle: "Commits and net line changes per active day",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)

	dates := stats.Dates(user.Daily)

	commits := make([]opts.LineData, 0, len(dates))
	netLines := make([]opts.LineData, 0, len(dates))

	for _, date := range dates {
		stat := user.Daily[date]
		commits = append(commits, opts.LineData{Value: stat.Commits})
		netLines = append(netLines, opts.LineData{Value: stat.NetLines})
	}

	line.SetXAxis(dates).
		AddSeries("Commits", commits).
		AddSeries("Net lines", netLines)

	return line
}
