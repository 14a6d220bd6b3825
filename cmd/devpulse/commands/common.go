// Package commands implements the devpulse CLI subcommands.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/devpulse/devpulse/internal/config"
	"github.com/devpulse/devpulse/internal/dashboard"
	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/internal/eventcache"
	"github.com/devpulse/devpulse/internal/mapping"
	"github.com/devpulse/devpulse/internal/observability"
	"github.com/devpulse/devpulse/internal/persist"
)

const (
	configFlag      = "config"
	configFlagUsage = "config file path (default: .devpulse.yaml in CWD or $HOME)"

	verboseFlag      = "verbose"
	verboseFlagUsage = "enable debug logging"
)

// app bundles the loaded configuration with the process logger and the
// flat-file stores every subcommand works against.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	commits *eventcache.Store[event.Commit]
	prs     *eventcache.Store[event.PullRequest]
	issues  *eventcache.Store[event.Issue]

	// pipeline is set by serve; one-shot commands run without metrics.
	pipeline *observability.PipelineMetrics

	dashOnce sync.Once
	dash     *dashboard.Service
}

// dashboards returns the process-wide snapshot service. HTTP handlers
// and the admin refresh stage must share one instance so a rebuild is
// visible to readers immediately.
func (a *app) dashboards() *dashboard.Service {
	a.dashOnce.Do(func() {
		a.dash = dashboard.NewService(a.commits, a.cfg.Data.DashboardDir(), a.logger)
	})

	return a.dash
}

// loadApp loads configuration and opens the event stores. Raw event
// caches use the LZ4-gob codec; full refreshes re-read every scope, so
// artifact size dominates rebuild cost.
func loadApp(configPath string, verbose bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	codec := persist.NewLZ4GobCodec()

	return &app{
		cfg:     cfg,
		logger:  logger,
		commits: eventcache.NewStore[event.Commit](cfg.Data.CommitCacheDir(), codec),
		prs:     eventcache.NewStore[event.PullRequest](cfg.Data.PRCacheDir(), codec),
		issues:  eventcache.NewStore[event.Issue](cfg.Data.IssueCacheDir(), codec),
	}, nil
}

// mappingStore opens the identity mapping table under the exports dir.
func (a *app) mappingStore() (*mapping.Store, error) {
	dir := filepath.Join(a.cfg.Data.ExportsDir(), "user_mapping")

	mkdirErr := os.MkdirAll(dir, 0o755)
	if mkdirErr != nil {
		return nil, fmt.Errorf("create mapping dir: %w", mkdirErr)
	}

	return mapping.NewStore(filepath.Join(dir, mapping.MappingFilename)), nil
}
