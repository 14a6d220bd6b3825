package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpulse/devpulse/internal/dashboard"
	"github.com/devpulse/devpulse/internal/stats"
)

func sampleSnapshot() *dashboard.Snapshot {
	daily := stats.Daily{
		"2024-03-01": {Commits: 2, Additions: 110, Deletions: 45, NetLines: 65, Repositories: []string{"acme/api"}},
	}

	return &dashboard.Snapshot{
		GeneratedAt: time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
		Users: map[string]*dashboard.UserStats{
			"alice": {Daily: daily, Summary: stats.Summarize(daily)},
		},
	}
}

func TestSnapshotJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	basename, err := SnapshotJSON(dir, sampleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "daily_stats_2024-03-15", basename)

	raw, readErr := os.ReadFile(filepath.Join(dir, basename+".json"))
	require.NoError(t, readErr)

	var decoded dashboard.Snapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Contains(t, decoded.Users, "alice")
	assert.Equal(t, 2, decoded.Users["alice"].Summary.TotalCommits)
}

func TestSnapshotCSV(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	filename, err := SnapshotCSV(dir, sampleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "daily_stats_2024-03-15.csv", filename)

	raw, readErr := os.ReadFile(filepath.Join(dir, filename))
	require.NoError(t, readErr)

	assert.Contains(t, string(raw), "username,date,commits")
	assert.Contains(t, string(raw), "alice,2024-03-01,2,110,45,65,acme/api")
}
