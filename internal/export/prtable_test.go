package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpulse/devpulse/internal/cycle"
	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/internal/eventcache"
	"github.com/devpulse/devpulse/internal/persist"
)

var exportNow = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func seedPRStore(t *testing.T) *eventcache.Store[event.PullRequest] {
	t.Helper()

	store := eventcache.NewStore[event.PullRequest](t.TempDir(), persist.NewJSONCodec())

	require.NoError(t, store.Save("acme/api", []event.PullRequest{
		{
			Number: 2, Repository: "acme/api", Title: "Add cache", Author: "alice",
			State: event.StateMerged, CreatedAt: "2024-03-01T00:00:00Z", MergedAt: "2024-03-02T00:00:00Z",
			Additions: 10, Deletions: 4,
			Reviews: []event.Review{{Author: "bob", SubmittedAt: "2024-03-01T12:00:00Z", State: "APPROVED"}},
		},
		{
			Number: 1, Repository: "acme/api", Title: "Bootstrap", Author: "bob",
			State: event.StateOpen, CreatedAt: "2024-03-30T00:00:00Z",
		},
	}))

	return store
}

func TestBuildPRTableSortsAndComputesMetrics(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	rows, err := BuildPRTable(seedPRStore(t), dir, exportNow)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// Sorted by repository then number.
	assert.Equal(t, 1, rows[0].Number)
	assert.Equal(t, 2, rows[1].Number)

	merged := rows[1]
	require.NotNil(t, merged.TimeOpenHours)
	assert.InDelta(t, 24, *merged.TimeOpenHours, 0.01)
	require.NotNil(t, merged.TimeToFirstReviewHours)
	assert.InDelta(t, 12, *merged.TimeToFirstReviewHours, 0.01)
	assert.Equal(t, 1, merged.ReviewerCount)
	assert.Equal(t, 14, merged.Size)

	// Open PR measures against now and has no review metric.
	open := rows[0]
	require.NotNil(t, open.TimeOpenHours)
	assert.InDelta(t, 48, *open.TimeOpenHours, 0.01)
	assert.Nil(t, open.TimeToFirstReviewHours)
}

func TestPRTableLoaderCachesByModTime(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, buildErr := BuildPRTable(seedPRStore(t), dir, exportNow)
	require.NoError(t, buildErr)

	loader := NewPRTableLoader(dir)

	first, firstErr := loader.Load()
	require.NoError(t, firstErr)
	require.Len(t, first, 2)
	assert.Equal(t, "Bootstrap", first[0].Title)

	// Unchanged mtime serves the cached slice.
	again, againErr := loader.Load()
	require.NoError(t, againErr)
	assert.Same(t, &first[0], &again[0])

	// Touching the file with new content forces a re-read.
	path := filepath.Join(dir, PRTableFilename)
	raw := "repository,number,title,author,state,created_at,merged_at,closed_at,time_open_hours,time_to_first_review_hours,reviewer_count,size\n" +
		"acme/api,7,Rewrite,carol,OPEN,2024-03-31T00:00:00Z,,,24.00,,0,3\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	reloaded, reloadErr := loader.Load()
	require.NoError(t, reloadErr)
	require.Len(t, reloaded, 1)
	assert.Equal(t, "Rewrite", reloaded[0].Title)
	require.NotNil(t, reloaded[0].TimeOpenHours)
	assert.InDelta(t, 24, *reloaded[0].TimeOpenHours, 0.001)
}

func TestWriteCycles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cycles := []cycle.Cycle{
		{
			IssueKey:      "ALPHA-1",
			AssigneeEmail: "dev@example.com",
			EnteredAt:     "2024-03-01T09:00:00Z",
			LeftAt:        "2024-03-01T15:30:00Z",
		},
	}

	require.NoError(t, WriteCycles(dir, cycles))

	raw, readErr := os.ReadFile(filepath.Join(dir, CyclesFilename))
	require.NoError(t, readErr)

	assert.Contains(t, string(raw), "key,assignee_email,in_progress_at,out_of_progress_at,duration_hours")
	assert.Contains(t, string(raw), "ALPHA-1,dev@example.com,2024-03-01T09:00:00Z,2024-03-01T15:30:00Z,6.50")
}
