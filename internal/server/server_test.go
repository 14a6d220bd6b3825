package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpulse/devpulse/internal/config"
	"github.com/devpulse/devpulse/internal/dashboard"
	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/internal/eventcache"
	"github.com/devpulse/devpulse/internal/mapping"
	"github.com/devpulse/devpulse/internal/persist"
)

const testAdminKey = "test-admin-key"

type fixture struct {
	server      *Server
	commitStore *eventcache.Store[event.Commit]
	prStore     *eventcache.Store[event.PullRequest]
	issueStore  *eventcache.Store[event.Issue]
}

func newFixture(t *testing.T, fetch FetchRunner) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	commitStore := eventcache.NewStore[event.Commit](t.TempDir(), persist.NewJSONCodec())
	prStore := eventcache.NewStore[event.PullRequest](t.TempDir(), persist.NewJSONCodec())
	issueStore := eventcache.NewStore[event.Issue](t.TempDir(), persist.NewJSONCodec())

	require.NoError(t, commitStore.Save("acme/api", []event.Commit{
		{SHA: "c1", Repository: "acme/api", Author: "alice", Date: "2024-03-01T10:00:00Z", Additions: 10, Deletions: 3},
		{SHA: "c2", Repository: "acme/api", Author: "bob", Date: "2024-03-02T10:00:00Z", Additions: 5, Deletions: 1},
	}))

	require.NoError(t, prStore.Save("acme/api", []event.PullRequest{
		{
			Number: 1, Repository: "acme/api", Title: "First", Author: "alice",
			State: event.StateMerged, CreatedAt: "2024-03-01T00:00:00Z", MergedAt: "2024-03-02T00:00:00Z",
			Additions: 10, Deletions: 2,
		},
		{
			Number: 2, Repository: "acme/api", Title: "Second", Author: "bob",
			State: event.StateOpen, CreatedAt: "2024-04-01T00:00:00Z",
		},
	}))

	require.NoError(t, issueStore.Save("ALPHA", []event.Issue{
		{
			Key:        "ALPHA-1",
			ProjectKey: "ALPHA",
			Status:     "Done",
			Assignee:   &event.Assignee{Email: "alice@example.com"},
			StatusTransitions: []event.StatusTransition{
				{Timestamp: "2024-03-01T09:00:00", FromStatus: "To Do", ToStatus: "In Progress"},
				{Timestamp: "2024-03-01T17:00:00", FromStatus: "In Progress", ToStatus: "Done"},
			},
		},
	}))

	mapStore := mapping.NewStore(filepath.Join(t.TempDir(), mapping.MappingFilename))
	require.NoError(t, mapStore.Write([]mapping.Mapping{
		{Source: "alice", Tracker: "alice@example.com"},
	}))

	srv := New(Options{
		Config:     config.ServerConfig{AdminAPIKey: testAdminKey},
		Logger:     logger,
		Dashboards: dashboard.NewService(commitStore, t.TempDir(), logger),
		PRStore:    prStore,
		IssueStore: issueStore,
		Mappings:   mapStore,
		Fetch:      fetch,
	})

	return &fixture{server: srv, commitStore: commitStore, prStore: prStore, issueStore: issueStore}
}

func doRequest(t *testing.T, handler http.Handler, method, target string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func TestUsersEndpoint(t *testing.T) {
	t.Parallel()

	router := newFixture(t, nil).server.Router()

	rec := doRequest(t, router, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var users []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	assert.Equal(t, []string{"alice", "bob"}, users)
}

func TestDailyStatsEndpoint(t *testing.T) {
	t.Parallel()

	router := newFixture(t, nil).server.Router()

	rec := doRequest(t, router, http.MethodGet, "/api/daily-stats?user=alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var daily map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &daily))
	require.Contains(t, daily, "2024-03-01")
	assert.EqualValues(t, 1, daily["2024-03-01"]["commits"])

	rec = doRequest(t, router, http.MethodGet, "/api/daily-stats?user=nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestSummaryEndpointAllUsers(t *testing.T) {
	t.Parallel()

	router := newFixture(t, nil).server.Router()

	rec := doRequest(t, router, http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload map[string]struct {
		Summary struct {
			TotalCommits int `json:"total_commits"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	require.Contains(t, payload, "alice")
	assert.Equal(t, 1, payload["alice"].Summary.TotalCommits)
}

func TestTimelineEndpointDefaultsToFirstUser(t *testing.T) {
	t.Parallel()

	router := newFixture(t, nil).server.Router()

	rec := doRequest(t, router, http.MethodGet, "/api/timeline", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Username string `json:"username"`
		Timeline []struct {
			Date    string `json:"date"`
			Commits int    `json:"commits"`
		} `json:"timeline"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "alice", payload.Username)
	require.Len(t, payload.Timeline, 1)
	assert.Equal(t, "2024-03-01", payload.Timeline[0].Date)
}

func TestRefreshEndpointPicksUpNewCommits(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	router := fx.server.Router()

	rec := doRequest(t, router, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, fx.commitStore.Save("acme/cli", []event.Commit{
		{SHA: "c3", Repository: "acme/cli", Author: "carol", Date: "2024-03-05T10:00:00Z", Additions: 1},
	}))

	rec = doRequest(t, router, http.MethodPost, "/api/refresh", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Success bool     `json:"success"`
		Users   []string `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.True(t, payload.Success)
	assert.Equal(t, []string{"alice", "bob", "carol"}, payload.Users)
}

func TestUserMappingsEndpoint(t *testing.T) {
	t.Parallel()

	router := newFixture(t, nil).server.Router()

	rec := doRequest(t, router, http.MethodGet, "/api/user-mappings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var mappings []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mappings))
	require.Len(t, mappings, 1)
	assert.Equal(t, "alice", mappings[0]["github"])
	assert.Equal(t, "alice@example.com", mappings[0]["jira"])
}

func TestPREndpoints(t *testing.T) {
	t.Parallel()

	router := newFixture(t, nil).server.Router()

	rec := doRequest(t, router, http.MethodGet, "/api/pr/repositories", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `["acme/api"]`, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/api/pr/stats", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/api/pr/stats?repo=acme/api", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var summary struct {
		TotalPRs  int      `json:"total_prs"`
		OpenPRs   int      `json:"open_prs"`
		MergedPRs int      `json:"merged_prs"`
		AvgOpen   *float64 `json:"avg_time_open_hours"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.TotalPRs)
	assert.Equal(t, 1, summary.OpenPRs)
	assert.Equal(t, 1, summary.MergedPRs)
	require.NotNil(t, summary.AvgOpen)
	assert.InDelta(t, 24, *summary.AvgOpen, 0.01)

	rec = doRequest(t, router, http.MethodGet, "/api/pr/stats/monthly?repo=acme/api", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var monthly []struct {
		Month   string `json:"month"`
		PRCount int    `json:"pr_count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &monthly))
	require.Len(t, monthly, 2)
	assert.Equal(t, "2024-03", monthly[0].Month)
	assert.Equal(t, "2024-04", monthly[1].Month)
}

func TestJiraEndpoints(t *testing.T) {
	t.Parallel()

	router := newFixture(t, nil).server.Router()

	rec := doRequest(t, router, http.MethodGet, "/api/jira/cycles", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cycles []map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cycles))
	require.Len(t, cycles, 1)
	assert.Equal(t, "ALPHA-1", cycles[0]["key"])

	// Email filter excludes non-matching assignees.
	rec = doRequest(t, router, http.MethodGet, "/api/jira/cycles?email=other@example.com", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = doRequest(t, router, http.MethodGet, "/api/jira/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cstats cycleStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cstats))
	assert.Equal(t, 1, cstats.TotalCycles)
	assert.InDelta(t, 8, cstats.MeanHours, 0.01)
}

func TestAdminFetchAuth(t *testing.T) {
	t.Parallel()

	ran := false
	fetch := func(context.Context) []StageResult {
		ran = true

		return []StageResult{{Stage: "github_commits", Success: true}}
	}

	router := newFixture(t, fetch).server.Router()

	rec := doRequest(t, router, http.MethodPost, "/api/admin/fetch", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, ran)

	rec = doRequest(t, router, http.MethodPost, "/api/admin/fetch", map[string]string{apiKeyHeader: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, router, http.MethodPost, "/api/admin/fetch", map[string]string{apiKeyHeader: testAdminKey})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ran)

	var payload struct {
		Success bool          `json:"success"`
		Results []StageResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.True(t, payload.Success)
	require.Len(t, payload.Results, 1)
	assert.Equal(t, "github_commits", payload.Results[0].Stage)
}

func TestAdminFetchDisabledWithoutKey(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.server.cfg.AdminAPIKey = ""
	router := fx.server.Router()

	rec := doRequest(t, router, http.MethodPost, "/api/admin/fetch", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAdminFetchReportsStageFailure(t *testing.T) {
	t.Parallel()

	fetch := func(context.Context) []StageResult {
		return []StageResult{
			{Stage: "github_commits", Success: true},
			{Stage: "jira_issues", Success: false, Error: "boom"},
		}
	}

	router := newFixture(t, fetch).server.Router()

	rec := doRequest(t, router, http.MethodPost, "/api/admin/fetch", map[string]string{apiKeyHeader: testAdminKey})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	router := newFixture(t, nil).server.Router()

	rec := doRequest(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCacheInfoEndpoint(t *testing.T) {
	t.Parallel()

	router := newFixture(t, nil).server.Router()

	rec := doRequest(t, router, http.MethodGet, "/api/cache-info", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Users []string `json:"users"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, []string{"alice", "bob"}, payload.Users)
}
