package jira

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/internal/eventcache"
	"github.com/devpulse/devpulse/internal/persist"
)

const (
	testEmail = "bot@example.com"
	testToken = "secret-token"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newIssueStore(t *testing.T) *eventcache.Store[event.Issue] {
	t.Helper()

	return eventcache.NewStore[event.Issue](t.TempDir(), persist.NewJSONCodec())
}

func TestProjectsPagination(t *testing.T) {
	t.Parallel()

	pages := []string{
		`{"values":[{"key":"ALPHA","name":"Alpha","id":"1"},{"key":"BETA","name":"Beta","id":"2"}],"isLast":false}`,
		`{"values":[{"key":"GAMMA","name":"Gamma","id":"3"}],"isLast":true}`,
	}

	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/3/project/search", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, testEmail, user)
		assert.Equal(t, testToken, pass)

		require.Less(t, calls, len(pages))
		_, _ = w.Write([]byte(pages[calls]))
		calls++
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testEmail, testToken)

	projects, err := client.Projects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 3)
	assert.Equal(t, "GAMMA", projects[2].Key)
	assert.Equal(t, 2, calls)
}

func TestGetRejectsNonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testEmail, testToken)

	var out map[string]any

	err := client.Get(context.Background(), "/rest/api/3/myself", nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func searchHandler(t *testing.T, pagesByToken map[string]string) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/rest/api/3/search/jql", r.URL.Path)
		assert.Equal(t, "changelog", r.URL.Query().Get("expand"))

		body, ok := pagesByToken[r.URL.Query().Get("nextPageToken")]
		require.True(t, ok, "unexpected page token")
		_, _ = w.Write([]byte(body))
	}
}

func TestFetchProjectTransformsChangelog(t *testing.T) {
	t.Parallel()

	page := map[string]any{
		"issues": []map[string]any{
			{
				"key": "ALPHA-1",
				"fields": map[string]any{
					"summary": "Ship the widget",
					"created": "2024-03-01T09:00:00.000-0600",
					"updated": "2024-03-04T17:00:00.000-0600",
					"assignee": map[string]any{
						"emailAddress": "dev@example.com",
						"displayName":  "Dev Eloper",
					},
					"status":    map[string]any{"name": "Done"},
					"issuetype": map[string]any{"name": "Story"},
				},
				"changelog": map[string]any{
					"histories": []map[string]any{
						{
							"created": "2024-03-02T10:00:00.000-0600",
							"items": []map[string]any{
								{"field": "assignee", "fromString": "", "toString": "Dev Eloper"},
								{"field": "status", "fromString": "To Do", "toString": "In Progress"},
							},
						},
						{
							"created": "2024-03-04T16:00:00.000-0600",
							"items": []map[string]any{
								{"field": "status", "fromString": "In Progress", "toString": "Done"},
							},
						},
					},
				},
			},
		},
	}

	raw, marshalErr := json.Marshal(page)
	require.NoError(t, marshalErr)

	srv := httptest.NewServer(searchHandler(t, map[string]string{"": string(raw)}))
	defer srv.Close()

	client := NewClient(srv.URL, testEmail, testToken)
	fetcher := NewIssueFetcher(client, newIssueStore(t), discardLogger(), "2024-01-01")

	issues, err := fetcher.FetchProject(context.Background(), "ALPHA")
	require.NoError(t, err)
	require.Len(t, issues, 1)

	issue := issues[0]
	assert.Equal(t, "ALPHA-1", issue.Key)
	assert.Equal(t, "ALPHA", issue.ProjectKey)
	assert.Equal(t, "Done", issue.Status)
	assert.Equal(t, "dev@example.com", issue.AssigneeEmail())

	require.Len(t, issue.StatusTransitions, 2)
	assert.Equal(t, "In Progress", issue.StatusTransitions[0].ToStatus)
	assert.Equal(t, "Done", issue.StatusTransitions[1].ToStatus)
}

func TestFetchProjectFollowsPageToken(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"":      `{"issues":[{"key":"ALPHA-1","fields":{"summary":"a","created":"","updated":"","status":{"name":"Done"},"issuetype":{"name":"Task"}},"changelog":{"histories":[]}}],"nextPageToken":"tok-2"}`,
		"tok-2": `{"issues":[{"key":"ALPHA-2","fields":{"summary":"b","created":"","updated":"","status":{"name":"Done"},"issuetype":{"name":"Task"}},"changelog":{"histories":[]}}]}`,
	}

	srv := httptest.NewServer(searchHandler(t, pages))
	defer srv.Close()

	client := NewClient(srv.URL, testEmail, testToken)
	fetcher := NewIssueFetcher(client, newIssueStore(t), discardLogger(), "2024-01-01")

	issues, err := fetcher.FetchProject(context.Background(), "ALPHA")
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "ALPHA-2", issues[1].Key)
}

func TestFetchProjectsUsesCacheVerbatim(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("network must not be touched on a cache hit")
	}))
	defer srv.Close()

	store := newIssueStore(t)
	cached := []event.Issue{{Key: "ALPHA-9", ProjectKey: "ALPHA", Status: "Done"}}
	require.NoError(t, store.Save("ALPHA", cached))

	client := NewClient(srv.URL, testEmail, testToken)
	fetcher := NewIssueFetcher(client, store, discardLogger(), "2024-01-01")

	result, err := fetcher.FetchProjects(context.Background(), []string{"ALPHA"}, true)
	require.NoError(t, err)
	assert.Equal(t, cached, result["ALPHA"])
}

func TestFetchProjectsIsolatesFailures(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jql := r.URL.Query().Get("jql")
		if jql == `project = "BAD" AND updated >= "2024-01-01" ORDER BY updated DESC` {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		_, _ = w.Write([]byte(`{"issues":[{"key":"GOOD-1","fields":{"summary":"ok","created":"","updated":"","status":{"name":"Done"},"issuetype":{"name":"Task"}},"changelog":{"histories":[]}}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, testEmail, testToken)
	fetcher := NewIssueFetcher(client, newIssueStore(t), discardLogger(), "2024-01-01")

	result, err := fetcher.FetchProjects(context.Background(), []string{"GOOD", "BAD"}, false)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "GOOD-1", result["GOOD"][0].Key)
	assert.Empty(t, result["BAD"])
}

func TestFetchProjectsKeepsPagesGatheredBeforeFailure(t *testing.T) {
	t.Parallel()

	var calls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("nextPageToken") == "tok-2" {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		_, _ = w.Write([]byte(`{"issues":[{"key":"ALPHA-1","fields":{"summary":"a","created":"","updated":"","status":{"name":"Done"},"issuetype":{"name":"Task"}},"changelog":{"histories":[]}}],"nextPageToken":"tok-2"}`))
	}))
	defer srv.Close()

	store := newIssueStore(t)
	client := NewClient(srv.URL, testEmail, testToken)
	fetcher := NewIssueFetcher(client, store, discardLogger(), "2024-01-01")

	result, err := fetcher.FetchProjects(context.Background(), []string{"ALPHA"}, false)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Len(t, result["ALPHA"], 1)
	assert.Equal(t, "ALPHA-1", result["ALPHA"][0].Key)

	cached, loadErr := store.Load("ALPHA")
	require.NoError(t, loadErr)
	require.Len(t, cached, 1)
	assert.Equal(t, "ALPHA-1", cached[0].Key)
}
