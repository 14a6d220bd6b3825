package jira

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/internal/eventcache"
)

// rawIssue is the wire shape of one search result with its changelog.
type rawIssue struct {
	Key    string `json:"key"`
	Fields struct {
		Summary  string `json:"summary"`
		Created  string `json:"created"`
		Updated  string `json:"updated"`
		Assignee *struct {
			AccountID    string `json:"accountId"`
			EmailAddress string `json:"emailAddress"`
			DisplayName  string `json:"displayName"`
		} `json:"assignee"`
		Status struct {
			Name string `json:"name"`
		} `json:"status"`
		IssueType struct {
			Name string `json:"name"`
		} `json:"issuetype"`
	} `json:"fields"`
	Changelog struct {
		Histories []struct {
			Created string `json:"created"`
			Items   []struct {
				Field      string `json:"field"`
				FromString string `json:"fromString"`
				ToString   string `json:"toString"`
			} `json:"items"`
		} `json:"histories"`
	} `json:"changelog"`
}

// toEvent flattens the wire shape into a cacheable issue record.
// Only status-field changelog entries survive the transform.
func (r rawIssue) toEvent(projectKey string) event.Issue {
	issue := event.Issue{
		Key:        r.Key,
		ProjectKey: projectKey,
		Summary:    r.Fields.Summary,
		Status:     r.Fields.Status.Name,
		IssueType:  r.Fields.IssueType.Name,
		Created:    r.Fields.Created,
		Updated:    r.Fields.Updated,
	}

	if r.Fields.Assignee != nil {
		issue.Assignee = &event.Assignee{
			AccountID:   r.Fields.Assignee.AccountID,
			DisplayName: r.Fields.Assignee.DisplayName,
			Email:       r.Fields.Assignee.EmailAddress,
		}
	}

	for _, history := range r.Changelog.Histories {
		for _, item := range history.Items {
			if item.Field != "status" {
				continue
			}

			issue.StatusTransitions = append(issue.StatusTransitions, event.StatusTransition{
				Timestamp:  history.Created,
				FromStatus: item.FromString,
				ToStatus:   item.ToString,
			})
		}
	}

	return issue
}

// IssueFetcher pulls issues per project, caching each project's
// result set under its own scope file.
type IssueFetcher struct {
	client *Client
	store  *eventcache.Store[event.Issue]
	logger *slog.Logger
	since  string
}

// NewIssueFetcher wires a fetcher to its client and cache store.
func NewIssueFetcher(client *Client, store *eventcache.Store[event.Issue], logger *slog.Logger, since string) *IssueFetcher {
	return &IssueFetcher{client: client, store: store, logger: logger, since: since}
}

// FetchProject pages through every issue of one project updated on or
// after the since date, oldest boundary first set by the JQL filter.
func (f *IssueFetcher) FetchProject(ctx context.Context, projectKey string) ([]event.Issue, error) {
	jql := fmt.Sprintf("project = %q AND updated >= %q ORDER BY updated DESC", projectKey, f.since)

	var (
		issues []event.Issue
		token  string
	)

	for {
		page, searchErr := f.client.SearchIssues(ctx, jql, token)
		if searchErr != nil {
			return issues, fmt.Errorf("fetch project %s: %w", projectKey, searchErr)
		}

		for _, raw := range page.Issues {
			issues = append(issues, raw.toEvent(projectKey))
		}

		if page.NextPageToken == "" {
			break
		}

		token = page.NextPageToken
	}

	return issues, nil
}

// FetchProjects fetches every listed project, serving cached scopes
// verbatim when useCache is set. A failing project is logged and keeps
// the pages gathered before the failure, so one broken scope cannot
// sink the whole run.
func (f *IssueFetcher) FetchProjects(ctx context.Context, projectKeys []string, useCache bool) (map[string][]event.Issue, error) {
	result := make(map[string][]event.Issue, len(projectKeys))

	keys := append([]string(nil), projectKeys...)
	sort.Strings(keys)

	for _, key := range keys {
		if useCache && f.store.Has(key) {
			cached, loadErr := f.store.Load(key)
			if loadErr == nil {
				f.logger.Info("issue cache hit", "project", key, "issues", len(cached))
				result[key] = cached

				continue
			}

			f.logger.Warn("issue cache unreadable, refetching", "project", key, "error", loadErr)
		}

		issues, fetchErr := f.FetchProject(ctx, key)
		if fetchErr != nil {
			f.logger.Warn("issue fetch failed, keeping partial results", "project", key, "error", fetchErr, "issues", len(issues))
		} else {
			f.logger.Info("issues fetched", "project", key, "issues", len(issues))
		}

		saveErr := f.store.Save(key, issues)
		if saveErr != nil {
			f.logger.Warn("issue cache write failed", "project", key, "error", saveErr)
		}

		result[key] = issues
	}

	return result, nil
}
