// Package jira fetches issues and their status changelogs from the
// Jira REST API, with nextPageToken pagination and a per-project
// flat-file cache in front of the network.
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// defaultTimeout bounds a single REST round trip.
const defaultTimeout = 60 * time.Second

// searchPageSize is the number of issues requested per search page.
const searchPageSize = 100

// projectPageSize is the number of projects requested per page.
const projectPageSize = 50

// Client executes authenticated requests against a Jira instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
	email      string
	apiToken   string
}

// NewClient creates a Jira REST client using basic auth.
func NewClient(baseURL, email, apiToken string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		email:      email,
		apiToken:   apiToken,
	}
}

// Get issues a GET request against endpoint and decodes the JSON
// response into out.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values, out any) error {
	target := c.baseURL + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if reqErr != nil {
		return fmt.Errorf("build request: %w", reqErr)
	}

	req.SetBasicAuth(c.email, c.apiToken)
	req.Header.Set("Accept", "application/json")

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return fmt.Errorf("execute request: %w", doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("jira: unexpected status %d for %s", resp.StatusCode, endpoint)
	}

	decodeErr := json.NewDecoder(resp.Body).Decode(out)
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}

	return nil
}

// Project identifies one tracker project.
type Project struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	ID   string `json:"id"`
}

// Projects pages through every project the account can access using
// startAt/isLast pagination.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var (
		projects []Project
		startAt  int
	)

	for {
		params := url.Values{}
		params.Set("startAt", strconv.Itoa(startAt))
		params.Set("maxResults", strconv.Itoa(projectPageSize))

		var page struct {
			Values []Project `json:"values"`
			IsLast bool      `json:"isLast"`
		}

		err := c.Get(ctx, "/rest/api/3/project/search", params, &page)
		if err != nil {
			return projects, fmt.Errorf("list projects: %w", err)
		}

		if len(page.Values) == 0 {
			break
		}

		projects = append(projects, page.Values...)

		if page.IsLast {
			break
		}

		startAt += len(page.Values)
	}

	return projects, nil
}

// searchPage is one page of the /search/jql endpoint.
type searchPage struct {
	Issues        []rawIssue `json:"issues"`
	NextPageToken string     `json:"nextPageToken"`
}

// SearchIssues runs one page of a JQL search with the changelog
// expanded. An empty nextPageToken requests the first page.
func (c *Client) SearchIssues(ctx context.Context, jql, nextPageToken string) (*searchPage, error) {
	params := url.Values{}
	params.Set("jql", jql)
	params.Set("maxResults", strconv.Itoa(searchPageSize))
	params.Set("expand", "changelog")
	params.Set("fields", "summary,assignee,status,created,updated,issuetype")

	if nextPageToken != "" {
		params.Set("nextPageToken", nextPageToken)
	}

	var page searchPage

	err := c.Get(ctx, "/rest/api/3/search/jql", params, &page)
	if err != nil {
		return nil, fmt.Errorf("search issues: %w", err)
	}

	return &page, nil
}
