// Package github fetches commit and pull request history from the
// GitHub GraphQL API, one paginated query loop per repository, with a
// per-scope flat-file cache in front of the network.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrGraphQL reports that the API returned an errors payload.
var ErrGraphQL = errors.New("github: graphql error")

// defaultTimeout bounds a single GraphQL round trip.
const defaultTimeout = 60 * time.Second

// pageSize is the number of nodes requested per page.
const pageSize = 100

// Client executes GraphQL queries against the GitHub API.
type Client struct {
	httpClient *http.Client
	url        string
	token      string
}

// NewClient creates a GraphQL client for the given endpoint and token.
func NewClient(url, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		url:        url,
		token:      token,
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Execute runs a GraphQL query and decodes the data payload into out.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]any, out any) error {
	body, marshalErr := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if marshalErr != nil {
		return fmt.Errorf("marshal query: %w", marshalErr)
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if reqErr != nil {
		return fmt.Errorf("build request: %w", reqErr)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, doErr := c.httpClient.Do(req)
	if doErr != nil {
		return fmt.Errorf("execute query: %w", doErr)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github: unexpected status %d", resp.StatusCode)
	}

	var envelope graphQLResponse

	decodeErr := json.NewDecoder(resp.Body).Decode(&envelope)
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}

	if len(envelope.Errors) > 0 {
		return fmt.Errorf("%w: %s", ErrGraphQL, envelope.Errors[0].Message)
	}

	unmarshalErr := json.Unmarshal(envelope.Data, out)
	if unmarshalErr != nil {
		return fmt.Errorf("decode data: %w", unmarshalErr)
	}

	return nil
}

// pageInfo carries the cursor state of one paginated connection.
type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// repoNode identifies one repository of an organization.
type repoNode struct {
	Name  string `json:"name"`
	Owner struct {
		Login string `json:"login"`
	} `json:"owner"`
}

const orgReposQuery = `
query($org: String!, $cursor: String) {
  organization(login: $org) {
    repositories(first: 100, after: $cursor) {
      nodes {
        name
        owner {
          login
        }
      }
      pageInfo {
        hasNextPage
        endCursor
      }
    }
  }
}
`

// ListOrgRepos pages through all repositories of an organization.
func (c *Client) ListOrgRepos(ctx context.Context, org string) ([]string, error) {
	var (
		repos  []string
		cursor *string
	)

	for {
		var data struct {
			Organization *struct {
				Repositories struct {
					Nodes    []repoNode `json:"nodes"`
					PageInfo pageInfo   `json:"pageInfo"`
				} `json:"repositories"`
			} `json:"organization"`
		}

		err := c.Execute(ctx, orgReposQuery, map[string]any{"org": org, "cursor": cursor}, &data)
		if err != nil {
			return repos, fmt.Errorf("list repos for %s: %w", org, err)
		}

		if data.Organization == nil {
			break
		}

		for _, node := range data.Organization.Repositories.Nodes {
			repos = append(repos, node.Name)
		}

		page := data.Organization.Repositories.PageInfo
		if !page.HasNextPage {
			break
		}

		cursor = &page.EndCursor
	}

	return repos, nil
}
