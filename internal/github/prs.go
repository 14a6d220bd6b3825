package github

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/internal/eventcache"
)

const prsQuery = `
query($owner: String!, $name: String!, $cursor: String) {
  repository(owner: $owner, name: $name) {
    pullRequests(first: 100, after: $cursor, orderBy: {field: CREATED_AT, direction: ASC}) {
      nodes {
        number
        title
        state
        createdAt
        closedAt
        mergedAt
        additions
        deletions
        changedFiles
        author {
          login
        }
        reviews(first: 20) {
          nodes {
            author {
              login
            }
            submittedAt
            state
          }
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

type prNode struct {
	Number       int    `json:"number"`
	Title        string `json:"title"`
	State        string `json:"state"`
	CreatedAt    string `json:"createdAt"`
	ClosedAt     string `json:"closedAt"`
	MergedAt     string `json:"mergedAt"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	ChangedFiles int    `json:"changedFiles"`
	Author       *struct {
		Login string `json:"login"`
	} `json:"author"`
	Reviews struct {
		Nodes []struct {
			Author *struct {
				Login string `json:"login"`
			} `json:"author"`
			SubmittedAt string `json:"submittedAt"`
			State       string `json:"state"`
		} `json:"nodes"`
	} `json:"reviews"`
}

func (n *prNode) actor() string {
	if n.Author == nil || n.Author.Login == "" {
		return event.AuthorUnknown
	}

	return n.Author.Login
}

func (n *prNode) toEvent(scope string) event.PullRequest {
	reviews := make([]event.Review, 0, len(n.Reviews.Nodes))

	for _, review := range n.Reviews.Nodes {
		reviewer := event.AuthorUnknown
		if review.Author != nil && review.Author.Login != "" {
			reviewer = review.Author.Login
		}

		reviews = append(reviews, event.Review{
			Author:      reviewer,
			SubmittedAt: review.SubmittedAt,
			State:       review.State,
		})
	}

	return event.PullRequest{
		Number:       n.Number,
		Repository:   scope,
		Title:        n.Title,
		Author:       n.actor(),
		State:        n.State,
		CreatedAt:    n.CreatedAt,
		ClosedAt:     n.ClosedAt,
		MergedAt:     n.MergedAt,
		Additions:    n.Additions,
		Deletions:    n.Deletions,
		ChangedFiles: n.ChangedFiles,
		Reviews:      reviews,
	}
}

// PRFetcher fetches pull request history per organization with a
// per-scope cache in front of the API.
type PRFetcher struct {
	client *Client
	store  *eventcache.Store[event.PullRequest]
	logger *slog.Logger
	since  string
}

// NewPRFetcher creates a pull request fetcher. since is the ISO date
// below which PRs are dropped client-side (the PR connection has no
// server-side since filter).
func NewPRFetcher(client *Client, store *eventcache.Store[event.PullRequest], logger *slog.Logger, since string) *PRFetcher {
	return &PRFetcher{client: client, store: store, logger: logger, since: since}
}

// FetchRepo pages through a repository's pull requests ascending by
// creation time, dropping PRs created before the cutoff.
func (f *PRFetcher) FetchRepo(ctx context.Context, owner, name string) ([]event.PullRequest, error) {
	var (
		prs    []event.PullRequest
		cursor *string
	)

	scope := owner + "/" + name

	for {
		var data struct {
			Repository *struct {
				PullRequests struct {
					Nodes    []prNode `json:"nodes"`
					PageInfo pageInfo `json:"pageInfo"`
				} `json:"pullRequests"`
			} `json:"repository"`
		}

		variables := map[string]any{"owner": owner, "name": name, "cursor": cursor}

		err := f.client.Execute(ctx, prsQuery, variables, &data)
		if err != nil {
			return prs, fmt.Errorf("fetch prs for %s: %w", scope, err)
		}

		if data.Repository == nil {
			break
		}

		connection := data.Repository.PullRequests
		if len(connection.Nodes) == 0 {
			break
		}

		for i := range connection.Nodes {
			node := &connection.Nodes[i]
			if node.CreatedAt != "" && event.DateOf(node.CreatedAt) < f.since {
				continue
			}

			prs = append(prs, node.toEvent(scope))
		}

		if !connection.PageInfo.HasNextPage {
			break
		}

		cursor = &connection.PageInfo.EndCursor
	}

	return prs, nil
}

// FetchOrg fetches pull requests for every repository of an
// organization, keyed by "org/repo" scope, with the same cache and
// partial-result behavior as CommitFetcher.FetchOrg.
func (f *PRFetcher) FetchOrg(ctx context.Context, org string, useCache bool) (map[string][]event.PullRequest, error) {
	repos, err := f.client.ListOrgRepos(ctx, org)
	if err != nil {
		return nil, fmt.Errorf("fetch org %s: %w", org, err)
	}

	f.logger.Info("fetching org pull requests", "org", org, "repos", len(repos))

	out := make(map[string][]event.PullRequest, len(repos))

	for _, repo := range repos {
		scope := org + "/" + repo

		if useCache && f.store.Has(scope) {
			cached, loadErr := f.store.Load(scope)
			if loadErr == nil {
				out[scope] = cached

				continue
			}

			f.logger.Warn("scope cache unreadable, refetching", "scope", scope, "error", loadErr)
		}

		prs, fetchErr := f.FetchRepo(ctx, org, repo)
		if fetchErr != nil {
			f.logger.Warn("scope fetch failed, keeping partial results", "scope", scope, "error", fetchErr, "prs", len(prs))
		}

		saveErr := f.store.Save(scope, prs)
		if saveErr != nil {
			f.logger.Warn("scope cache write failed", "scope", scope, "error", saveErr)
		}

		out[scope] = prs
	}

	return out, nil
}
