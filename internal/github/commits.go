package github

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/internal/eventcache"
)

const commitsQuery = `
query($owner: String!, $name: String!, $since: GitTimestamp!, $cursor: String) {
  repository(owner: $owner, name: $name) {
    defaultBranchRef {
      target {
        ... on Commit {
          history(first: 100, since: $since, after: $cursor) {
            nodes {
              oid
              message
              additions
              deletions
              changedFilesIfAvailable
              committedDate
              author {
                user {
                  login
                }
                name
              }
            }
            pageInfo {
              hasNextPage
              endCursor
            }
          }
        }
      }
    }
  }
}
`

type commitNode struct {
	OID                     string `json:"oid"`
	Message                 string `json:"message"`
	Additions               int    `json:"additions"`
	Deletions               int    `json:"deletions"`
	ChangedFilesIfAvailable int    `json:"changedFilesIfAvailable"`
	CommittedDate           string `json:"committedDate"`
	Author                  *struct {
		User *struct {
			Login string `json:"login"`
		} `json:"user"`
		Name string `json:"name"`
	} `json:"author"`
}

// actor resolves a commit author to a login, falling back to the git
// author name and then the unknown placeholder.
func (n *commitNode) actor() string {
	if n.Author == nil {
		return event.AuthorUnknown
	}

	if n.Author.User != nil && n.Author.User.Login != "" {
		return n.Author.User.Login
	}

	if n.Author.Name != "" {
		return n.Author.Name
	}

	return event.AuthorUnknown
}

// CommitFetcher fetches commit history per organization with a
// per-scope cache in front of the API.
type CommitFetcher struct {
	client *Client
	store  *eventcache.Store[event.Commit]
	logger *slog.Logger
	since  string
}

// NewCommitFetcher creates a commit fetcher. since is the ISO date
// lower bound passed to the history query.
func NewCommitFetcher(client *Client, store *eventcache.Store[event.Commit], logger *slog.Logger, since string) *CommitFetcher {
	return &CommitFetcher{client: client, store: store, logger: logger, since: since}
}

// FetchRepo pages through a repository's default-branch history and
// returns the flattened commit list.
func (f *CommitFetcher) FetchRepo(ctx context.Context, owner, name string) ([]event.Commit, error) {
	var (
		commits []event.Commit
		cursor  *string
	)

	scope := owner + "/" + name

	for {
		var data struct {
			Repository *struct {
				DefaultBranchRef *struct {
					Target struct {
						History struct {
							Nodes    []commitNode `json:"nodes"`
							PageInfo pageInfo     `json:"pageInfo"`
						} `json:"history"`
					} `json:"target"`
				} `json:"defaultBranchRef"`
			} `json:"repository"`
		}

		variables := map[string]any{
			"owner":  owner,
			"name":   name,
			"since":  f.since + "T00:00:00Z",
			"cursor": cursor,
		}

		err := f.client.Execute(ctx, commitsQuery, variables, &data)
		if err != nil {
			return commits, fmt.Errorf("fetch commits for %s: %w", scope, err)
		}

		if data.Repository == nil || data.Repository.DefaultBranchRef == nil {
			break
		}

		history := data.Repository.DefaultBranchRef.Target.History
		if len(history.Nodes) == 0 {
			break
		}

		for i := range history.Nodes {
			node := &history.Nodes[i]
			commits = append(commits, event.Commit{
				SHA:          node.OID,
				Repository:   scope,
				Author:       node.actor(),
				Date:         node.CommittedDate,
				Message:      node.Message,
				Additions:    node.Additions,
				Deletions:    node.Deletions,
				FilesChanged: node.ChangedFilesIfAvailable,
			})
		}

		if !history.PageInfo.HasNextPage {
			break
		}

		cursor = &history.PageInfo.EndCursor
	}

	return commits, nil
}

// FetchOrg fetches commits for every repository of an organization,
// keyed by "org/repo" scope. With useCache set, a scope with an
// existing cache artifact is returned verbatim without fetching.
// A failing scope is logged and keeps the pages gathered before the
// failure; the remaining scopes still run, so the result may be
// partial at both the org and the scope level.
func (f *CommitFetcher) FetchOrg(ctx context.Context, org string, useCache bool) (map[string][]event.Commit, error) {
	repos, err := f.client.ListOrgRepos(ctx, org)
	if err != nil {
		return nil, fmt.Errorf("fetch org %s: %w", org, err)
	}

	f.logger.Info("fetching org commits", "org", org, "repos", len(repos))

	out := make(map[string][]event.Commit, len(repos))

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

		commits, fetchErr := f.FetchRepo(ctx, org, repo)
		if fetchErr != nil {
			f.logger.Warn("scope fetch failed, keeping partial results", "scope", scope, "error", fetchErr, "commits", len(commits))
		}

		saveErr := f.store.Save(scope, commits)
		if saveErr != nil {
			f.logger.Warn("scope cache write failed", "scope", scope, "error", saveErr)
		}

		out[scope] = commits
	}

	return out, nil
}
