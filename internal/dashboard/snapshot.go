// Package dashboard builds and serves the derived per-user activity
// snapshot. The snapshot is a pure function of the raw commit caches:
// it can be deleted and rebuilt at any time without data loss.
package dashboard

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/internal/eventcache"
	"github.com/devpulse/devpulse/internal/stats"
)

// UserStats holds one user's daily buckets plus their derived summary.
// The summary is always recomputed from the buckets, never stored.
type UserStats struct {
	Daily   stats.Daily   `json:"daily"`
	Summary stats.Summary `json:"summary"`
}

// Snapshot is the full derived dataset served to dashboard clients.
type Snapshot struct {
	GeneratedAt time.Time             `json:"generated_at"`
	Users       map[string]*UserStats `json:"users"`
}

// Usernames returns the snapshot's user roster in sorted order.
func (s *Snapshot) Usernames() []string {
	names := make([]string, 0, len(s.Users))
	for name := range s.Users {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// User looks up a user's stats case-insensitively. The roster keeps
// the casing the forge reported; clients often do not.
func (s *Snapshot) User(username string) (*UserStats, bool) {
	if u, ok := s.Users[username]; ok {
		return u, true
	}

	for name, u := range s.Users {
		if strings.EqualFold(name, username) {
			return u, true
		}
	}

	return nil, false
}

// Build derives a snapshot from every cached commit scope. Commits are
// deduplicated by SHA across scopes before attribution, so a commit
// that reaches multiple caches (forks, mirrors) counts once.
func Build(store *eventcache.Store[event.Commit], now time.Time) (*Snapshot, error) {
	scopes, scopesErr := store.Scopes()
	if scopesErr != nil {
		return nil, fmt.Errorf("build snapshot: %w", scopesErr)
	}

	var commits []event.Commit

	for _, scope := range scopes {
		scoped, loadErr := store.Load(scope)
		if loadErr != nil {
			return nil, fmt.Errorf("build snapshot: %w", loadErr)
		}

		commits = append(commits, scoped...)
	}

	commits = stats.Dedup(commits)

	snapshot := &Snapshot{
		GeneratedAt: now,
		Users:       make(map[string]*UserStats),
	}

	for _, actor := range stats.Actors(commits) {
		daily := stats.Fold(stats.FilterByAuthor(commits, actor))
		snapshot.Users[actor] = &UserStats{
			Daily:   daily,
			Summary: stats.Summarize(daily),
		}
	}

	return snapshot, nil
}
