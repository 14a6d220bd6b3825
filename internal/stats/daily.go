// Package stats folds raw event records into derived per-day and
// per-month statistics. Folds are single-pass and deterministic:
// repeated runs over the same input produce identical output,
// including the ordering of frozen repository sets.
package stats

import (
	"sort"
	"strings"

	"github.com/devpulse/devpulse/internal/event"
)

// DailyStat aggregates one actor's activity on one calendar date.
// NetLines is always recomputed from Additions-Deletions, never
// carried independently.
type DailyStat struct {
	Commits      int      `json:"commits"`
	Additions    int      `json:"additions"`
	Deletions    int      `json:"deletions"`
	NetLines     int      `json:"net_lines"`
	Repositories []string `json:"repositories"`
}

// Daily maps ISO date strings (YYYY-MM-DD) to per-day statistics.
type Daily map[string]*DailyStat

// Summary reduces a Daily map to global sums and derived ratios.
// Both averages are defined as 0 when TotalDays is 0.
type Summary struct {
	TotalAdditions   int     `json:"total_additions"`
	TotalDeletions   int     `json:"total_deletions"`
	NetLines         int     `json:"net_lines"`
	TotalCommits     int     `json:"total_commits"`
	TotalDays        int     `json:"total_days"`
	AvgDailyLines    float64 `json:"avg_daily_lines"`
	AvgCommitsPerDay float64 `json:"avg_commits_per_day"`
}

// Fold aggregates commits into per-date buckets. The bucket date is
// the leading date substring of the commit timestamp; see
// event.DateOf for the timezone caveat. Repository sets are frozen
// sorted so output is stable across runs.
func Fold(commits []event.Commit) Daily {
	repoSets := make(map[string]map[string]struct{})
	daily := make(Daily)

	for i := range commits {
		commit := &commits[i]
		date := event.DateOf(commit.Date)

		stat := daily[date]
		if stat == nil {
			stat = &DailyStat{}
			daily[date] = stat
			repoSets[date] = make(map[string]struct{})
		}

		stat.Commits++
		stat.Additions += commit.Additions
		stat.Deletions += commit.Deletions
		repoSets[date][commit.Repository] = struct{}{}
	}

	for date, stat := range daily {
		stat.NetLines = stat.Additions - stat.Deletions
		stat.Repositories = sortedSet(repoSets[date])
	}

	return daily
}

// Dedup drops commits whose SHA was already seen, keeping the first
// occurrence in input order. It is applied once per logical collection
// (per identity across scopes) before folding.
func Dedup(commits []event.Commit) []event.Commit {
	seen := make(map[string]struct{}, len(commits))
	out := make([]event.Commit, 0, len(commits))

	for i := range commits {
		_, dup := seen[commits[i].SHA]
		if dup {
			continue
		}

		seen[commits[i].SHA] = struct{}{}
		out = append(out, commits[i])
	}

	return out
}

// FilterByAuthor selects the commits attributed to author,
// case-insensitively, preserving input order.
func FilterByAuthor(commits []event.Commit, author string) []event.Commit {
	var out []event.Commit

	for i := range commits {
		if strings.EqualFold(commits[i].Author, author) {
			out = append(out, commits[i])
		}
	}

	return out
}

// Actors returns the distinct commit authors present in the data,
// sorted, excluding the unknown-author placeholder. The roster is
// discovered from the data itself, not configured.
func Actors(commits []event.Commit) []string {
	set := make(map[string]struct{})

	for i := range commits {
		author := commits[i].Author
		if author == "" || strings.EqualFold(author, event.AuthorUnknown) {
			continue
		}

		set[author] = struct{}{}
	}

	return sortedSet(set)
}

// Summarize reduces daily buckets to a Summary.
func Summarize(daily Daily) Summary {
	var s Summary

	for _, stat := range daily {
		s.TotalAdditions += stat.Additions
		s.TotalDeletions += stat.Deletions
		s.TotalCommits += stat.Commits
	}

	s.NetLines = s.TotalAdditions - s.TotalDeletions
	s.TotalDays = len(daily)

	if s.TotalDays > 0 {
		s.AvgDailyLines = float64(s.NetLines) / float64(s.TotalDays)
		s.AvgCommitsPerDay = float64(s.TotalCommits) / float64(s.TotalDays)
	}

	return s
}

// Merge combines per-bucket sums of two Daily maps into a new map.
// Folding a concatenation of disjoint event lists equals merging the
// folds of each list.
func Merge(a, b Daily) Daily {
	out := make(Daily, len(a)+len(b))

	for _, src := range []Daily{a, b} {
		for date, stat := range src {
			dst := out[date]
			if dst == nil {
				dst = &DailyStat{}
				out[date] = dst
			}

			dst.Commits += stat.Commits
			dst.Additions += stat.Additions
			dst.Deletions += stat.Deletions
			dst.Repositories = unionSorted(dst.Repositories, stat.Repositories)
		}
	}

	for _, stat := range out {
		stat.NetLines = stat.Additions - stat.Deletions
	}

	return out
}

// Dates returns the bucket dates in ascending order.
func Dates(daily Daily) []string {
	dates := make([]string, 0, len(daily))
	for date := range daily {
		dates = append(dates, date)
	}

	sort.Strings(dates)

	return dates
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}

	sort.Strings(out)

	return out
}

func unionSorted(a, b []string) []string {
	set := make(map[string]struct{}, len(a)+len(b))

	for _, v := range a {
		set[v] = struct{}{}
	}

	for _, v := range b {
		set[v] = struct{}{}
	}

	return sortedSet(set)
}
