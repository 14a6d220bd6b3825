// Package cycle reconstructs "in progress" time intervals from issue
// status changelogs. Changelog order is not guaranteed upstream, so
// transitions are sorted by timestamp before interpretation.
package cycle

import (
	"sort"

	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/pkg/mathutil"
)

// StatusInProgress is the tracker status that opens a cycle.
const StatusInProgress = "In Progress"

const hoursPerSecond = 3600.0

// Cycle is one contiguous interval an issue spent in progress.
type Cycle struct {
	IssueKey      string `json:"key"`
	AssigneeEmail string `json:"assignee_email"`
	EnteredAt     string `json:"in_progress_at"`
	LeftAt        string `json:"out_of_progress_at"`
}

// DurationHours returns the cycle length in hours rounded to two
// decimal places. Unparseable endpoints degrade to 0 rather than an
// error so aggregate cycle counts stay consistent.
func (c *Cycle) DurationHours() float64 {
	entered, enteredOK := event.ParseTimestamp(c.EnteredAt)
	left, leftOK := event.ParseTimestamp(c.LeftAt)

	if !enteredOK || !leftOK {
		return 0
	}

	return mathutil.Round2(left.Sub(entered).Seconds() / hoursPerSecond)
}

// Extract pairs each transition into StatusInProgress with the next
// transition out of it. Only the most recent unclosed entry is
// tracked, so nested re-entries do not stack, and an unterminated
// trailing in-progress period yields no cycle.
func Extract(issue *event.Issue) []Cycle {
	if len(issue.StatusTransitions) == 0 {
		return nil
	}

	transitions := make([]event.StatusTransition, len(issue.StatusTransitions))
	copy(transitions, issue.StatusTransitions)

	sort.SliceStable(transitions, func(i, j int) bool {
		return transitions[i].Timestamp < transitions[j].Timestamp
	})

	email := issue.AssigneeEmail()

	var (
		cycles  []Cycle
		openAt  string
		tracked bool
	)

	for i := range transitions {
		tr := &transitions[i]

		if tr.ToStatus == StatusInProgress {
			openAt = tr.Timestamp
			tracked = true

			continue
		}

		if tracked {
			cycles = append(cycles, Cycle{
				IssueKey:      issue.Key,
				AssigneeEmail: email,
				EnteredAt:     openAt,
				LeftAt:        tr.Timestamp,
			})
			tracked = false
		}
	}

	return cycles
}

// ExtractAll flattens the cycles of every issue across all scopes.
func ExtractAll(issuesByScope map[string][]event.Issue) []Cycle {
	var all []Cycle

	scopes := make([]string, 0, len(issuesByScope))
	for scope := range issuesByScope {
		scopes = append(scopes, scope)
	}

	sort.Strings(scopes)

	for _, scope := range scopes {
		issues := issuesByScope[scope]
		for i := range issues {
			all = append(all, Extract(&issues[i])...)
		}
	}

	return all
}

// FilterByEmail selects cycles whose assignee email equals the filter,
// case-sensitively matching the tracker's own casing. An empty filter
// returns the input unchanged.
func FilterByEmail(cycles []Cycle, email string) []Cycle {
	if email == "" {
		return cycles
	}

	var out []Cycle

	for i := range cycles {
		if cycles[i].AssigneeEmail == email {
			out = append(out, cycles[i])
		}
	}

	return out
}
