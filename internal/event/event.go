// Package event defines the raw record types fetched from the
// source-control and issue-tracker APIs. Records are immutable once
// fetched; all derived statistics are recomputed from them.
package event

// Pull request states as reported by the source-control API.
const (
	StateOpen   = "OPEN"
	StateClosed = "CLOSED"
	StateMerged = "MERGED"
)

// AuthorUnknown is the placeholder actor for commits whose author could
// not be resolved to an account.
const AuthorUnknown = "unknown"

// Commit is a single commit record. Identity is the SHA; duplicates
// across scopes are collapsed by it before aggregation.
type Commit struct {
	SHA          string `json:"sha"`
	Repository   string `json:"repository"`
	Author       string `json:"author"`
	Date         string `json:"date"`
	Message      string `json:"message"`
	Additions    int    `json:"additions"`
	Deletions    int    `json:"deletions"`
	FilesChanged int    `json:"files_changed"`
}

// Review is a single pull request review submission.
type Review struct {
	Author      string `json:"author"`
	SubmittedAt string `json:"submitted_at"`
	State       string `json:"state"`
}

// PullRequest is a single pull request record with its reviews.
// MergedAt is only set when State is MERGED.
type PullRequest struct {
	Number       int      `json:"number"`
	Repository   string   `json:"repository"`
	Title        string   `json:"title"`
	Author       string   `json:"author"`
	State        string   `json:"state"`
	CreatedAt    string   `json:"created_at"`
	ClosedAt     string   `json:"closed_at,omitempty"`
	MergedAt     string   `json:"merged_at,omitempty"`
	Additions    int      `json:"additions"`
	Deletions    int      `json:"deletions"`
	ChangedFiles int      `json:"changed_files"`
	Reviews      []Review `json:"reviews"`
}

// Terminal reports whether the pull request reached a terminal state.
func (pr *PullRequest) Terminal() bool {
	return pr.State == StateClosed || pr.State == StateMerged
}

// StatusTransition is one status change from an issue changelog.
// Source order is not guaranteed; transitions must be sorted by
// timestamp before interpretation.
type StatusTransition struct {
	Timestamp  string `json:"timestamp"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

// Assignee identifies the tracker account an issue is assigned to.
type Assignee struct {
	AccountID   string `json:"account_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// Issue is a single tracker issue with its status changelog.
type Issue struct {
	Key               string             `json:"key"`
	ProjectKey        string             `json:"project_key"`
	Summary           string             `json:"summary"`
	IssueType         string             `json:"issue_type"`
	Status            string             `json:"status"`
	Assignee          *Assignee          `json:"assignee,omitempty"`
	Created           string             `json:"created"`
	Updated           string             `json:"updated"`
	StatusTransitions []StatusTransition `json:"status_transitions"`
}

// AssigneeEmail returns the assignee email or "" when unassigned.
func (i *Issue) AssigneeEmail() string {
	if i.Assignee == nil {
		return ""
	}

	return i.Assignee.Email
}
