package stats

import (
	"sort"
	"time"

	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/pkg/mathutil"
)

const hoursPerSecond = 3600.0

// PRMetrics holds the derived metrics for one pull request. Nil
// pointer fields mean the metric is undefined for this record (e.g.
// an unparseable creation time, or no reviews); the record itself is
// kept so aggregate counts stay consistent with raw counts.
type PRMetrics struct {
	TimeOpenHours          *float64 `json:"time_open_hours"`
	TimeToFirstReviewHours *float64 `json:"time_to_first_review_hours"`
	ReviewerCount          int      `json:"reviewer_count"`
	Size                   int      `json:"size"`
}

// MonthStat aggregates pull requests created in one calendar month.
type MonthStat struct {
	Month                     string   `json:"month"`
	PRCount                   int      `json:"pr_count"`
	AvgTimeOpenHours          *float64 `json:"avg_time_open_hours"`
	MedianTimeOpenHours       *float64 `json:"median_time_open_hours"`
	AvgTimeToFirstReviewHours *float64 `json:"avg_time_to_first_review_hours"`
	AvgReviewerCount          float64  `json:"avg_reviewer_count"`
	AvgAdditions              float64  `json:"avg_additions"`
	AvgDeletions              float64  `json:"avg_deletions"`
}

// RepoSummary aggregates all pull requests of one repository. Time
// statistics are restricted to terminal (closed or merged) PRs so
// still-open outliers do not skew them.
type RepoSummary struct {
	Repository                string   `json:"repository"`
	TotalPRs                  int      `json:"total_prs"`
	OpenPRs                   int      `json:"open_prs"`
	MergedPRs                 int      `json:"merged_prs"`
	ClosedPRs                 int      `json:"closed_prs"`
	AvgTimeOpenHours          *float64 `json:"avg_time_open_hours"`
	MedianTimeOpenHours       *float64 `json:"median_time_open_hours"`
	AvgTimeToFirstReviewHours *float64 `json:"avg_time_to_first_review_hours"`
}

// ComputeMetrics derives the per-PR metrics. The open interval ends at
// MergedAt when present, else ClosedAt, else now for still-open PRs.
func ComputeMetrics(pr *event.PullRequest, now time.Time) PRMetrics {
	m := PRMetrics{
		Size:          pr.Additions + pr.Deletions,
		ReviewerCount: countDistinctReviewers(pr.Reviews),
	}

	created, ok := event.ParseTimestamp(pr.CreatedAt)
	if !ok {
		return m
	}

	end := now
	if endTime, endOK := terminalTime(pr); endOK {
		end = endTime
	}

	open := end.Sub(created).Seconds() / hoursPerSecond
	m.TimeOpenHours = &open

	if first, firstOK := firstReviewTime(pr.Reviews); firstOK {
		toReview := first.Sub(created).Seconds() / hoursPerSecond
		m.TimeToFirstReviewHours = &toReview
	}

	return m
}

// AggregateByMonth groups pull requests by the month portion of their
// creation timestamp and aggregates metrics per month, ascending.
// PRs without a creation timestamp are skipped.
func AggregateByMonth(prs []event.PullRequest, now time.Time) []MonthStat {
	byMonth := make(map[string][]*event.PullRequest)

	for i := range prs {
		if prs[i].CreatedAt == "" {
			continue
		}

		month := event.MonthOf(prs[i].CreatedAt)
		byMonth[month] = append(byMonth[month], &prs[i])
	}

	months := make([]string, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}

	sort.Strings(months)

	out := make([]MonthStat, 0, len(months))

	for _, month := range months {
		monthPRs := byMonth[month]

		var (
			openHours, reviewHours     []float64
			reviewerCounts, adds, dels []float64
		)

		for _, pr := range monthPRs {
			m := ComputeMetrics(pr, now)

			if m.TimeOpenHours != nil {
				openHours = append(openHours, *m.TimeOpenHours)
			}

			if m.TimeToFirstReviewHours != nil {
				reviewHours = append(reviewHours, *m.TimeToFirstReviewHours)
			}

			reviewerCounts = append(reviewerCounts, float64(m.ReviewerCount))
			adds = append(adds, float64(pr.Additions))
			dels = append(dels, float64(pr.Deletions))
		}

		out = append(out, MonthStat{
			Month:                     month,
			PRCount:                   len(monthPRs),
			AvgTimeOpenHours:          meanOrNil(openHours),
			MedianTimeOpenHours:       medianOrNil(openHours),
			AvgTimeToFirstReviewHours: meanOrNil(reviewHours),
			AvgReviewerCount:          mathutil.Mean(reviewerCounts),
			AvgAdditions:              mathutil.Mean(adds),
			AvgDeletions:              mathutil.Mean(dels),
		})
	}

	return out
}

// SummarizeRepository aggregates all PRs of one repository.
func SummarizeRepository(repository string, prs []event.PullRequest, now time.Time) RepoSummary {
	s := RepoSummary{Repository: repository, TotalPRs: len(prs)}

	var openHours, reviewHours []float64

	for i := range prs {
		pr := &prs[i]

		switch pr.State {
		case event.StateOpen:
			s.OpenPRs++
		case event.StateMerged:
			s.MergedPRs++
		case event.StateClosed:
			s.ClosedPRs++
		}

		if !pr.Terminal() {
			continue
		}

		m := ComputeMetrics(pr, now)

		if m.TimeOpenHours != nil {
			openHours = append(openHours, *m.TimeOpenHours)
		}

		if m.TimeToFirstReviewHours != nil {
			reviewHours = append(reviewHours, *m.TimeToFirstReviewHours)
		}
	}

	s.AvgTimeOpenHours = meanOrNil(openHours)
	s.MedianTimeOpenHours = medianOrNil(openHours)
	s.AvgTimeToFirstReviewHours = meanOrNil(reviewHours)

	return s
}

func countDistinctReviewers(reviews []event.Review) int {
	set := make(map[string]struct{}, len(reviews))

	for i := range reviews {
		if reviews[i].Author != "" {
			set[reviews[i].Author] = struct{}{}
		}
	}

	return len(set)
}

// terminalTime returns the end of the PR's open interval, preferring
// MergedAt over ClosedAt. The second result is false for open PRs and
// unparseable terminal timestamps.
func terminalTime(pr *event.PullRequest) (time.Time, bool) {
	if pr.MergedAt != "" {
		return event.ParseTimestamp(pr.MergedAt)
	}

	if pr.ClosedAt != "" {
		return event.ParseTimestamp(pr.ClosedAt)
	}

	return time.Time{}, false
}

// firstReviewTime returns the earliest parseable review submission time.
func firstReviewTime(reviews []event.Review) (time.Time, bool) {
	var (
		first time.Time
		found bool
	)

	for i := range reviews {
		submitted, ok := event.ParseTimestamp(reviews[i].SubmittedAt)
		if !ok {
			continue
		}

		if !found || submitted.Before(first) {
			first = submitted
			found = true
		}
	}

	return first, found
}

func meanOrNil(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}

	v := mathutil.Mean(values)

	return &v
}

func medianOrNil(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}

	v := mathutil.Median(values)

	return &v
}
