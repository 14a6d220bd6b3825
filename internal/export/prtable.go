// Package export writes derived datasets to flat files for spreadsheet
// and BI consumption. Exports are regenerated wholesale; nothing in
// this package is a source of truth.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/internal/eventcache"
	"github.com/devpulse/devpulse/internal/stats"
)

// PRTableFilename is the on-disk name of the per-PR metrics table.
const PRTableFilename = "pr_metrics.csv"

// metricPrecision is the number of decimal places kept for hour metrics.
const metricPrecision = 2

var prTableHeader = []string{
	"repository", "number", "title", "author", "state",
	"created_at", "merged_at", "closed_at",
	"time_open_hours", "time_to_first_review_hours", "reviewer_count", "size",
}

// PRRow is one pull request with its precomputed metrics. Empty hour
// columns mean the metric is undefined for the record.
type PRRow struct {
	Repository             string   `json:"repository"`
	Number                 int      `json:"number"`
	Title                  string   `json:"title"`
	Author                 string   `json:"author"`
	State                  string   `json:"state"`
	CreatedAt              string   `json:"created_at"`
	MergedAt               string   `json:"merged_at"`
	ClosedAt               string   `json:"closed_at"`
	TimeOpenHours          *float64 `json:"time_open_hours"`
	TimeToFirstReviewHours *float64 `json:"time_to_first_review_hours"`
	ReviewerCount          int      `json:"reviewer_count"`
	Size                   int      `json:"size"`
}

// BuildPRTable derives one row per cached pull request and writes the
// table to dir, sorted by repository then PR number.
func BuildPRTable(store *eventcache.Store[event.PullRequest], dir string, now time.Time) ([]PRRow, error) {
	scopes, scopesErr := store.Scopes()
	if scopesErr != nil {
		return nil, fmt.Errorf("build pr table: %w", scopesErr)
	}

	var rows []PRRow

	for _, scope := range scopes {
		prs, loadErr := store.Load(scope)
		if loadErr != nil {
			return nil, fmt.Errorf("build pr table: %w", loadErr)
		}

		for i := range prs {
			pr := &prs[i]
			m := stats.ComputeMetrics(pr, now)

			rows = append(rows, PRRow{
				Repository:             pr.Repository,
				Number:                 pr.Number,
				Title:                  pr.Title,
				Author:                 pr.Author,
				State:                  pr.State,
				CreatedAt:              pr.CreatedAt,
				MergedAt:               pr.MergedAt,
				ClosedAt:               pr.ClosedAt,
				TimeOpenHours:          m.TimeOpenHours,
				TimeToFirstReviewHours: m.TimeToFirstReviewHours,
				ReviewerCount:          m.ReviewerCount,
				Size:                   m.Size,
			})
		}
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Repository != rows[j].Repository {
			return rows[i].Repository < rows[j].Repository
		}

		return rows[i].Number < rows[j].Number
	})

	writeErr := writePRTable(dir, rows)
	if writeErr != nil {
		return nil, writeErr
	}

	return rows, nil
}

func writePRTable(dir string, rows []PRRow) error {
	mkdirErr := os.MkdirAll(dir, 0o755)
	if mkdirErr != nil {
		return fmt.Errorf("create export dir: %w", mkdirErr)
	}

	file, createErr := os.Create(filepath.Join(dir, PRTableFilename))
	if createErr != nil {
		return fmt.Errorf("create pr table: %w", createErr)
	}
	defer file.Close()

	w := csv.NewWriter(file)

	headerErr := w.Write(prTableHeader)
	if headerErr != nil {
		return fmt.Errorf("write pr table header: %w", headerErr)
	}

	for i := range rows {
		row := &rows[i]
		record := []string{
			row.Repository,
			strconv.Itoa(row.Number),
			row.Title,
			row.Author,
			row.State,
			row.CreatedAt,
			row.MergedAt,
			row.ClosedAt,
			formatHours(row.TimeOpenHours),
			formatHours(row.TimeToFirstReviewHours),
			strconv.Itoa(row.ReviewerCount),
			strconv.Itoa(row.Size),
		}

		writeErr := w.Write(record)
		if writeErr != nil {
			return fmt.Errorf("write pr table row: %w", writeErr)
		}
	}

	w.Flush()

	err := w.Error()
	if err != nil {
		return fmt.Errorf("flush pr table: %w", err)
	}

	return nil
}

// PRTableLoader reads the PR table back with an mtime-guarded cache:
// repeated loads return the in-memory rows until the file changes.
type PRTableLoader struct {
	mu      sync.Mutex
	dir     string
	modTime time.Time
	rows    []PRRow
}

// NewPRTableLoader creates a loader for the table under dir.
func NewPRTableLoader(dir string) *PRTableLoader {
	return &PRTableLoader{dir: dir}
}

// Load returns the table rows, re-reading the file only when its
// modification time moved since the previous load.
func (l *PRTableLoader) Load() ([]PRRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.dir, PRTableFilename)

	info, statErr := os.Stat(path)
	if statErr != nil {
		return nil, fmt.Errorf("stat pr table: %w", statErr)
	}

	if l.rows != nil && info.ModTime().Equal(l.modTime) {
		return l.rows, nil
	}

	rows, readErr := readPRTable(path)
	if readErr != nil {
		return nil, readErr
	}

	l.rows = rows
	l.modTime = info.ModTime()

	return rows, nil
}

func readPRTable(path string) ([]PRRow, error) {
	file, openErr := os.Open(path)
	if openErr != nil {
		return nil, fmt.Errorf("open pr table: %w", openErr)
	}
	defer file.Close()

	records, readErr := csv.NewReader(file).ReadAll()
	if readErr != nil {
		return nil, fmt.Errorf("read pr table: %w", readErr)
	}

	rows := make([]PRRow, 0, len(records))

	for i, record := range records {
		if i == 0 {
			continue
		}

		if len(record) != len(prTableHeader) {
			return nil, fmt.Errorf("pr table row %d: want %d columns, got %d", i, len(prTableHeader), len(record))
		}

		row, parseErr := parsePRRecord(record)
		if parseErr != nil {
			return nil, fmt.Errorf("pr table row %d: %w", i, parseErr)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func parsePRRecord(record []string) (PRRow, error) {
	number, numberErr := strconv.Atoi(record[1])
	if numberErr != nil {
		return PRRow{}, fmt.Errorf("parse number: %w", numberErr)
	}

	reviewers, reviewersErr := strconv.Atoi(record[10])
	if reviewersErr != nil {
		return PRRow{}, fmt.Errorf("parse reviewer count: %w", reviewersErr)
	}

	size, sizeErr := strconv.Atoi(record[11])
	if sizeErr != nil {
		return PRRow{}, fmt.Errorf("parse size: %w", sizeErr)
	}

	openHours, openErr := parseHours(record[8])
	if openErr != nil {
		return PRRow{}, fmt.Errorf("parse time open: %w", openErr)
	}

	reviewHours, reviewErr := parseHours(record[9])
	if reviewErr != nil {
		return PRRow{}, fmt.Errorf("parse time to first review: %w", reviewErr)
	}

	return PRRow{
		Repository:             record[0],
		Number:                 number,
		Title:                  record[2],
		Author:                 record[3],
		State:                  record[4],
		CreatedAt:              record[5],
		MergedAt:               record[6],
		ClosedAt:               record[7],
		TimeOpenHours:          openHours,
		TimeToFirstReviewHours: reviewHours,
		ReviewerCount:          reviewers,
		Size:                   size,
	}, nil
}

func formatHours(v *float64) string {
	if v == nil {
		return ""
	}

	return strconv.FormatFloat(*v, 'f', metricPrecision, 64)
}

func parseHours(s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}

	return &v, nil
}
