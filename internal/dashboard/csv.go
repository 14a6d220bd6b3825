package dashboard

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/devpulse/devpulse/internal/stats"
)

// SnapshotFilename is the on-disk name of the derived snapshot table.
const SnapshotFilename = "daily_stats.csv"

// repoListSeparator joins a day's repository set into one CSV column.
// Scope filenames already strip ";" so the join is unambiguous.
const repoListSeparator = ";"

var csvHeader = []string{"username", "date", "commits", "additions", "deletions", "net_lines", "repositories"}

// WriteCSV persists the snapshot as one row per user per active date,
// sorted by username then date so the file diffs cleanly.
func WriteCSV(dir string, snapshot *Snapshot) error {
	mkdirErr := os.MkdirAll(dir, 0o755)
	if mkdirErr != nil {
		return fmt.Errorf("create snapshot dir: %w", mkdirErr)
	}

	file, createErr := os.Create(filepath.Join(dir, SnapshotFilename))
	if createErr != nil {
		return fmt.Errorf("create snapshot file: %w", createErr)
	}
	defer file.Close()

	w := csv.NewWriter(file)

	writeErr := w.Write(csvHeader)
	if writeErr != nil {
		return fmt.Errorf("write snapshot header: %w", writeErr)
	}

	for _, username := range snapshot.Usernames() {
		user := snapshot.Users[username]

		for _, date := range stats.Dates(user.Daily) {
			stat := user.Daily[date]
			row := []string{
				username,
				date,
				strconv.Itoa(stat.Commits),
				strconv.Itoa(stat.Additions),
				strconv.Itoa(stat.Deletions),
				strconv.Itoa(stat.NetLines),
				strings.Join(stat.Repositories, repoListSeparator),
			}

			rowErr := w.Write(row)
			if rowErr != nil {
				return fmt.Errorf("write snapshot row: %w", rowErr)
			}
		}
	}

	w.Flush()

	err := w.Error()
	if err != nil {
		return fmt.Errorf("flush snapshot: %w", err)
	}

	return nil
}

// LoadCSV reads a previously written snapshot table. GeneratedAt is
// the file's modification time and every summary is recomputed from
// the loaded buckets, so stale derived values cannot survive a reload.
func LoadCSV(dir string) (*Snapshot, error) {
	path := filepath.Join(dir, SnapshotFilename)

	info, statErr := os.Stat(path)
	if statErr != nil {
		return nil, fmt.Errorf("stat snapshot: %w", statErr)
	}

	file, openErr := os.Open(path)
	if openErr != nil {
		return nil, fmt.Errorf("open snapshot: %w", openErr)
	}
	defer file.Close()

	records, readErr := csv.NewReader(file).ReadAll()
	if readErr != nil {
		return nil, fmt.Errorf("read snapshot: %w", readErr)
	}

	snapshot := &Snapshot{
		GeneratedAt: info.ModTime(),
		Users:       make(map[string]*UserStats),
	}

	for i, record := range records {
		if i == 0 {
			continue
		}

		if len(record) != len(csvHeader) {
			return nil, fmt.Errorf("snapshot row %d: want %d columns, got %d", i, len(csvHeader), len(record))
		}

		stat, parseErr := parseRow(record)
		if parseErr != nil {
			return nil, fmt.Errorf("snapshot row %d: %w", i, parseErr)
		}

		user := snapshot.Users[record[0]]
		if user == nil {
			user = &UserStats{Daily: make(stats.Daily)}
			snapshot.Users[record[0]] = user
		}

		user.Daily[record[1]] = stat
	}

	for _, user := range snapshot.Users {
		user.Summary = stats.Summarize(user.Daily)
	}

	return snapshot, nil
}

func parseRow(record []string) (*stats.DailyStat, error) {
	commits, commitsErr := strconv.Atoi(record[2])
	if commitsErr != nil {
		return nil, fmt.Errorf("parse commits: %w", commitsErr)
	}

	additions, addErr := strconv.Atoi(record[3])
	if addErr != nil {
		return nil, fmt.Errorf("parse additions: %w", addErr)
	}

	deletions, delErr := strconv.Atoi(record[4])
	if delErr != nil {
		return nil, fmt.Errorf("parse deletions: %w", delErr)
	}

	stat := &stats.DailyStat{
		Commits:   commits,
		Additions: additions,
		Deletions: deletions,
		NetLines:  additions - deletions,
	}

	if record[6] != "" {
		stat.Repositories = strings.Split(record[6], repoListSeparator)
	}

	return stat, nil
}
