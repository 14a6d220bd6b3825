package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/devpulse/devpulse/internal/dashboard"
	"github.com/devpulse/devpulse/internal/persist"
	"github.com/devpulse/devpulse/internal/stats"
)

// snapshotDateLayout names dated export artifacts by generation day.
const snapshotDateLayout = "2006-01-02"

var snapshotHeader = []string{"username", "date", "commits", "additions", "deletions", "net_lines", "repositories"}

// SnapshotJSON writes the snapshot as a dated JSON artifact and
// returns its basename.
func SnapshotJSON(dir string, snapshot *dashboard.Snapshot) (string, error) {
	basename := "daily_stats_" + snapshot.GeneratedAt.Format(snapshotDateLayout)

	err := persist.Save(dir, basename, persist.NewJSONCodec(), snapshot)
	if err != nil {
		return "", fmt.Errorf("export snapshot json: %w", err)
	}

	return basename, nil
}

// SnapshotCSV writes the snapshot as a dated CSV artifact, one row per
// user per active date, and returns the filename.
func SnapshotCSV(dir string, snapshot *dashboard.Snapshot) (string, error) {
	mkdirErr := os.MkdirAll(dir, 0o755)
	if mkdirErr != nil {
		return "", fmt.Errorf("create export dir: %w", mkdirErr)
	}

	filename := "daily_stats_" + snapshot.GeneratedAt.Format(snapshotDateLayout) + ".csv"

	file, createErr := os.Create(filepath.Join(dir, filename))
	if createErr != nil {
		return "", fmt.Errorf("create snapshot export: %w", createErr)
	}
	defer file.Close()

	w := csv.NewWriter(file)

	headerErr := w.Write(snapshotHeader)
	if headerErr != nil {
		return "", fmt.Errorf("write snapshot export header: %w", headerErr)
	}

	for _, username := range snapshot.Usernames() {
		user := snapshot.Users[username]

		for _, date := range stats.Dates(user.Daily) {
			stat := user.Daily[date]
			record := []string{
				username,
				date,
				strconv.Itoa(stat.Commits),
				strconv.Itoa(stat.Additions),
				strconv.Itoa(stat.Deletions),
				strconv.Itoa(stat.NetLines),
				strings.Join(stat.Repositories, ";"),
			}

			writeErr := w.Write(record)
			if writeErr != nil {
				return "", fmt.Errorf("write snapshot export row: %w", writeErr)
			}
		}
	}

	w.Flush()

	err := w.Error()
	if err != nil {
		return "", fmt.Errorf("flush snapshot export: %w", err)
	}

	return filename, nil
}
