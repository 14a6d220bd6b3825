package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/devpulse/devpulse/internal/cycle"
)

// CyclesFilename is the on-disk name of the in-progress cycles table.
const CyclesFilename = "issue_cycles.csv"

var cyclesHeader = []string{"key", "assignee_email", "in_progress_at", "out_of_progress_at", "duration_hours"}

// WriteCycles writes one row per in-progress cycle.
func WriteCycles(dir string, cycles []cycle.Cycle) error {
	mkdirErr := os.MkdirAll(dir, 0o755)
	if mkdirErr != nil {
		return fmt.Errorf("create export dir: %w", mkdirErr)
	}

	file, createErr := os.Create(filepath.Join(dir, CyclesFilename))
	if createErr != nil {
		return fmt.Errorf("create cycles table: %w", createErr)
	}
	defer file.Close()

	w := csv.NewWriter(file)

	headerErr := w.Write(cyclesHeader)
	if headerErr != nil {
		return fmt.Errorf("write cycles header: %w", headerErr)
	}

	for i := range cycles {
		c := &cycles[i]
		record := []string{
			c.IssueKey,
			c.AssigneeEmail,
			c.EnteredAt,
			c.LeftAt,
			strconv.FormatFloat(c.DurationHours(), 'f', metricPrecision, 64),
		}

		writeErr := w.Write(record)
		if writeErr != nil {
			return fmt.Errorf("write cycles row: %w", writeErr)
		}
	}

	w.Flush()

	err := w.Error()
	if err != nil {
		return fmt.Errorf("flush cycles table: %w", err)
	}

	return nil
}
