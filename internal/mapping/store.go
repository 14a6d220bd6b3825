package mapping

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
)

// MappingFilename is the on-disk name of the mapping table.
const MappingFilename = "user_mapping.csv"

var mappingHeader = []string{"github", "jira"}

// Store reads and writes the mapping table. Reads are served from an
// in-memory copy guarded by the file's modification time, so a table
// regenerated by the batch command is picked up without a restart.
type Store struct {
	mu       sync.Mutex
	path     string
	modTime  time.Time
	mappings []Mapping
}

// NewStore creates a store for the table at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// All returns every mapping. A missing table is an empty list, not an
// error: mapping is an optional enrichment.
func (s *Store) All() ([]Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, statErr := os.Stat(s.path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return nil, nil
		}

		return nil, fmt.Errorf("stat mapping table: %w", statErr)
	}

	if s.mappings != nil && info.ModTime().Equal(s.modTime) {
		return s.mappings, nil
	}

	mappings, readErr := readTable(s.path)
	if readErr != nil {
		return nil, readErr
	}

	s.mappings = mappings
	s.modTime = info.ModTime()

	return mappings, nil
}

// TrackerFor looks up the tracker email mapped to a username,
// case-insensitively. The second result is false when unmapped.
func (s *Store) TrackerFor(username string) (string, bool, error) {
	mappings, err := s.All()
	if err != nil {
		return "", false, err
	}

	for i := range mappings {
		if strings.EqualFold(mappings[i].Source, username) {
			return mappings[i].Tracker, true, nil
		}
	}

	return "", false, nil
}

// SourceFor looks up the username mapped to a tracker email,
// case-insensitively. The second result is false when unmapped.
func (s *Store) SourceFor(email string) (string, bool, error) {
	mappings, err := s.All()
	if err != nil {
		return "", false, err
	}

	for i := range mappings {
		if strings.EqualFold(mappings[i].Tracker, email) {
			return mappings[i].Source, true, nil
		}
	}

	return "", false, nil
}

// Write replaces the mapping table wholesale.
func (s *Store) Write(mappings []Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, createErr := os.Create(s.path)
	if createErr != nil {
		return fmt.Errorf("create mapping table: %w", createErr)
	}
	defer file.Close()

	w := csv.NewWriter(file)

	headerErr := w.Write(mappingHeader)
	if headerErr != nil {
		return fmt.Errorf("write mapping header: %w", headerErr)
	}

	for i := range mappings {
		rowErr := w.Write([]string{mappings[i].Source, mappings[i].Tracker})
		if rowErr != nil {
			return fmt.Errorf("write mapping row: %w", rowErr)
		}
	}

	w.Flush()

	flushErr := w.Error()
	if flushErr != nil {
		return fmt.Errorf("flush mapping table: %w", flushErr)
	}

	// Drop the cached copy so the next read observes the new file.
	s.mappings = nil
	s.modTime = time.Time{}

	return nil
}

func readTable(path string) ([]Mapping, error) {
	file, openErr := os.Open(path)
	if openErr != nil {
		return nil, fmt.Errorf("open mapping table: %w", openErr)
	}
	defer file.Close()

	records, readErr := csv.NewReader(file).ReadAll()
	if readErr != nil {
		return nil, fmt.Errorf("read mapping table: %w", readErr)
	}

	mappings := make([]Mapping, 0, len(records))

	for i, record := range records {
		if i == 0 {
			continue
		}

		if len(record) != len(mappingHeader) {
			return nil, fmt.Errorf("mapping row %d: want %d columns, got %d", i, len(mappingHeader), len(record))
		}

		mappings = append(mappings, Mapping{Source: record[0], Tracker: record[1]})
	}

	return mappings, nil
}
