package dashboard

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/internal/eventcache"
	"github.com/devpulse/devpulse/internal/persist"
)

// Service owns the in-memory snapshot served to HTTP clients and the
// logic for refreshing it. Readers always see a complete snapshot:
// refreshes build off to the side and swap the pointer under the lock.
type Service struct {
	mu       sync.RWMutex
	snapshot *Snapshot
	loadedAt time.Time

	// refreshMu serializes whole refreshes so concurrent callers never
	// write the snapshot table at the same time.
	refreshMu sync.Mutex

	store  *eventcache.Store[event.Commit]
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// NewService wires a service to its commit store and snapshot dir.
func NewService(store *eventcache.Store[event.Commit], dir string, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}
}

// Snapshot returns the current snapshot, or nil before the first
// successful refresh.
func (s *Service) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.snapshot
}

// Refresh loads or rebuilds the snapshot and installs it atomically.
// Without force, a persisted table is trusted and loaded as-is; force
// rebuilds from the raw commit caches and rewrites the table.
func (s *Service) Refresh(force bool) (*Snapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	if !force {
		snapshot, loadErr := LoadCSV(s.dir)
		if loadErr == nil {
			s.install(snapshot)
			s.logger.Info("snapshot loaded", "users", len(snapshot.Users), "generated_at", snapshot.GeneratedAt)

			return snapshot, nil
		}

		if !persist.IsNotExist(loadErr) {
			return nil, fmt.Errorf("refresh snapshot: %w", loadErr)
		}
	}

	snapshot, buildErr := Build(s.store, s.now())
	if buildErr != nil {
		return nil, fmt.Errorf("refresh snapshot: %w", buildErr)
	}

	writeErr := WriteCSV(s.dir, snapshot)
	if writeErr != nil {
		return nil, fmt.Errorf("refresh snapshot: %w", writeErr)
	}

	s.install(snapshot)
	s.logger.Info("snapshot rebuilt", "users", len(snapshot.Users))

	return snapshot, nil
}

// LoadedAt returns when the current snapshot was installed in memory,
// as opposed to when its data was generated.
func (s *Service) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadedAt
}

func (s *Service) install(snapshot *Snapshot) {
	s.mu.Lock()
	s.snapshot = snapshot
	s.loadedAt = s.now()
	s.mu.Unlock()
}
