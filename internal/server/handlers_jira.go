package server

import (
	"fmt"
	"net/http"

	"github.com/devpulse/devpulse/internal/cycle"
	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/pkg/mathutil"
)

// loadCycles extracts every in-progress cycle from the cached issues,
// optionally filtered by assignee email.
func (s *Server) loadCycles(email string) ([]cycle.Cycle, error) {
	scopes, scopesErr := s.issueStore.Scopes()
	if scopesErr != nil {
		return nil, fmt.Errorf("list issue scopes: %w", scopesErr)
	}

	byScope := make(map[string][]event.Issue, len(scopes))

	for _, scope := range scopes {
		issues, loadErr := s.issueStore.Load(scope)
		if loadErr != nil {
			return nil, loadErr
		}

		byScope[scope] = issues
	}

	return cycle.FilterByEmail(cycle.ExtractAll(byScope), email), nil
}

func (s *Server) handleJiraCycles(w http.ResponseWriter, r *http.Request) {
	cycles, err := s.loadCycles(r.URL.Query().Get("email"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())

		return
	}

	if cycles == nil {
		cycles = []cycle.Cycle{}
	}

	respondJSON(w, http.StatusOK, cycles)
}

// cycleStats summarizes cycle durations. Zero-duration cycles (open
// intervals with unparseable endpoints) are excluded.
type cycleStats struct {
	TotalCycles int     `json:"total_cycles"`
	MeanHours   float64 `json:"mean_hours"`
	MedianHours float64 `json:"median_hours"`
	MinHours    float64 `json:"min_hours"`
	MaxHours    float64 `json:"max_hours"`
}

func (s *Server) handleJiraStats(w http.ResponseWriter, r *http.Request) {
	cycles, err := s.loadCycles(r.URL.Query().Get("email"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())

		return
	}

	var hours []float64

	for i := range cycles {
		h := cycles[i].DurationHours()
		if h > 0 {
			hours = append(hours, h)
		}
	}

	if len(hours) == 0 {
		respondJSON(w, http.StatusOK, cycleStats{})

		return
	}

	minHours, maxHours := hours[0], hours[0]
	for _, h := range hours[1:] {
		minHours = min(minHours, h)
		maxHours = max(maxHours, h)
	}

	respondJSON(w, http.StatusOK, cycleStats{
		TotalCycles: len(hours),
		MeanHours:   mathutil.Round2(mathutil.Mean(hours)),
		MedianHours: mathutil.Round2(mathutil.Median(hours)),
		MinHours:    mathutil.Round2(minHours),
		MaxHours:    mathutil.Round2(maxHours),
	})
}
