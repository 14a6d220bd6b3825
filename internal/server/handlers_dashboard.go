package server

import (
	"net/http"
	"time"

	"github.com/devpulse/devpulse/internal/dashboard"
	"github.com/devpulse/devpulse/internal/stats"
)

// userPayload is the per-user shape shared by the stats endpoints.
type userPayload struct {
	DailyStats stats.Daily   `json:"daily_stats"`
	Summary    stats.Summary `json:"summary"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

func buildUserPayload(snapshot *dashboard.Snapshot, user *dashboard.UserStats) userPayload {
	return userPayload{
		DailyStats: user.Daily,
		Summary:    user.Summary,
		UpdatedAt:  snapshot.GeneratedAt,
	}
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.snapshot()
	if err != nil {
		s.logger.Error("load snapshot", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())

		return
	}

	respondJSON(w, http.StatusOK, snapshot.Usernames())
}

func (s *Server) handleAllUserStats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.snapshot()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())

		return
	}

	payload := make(map[string]userPayload, len(snapshot.Users))
	for name, user := range snapshot.Users {
		payload[name] = buildUserPayload(snapshot, user)
	}

	respondJSON(w, http.StatusOK, payload)
}

func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.snapshot()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())

		return
	}

	username := r.URL.Query().Get("user")
	if username == "" {
		payload := make(map[string]stats.Daily, len(snapshot.Users))
		for name, user := range snapshot.Users {
			payload[name] = user.Daily
		}

		respondJSON(w, http.StatusOK, payload)

		return
	}

	user, ok := snapshot.User(username)
	if !ok {
		respondError(w, http.StatusNotFound, "user "+username+" not found")

		return
	}

	respondJSON(w, http.StatusOK, user.Daily)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.snapshot()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())

		return
	}

	type summaryPayload struct {
		Summary   stats.Summary `json:"summary"`
		UpdatedAt time.Time     `json:"updated_at"`
	}

	username := r.URL.Query().Get("user")
	if username == "" {
		payload := make(map[string]summaryPayload, len(snapshot.Users))
		for name, user := range snapshot.Users {
			payload[name] = summaryPayload{Summary: user.Summary, UpdatedAt: snapshot.GeneratedAt}
		}

		respondJSON(w, http.StatusOK, payload)

		return
	}

	user, ok := snapshot.User(username)
	if !ok {
		respondError(w, http.StatusNotFound, "user "+username+" not found")

		return
	}

	respondJSON(w, http.StatusOK, summaryPayload{Summary: user.Summary, UpdatedAt: snapshot.GeneratedAt})
}

// timelineEntry is one date's stats flattened for charting clients.
type timelineEntry struct {
	Date         string   `json:"date"`
	Commits      int      `json:"commits"`
	Additions    int      `json:"additions"`
	Deletions    int      `json:"deletions"`
	NetLines     int      `json:"net_lines"`
	Repositories []string `json:"repositories"`
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.snapshot()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())

		return
	}

	username := r.URL.Query().Get("user")
	if username == "" {
		usernames := snapshot.Usernames()
		if len(usernames) == 0 {
			respondError(w, http.StatusBadRequest, "no users available")

			return
		}

		username = usernames[0]
	}

	user, ok := snapshot.User(username)
	if !ok {
		respondError(w, http.StatusNotFound, "user "+username+" not found")

		return
	}

	timeline := make([]timelineEntry, 0, len(user.Daily))

	for _, date := range stats.Dates(user.Daily) {
		stat := user.Daily[date]
		timeline = append(timeline, timelineEntry{
			Date:         date,
			Commits:      stat.Commits,
			Additions:    stat.Additions,
			Deletions:    stat.Deletions,
			NetLines:     stat.NetLines,
			Repositories: stat.Repositories,
		})
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"timeline": timeline,
		"summary":  user.Summary,
		"username": username,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.dashboards.Refresh(true)
	if err != nil {
		s.logger.Error("rebuild snapshot", "error", err)
		respondError(w, http.StatusInternalServerError, err.Error())

		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"users":        snapshot.Usernames(),
		"generated_at": snapshot.GeneratedAt,
	})
}

func (s *Server) handleCacheInfo(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.snapshot()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())

		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"generated_at": snapshot.GeneratedAt,
		"loaded_at":    s.dashboards.LoadedAt(),
		"users":        snapshot.Usernames(),
	})
}

func (s *Server) handleUserMappings(w http.ResponseWriter, r *http.Request) {
	mappings, err := s.mappings.All()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())

		return
	}

	if mappings == nil {
		respondJSON(w, http.StatusOK, []struct{}{})

		return
	}

	respondJSON(w, http.StatusOK, mappings)
}
