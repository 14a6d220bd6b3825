package server

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/devpulse/devpulse/internal/event"
	"github.com/devpulse/devpulse/internal/stats"
)

// loadAllPRs flattens every cached pull request scope.
func (s *Server) loadAllPRs() ([]event.PullRequest, error) {
	scopes, scopesErr := s.prStore.Scopes()
	if scopesErr != nil {
		return nil, fmt.Errorf("list pr scopes: %w", scopesErr)
	}

	var prs []event.PullRequest

	for _, scope := range scopes {
		scoped, loadErr := s.prStore.Load(scope)
		if loadErr != nil {
			return nil, loadErr
		}

		prs = append(prs, scoped...)
	}

	return prs, nil
}

func prsForRepo(prs []event.PullRequest, repo string) []event.PullRequest {
	var out []event.PullRequest

	for i := range prs {
		if prs[i].Repository == repo {
			out = append(out, prs[i])
		}
	}

	return out
}

func (s *Server) handlePRRepositories(w http.ResponseWriter, r *http.Request) {
	prs, err := s.loadAllPRs()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())

		return
	}

	set := make(map[string]struct{})
	for i := range prs {
		set[prs[i].Repository] = struct{}{}
	}

	repos := make([]string, 0, len(set))
	for repo := range set {
		repos = append(repos, repo)
	}

	sort.Strings(repos)

	respondJSON(w, http.StatusOK, repos)
}

func (s *Server) handlePRStats(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repo")
	if repo == "" {
		respondError(w, http.StatusBadRequest, "repo parameter required")

		return
	}

	prs, err := s.loadAllPRs()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())

		return
	}

	respondJSON(w, http.StatusOK, stats.SummarizeRepository(repo, prsForRepo(prs, repo), s.now()))
}

func (s *Server) handlePRMonthlyStats(w http.ResponseWriter, r *http.Request) {
	repo := r.URL.Query().Get("repo")
	if repo == "" {
		respondError(w, http.StatusBadRequest, "repo parameter required")

		return
	}

	prs, err := s.loadAllPRs()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())

		return
	}

	monthly := stats.AggregateByMonth(prsForRepo(prs, repo), s.now())
	if monthly == nil {
		monthly = []stats.MonthStat{}
	}

	respondJSON(w, http.StatusOK, monthly)
}
