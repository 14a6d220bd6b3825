// Package mapping links source-control usernames to issue-tracker
// email addresses. Matching is fuzzy: corporate accounts carry org
// suffixes on the forge side that the tracker email local part lacks.
package mapping

import (
	"sort"
	"strings"

	"github.com/devpulse/devpulse/pkg/levenshtein"
)

// substringScore is the floor applied when one normalized identity
// contains the other.
const substringScore = 0.85

// exactScore is the score of an exact normalized match.
const exactScore = 1.0

// Mapping links one source-control username to one tracker email.
type Mapping struct {
	Source  string `json:"github"`
	Tracker string `json:"jira"`
}

// Matcher scores identity pairs and builds mapping tables.
type Matcher struct {
	threshold float64
	suffixes  []string
	denyList  []string
}

// NewMatcher creates a matcher. Suffixes are tried in order and only
// the first match is stripped; deny list entries are substring checks
// against the lowercased username.
func NewMatcher(threshold float64, suffixes, denyList []string) *Matcher {
	return &Matcher{threshold: threshold, suffixes: suffixes, denyList: denyList}
}

// NormalizeSource canonicalizes a forge username: lowercase, strip the
// first matching org suffix, then trim trailing separators.
func (m *Matcher) NormalizeSource(username string) string {
	name := strings.ToLower(username)

	for _, suffix := range m.suffixes {
		if strings.HasSuffix(name, suffix) {
			name = name[:len(name)-len(suffix)]

			break
		}
	}

	return strings.TrimRight(name, "-_")
}

// NormalizeTracker canonicalizes a tracker email to its lowercased
// local part. Values without "@" are lowercased as-is.
func NormalizeTracker(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found {
		return strings.ToLower(email)
	}

	return strings.ToLower(local)
}

// Denied reports whether the username belongs to a bot or service
// account that must never be mapped.
func (m *Matcher) Denied(username string) bool {
	lowered := strings.ToLower(username)

	for _, pattern := range m.denyList {
		if strings.Contains(lowered, pattern) {
			return true
		}
	}

	return false
}

// Score rates how well a normalized username and a normalized email
// local part identify the same person, in [0,1].
func (m *Matcher) Score(normSource, normTracker string) float64 {
	if normSource == normTracker {
		return exactScore
	}

	score := levenshtein.Ratio(normSource, normTracker)

	if strings.Contains(normTracker, normSource) || strings.Contains(normSource, normTracker) {
		score = max(score, substringScore)
	}

	return score
}

// BestMatch finds the tracker email scoring highest against the
// username. The second result is false when no candidate reaches the
// threshold.
func (m *Matcher) BestMatch(username string, emails []string) (string, float64, bool) {
	normSource := m.NormalizeSource(username)
	if normSource == "" {
		return "", 0, false
	}

	var (
		bestEmail string
		bestScore float64
	)

	for _, email := range emails {
		normTracker := NormalizeTracker(email)
		if normTracker == "" {
			continue
		}

		score := m.Score(normSource, normTracker)
		if score == exactScore {
			return email, exactScore, true
		}

		if score > bestScore {
			bestScore = score
			bestEmail = email
		}
	}

	if bestScore >= m.threshold {
		return bestEmail, bestScore, true
	}

	return "", 0, false
}

// Build maps every non-denied username to its best tracker match.
// Usernames are processed in sorted order so output is deterministic;
// unmatched usernames are returned separately for operator review.
func (m *Matcher) Build(usernames, emails []string) (mappings []Mapping, unmatched []string) {
	sorted := append([]string(nil), usernames...)
	sort.Strings(sorted)

	for _, username := range sorted {
		if m.Denied(username) {
			continue
		}

		email, _, ok := m.BestMatch(username, emails)
		if !ok {
			unmatched = append(unmatched, username)

			continue
		}

		mappings = append(mappings, Mapping{Source: username, Tracker: email})
	}

	return mappings, unmatched
}
