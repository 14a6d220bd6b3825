package mapping

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const matchThreshold = 0.7

var (
	testSuffixes = []string{"-gcmlp", "-gcm", "gcmlp", "gcm"}
	testDenyList = []string{"[bot]", "copilot", "dependabot", "devops-"}
)

func newMatcher() *Matcher {
	return NewMatcher(matchThreshold, testSuffixes, testDenyList)
}

func TestNormalizeSource(t *testing.T) {
	t.Parallel()

	m := newMatcher()

	tests := []struct {
		username string
		want     string
	}{
		{"echang-gcmlp", "echang"},
		{"sjensen-gcm", "sjensen"},
		{"jmotylinskigcmlp", "jmotylinski"},
		{"HiltonGiesenow", "hiltongiesenow"},
		{"trailing-_", "trailing"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, m.NormalizeSource(tt.username), "username %q", tt.username)
	}
}

func TestNormalizeTracker(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "echang", NormalizeTracker("echang@gcmlp.com"))
	assert.Equal(t, "jdoe", NormalizeTracker("JDoe@Example.com"))
	assert.Equal(t, "noatsign", NormalizeTracker("NoAtSign"))
	assert.Equal(t, "", NormalizeTracker(""))
}

func TestScore(t *testing.T) {
	t.Parallel()

	m := newMatcher()

	assert.Equal(t, 1.0, m.Score("echang", "echang"))

	// Containment floors the score even when edit distance is poor.
	assert.GreaterOrEqual(t, m.Score("chang", "echang"), 0.85)

	assert.Less(t, m.Score("alice", "zq"), matchThreshold)
}

func TestBestMatch(t *testing.T) {
	t.Parallel()

	m := newMatcher()
	emails := []string{"echang@gcmlp.com", "sjensen@gcmlp.com", "ops@gcmlp.com"}

	email, score, ok := m.BestMatch("echang-gcmlp", emails)
	require.True(t, ok)
	assert.Equal(t, "echang@gcmlp.com", email)
	assert.Equal(t, 1.0, score)

	_, _, ok = m.BestMatch("completely-unrelated-xyz", emails)
	assert.False(t, ok)
}

func TestBuildSkipsDeniedAndCollectsUnmatched(t *testing.T) {
	t.Parallel()

	m := newMatcher()
	usernames := []string{"renovate[bot]", "echang-gcmlp", "mystery-user-zzz", "devops-runner"}
	emails := []string{"echang@gcmlp.com"}

	mappings, unmatched := m.Build(usernames, emails)

	require.Len(t, mappings, 1)
	assert.Equal(t, Mapping{Source: "echang-gcmlp", Tracker: "echang@gcmlp.com"}, mappings[0])
	assert.Equal(t, []string{"mystery-user-zzz"}, unmatched)
}

func TestStoreLookupsAndMissingTable(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), MappingFilename)
	store := NewStore(path)

	// Missing table is an empty list.
	all, err := store.All()
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, store.Write([]Mapping{
		{Source: "echang-gcmlp", Tracker: "echang@gcmlp.com"},
	}))

	tracker, ok, lookupErr := store.TrackerFor("ECHANG-GCMLP")
	require.NoError(t, lookupErr)
	require.True(t, ok)
	assert.Equal(t, "echang@gcmlp.com", tracker)

	source, ok, reverseErr := store.SourceFor("Echang@GCMLP.com")
	require.NoError(t, reverseErr)
	require.True(t, ok)
	assert.Equal(t, "echang-gcmlp", source)

	_, ok, missErr := store.TrackerFor("nobody")
	require.NoError(t, missErr)
	assert.False(t, ok)
}

func TestStoreReloadsAfterRewrite(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), MappingFilename)
	store := NewStore(path)

	require.NoError(t, store.Write([]Mapping{{Source: "a", Tracker: "a@example.com"}}))

	first, firstErr := store.All()
	require.NoError(t, firstErr)
	require.Len(t, first, 1)

	require.NoError(t, store.Write([]Mapping{
		{Source: "a", Tracker: "a@example.com"},
		{Source: "b", Tracker: "b@example.com"},
	}))

	second, secondErr := store.All()
	require.NoError(t, secondErr)
	assert.Len(t, second, 2)

	// An external rewrite is picked up via the mtime guard.
	raw := "github,jira\nc,c@example.com\n"
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	third, thirdErr := store.All()
	require.NoError(t, thirdErr)
	require.Len(t, third, 1)
	assert.Equal(t, "c", third[0].Source)
}
