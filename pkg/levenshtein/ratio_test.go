package levenshtein

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRatio_Identical(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, Ratio("echang", "echang"), 1e-9)
}

func TestRatio_Empty(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, Ratio("", ""), 1e-9)
	assert.InDelta(t, 0.0, Ratio("", "abc"), 1e-9)
}

func TestRatio_Partial(t *testing.T) {
	t.Parallel()

	// One substitution in a six-rune string.
	assert.InDelta(t, 1-1.0/6, Ratio("echang", "echanx"), 1e-9)
}

func TestRatio_Disjoint(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.0, Ratio("abc", "xyz"), 1e-9)
}
