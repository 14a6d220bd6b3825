package levenshtein

// Ratio computes a similarity score in [0, 1] between two strings:
// 1 minus the edit distance normalized by the longer string's rune
// length. Two empty strings are considered identical.
func Ratio(str1, str2 string) float64 {
	longest := max(len([]rune(str1)), len([]rune(str2)))
	if longest == 0 {
		return 1
	}

	var ctx Context

	dist := ctx.Distance(str1, str2)

	return 1 - float64(dist)/float64(longest)
}
