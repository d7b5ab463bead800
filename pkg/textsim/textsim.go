// Package textsim scores how alike two texts are, using the classic
// common-substring decomposition (the algorithm behind PHP's
// similar_text), so thresholds tuned against legacy aggregators carry
// over unchanged.
package textsim

// Score returns a similarity score in [0, 1]: twice the number of matching
// characters divided by the combined length. Identical strings score 1,
// strings with nothing in common score 0.
func Score(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	matched := similarChars(a, b)
	return 2 * float64(matched) / float64(len(a)+len(b))
}

// similarChars counts matching characters: the longest common substring,
// plus the matches in the unmatched regions to its left and right,
// recursively.
func similarChars(a, b string) int {
	pos1, pos2, max := longestCommonRun(a, b)
	if max == 0 {
		return 0
	}

	sum := max
	if pos1 > 0 && pos2 > 0 {
		sum += similarChars(a[:pos1], b[:pos2])
	}
	if pos1+max < len(a) && pos2+max < len(b) {
		sum += similarChars(a[pos1+max:], b[pos2+max:])
	}
	return sum
}

func longestCommonRun(a, b string) (pos1, pos2, max int) {
	for i := 0; i < len(a); i++ {
		for j := 0; j < len(b); j++ {
			var k int
			for i+k < len(a) && j+k < len(b) && a[i+k] == b[j+k] {
				k++
			}
			if k > max {
				pos1, pos2, max = i, j, k
			}
		}
	}
	return pos1, pos2, max
}
