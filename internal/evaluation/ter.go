package evaluation

import "slices"

const (
	terMaxShiftSize     = 10
	terMaxShiftDistance = 50
)

// TER returns the corpus-level translation edit rate: insertions, deletions,
// substitutions and block shifts needed to turn each hypothesis into its
// reference, divided by the total number of reference words.
func TER(hypotheses, references []string) float64 {
	edits, words := 0, 0
	for i := range hypotheses {
		if i >= len(references) {
			break
		}
		hyp := tokenize(hypotheses[i])
		ref := tokenize(references[i])
		edits += terEdits(hyp, ref)
		words += len(ref)
	}
	if words == 0 {
		if edits == 0 {
			return 0
		}
		return 1
	}
	return float64(edits) / float64(words)
}

// terEdits greedily applies the block shift that lowers the word edit
// distance the most until none helps, counting each shift as one edit.
func terEdits(hyp, ref []string) int {
	cur := slices.Clone(hyp)
	dist := editDistance(cur, ref)
	shifts := 0
	for range len(hyp) {
		if dist == 0 {
			break
		}
		next, nextDist, ok := bestShift(cur, ref, dist)
		if !ok {
			break
		}
		cur, dist = next, nextDist
		shifts++
	}
	return shifts + dist
}

func bestShift(cur, ref []string, dist int) ([]string, int, bool) {
	var (
		best     []string
		bestDist = dist
	)
	for start := range cur {
		for size := 1; size <= terMaxShiftSize && start+size <= len(cur); size++ {
			phrase := cur[start : start+size]
			for refPos := 0; refPos+size <= len(ref); refPos++ {
				if refPos == start || abs(refPos-start) > terMaxShiftDistance {
					continue
				}
				if !slices.Equal(ref[refPos:refPos+size], phrase) {
					continue
				}
				if start+size <= len(ref) && slices.Equal(ref[start:start+size], phrase) {
					continue
				}
				candidate := shiftWords(cur, start, size, refPos)
				if d := editDistance(candidate, ref); d < bestDist {
					best, bestDist = candidate, d
				}
			}
		}
	}
	return best, bestDist, best != nil
}

// shiftWords moves cur[start:start+size] so that it begins at dest in the
// result.
func shiftWords(cur []string, start, size, dest int) []string {
	phrase := slices.Clone(cur[start : start+size])
	rest := slices.Concat(cur[:start], cur[start+size:])
	if dest > len(rest) {
		dest = len(rest)
	}
	return slices.Concat(rest[:dest], phrase, rest[dest:])
}

func editDistance(a, b []string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
