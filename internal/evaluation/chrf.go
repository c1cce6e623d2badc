package evaluation

import "unicode"

const (
	chrfOrder = 6
	chrfBeta  = 2.0
)

// ChrF returns the corpus-level character n-gram F-score on a 0-1 scale.
// Whitespace is ignored. Statistics are summed over all sentence pairs before
// precision and recall are averaged over n-gram orders.
func ChrF(hypotheses, references []string) float64 {
	var matches, hypTotal, refTotal [chrfOrder]int
	for i := range hypotheses {
		if i >= len(references) {
			break
		}
		hyp := chrfChars(hypotheses[i])
		ref := chrfChars(references[i])
		for n := 1; n <= chrfOrder; n++ {
			h := charNgrams(hyp, n)
			r := charNgrams(ref, n)
			for gram, count := range h {
				hypTotal[n-1] += count
				matches[n-1] += min(count, r[gram])
			}
			for _, count := range r {
				refTotal[n-1] += count
			}
		}
	}

	var precision, recall float64
	orders := 0
	for n := range chrfOrder {
		if hypTotal[n] == 0 && refTotal[n] == 0 {
			continue
		}
		orders++
		if hypTotal[n] > 0 {
			precision += float64(matches[n]) / float64(hypTotal[n])
		}
		if refTotal[n] > 0 {
			recall += float64(matches[n]) / float64(refTotal[n])
		}
	}
	if orders == 0 {
		return 0
	}
	precision /= float64(orders)
	recall /= float64(orders)
	if precision == 0 && recall == 0 {
		return 0
	}
	beta2 := chrfBeta * chrfBeta
	return (1 + beta2) * precision * recall / (beta2*precision + recall)
}

func chrfChars(s string) []rune {
	s = Normalize(s)
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func charNgrams(chars []rune, n int) map[string]int {
	grams := make(map[string]int)
	for i := 0; i+n <= len(chars); i++ {
		grams[string(chars[i:i+n])]++
	}
	return grams
}
