package evaluation

import (
	"math"
	"strings"
)

const bleuOrder = 4

// BLEU returns corpus-level BLEU on a 0-100 scale with the brevity penalty
// and exponential smoothing of zero-match orders.
func BLEU(hypotheses, references []string) float64 {
	var matches, totals [bleuOrder]int
	hypLen, refLen := 0, 0
	for i := range hypotheses {
		if i >= len(references) {
			break
		}
		hyp := tokenize(hypotheses[i])
		ref := tokenize(references[i])
		hypLen += len(hyp)
		refLen += len(ref)
		for n := 1; n <= bleuOrder; n++ {
			h := wordNgrams(hyp, n)
			r := wordNgrams(ref, n)
			for gram, count := range h {
				totals[n-1] += count
				matches[n-1] += min(count, r[gram])
			}
		}
	}
	if hypLen == 0 {
		return 0
	}

	var logSum float64
	smooth := 1.0
	for n := range bleuOrder {
		if totals[n] == 0 {
			return 0
		}
		var p float64
		if matches[n] == 0 {
			smooth *= 2
			p = 1 / (smooth * float64(totals[n]))
		} else {
			p = float64(matches[n]) / float64(totals[n])
		}
		logSum += math.Log(p)
	}

	bp := 1.0
	if hypLen < refLen {
		bp = math.Exp(1 - float64(refLen)/float64(hypLen))
	}
	return 100 * bp * math.Exp(logSum/bleuOrder)
}

func wordNgrams(words []string, n int) map[string]int {
	grams := make(map[string]int)
	for i := 0; i+n <= len(words); i++ {
		grams[strings.Join(words[i:i+n], "\x00")]++
	}
	return grams
}
