package evaluation

import (
	"fmt"
	"strings"
)

// Benchmark is a published reference score for the English to Arabic model.
type Benchmark struct {
	Name      string
	ChrF      float64
	BLEU      float64
	TER       float64
	Sentences int
}

// Benchmarks lists the reference scores regressions are measured against.
var Benchmarks = []Benchmark{
	{Name: "tatoeba-test-v2021-08-07", ChrF: 0.496, BLEU: 22.4, TER: 0.629, Sentences: 10305},
	{Name: "flores101-devtest", ChrF: 0.566, BLEU: 25.6, TER: 0.581, Sentences: 1012},
	{Name: "tico19-test", ChrF: 0.545, BLEU: 24.8, TER: 0.609, Sentences: 2100},
}

// Lookup finds a benchmark by name, ignoring case.
func Lookup(name string) (Benchmark, bool) {
	for _, b := range Benchmarks {
		if strings.EqualFold(b.Name, strings.TrimSpace(name)) {
			return b, true
		}
	}
	return Benchmark{}, false
}

// Scores are measured corpus-level metric values.
type Scores struct {
	ChrF      float64 `json:"chrf"`
	BLEU      float64 `json:"bleu"`
	TER       float64 `json:"ter"`
	Sentences int     `json:"sentences"`
}

// Score computes all metrics for aligned hypothesis and reference lines.
func Score(hypotheses, references []string) Scores {
	return Scores{
		ChrF:      ChrF(hypotheses, references),
		BLEU:      BLEU(hypotheses, references),
		TER:       TER(hypotheses, references),
		Sentences: min(len(hypotheses), len(references)),
	}
}

// Tolerance is the allowed slack per metric before a regression is flagged.
type Tolerance struct {
	ChrF float64
	BLEU float64
	TER  float64
}

// DefaultTolerance matches the evaluation section defaults.
var DefaultTolerance = Tolerance{ChrF: 0.02, BLEU: 1.0, TER: 0.02}

// Regression describes one metric outside its tolerance band.
type Regression struct {
	Metric    string
	Reference float64
	Measured  float64
	Limit     float64
}

func (r Regression) String() string {
	return fmt.Sprintf("%s %.3f outside limit %.3f (reference %.3f)", r.Metric, r.Measured, r.Limit, r.Reference)
}

// Check flags chrF or BLEU below the reference minus tolerance and TER above
// the reference plus tolerance. An empty result means no regression.
func Check(b Benchmark, s Scores, tol Tolerance) []Regression {
	var out []Regression
	if limit := b.ChrF - tol.ChrF; s.ChrF < limit {
		out = append(out, Regression{Metric: "chrF", Reference: b.ChrF, Measured: s.ChrF, Limit: limit})
	}
	if limit := b.BLEU - tol.BLEU; s.BLEU < limit {
		out = append(out, Regression{Metric: "BLEU", Reference: b.BLEU, Measured: s.BLEU, Limit: limit})
	}
	if limit := b.TER + tol.TER; s.TER > limit {
		out = append(out, Regression{Metric: "TER", Reference: b.TER, Measured: s.TER, Limit: limit})
	}
	return out
}
