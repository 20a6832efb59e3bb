package tpattern

import (
	"math"

	"github.com/solatis/tpattern/internal/types"
	"gonum.org/v1/gonum/stat/distuv"
)

/*
 * Critical interval search.
 *
 * Null model: B occurs as a uniform-rate process with rate N_b / T. A window
 * of width w after an A instance then contains at least one B with
 * probability p = 1 - (1 - N_b/T)^w. Over N_a independent A instances the
 * number of windows holding a B is Binomial(N_a, p).
 *
 * Candidate windows [d1, d2] take both bounds from observed delays. For each
 * low index the high index walks down from the last sample, so wider windows
 * are tried first. The first window whose p-value 1 - CDF(N_ab) falls below
 * the significance threshold is returned; later windows are never examined.
 *
 * Degenerate inputs (no trials, no elapsed time, p outside (0, 1)) yield no
 * interval rather than an error.
 */

// DefaultSignificance is the per-test p-value threshold.
const DefaultSignificance = 0.05

// Finding is a confirmed critical interval with its test statistics.
type Finding struct {
	Interval    types.CriticalInterval
	Support     int     // N_ab
	Probability float64 // per-trial success probability p
	PValue      float64
}

// Searcher runs the critical interval test.
type Searcher struct {
	Significance float64
}

// Search looks for a critical interval in samples, which must be ascending.
// na and nb are the global occurrence counts of A and B; total is the grand
// total elapsed time in units.
func (s Searcher) Search(samples []types.Interval, na, nb int, total int64) (Finding, bool) {
	n := len(samples)
	if n < 2 || na <= 0 || nb <= 0 || total <= 0 {
		return Finding{}, false
	}
	rate := float64(nb) / float64(total)
	if rate >= 1 {
		return Finding{}, false
	}

	alpha := s.Significance
	if alpha <= 0 {
		alpha = DefaultSignificance
	}

	for low := 0; low < n; low++ {
		for high := n - 1; high > low; high-- {
			d1, d2 := samples[low].Delay, samples[high].Delay
			nab := countWithin(samples, d1, d2)
			p := successProbability(rate, d2-d1+1)

			pv, ok := pValue(nab, na, p)
			if ok && pv < alpha {
				return Finding{
					Interval:    types.CriticalInterval{Low: d1, High: d2},
					Support:     nab,
					Probability: p,
					PValue:      pv,
				}, true
			}
		}
	}
	return Finding{}, false
}

// successProbability returns 1 - (1 - rate)^width.
func successProbability(rate float64, width int64) float64 {
	return -math.Expm1(float64(width) * math.Log1p(-rate))
}

// pValue returns 1 - CDF(hits) = P(X > hits) for X ~ Binomial(trials, p).
// ok is false when the test is undefined for the inputs.
func pValue(hits, trials int, p float64) (float64, bool) {
	if trials <= 0 || math.IsNaN(p) || p <= 0 || p >= 1 {
		return 0, false
	}
	binomial := distuv.Binomial{N: float64(trials), P: p}
	return binomial.Survival(float64(hits)), true
}
