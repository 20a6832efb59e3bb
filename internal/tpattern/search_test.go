package tpattern

import (
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/solatis/tpattern/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplesOf(ds ...int64) []types.Interval {
	out := make([]types.Interval, len(ds))
	for i, d := range ds {
		out[i] = types.Interval{Delay: d}
	}
	return out
}

func TestSearch_DegenerateInputs(t *testing.T) {
	s := Searcher{Significance: DefaultSignificance}

	tests := []struct {
		name    string
		samples []types.Interval
		na, nb  int
		total   int64
	}{
		{"no samples", nil, 5, 5, 100},
		{"single sample", samplesOf(3), 5, 5, 100},
		{"no first occurrences", samplesOf(1, 1), 0, 5, 100},
		{"no last occurrences", samplesOf(1, 1), 5, 0, 100},
		{"no elapsed time", samplesOf(0, 0), 5, 5, 0},
		{"rate at least one", samplesOf(1, 1), 5, 10, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := s.Search(tt.samples, tt.na, tt.nb, tt.total)
			assert.False(t, ok)
		})
	}
}

func TestSearch_WidestWindowFromLowestDelayFirst(t *testing.T) {
	s := Searcher{Significance: DefaultSignificance}

	// [1,2] and [2,2] are significant as well, but [1,3] is examined first.
	finding, ok := s.Search(samplesOf(1, 2, 2, 2, 3), 5, 5, 1000)
	require.True(t, ok)
	assert.Equal(t, types.CriticalInterval{Low: 1, High: 3}, finding.Interval)
	assert.Equal(t, 5, finding.Support)
	assert.InDelta(t, successProbability(0.005, 3), finding.Probability, 1e-12)
	assert.Less(t, finding.PValue, DefaultSignificance)
}

func TestSearch_SpreadDelaysNotSignificant(t *testing.T) {
	s := Searcher{Significance: DefaultSignificance}
	// Three of thirty A instances is well below the expected hit count of
	// every candidate window.
	_, ok := s.Search(samplesOf(0, 50, 100), 30, 3, 110)
	assert.False(t, ok)
}

func TestSearch_Threshold(t *testing.T) {
	// p = 0.1 per trial; 1 - CDF(3; 10, 0.1) = 0.0127952.
	samples := samplesOf(2, 2, 2)

	_, ok := Searcher{Significance: 0.01}.Search(samples, 10, 1, 10)
	assert.False(t, ok)

	finding, ok := Searcher{Significance: DefaultSignificance}.Search(samples, 10, 1, 10)
	require.True(t, ok)
	assert.Equal(t, types.CriticalInterval{Low: 2, High: 2}, finding.Interval)
	assert.Equal(t, 3, finding.Support)
	assert.InDelta(t, 0.1, finding.Probability, 1e-12)
	assert.InDelta(t, 0.0127951984, finding.PValue, 1e-9)
}

func TestSuccessProbability(t *testing.T) {
	assert.InDelta(t, 0.1, successProbability(0.1, 1), 1e-12)
	assert.InDelta(t, 0.19, successProbability(0.1, 2), 1e-12)
	assert.InDelta(t, 1-0.9*0.9*0.9, successProbability(0.1, 3), 1e-12)
}

func TestPValue(t *testing.T) {
	tests := []struct {
		name   string
		hits   int
		trials int
		p      float64
		want   float64
	}{
		{"no hits", 0, 4, 0.3, 1 - 0.7*0.7*0.7*0.7},
		{"one of two", 1, 2, 0.5, 0.25},
		{"both of two", 2, 2, 0.5, 0},
		{"one of three", 1, 3, 0.1, 0.028},
		{"three of ten", 3, 10, 0.1, 0.0127951984},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pValue(tt.hits, tt.trials, tt.p)
			require.True(t, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	_, ok := pValue(1, 0, 0.5)
	assert.False(t, ok, "zero trials")
	_, ok = pValue(1, 3, 0)
	assert.False(t, ok, "zero probability")
	_, ok = pValue(1, 3, 1)
	assert.False(t, ok, "certain success")
}

// Property-based test: a finding is always a well-formed window over the samples.
func TestSearch_PropertyFindingShape(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("bounds come from samples and support matches the window", prop.ForAll(
		func(raw []int64, na int, total int64) bool {
			samples := make([]types.Interval, len(raw))
			for i, d := range raw {
				samples[i] = types.Interval{Delay: d}
			}
			slices.SortFunc(samples, func(a, b types.Interval) int {
				return int(a.Delay - b.Delay)
			})

			finding, ok := Searcher{Significance: DefaultSignificance}.Search(samples, na, na, total)
			if !ok {
				return true
			}
			low, high := finding.Interval.Low, finding.Interval.High
			hasDelay := func(d int64) bool {
				return slices.ContainsFunc(samples, func(iv types.Interval) bool { return iv.Delay == d })
			}
			return low <= high &&
				hasDelay(low) && hasDelay(high) &&
				finding.Support == countWithin(samples, low, high) &&
				finding.PValue < DefaultSignificance &&
				finding.Probability > 0 && finding.Probability < 1
		},
		gen.SliceOf(gen.Int64Range(0, 30)),
		gen.IntRange(1, 40),
		gen.Int64Range(50, 500),
	))

	properties.TestingRun(t)
}
