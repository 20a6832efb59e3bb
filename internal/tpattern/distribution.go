package tpattern

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/solatis/tpattern/internal/types"
)

/*
 * Distribution building.
 *
 * For every observation period the builder records, per ordered event-type
 * pair (A, B), the delays between A instances and later B instances:
 *
 *   1. Instances are scanned in reverse chronological order.
 *   2. Each A instance is paired with later B instances starting strictly
 *      after A ends, nearest first.
 *   3. A sample is recorded only if neither instance was already used on the
 *      same side of a recorded sample for that pair. Each A therefore keeps
 *      its nearest unused B, and each B is the right-hand side of at most one
 *      sample per pair.
 *
 * Delays are measured from A's end to B's start and truncated to whole units.
 *
 * Results from independent periods are combined through Accumulator.Merge, so
 * per-period work never touches shared state.
 */

// Pair is an ordered (A, B) pair of event types under test.
// It carries no critical interval; confirmed pairs become composite EventTypes.
type Pair struct {
	First *types.EventType
	Last  *types.EventType
}

// PairKey identifies a pair by the leaf sequences of both sides.
type PairKey struct {
	First string
	Last  string
}

// Key returns the map key of the pair.
func (p Pair) Key() PairKey {
	return PairKey{First: p.First.Key(), Last: p.Last.Key()}
}

func (p Pair) String() string {
	return "(" + p.First.String() + " " + p.Last.String() + ")"
}

// rendering concatenates the leaf labels of both sides, e.g. "ABC" for (A BC).
func (p Pair) rendering() string {
	return strings.Join(p.First.LeafSequence(), "") + strings.Join(p.Last.LeafSequence(), "")
}

// Distribution holds the delay samples of one pair, ascending by delay.
type Distribution struct {
	Pair    Pair
	Samples []types.Interval
}

// Add inserts iv after any sample with an equal delay.
func (d *Distribution) Add(iv types.Interval) {
	i := upperBound(d.Samples, iv.Delay)
	d.Samples = slices.Insert(d.Samples, i, iv)
}

// CountWithin returns the number of samples with low <= delay <= high.
func (d *Distribution) CountWithin(low, high int64) int {
	return countWithin(d.Samples, low, high)
}

func lowerBound(samples []types.Interval, delay int64) int {
	i, _ := slices.BinarySearchFunc(samples, delay, func(iv types.Interval, d int64) int {
		if iv.Delay < d {
			return -1
		}
		return 1
	})
	return i
}

func upperBound(samples []types.Interval, delay int64) int {
	i, _ := slices.BinarySearchFunc(samples, delay, func(iv types.Interval, d int64) int {
		if iv.Delay <= d {
			return -1
		}
		return 1
	})
	return i
}

func countWithin(samples []types.Interval, low, high int64) int {
	if low > high {
		return 0
	}
	return upperBound(samples, high) - lowerBound(samples, low)
}

// Accumulator collects event-type counts, total elapsed time and delay
// distributions across observation periods.
type Accumulator struct {
	counts    map[string]int
	vocab     map[string]*types.EventType
	totalTime int64
	dists     map[PairKey]*Distribution
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		counts: make(map[string]int),
		vocab:  make(map[string]*types.EventType),
		dists:  make(map[PairKey]*Distribution),
	}
}

// Count returns the accumulated occurrences of t.
func (a *Accumulator) Count(t *types.EventType) int {
	return a.counts[t.Key()]
}

// TotalTime returns the accumulated elapsed time in whole units.
func (a *Accumulator) TotalTime() int64 {
	return a.totalTime
}

// Vocabulary returns every counted event type ordered by leaf sequence.
func (a *Accumulator) Vocabulary() []*types.EventType {
	out := make([]*types.EventType, 0, len(a.vocab))
	for _, t := range a.vocab {
		out = append(out, t)
	}
	slices.SortFunc(out, func(x, y *types.EventType) int {
		return x.Compare(y)
	})
	return out
}

// Distribution returns the samples recorded for p, or nil.
func (a *Accumulator) Distribution(p Pair) *Distribution {
	return a.dists[p.Key()]
}

// Distributions returns all non-empty distributions in ascending order of
// the concatenated leaf labels of the pair. Ties fall back to the tree
// rendering. Search order depends on this ordering.
func (a *Accumulator) Distributions() []*Distribution {
	out := make([]*Distribution, 0, len(a.dists))
	for _, d := range a.dists {
		if len(d.Samples) > 0 {
			out = append(out, d)
		}
	}
	slices.SortFunc(out, func(x, y *Distribution) int {
		if c := cmp.Compare(x.Pair.rendering(), y.Pair.rendering()); c != 0 {
			return c
		}
		if c := cmp.Compare(x.Pair.String(), y.Pair.String()); c != 0 {
			return c
		}
		return cmp.Compare(x.Pair.First.Key()+"\x00"+x.Pair.Last.Key(), y.Pair.First.Key()+"\x00"+y.Pair.Last.Key())
	})
	return out
}

func (a *Accumulator) observe(t *types.EventType, n int) {
	if _, ok := a.vocab[t.Key()]; !ok {
		a.vocab[t.Key()] = t
	}
	a.counts[t.Key()] += n
}

func (a *Accumulator) distribution(p Pair) *Distribution {
	key := p.Key()
	d, ok := a.dists[key]
	if !ok {
		d = &Distribution{Pair: p}
		a.dists[key] = d
	}
	return d
}

// Merge adds o's counts, total time and samples into a.
// Samples are inserted one by one so every distribution stays ordered.
func (a *Accumulator) Merge(o *Accumulator) {
	for key, n := range o.counts {
		a.observe(o.vocab[key], n)
	}
	a.totalTime += o.totalTime
	for _, d := range o.dists {
		target := a.distribution(d.Pair)
		for _, iv := range d.Samples {
			target.Add(iv)
		}
	}
}

// Builder computes distributions for a set of observation periods.
type Builder struct {
	// Unit is the duration of one delay unit.
	Unit time.Duration
	// Window excludes samples with a larger delay; zero disables the limit.
	Window int64
	// MinEventSupport excludes event types with fewer occurrences from pairing.
	MinEventSupport int
}

// Build tallies every period, then collects delay samples for the event
// types meeting MinEventSupport.
func (b Builder) Build(periods []*types.ObservationPeriod) *Accumulator {
	acc := NewAccumulator()
	for _, p := range periods {
		acc.Merge(b.Tally(p))
	}

	supported := make(map[string]bool, len(acc.counts))
	for key, n := range acc.counts {
		supported[key] = n >= b.MinEventSupport
	}

	for _, p := range periods {
		acc.Merge(b.Sample(p, func(t *types.EventType) bool {
			return supported[t.Key()]
		}))
	}
	return acc
}

// Tally counts the instances of one period and its elapsed time.
// Empty periods contribute nothing.
func (b Builder) Tally(p *types.ObservationPeriod) *Accumulator {
	acc := NewAccumulator()
	if p.Len() == 0 {
		return acc
	}
	for _, e := range p.Events {
		acc.observe(e.Type, 1)
	}
	acc.totalTime = b.units(p.Span())
	return acc
}

// Sample collects the delay samples of one period for pairs whose sides
// both satisfy include. A nil include admits every type.
func (b Builder) Sample(p *types.ObservationPeriod, include func(*types.EventType) bool) *Accumulator {
	acc := NewAccumulator()
	b.walk(p, include, func(pair Pair, _, _ int, delay int64) {
		acc.distribution(pair).Add(types.Interval{Delay: delay})
	})
	return acc
}

// walk applies the closest-unused sampling rule to one period and calls emit
// with the indices of both instances for every recorded sample.
func (b Builder) walk(p *types.ObservationPeriod, include func(*types.EventType) bool, emit func(pair Pair, i, j int, delay int64)) {
	if include == nil {
		include = func(*types.EventType) bool { return true }
	}

	type usage struct {
		first map[int]bool
		last  map[int]bool
	}
	used := make(map[PairKey]*usage)

	events := p.Events
	for i := len(events) - 1; i >= 0; i-- {
		a := events[i]
		if !include(a.Type) {
			continue
		}
		for j := i + 1; j < len(events); j++ {
			bi := events[j]
			if !bi.First.After(a.Last) || !include(bi.Type) {
				continue
			}

			pair := Pair{First: a.Type, Last: bi.Type}
			key := pair.Key()
			u, ok := used[key]
			if !ok {
				u = &usage{first: make(map[int]bool), last: make(map[int]bool)}
				used[key] = u
			}
			if u.first[i] || u.last[j] {
				continue
			}

			delay := b.units(bi.First.Sub(a.Last))
			if b.Window > 0 && delay > b.Window {
				continue
			}

			emit(pair, i, j, delay)
			u.first[i] = true
			u.last[j] = true
		}
	}
}

// units truncates d toward zero to whole time units.
func (b Builder) units(d time.Duration) int64 {
	return int64(d / b.unit())
}

func (b Builder) unit() time.Duration {
	if b.Unit <= 0 {
		return time.Hour
	}
	return b.Unit
}
