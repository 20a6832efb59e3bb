package tpattern

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/solatis/tpattern/internal/types"
)

/*
 * Pattern synthesis.
 *
 * A round scans every period. For each instance i1 and each composite type
 * whose first side equals i1's type, later instances i2 of the last side are
 * checked against the critical interval using the start-to-start delay
 * (i2.First - i1.First, fractional units). The first qualifying i2 yields a
 * composite instance spanning i1.First..i2.Last.
 *
 * A composite type is instantiated at most once per period. A type with an
 * instance already in the period is claimed before the scan starts, so later
 * rounds only add types that became reachable through the previous round's
 * instances. The fixed point is reached within composite-depth rounds.
 *
 * Instances created in a round are inserted only after every period has been
 * scanned. Rounds repeat until one adds nothing; MaxRounds bounds the loop.
 */

// DefaultMaxSynthesisRounds bounds the synthesis fixed point.
const DefaultMaxSynthesisRounds = 10000

// Synthesizer injects composite instances into observation periods.
type Synthesizer struct {
	Unit      time.Duration
	MaxRounds int
}

// SynthesisStats summarizes one synthesis fixed point.
type SynthesisStats struct {
	Rounds int
	Added  int
}

// Synthesize runs rounds until no new instance appears.
// Returns ErrRoundLimitExceeded once more than MaxRounds rounds produced instances.
func (s Synthesizer) Synthesize(periods []*types.ObservationPeriod, composites []*types.EventType) (SynthesisStats, error) {
	var stats SynthesisStats
	limit := s.MaxRounds
	if limit <= 0 {
		limit = DefaultMaxSynthesisRounds
	}

	for {
		added := s.Round(periods, composites)
		if added == 0 {
			return stats, nil
		}
		stats.Rounds++
		stats.Added += added
		if stats.Rounds > limit {
			return stats, errors.Wrapf(types.ErrRoundLimitExceeded,
				"synthesis still adding instances after %d rounds", limit)
		}
	}
}

// Round performs a single synthesis round and returns the instances added.
func (s Synthesizer) Round(periods []*types.ObservationPeriod, composites []*types.EventType) int {
	pending := make([][]types.EventInstance, len(periods))
	for i, p := range periods {
		pending[i] = s.scan(p, composites)
	}

	added := 0
	for i, p := range periods {
		for _, e := range pending[i] {
			p.Insert(e)
		}
		added += len(pending[i])
	}
	return added
}

func (s Synthesizer) scan(p *types.ObservationPeriod, composites []*types.EventType) []types.EventInstance {
	claimed := make(map[string]bool)
	for _, e := range p.Events {
		if !e.Type.IsPrimitive() {
			claimed[e.Type.Key()] = true
		}
	}

	var created []types.EventInstance
	for i, first := range p.Events {
		for _, et := range composites {
			ci, ok := et.CriticalInterval()
			if !ok || claimed[et.Key()] || !et.First().Equal(first.Type) {
				continue
			}
			for _, second := range p.Events[i+1:] {
				if !et.Last().Equal(second.Type) {
					continue
				}
				if !ci.Contains(s.units(second.First.Sub(first.First))) {
					continue
				}
				claimed[et.Key()] = true
				created = append(created, types.EventInstance{Type: et, First: first.First, Last: second.Last})
				break
			}
		}
	}
	return created
}

func (s Synthesizer) units(d time.Duration) float64 {
	unit := s.Unit
	if unit <= 0 {
		unit = time.Hour
	}
	return float64(d) / float64(unit)
}
