package tpattern

import (
	"time"

	"github.com/solatis/tpattern/internal/types"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// vocabulary hands out one shared primitive type per label.
type vocabulary map[string]*types.EventType

func (v vocabulary) get(label string) *types.EventType {
	t, ok := v[label]
	if !ok {
		t = types.NewPrimitive(label)
		v[label] = t
	}
	return t
}

// ev is a test event: label plus start/end offsets in hours.
type ev struct {
	label string
	start float64
	end   float64
}

func point(label string, at float64) ev {
	return ev{label: label, start: at, end: at}
}

func hours(h float64) time.Time {
	return epoch.Add(time.Duration(h * float64(time.Hour)))
}

func (v vocabulary) period(id string, events ...ev) *types.ObservationPeriod {
	instances := make([]types.EventInstance, len(events))
	for i, e := range events {
		instances[i] = types.EventInstance{Type: v.get(e.label), First: hours(e.start), Last: hours(e.end)}
	}
	return types.NewObservationPeriod(id, instances)
}

func delays(samples []types.Interval) []int64 {
	out := make([]int64, len(samples))
	for i, s := range samples {
		out[i] = s.Delay
	}
	return out
}

func signatures(patterns []types.Pattern) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		out[i] = p.Signature()
	}
	return out
}

func findPattern(patterns []types.Pattern, leaves ...string) (types.Pattern, bool) {
	for _, p := range patterns {
		seq := p.Type.LeafSequence()
		if len(seq) != len(leaves) {
			continue
		}
		match := true
		for i := range seq {
			if seq[i] != leaves[i] {
				match = false
				break
			}
		}
		if match {
			return p, true
		}
	}
	return types.Pattern{}, false
}
