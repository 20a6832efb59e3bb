// Package types provides the event model shared across tpattern components.
//
// An EventType is a binary tree whose leaves are primitive labels. Identity,
// ordering and containment are all derived from the ordered leaf-label
// sequence, never from the tree shape: ((A B) C) and (A (B C)) denote the same
// pattern. EventType values are immutable once constructed, so pointers may be
// shared freely between observation periods and the discovery registry.
package types

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// keySeparator joins leaf labels into an EventType key.
// Unit separator (0x1f) cannot appear in labels accepted by ingest.
const keySeparator = "\x1f"

// CriticalInterval is a closed delay range [Low, High] in whole time units.
type CriticalInterval struct {
	Low  int64
	High int64
}

// Contains reports whether delay lies within the interval, bounds inclusive.
// Delay is fractional because synthesis measures start-to-start without truncation.
func (c CriticalInterval) Contains(delay float64) bool {
	return float64(c.Low) <= delay && delay <= float64(c.High)
}

// Width returns the number of unit-sized delay slots covered by the interval.
func (c CriticalInterval) Width() int64 {
	return c.High - c.Low + 1
}

func (c CriticalInterval) String() string {
	return fmt.Sprintf("[%d,%d]", c.Low, c.High)
}

// EventType classifies event instances.
// Primitive types carry a label and no critical interval. Composite types join
// First and Last and always carry the critical interval that confirmed them.
type EventType struct {
	label    string
	first    *EventType
	last     *EventType
	critical *CriticalInterval
	leaves   []string
	key      string
}

// NewPrimitive creates a primitive event type for label.
func NewPrimitive(label string) *EventType {
	return &EventType{
		label:  label,
		leaves: []string{label},
		key:    label,
	}
}

// NewComposite creates the composite type (first last) confirmed with interval ci.
func NewComposite(first, last *EventType, ci CriticalInterval) *EventType {
	leaves := make([]string, 0, len(first.leaves)+len(last.leaves))
	leaves = append(leaves, first.leaves...)
	leaves = append(leaves, last.leaves...)
	return &EventType{
		first:    first,
		last:     last,
		critical: &ci,
		leaves:   leaves,
		key:      strings.Join(leaves, keySeparator),
	}
}

// IsPrimitive reports whether t is a leaf label.
func (t *EventType) IsPrimitive() bool {
	return t.first == nil
}

// Label returns the primitive label, or "" for composite types.
func (t *EventType) Label() string {
	return t.label
}

// First returns the left subtree, nil for primitive types.
func (t *EventType) First() *EventType {
	return t.first
}

// Last returns the right subtree, nil for primitive types.
func (t *EventType) Last() *EventType {
	return t.last
}

// CriticalInterval returns the confirming interval of a composite type.
func (t *EventType) CriticalInterval() (CriticalInterval, bool) {
	if t.critical == nil {
		return CriticalInterval{}, false
	}
	return *t.critical, true
}

// LeafSequence returns the ordered primitive labels of the type tree.
func (t *EventType) LeafSequence() []string {
	return slices.Clone(t.leaves)
}

// Order returns the number of primitive labels in the type tree.
func (t *EventType) Order() int {
	return len(t.leaves)
}

// Key identifies the type by its leaf sequence. Suitable as a map key.
func (t *EventType) Key() string {
	return t.key
}

// String renders the tree with parentheses, e.g. "((A B) C)".
func (t *EventType) String() string {
	if t.IsPrimitive() {
		return t.label
	}
	return "(" + t.first.String() + " " + t.last.String() + ")"
}

// Equal reports whether both types denote the same leaf sequence.
func (t *EventType) Equal(other *EventType) bool {
	if t == other {
		return true
	}
	if t == nil || other == nil {
		return false
	}
	return t.key == other.key
}

// Compare orders types lexicographically by leaf sequence.
func (t *EventType) Compare(other *EventType) int {
	return slices.Compare(t.leaves, other.leaves)
}

// Contains reports whether other's leaf sequence is a proper ordered
// subsequence of t's. A type never contains itself or an equal type.
func (t *EventType) Contains(other *EventType) bool {
	if other == nil || len(other.leaves) >= len(t.leaves) {
		return false
	}
	matched := 0
	for _, label := range t.leaves {
		if matched < len(other.leaves) && other.leaves[matched] == label {
			matched++
		}
	}
	return matched == len(other.leaves)
}

// EventInstance is one occurrence of an event type.
// For composite instances First is the start of the first sub-event and Last
// the end of the last sub-event.
type EventInstance struct {
	Type  *EventType
	First time.Time
	Last  time.Time
}

// Interval is one observed delay sample between an A instance and its
// nearest unused B instance, in whole time units.
type Interval struct {
	Delay int64
}

// ObservationPeriod is one independent trial: its instances sorted by start.
// Periods are mutated in place as composite instances are synthesized.
type ObservationPeriod struct {
	ID     string
	Events []EventInstance
}

// NewObservationPeriod sorts events by start time, keeping arrival order for ties.
func NewObservationPeriod(id string, events []EventInstance) *ObservationPeriod {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b EventInstance) int {
		return a.First.Compare(b.First)
	})
	return &ObservationPeriod{ID: id, Events: sorted}
}

// Len returns the number of instances in the period.
func (p *ObservationPeriod) Len() int {
	return len(p.Events)
}

// Insert adds e after every instance starting at or before e.First.
func (p *ObservationPeriod) Insert(e EventInstance) {
	i, _ := slices.BinarySearchFunc(p.Events, e.First, func(x EventInstance, t time.Time) int {
		if x.First.After(t) {
			return 1
		}
		return -1
	})
	p.Events = slices.Insert(p.Events, i, e)
}

// Span returns the elapsed time from the earliest start to the latest end.
// Empty periods have zero span.
func (p *ObservationPeriod) Span() time.Duration {
	if len(p.Events) == 0 {
		return 0
	}
	first, last := p.Events[0].First, p.Events[0].Last
	for _, e := range p.Events[1:] {
		if e.First.Before(first) {
			first = e.First
		}
		if e.Last.After(last) {
			last = e.Last
		}
	}
	return last.Sub(first)
}

// Count returns the number of instances whose type equals t.
func (p *ObservationPeriod) Count(t *EventType) int {
	n := 0
	for _, e := range p.Events {
		if e.Type.Equal(t) {
			n++
		}
	}
	return n
}

// Pattern describes one confirmed T-pattern.
type Pattern struct {
	ID          PatternID
	Type        *EventType
	Interval    CriticalInterval
	Support     int     // N_ab: samples inside the critical interval
	Occurrences int     // composite instances in the final event stream
	NA          int     // occurrences of the first type when confirmed
	NB          int     // occurrences of the last type when confirmed
	Probability float64 // per-trial success probability under the null model
	PValue      float64
	Round       int
	Maximal     bool
}

// Signature renders the pattern type tree.
func (p Pattern) Signature() string {
	return p.Type.String()
}

// Run records one detection over a set of observation periods.
type Run struct {
	ID           RunID
	CreatedAt    time.Time
	Significance float64
	Window       int64
	TimeUnit     time.Duration
	Rounds       int
	PeriodCount  int
	EventCount   int
	Patterns     []Pattern
}

// RunSummary is the stored metadata of a run without its patterns.
type RunSummary struct {
	ID           RunID
	CreatedAt    time.Time
	Significance float64
	Window       int64
	TimeUnit     time.Duration
	Rounds       int
	PeriodCount  int
	EventCount   int
	PatternCount int
}

// Summary returns the metadata of r.
func (r *Run) Summary() RunSummary {
	return RunSummary{
		ID:           r.ID,
		CreatedAt:    r.CreatedAt,
		Significance: r.Significance,
		Window:       r.Window,
		TimeUnit:     r.TimeUnit,
		Rounds:       r.Rounds,
		PeriodCount:  r.PeriodCount,
		EventCount:   r.EventCount,
		PatternCount: len(r.Patterns),
	}
}
