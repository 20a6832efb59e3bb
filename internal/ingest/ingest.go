// Package ingest turns raw event records into validated observation periods.
//
// Records arrive from CSV files, the event table or gRPC requests. Every
// source goes through the same validation: labels must be non-empty and free
// of control characters, a record may not end before it starts, and when the
// vocabulary is closed every label must belong to it.
package ingest

import (
	"slices"
	"strings"
	"time"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/solatis/tpattern/internal/types"
)

// Record is one raw event occurrence.
type Record struct {
	PeriodID string
	Label    string
	First    time.Time
	Last     time.Time
}

// ValidateLabel checks that label is usable as a primitive event type.
func ValidateLabel(label string) error {
	if strings.TrimSpace(label) == "" {
		return types.ErrEmptyLabel
	}
	if strings.IndexFunc(label, unicode.IsControl) >= 0 {
		return errors.Wrapf(types.ErrInvalidLabel, "%q", label)
	}
	return nil
}

// Validate checks the label and timestamp ordering of r.
func (r Record) Validate() error {
	if err := ValidateLabel(r.Label); err != nil {
		return err
	}
	if r.Last.Before(r.First) {
		return errors.Wrapf(types.ErrInvalidTimestamps, "%s: first %s, last %s",
			r.Label, r.First.Format(time.RFC3339Nano), r.Last.Format(time.RFC3339Nano))
	}
	return nil
}

// Vocabulary maps labels to shared primitive event types.
// A closed vocabulary rejects labels it was not created with.
type Vocabulary struct {
	types  map[string]*types.EventType
	closed bool
}

// NewVocabulary returns an open vocabulary that admits any valid label.
func NewVocabulary() *Vocabulary {
	return &Vocabulary{types: make(map[string]*types.EventType)}
}

// ClosedVocabulary returns a vocabulary restricted to labels.
func ClosedVocabulary(labels ...string) (*Vocabulary, error) {
	v := NewVocabulary()
	for _, label := range labels {
		if err := ValidateLabel(label); err != nil {
			return nil, err
		}
		v.types[label] = types.NewPrimitive(label)
	}
	v.closed = true
	return v, nil
}

// Resolve returns the primitive event type for label.
func (v *Vocabulary) Resolve(label string) (*types.EventType, error) {
	if t, ok := v.types[label]; ok {
		return t, nil
	}
	if v.closed {
		return nil, errors.Wrapf(types.ErrUnknownEventType, "%q", label)
	}
	if err := ValidateLabel(label); err != nil {
		return nil, err
	}
	t := types.NewPrimitive(label)
	v.types[label] = t
	return t, nil
}

// Labels returns the known labels in ascending order.
func (v *Vocabulary) Labels() []string {
	out := make([]string, 0, len(v.types))
	for label := range v.types {
		out = append(out, label)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of known labels.
func (v *Vocabulary) Len() int {
	return len(v.types)
}

// Periods validates records and groups them into observation periods in
// order of first appearance. A nil vocabulary is treated as open.
func Periods(records []Record, vocab *Vocabulary) ([]*types.ObservationPeriod, error) {
	if vocab == nil {
		vocab = NewVocabulary()
	}

	var order []string
	grouped := make(map[string][]types.EventInstance)
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return nil, errors.Wrapf(err, "period %q record %d", r.PeriodID, i)
		}
		t, err := vocab.Resolve(r.Label)
		if err != nil {
			return nil, errors.Wrapf(err, "period %q record %d", r.PeriodID, i)
		}
		if _, ok := grouped[r.PeriodID]; !ok {
			order = append(order, r.PeriodID)
		}
		grouped[r.PeriodID] = append(grouped[r.PeriodID], types.EventInstance{Type: t, First: r.First, Last: r.Last})
	}

	periods := make([]*types.ObservationPeriod, len(order))
	for i, id := range order {
		periods[i] = types.NewObservationPeriod(id, grouped[id])
	}
	return periods, nil
}

// Records flattens periods back into primitive records, dropping composite
// instances.
func Records(periods []*types.ObservationPeriod) []Record {
	var out []Record
	for _, p := range periods {
		for _, e := range p.Events {
			if !e.Type.IsPrimitive() {
				continue
			}
			out = append(out, Record{PeriodID: p.ID, Label: e.Type.Label(), First: e.First, Last: e.Last})
		}
	}
	return out
}
