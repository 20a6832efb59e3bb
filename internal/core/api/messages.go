package api

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/solatis/tpattern/internal/ingest"
	"github.com/solatis/tpattern/internal/types"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// DetectRequest is the decoded Detect request body.
type DetectRequest struct {
	Periods      []PeriodMessage `json:"periods"`
	Significance *float64        `json:"significance,omitempty"`
	Window       *int64          `json:"window,omitempty"`
}

// PeriodMessage is one observation period of a Detect request.
type PeriodMessage struct {
	ID     string         `json:"id"`
	Events []EventMessage `json:"events"`
}

// EventMessage is one event of a period. Last defaults to First.
type EventMessage struct {
	Type  string `json:"type"`
	First string `json:"first"`
	Last  string `json:"last,omitempty"`
}

// decodeStruct binds a Struct message onto out, rejecting unknown fields.
func decodeStruct(in *structpb.Struct, out any) error {
	if in == nil {
		in = &structpb.Struct{}
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "encode request")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return errors.Wrap(err, "decode request")
	}
	return nil
}

// EventCount returns the number of events across all periods.
func (r *DetectRequest) EventCount() int {
	n := 0
	for _, p := range r.Periods {
		n += len(p.Events)
	}
	return n
}

// Records converts the request into raw records. Timestamps are RFC3339 or
// integer offsets of unit from the Unix epoch.
func (r *DetectRequest) Records(unit time.Duration) ([]ingest.Record, error) {
	opts := ingest.CSVOptions{Unit: unit}
	var records []ingest.Record
	for i, p := range r.Periods {
		if p.ID == "" {
			return nil, errors.Newf("period %d: missing id", i)
		}
		for j, e := range p.Events {
			first, err := opts.ParseTimestamp(e.First)
			if err != nil {
				return nil, errors.Wrapf(err, "period %q event %d: first", p.ID, j)
			}
			last := first
			if e.Last != "" {
				if last, err = opts.ParseTimestamp(e.Last); err != nil {
					return nil, errors.Wrapf(err, "period %q event %d: last", p.ID, j)
				}
			}
			records = append(records, ingest.Record{PeriodID: p.ID, Label: e.Type, First: first, Last: last})
		}
	}
	return records, nil
}

func encodeDetectResponse(run *types.Run) (*structpb.Struct, error) {
	patterns := make([]any, len(run.Patterns))
	for i, p := range run.Patterns {
		leaves := p.Type.LeafSequence()
		leafValues := make([]any, len(leaves))
		for j, l := range leaves {
			leafValues[j] = l
		}
		patterns[i] = map[string]any{
			"id":          string(p.ID),
			"signature":   p.Signature(),
			"leaves":      leafValues,
			"low":         p.Interval.Low,
			"high":        p.Interval.High,
			"support":     p.Support,
			"occurrences": p.Occurrences,
			"n_a":         p.NA,
			"n_b":         p.NB,
			"probability": p.Probability,
			"p_value":     p.PValue,
			"round":       p.Round,
			"maximal":     p.Maximal,
		}
	}
	return structpb.NewStruct(map[string]any{
		"run_id":   string(run.ID),
		"rounds":   run.Rounds,
		"periods":  run.PeriodCount,
		"events":   run.EventCount,
		"patterns": patterns,
	})
}

func encodeRuns(runs []types.RunSummary) (*structpb.Struct, error) {
	out := make([]any, len(runs))
	for i, r := range runs {
		out[i] = map[string]any{
			"run_id":       string(r.ID),
			"created_at":   r.CreatedAt.UTC().Format(time.RFC3339),
			"significance": r.Significance,
			"window":       r.Window,
			"time_unit":    r.TimeUnit.String(),
			"rounds":       r.Rounds,
			"periods":      r.PeriodCount,
			"events":       r.EventCount,
			"patterns":     r.PatternCount,
		}
	}
	return structpb.NewStruct(map[string]any{"runs": out})
}
