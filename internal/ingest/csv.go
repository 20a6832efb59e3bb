package ingest

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// CSV column names. last_timestamp is optional; a missing or empty value
// makes the record a point event.
const (
	ColumnPeriod = "period_id"
	ColumnType   = "event_type"
	ColumnFirst  = "first_timestamp"
	ColumnLast   = "last_timestamp"
)

// CSVOptions controls timestamp parsing.
// Timestamps are RFC3339, or integer offsets of Unit from Epoch.
type CSVOptions struct {
	Epoch time.Time
	Unit  time.Duration
}

func (o CSVOptions) unit() time.Duration {
	if o.Unit <= 0 {
		return time.Hour
	}
	return o.Unit
}

func (o CSVOptions) epoch() time.Time {
	if o.Epoch.IsZero() {
		return time.Unix(0, 0).UTC()
	}
	return o.Epoch
}

// ParseTimestamp parses an RFC3339 timestamp or an integer unit offset.
func (o CSVOptions) ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return o.epoch().Add(time.Duration(n) * o.unit()), nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, errors.Newf("timestamp %q is neither RFC3339 nor an integer offset", s)
	}
	return t, nil
}

// ReadCSV reads records from r. The first row is a header naming the columns
// in any order; unknown columns are ignored.
func ReadCSV(r io.Reader, opts CSVOptions) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New("csv: missing header row")
	}
	if err != nil {
		return nil, errors.Wrap(err, "csv: read header")
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{ColumnPeriod, ColumnType, ColumnFirst} {
		if _, ok := columns[required]; !ok {
			return nil, errors.Newf("csv: missing column %q", required)
		}
	}
	lastCol, hasLast := columns[ColumnLast]

	field := func(row []string, i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "csv: line %d", line)
		}

		first, err := opts.ParseTimestamp(field(row, columns[ColumnFirst]))
		if err != nil {
			return nil, errors.Wrapf(err, "csv: line %d: %s", line, ColumnFirst)
		}
		last := first
		if hasLast {
			if raw := field(row, lastCol); raw != "" {
				last, err = opts.ParseTimestamp(raw)
				if err != nil {
					return nil, errors.Wrapf(err, "csv: line %d: %s", line, ColumnLast)
				}
			}
		}

		rec := Record{
			PeriodID: field(row, columns[ColumnPeriod]),
			Label:    field(row, columns[ColumnType]),
			First:    first,
			Last:     last,
		}
		if err := rec.Validate(); err != nil {
			return nil, errors.Wrapf(err, "csv: line %d", line)
		}
		records = append(records, rec)
	}
	return records, nil
}
