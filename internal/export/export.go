// Package export writes detected patterns to CSV.
package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/solatis/tpattern/internal/types"
)

// Header lists the exported columns in order.
var Header = []string{
	"signature",
	"leaves",
	"interval_low",
	"interval_high",
	"support",
	"occurrences",
	"n_a",
	"n_b",
	"probability",
	"p_value",
	"round",
	"maximal",
}

// WriteCSV writes one row per pattern after the header.
func WriteCSV(w io.Writer, patterns []types.Pattern) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return errors.Wrap(err, "write header")
	}
	for _, p := range patterns {
		if err := cw.Write(row(p)); err != nil {
			return errors.Wrapf(err, "write pattern %s", p.Signature())
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

func row(p types.Pattern) []string {
	return []string{
		p.Signature(),
		strings.Join(p.Type.LeafSequence(), " "),
		strconv.FormatInt(p.Interval.Low, 10),
		strconv.FormatInt(p.Interval.High, 10),
		strconv.Itoa(p.Support),
		strconv.Itoa(p.Occurrences),
		strconv.Itoa(p.NA),
		strconv.Itoa(p.NB),
		strconv.FormatFloat(p.Probability, 'g', -1, 64),
		strconv.FormatFloat(p.PValue, 'g', -1, 64),
		strconv.Itoa(p.Round),
		strconv.FormatBool(p.Maximal),
	}
}
