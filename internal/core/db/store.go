package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/solatis/tpattern/internal/ingest"
	"github.com/solatis/tpattern/internal/types"
	"go.uber.org/zap"
)

// ErrRunNotFound is returned when a run ID has no stored run.
var ErrRunNotFound = errors.New("run not found")

// PatternRecord is one stored pattern row. Only the signature and leaf
// sequence of the type tree are persisted.
type PatternRecord struct {
	ID          types.PatternID
	RunID       types.RunID
	Ordinal     int
	Signature   string
	Leaves      []string
	Interval    types.CriticalInterval
	Support     int
	Occurrences int
	NA          int
	NB          int
	Probability float64
	PValue      float64
	Round       int
	Maximal     bool
}

type eventRow struct {
	EventID   string `db:"event_id"`
	PeriodID  string `db:"period_id"`
	EventType string `db:"event_type"`
	FirstNs   int64  `db:"first_ns"`
	LastNs    int64  `db:"last_ns"`
}

type runRow struct {
	RunID        string  `db:"run_id"`
	CreatedAt    any     `db:"created_at"`
	Significance float64 `db:"significance"`
	WindowUnits  int64   `db:"window_units"`
	TimeUnitMs   int64   `db:"time_unit_ms"`
	Rounds       int     `db:"rounds"`
	PeriodCount  int     `db:"period_count"`
	EventCount   int     `db:"event_count"`
	PatternCount int     `db:"pattern_count"`
}

type patternRow struct {
	PatternID      string  `db:"pattern_id"`
	RunID          string  `db:"run_id"`
	Ordinal        int     `db:"ordinal"`
	Signature      string  `db:"signature"`
	Leaves         string  `db:"leaves"`
	IntervalLow    int64   `db:"interval_low"`
	IntervalHigh   int64   `db:"interval_high"`
	Support        int     `db:"support"`
	Occurrences    int     `db:"occurrences"`
	NA             int     `db:"n_a"`
	NB             int     `db:"n_b"`
	Probability    float64 `db:"probability"`
	PValue         float64 `db:"p_value"`
	DiscoveryRound int     `db:"discovery_round"`
	Maximal        bool    `db:"maximal"`
}

// Store persists raw events and detection runs.
type Store struct {
	db      *sqlx.DB
	queries *Queries
	logger  *zap.Logger
}

// NewStore loads the named queries for db. A nil logger disables logging.
func NewStore(db *sqlx.DB, logger *zap.Logger) (*Store, error) {
	queries, err := LoadQueries(db)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, queries: queries, logger: logger}, nil
}

// Migrations reports the state of every embedded migration.
func (s *Store) Migrations() ([]MigrationStatus, error) {
	return MigrateStatus(s.db)
}

// ImportRecords validates records and inserts them in one transaction.
// Returns the number of events stored.
func (s *Store) ImportRecords(ctx context.Context, records []ingest.Record) (int, error) {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return 0, errors.Wrapf(err, "period %q record %d", r.PeriodID, i)
		}
	}
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin import")
	}
	defer tx.Rollback()

	stmt, err := s.queries.Prepare(ctx, tx, "insert-event")
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx,
			string(types.NewEventID()), r.PeriodID, r.Label, r.First.UnixNano(), r.Last.UnixNano(),
		); err != nil {
			return 0, errors.Wrapf(err, "insert record %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit import")
	}

	s.logger.Info("events imported", zap.Int("events", len(records)))
	return len(records), nil
}

// LoadRecords returns every stored event ordered by period and start.
func (s *Store) LoadRecords(ctx context.Context) ([]ingest.Record, error) {
	var rows []eventRow
	if err := s.queries.Select(ctx, "list-events", &rows); err != nil {
		return nil, errors.Wrap(err, "list events")
	}

	records := make([]ingest.Record, len(rows))
	for i, row := range rows {
		records[i] = ingest.Record{
			PeriodID: row.PeriodID,
			Label:    row.EventType,
			First:    time.Unix(0, row.FirstNs).UTC(),
			Last:     time.Unix(0, row.LastNs).UTC(),
		}
	}
	return records, nil
}

// LoadPeriods reads the event table into observation periods ordered by
// period ID. A nil vocabulary admits every stored event type.
func (s *Store) LoadPeriods(ctx context.Context, vocab *ingest.Vocabulary) ([]*types.ObservationPeriod, error) {
	records, err := s.LoadRecords(ctx)
	if err != nil {
		return nil, err
	}
	periods, err := ingest.Periods(records, vocab)
	if err != nil {
		return nil, errors.Wrap(err, "stored events")
	}
	s.logger.Debug("periods loaded", zap.Int("periods", len(periods)), zap.Int("events", len(records)))
	return periods, nil
}

// EventTypes returns the distinct stored event type labels.
func (s *Store) EventTypes(ctx context.Context) ([]string, error) {
	var labels []string
	if err := s.queries.Select(ctx, "list-event-types", &labels); err != nil {
		return nil, errors.Wrap(err, "list event types")
	}
	return labels, nil
}

// CountEvents returns the number of stored events.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.queries.Get(ctx, "count-events", &n); err != nil {
		return 0, errors.Wrap(err, "count events")
	}
	return n, nil
}

// SaveRun persists run and its patterns in one transaction.
func (s *Store) SaveRun(ctx context.Context, run *types.Run) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin save run")
	}
	defer tx.Rollback()

	insertRun, err := s.queries.Raw("insert-run")
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, insertRun,
		string(run.ID),
		timestampArg(s.db.DriverName(), run.CreatedAt),
		run.Significance,
		run.Window,
		run.TimeUnit.Milliseconds(),
		run.Rounds,
		run.PeriodCount,
		run.EventCount,
		len(run.Patterns),
	); err != nil {
		return errors.Wrapf(err, "insert run %s", run.ID)
	}

	if len(run.Patterns) > 0 {
		stmt, err := s.queries.Prepare(ctx, tx, "insert-pattern")
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, p := range run.Patterns {
			leaves, err := json.Marshal(p.Type.LeafSequence())
			if err != nil {
				return errors.Wrapf(err, "encode leaves of %s", p.Signature())
			}
			if _, err := stmt.ExecContext(ctx,
				string(p.ID), string(run.ID), i, p.Signature(), string(leaves),
				p.Interval.Low, p.Interval.High, p.Support, p.Occurrences,
				p.NA, p.NB, p.Probability, p.PValue, p.Round, p.Maximal,
			); err != nil {
				return errors.Wrapf(err, "insert pattern %s", p.Signature())
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrapf(err, "commit run %s", run.ID)
	}

	s.logger.Info("run saved", zap.String("run_id", string(run.ID)), zap.Int("patterns", len(run.Patterns)))
	return nil
}

// ListRuns returns stored runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]types.RunSummary, error) {
	var rows []runRow
	if err := s.queries.Select(ctx, "list-runs", &rows); err != nil {
		return nil, errors.Wrap(err, "list runs")
	}

	out := make([]types.RunSummary, len(rows))
	for i, row := range rows {
		summary, err := row.summary()
		if err != nil {
			return nil, err
		}
		out[i] = summary
	}
	return out, nil
}

// GetRun returns one stored run.
func (s *Store) GetRun(ctx context.Context, id types.RunID) (types.RunSummary, error) {
	var row runRow
	if err := s.queries.Get(ctx, "get-run", &row, string(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.RunSummary{}, errors.Wrapf(ErrRunNotFound, "%s", id)
		}
		return types.RunSummary{}, errors.Wrapf(err, "get run %s", id)
	}
	return row.summary()
}

// ListPatterns returns the stored patterns of a run in discovery order.
func (s *Store) ListPatterns(ctx context.Context, id types.RunID) ([]PatternRecord, error) {
	var rows []patternRow
	if err := s.queries.Select(ctx, "list-patterns-by-run", &rows, string(id)); err != nil {
		return nil, errors.Wrapf(err, "list patterns of run %s", id)
	}

	out := make([]PatternRecord, len(rows))
	for i, row := range rows {
		var leaves []string
		if err := json.Unmarshal([]byte(row.Leaves), &leaves); err != nil {
			return nil, errors.Wrapf(err, "decode leaves of pattern %s", row.PatternID)
		}
		out[i] = PatternRecord{
			ID:          types.PatternID(row.PatternID),
			RunID:       types.RunID(row.RunID),
			Ordinal:     row.Ordinal,
			Signature:   row.Signature,
			Leaves:      leaves,
			Interval:    types.CriticalInterval{Low: row.IntervalLow, High: row.IntervalHigh},
			Support:     row.Support,
			Occurrences: row.Occurrences,
			NA:          row.NA,
			NB:          row.NB,
			Probability: row.Probability,
			PValue:      row.PValue,
			Round:       row.DiscoveryRound,
			Maximal:     row.Maximal,
		}
	}
	return out, nil
}

func (r runRow) summary() (types.RunSummary, error) {
	createdAt, err := scanTime(r.CreatedAt)
	if err != nil {
		return types.RunSummary{}, errors.Wrapf(err, "run %s created_at", r.RunID)
	}
	return types.RunSummary{
		ID:           types.RunID(r.RunID),
		CreatedAt:    createdAt,
		Significance: r.Significance,
		Window:       r.WindowUnits,
		TimeUnit:     time.Duration(r.TimeUnitMs) * time.Millisecond,
		Rounds:       r.Rounds,
		PeriodCount:  r.PeriodCount,
		EventCount:   r.EventCount,
		PatternCount: r.PatternCount,
	}, nil
}
