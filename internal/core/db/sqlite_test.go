package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	cerrors "github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
	"github.com/solatis/tpattern/internal/ingest"
	"github.com/solatis/tpattern/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) *sqlx.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tpattern.db")
	database, err := Open("sqlite://" + path)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestMigrateUp_SQLite(t *testing.T) {
	database := openSQLite(t)

	ran, err := MigrateUp(database)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_initial_schema.sql"}, ran)

	ran, err = MigrateUp(database)
	require.NoError(t, err)
	assert.Empty(t, ran, "second run is a no-op")

	statuses, err := MigrateStatus(database)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.True(t, statuses[0].Applied)
	require.NotNil(t, statuses[0].AppliedAt)
	assert.WithinDuration(t, time.Now(), *statuses[0].AppliedAt, time.Minute)
}

func TestMigrateStatus_Pending(t *testing.T) {
	database := openSQLite(t)

	statuses, err := MigrateStatus(database)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].Applied)
	assert.Len(t, statuses[0].Checksum, 64)
}

func TestMigrateUp_ChecksumMismatch(t *testing.T) {
	database := openSQLite(t)
	_, err := MigrateUp(database)
	require.NoError(t, err)

	_, err = database.Exec("UPDATE migrations SET checksum = 'tampered'")
	require.NoError(t, err)

	_, err = MigrateUp(database)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestSchema_RejectsReversedEvent(t *testing.T) {
	database := openSQLite(t)
	_, err := MigrateUp(database)
	require.NoError(t, err)

	_, err = database.Exec(
		"INSERT INTO events (event_id, period_id, event_type, first_ns, last_ns) VALUES ('e1', 'p', 'A', 10, 5)")
	assert.Error(t, err)
}

func TestStore_SQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	database := openSQLite(t)
	_, err := MigrateUp(database)
	require.NoError(t, err)

	store, err := NewStore(database, nil)
	require.NoError(t, err)

	var records []ingest.Record
	for k := 0; k < 3; k++ {
		start := t0.Add(time.Duration(k) * 24 * time.Hour)
		records = append(records,
			ingest.Record{PeriodID: "day-" + string(rune('a'+k)), Label: "B", First: start.Add(2 * time.Hour), Last: start.Add(2 * time.Hour)},
			ingest.Record{PeriodID: "day-" + string(rune('a'+k)), Label: "A", First: start, Last: start.Add(30 * time.Minute)},
		)
	}

	n, err := store.ImportRecords(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	count, err := store.CountEvents(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, count)

	labels, err := store.EventTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, labels)

	vocab, err := ingest.ClosedVocabulary(labels...)
	require.NoError(t, err)
	periods, err := store.LoadPeriods(ctx, vocab)
	require.NoError(t, err)
	require.Len(t, periods, 3)
	assert.Equal(t, "day-a", periods[0].ID)
	assert.Equal(t, "A", periods[0].Events[0].Type.Label())
	assert.Equal(t, t0.Add(30*time.Minute), periods[0].Events[0].Last)

	a, b := periods[0].Events[0].Type, periods[0].Events[1].Type
	ci := types.CriticalInterval{Low: 1, High: 1}
	run := &types.Run{
		ID:           types.NewRunID(),
		CreatedAt:    t0,
		Significance: 0.05,
		Window:       12,
		TimeUnit:     time.Hour,
		Rounds:       2,
		PeriodCount:  3,
		EventCount:   6,
		Patterns: []types.Pattern{{
			ID: types.NewPatternID(), Type: types.NewComposite(a, b, ci), Interval: ci,
			Support: 3, Occurrences: 3, NA: 3, NB: 3, Probability: 0.2, PValue: 0.008, Round: 1, Maximal: true,
		}},
	}
	require.NoError(t, store.SaveRun(ctx, run))

	runs, err := store.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.Summary(), runs[0])

	got, err := store.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)

	patterns, err := store.ListPatterns(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, "(A B)", patterns[0].Signature)
	assert.Equal(t, []string{"A", "B"}, patterns[0].Leaves)
	assert.Equal(t, ci, patterns[0].Interval)
	assert.True(t, patterns[0].Maximal)
	assert.Equal(t, 1, patterns[0].Round)

	_, err = store.GetRun(ctx, types.NewRunID())
	assert.True(t, cerrors.Is(err, ErrRunNotFound))
}

func TestStore_Migrations(t *testing.T) {
	database := openSQLite(t)
	store, err := NewStore(database, nil)
	require.NoError(t, err)

	before, err := store.Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, before)
	assert.False(t, before[0].Applied)

	_, err = MigrateUp(database)
	require.NoError(t, err)

	after, err := store.Migrations()
	require.NoError(t, err)
	for _, m := range after {
		assert.True(t, m.Applied, m.ID)
		assert.NotNil(t, m.AppliedAt, m.ID)
	}
}
