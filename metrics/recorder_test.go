package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	sql  string
	args []any
}

type fakeDB struct {
	calls      []execCall
	failAt     int
	beginErr   error
	committed  bool
	rolledBack bool
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.calls = append(f.calls, execCall{sql: sql, args: args})
	if f.failAt > 0 && len(f.calls) == f.failAt {
		return pgconn.CommandTag{}, errors.New("connection reset")
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return &fakeTx{db: f}, nil
}

// fakeTx forwards statements to its fakeDB. Methods the recorder never calls are left to the
// nil embedded Tx.
type fakeTx struct {
	pgx.Tx
	db     *fakeDB
	closed bool
}

func (t *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return t.db.Exec(ctx, sql, args...)
}

func (t *fakeTx) Commit(context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.db.committed = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.db.rolledBack = true
	return nil
}

func TestPostgresRecorder(t *testing.T) {
	runID := uuid.MustParse("8a1f7a2e-54d1-4c4e-9a57-2f1a4a7de0b1")
	now := time.Date(2023, 6, 5, 10, 0, 0, 0, time.UTC)
	records := []Record{
		{Model: "mean", Metric: MSE, Station: "s1", Value: 0.1},
		{Model: "mean", Metric: MAE, Station: "s1", Value: 0.3},
		{Model: "pca", Metric: MSE, Station: "s1", Value: 0.2},
	}

	testData := map[string]struct {
		failAt        int
		beginErr      error
		expectedCalls int
		expectedErr   bool
	}{
		"every record inserted": {
			expectedCalls: 3,
		},
		"first insert fails": {
			failAt:        1,
			expectedCalls: 1,
			expectedErr:   true,
		},
		"later insert rolls back the run": {
			failAt:        2,
			expectedCalls: 2,
			expectedErr:   true,
		},
		"no transaction": {
			beginErr:    errors.New("too many connections"),
			expectedErr: true,
		},
	}

	for name, td := range testData {
		t.Run(name, func(t *testing.T) {
			db := &fakeDB{failAt: td.failAt, beginErr: td.beginErr}
			r := newRecorder(db)
			r.nowFunc = func() time.Time { return now }
			r.newID = func() uuid.UUID { return runID }

			id, err := r.Record(context.Background(), records)
			require.Len(t, db.calls, td.expectedCalls)
			if td.expectedErr {
				assert.Error(t, err)
				assert.Equal(t, uuid.Nil, id)
				assert.False(t, db.committed)
				assert.Equal(t, td.beginErr == nil, db.rolledBack)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, runID, id)
			assert.True(t, db.committed)
			assert.False(t, db.rolledBack)
			assert.Equal(t, insertEvaluation, db.calls[0].sql)
			assert.Equal(t, []any{runID, "mean", "mse", "s1", 0.1, now}, db.calls[0].args)
			assert.Equal(t, []any{runID, "mean", "mae", "s1", 0.3, now}, db.calls[1].args)
			assert.Equal(t, []any{runID, "pca", "mse", "s1", 0.2, now}, db.calls[2].args)
		})
	}
}

func TestPostgresRecorderMigrate(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, newRecorder(db).migrate(context.Background()))
	require.Len(t, db.calls, 1)
	assert.Contains(t, db.calls[0].sql, "CREATE TABLE IF NOT EXISTS evaluations")

	failing := &fakeDB{failAt: 1}
	assert.Error(t, newRecorder(failing).migrate(context.Background()))
}
