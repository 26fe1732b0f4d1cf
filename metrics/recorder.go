package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createEvaluationsTable = `
CREATE TABLE IF NOT EXISTS evaluations (
	run_id     UUID             NOT NULL,
	model      TEXT             NOT NULL,
	metric     TEXT             NOT NULL,
	station    TEXT             NOT NULL,
	value      DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ      NOT NULL,
	PRIMARY KEY (run_id, model, metric, station)
)`

const insertEvaluation = `
INSERT INTO evaluations (run_id, model, metric, station, value, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (run_id, model, metric, station) DO UPDATE SET value = EXCLUDED.value`

// Recorder persists the records of an evaluation run.
type Recorder interface {
	Record(ctx context.Context, records []Record) (uuid.UUID, error)
}

type database interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRecorder stores every record of a run as one row of the evaluations table, all rows
// of a run sharing a random run id.
type PostgresRecorder struct {
	db      database
	pool    *pgxpool.Pool
	nowFunc func() time.Time
	newID   func() uuid.UUID
}

// NewPostgresRecorder connects to the database and creates the evaluations table if needed.
func NewPostgresRecorder(ctx context.Context, databaseURL string) (*PostgresRecorder, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to create database pool, %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to reach database, %w", err)
	}
	r := newRecorder(pool)
	r.pool = pool
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

func newRecorder(db database) *PostgresRecorder {
	return &PostgresRecorder{
		db:      db,
		nowFunc: time.Now,
		newID:   uuid.New,
	}
}

func (r *PostgresRecorder) migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createEvaluationsTable); err != nil {
		return fmt.Errorf("unable to create evaluations table, %w", err)
	}
	return nil
}

// Record inserts the records under a new run id in a single transaction and returns the id. A
// failing insert rolls the whole run back and no id is returned.
func (r *PostgresRecorder) Record(ctx context.Context, records []Record) (uuid.UUID, error) {
	runID := r.newID()
	createdAt := r.nowFunc().UTC()
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		for _, rec := range records {
			_, err := tx.Exec(ctx, insertEvaluation,
				runID, rec.Model, string(rec.Metric), rec.Station, rec.Value, createdAt,
			)
			if err != nil {
				return fmt.Errorf(
					"unable to record %s %s for station %s, %w",
					rec.Model, rec.Metric, rec.Station, err,
				)
			}
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("unable to record run %s, %w", runID, err)
	}
	return runID, nil
}

// Close releases the database pool.
func (r *PostgresRecorder) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}
