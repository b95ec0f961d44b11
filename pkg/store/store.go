// Package store persists forecast runs to MySQL, MariaDB or PostgreSQL.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"juneau/pkg/pipeline"
)

// Store writes run results into a points table and a runs table.
type Store struct {
	db      *sql.DB
	dialect Dialect
	table   string
}

// Open connects to the database named by dsn. The connection is checked
// with a ping before returning.
func Open(ctx context.Context, dsn, table string) (*Store, error) {
	if !ValidTableName(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	dialect, conn, err := ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(string(dialect), conn)
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", dialect, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to %s store: %w", dialect, err)
	}

	return &Store{db: db, dialect: dialect, table: table}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect returns the SQL flavour in use.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// EnsureSchema creates the points and runs tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema(s.dialect, s.table) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Run describes a pipeline run for the runs table.
type Run struct {
	ID         uuid.UUID
	Model      string
	Files      int
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRun builds a Run with a fresh random id.
func NewRun(result *pipeline.RunResult) Run {
	return Run{
		ID:         uuid.New(),
		Model:      result.Metadata.Model,
		Files:      len(result.Metadata.Files),
		StartedAt:  result.Metadata.StartTime,
		FinishedAt: result.Metadata.EndTime,
	}
}

// SaveRun writes run and every point of results in one transaction and
// returns the number of points written.
func (s *Store) SaveRun(ctx context.Context, run Run, results []*pipeline.SeriesResult) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	runsInsert := fmt.Sprintf("INSERT INTO %s (run_id, model, files, series, started_at, finished_at) VALUES (%s)",
		s.quote(s.table+"_runs"), s.dialect.placeholders(6))
	if _, err := tx.ExecContext(ctx, runsInsert,
		run.ID.String(), run.Model, run.Files, len(results), run.StartedAt.Unix(), run.FinishedAt.Unix()); err != nil {
		return 0, fmt.Errorf("recording run %s: %w", run.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, s.insertPointSQL())
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}

	points := Flatten(run.ID, results)
	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, p.args()...); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("inserting %s %s: %w", p.SeriesID, p.Kind, err)
		}
	}

	// COPY buffers rows until the final empty exec.
	if s.dialect == Postgres {
		if _, err := stmt.ExecContext(ctx); err != nil {
			stmt.Close()
			return 0, fmt.Errorf("flushing copy: %w", err)
		}
	}
	if err := stmt.Close(); err != nil {
		return 0, fmt.Errorf("closing insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run %s: %w", run.ID, err)
	}
	return len(points), nil
}

var pointColumns = []string{"run_id", "series_id", "source", "file_idx", "row_idx", "kind", "ts", "value", "lower_bound", "upper_bound"}

func (s *Store) insertPointSQL() string {
	if s.dialect == Postgres {
		return pq.CopyIn(s.table, pointColumns...)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.quote(s.table), strings.Join(pointColumns, ", "), s.dialect.placeholders(len(pointColumns)))
}

func (s *Store) quote(name string) string {
	return quoteIdent(s.dialect, name)
}

func quoteIdent(d Dialect, name string) string {
	if d == Postgres {
		return pq.QuoteIdentifier(name)
	}
	return "`" + name + "`"
}

func schema(d Dialect, table string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id VARCHAR(36) NOT NULL PRIMARY KEY,
	model VARCHAR(64) NOT NULL,
	files INTEGER NOT NULL,
	series INTEGER NOT NULL,
	started_at BIGINT NOT NULL,
	finished_at BIGINT NOT NULL
)`, quoteIdent(d, table+"_runs")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id VARCHAR(36) NOT NULL,
	series_id VARCHAR(64) NOT NULL,
	source VARCHAR(1024) NOT NULL,
	file_idx INTEGER NOT NULL,
	row_idx INTEGER NOT NULL,
	kind VARCHAR(16) NOT NULL,
	ts BIGINT NOT NULL,
	value DOUBLE PRECISION NULL,
	lower_bound DOUBLE PRECISION NULL,
	upper_bound DOUBLE PRECISION NULL
)`, quoteIdent(d, table)),
	}
}
