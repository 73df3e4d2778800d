package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the journal uses; pgxmock satisfies it
// in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresJournal implements Journal using pgxpool.
type PostgresJournal struct {
	pool Pool
}

// NewPostgres creates a PostgresJournal with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresJournal, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresJournal{pool: pool}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresJournal {
	return &PostgresJournal{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	state      TEXT NOT NULL,
	params     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	filename   TEXT NOT NULL DEFAULT '',
	artifact   BYTEA,
	created_at TIMESTAMPTZ NOT NULL,
	done_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_done_at ON jobs(done_at);
`

func (s *PostgresJournal) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresJournal) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresJournal) Append(ctx context.Context, rec Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, kind, state, params, error, filename, artifact, created_at, done_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO UPDATE SET
		   state = EXCLUDED.state, error = EXCLUDED.error,
		   filename = EXCLUDED.filename, artifact = EXCLUDED.artifact,
		   done_at = EXCLUDED.done_at`,
		rec.ID, rec.Kind, rec.State, rec.Params, rec.Error, rec.Filename, rec.Artifact,
		rec.CreatedAt.UTC(), rec.DoneAt.UTC(),
	)
	return eris.Wrap(err, "postgres: insert job")
}

func (s *PostgresJournal) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, kind, state, params, error, filename, artifact, created_at, done_at
		 FROM jobs ORDER BY done_at ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load jobs")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.State, &rec.Params, &rec.Error,
			&rec.Filename, &rec.Artifact, &rec.CreatedAt, &rec.DoneAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan job")
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate jobs")
}

func (s *PostgresJournal) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1`, id)
	return eris.Wrap(err, "postgres: delete job")
}
