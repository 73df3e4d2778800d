package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteJournal implements Journal using modernc.org/sqlite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteJournal{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	state      TEXT NOT NULL,
	params     TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	filename   TEXT NOT NULL DEFAULT '',
	artifact   BLOB,
	created_at DATETIME NOT NULL,
	done_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_jobs_done_at ON jobs(done_at);
`

func (s *SQLiteJournal) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}

func (s *SQLiteJournal) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO jobs (id, kind, state, params, error, filename, artifact, created_at, done_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.State, rec.Params, rec.Error, rec.Filename, rec.Artifact,
		rec.CreatedAt.UTC(), rec.DoneAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert job")
}

func (s *SQLiteJournal) Load(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, state, params, error, filename, artifact, created_at, done_at
		 FROM jobs ORDER BY done_at ASC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load jobs")
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var artifact sql.RawBytes
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.State, &rec.Params, &rec.Error,
			&rec.Filename, &artifact, &rec.CreatedAt, &rec.DoneAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan job")
		}
		if len(artifact) > 0 {
			rec.Artifact = append([]byte(nil), artifact...)
		}
		out = append(out, rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate jobs")
}

func (s *SQLiteJournal) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return eris.Wrap(err, "sqlite: delete job")
	}
	return nil
}
