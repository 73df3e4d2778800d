// Package store persists terminal jobs so a restarted server can still
// serve their status and artifacts. The journal is optional; the default
// configuration keeps jobs in memory only.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/filings-cli/internal/config"
)

// Record is a terminal job snapshot. Params is the JSON-encoded request
// parameters; Artifact is empty for failed and cancelled jobs.
type Record struct {
	ID        string
	Kind      string
	State     string
	Params    string
	Error     string
	Filename  string
	Artifact  []byte
	CreatedAt time.Time
	DoneAt    time.Time
}

// Journal defines the persistence interface for terminal jobs.
type Journal interface {
	Append(ctx context.Context, rec Record) error
	Load(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, id string) error
	Migrate(ctx context.Context) error
	Close() error
}

// Open returns the configured journal, or nil when the driver is "none".
func Open(ctx context.Context, cfg config.StoreConfig) (Journal, error) {
	switch cfg.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
