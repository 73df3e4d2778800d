// Package source holds the adapters that turn external filing APIs into raw
// disclosure records. Adapters translate shape only; all reconciliation
// lives in the normalizer.
package source

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/filings-cli/internal/model"
)

// ErrEntityNotFound means the source has no records at all for the requested
// entity. Non-retryable.
var ErrEntityNotFound = eris.New("source: entity not found")

// ErrSourceUnavailable means the upstream API could not be reached or kept
// failing. Retryable from the caller's point of view.
var ErrSourceUnavailable = eris.New("source: unavailable")

// Adapter fetches raw disclosure records for one entity identifier.
// Implementations must be safe for concurrent use across worker tasks.
type Adapter interface {
	// Fetch returns the entity's raw records in a deterministic order and
	// the entity's display name when the source provides one.
	Fetch(ctx context.Context, entity string) ([]model.RawRecord, string, error)
}
