// Package fetcher downloads remote filing data with per-host rate limiting
// and retry. SEC fair-access guidelines cap clients at 10 requests/second;
// the FDIC API is gentler but still metered here.
package fetcher

import (
	"context"
	"io"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Get fetches the URL and returns the response body.
	Get(ctx context.Context, url string) (io.ReadCloser, error)
}
