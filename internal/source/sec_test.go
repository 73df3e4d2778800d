package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/filings-cli/internal/config"
	"github.com/sells-group/filings-cli/internal/fetcher"
	"github.com/sells-group/filings-cli/internal/model"
)

const tickerJSON = `{"0":{"cik_str":320193,"ticker":"AAPL","title":"Apple Inc."}}`

const factsJSON = `{
  "cik": 320193,
  "entityName": "Apple Inc.",
  "facts": {
    "us-gaap": {
      "Assets": {
        "label": "Assets",
        "units": {
          "USD": [
            {"end": "2024-06-29", "val": 331612000000, "form": "10-Q", "filed": "2024-08-02"},
            {"end": "2024-03-30", "val": 337411000000, "form": "10-Q", "filed": "2024-05-03"},
            {"end": "2024-03-30", "val": 337500000000, "form": "10-Q", "filed": "2024-06-01"},
            {"end": "2009-06-27", "val": 48140000000, "form": "10-Q", "filed": "2009-07-22"},
            {"end": "2023-09-30", "val": 352583000000, "form": "10-K", "filed": "2023-11-03"}
          ]
        }
      },
      "NetIncomeLoss": {
        "label": "Net Income (Loss)",
        "units": {
          "USD": [
            {"end": "2024-06-29", "val": 21448000000, "form": "10-Q", "filed": "2024-08-02"}
          ]
        }
      }
    }
  }
}`

func newSECTestServer(t *testing.T) (*httptest.Server, *SECAdapter) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/company_tickers.json":
			_, _ = w.Write([]byte(tickerJSON))
		case "/api/xbrl/companyfacts/CIK0000320193.json":
			_, _ = w.Write([]byte(factsJSON))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	a, err := NewSECAdapter(config.SECConfig{
		BaseURL:   srv.URL,
		WWWURL:    srv.URL,
		UserAgent: "test test@example.com",
		Since:     "2010-01-01",
	}, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1}))
	require.NoError(t, err)
	return srv, a
}

func TestSECFetch(t *testing.T) {
	_, a := newSECTestServer(t)

	records, name, err := a.Fetch(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, "Apple Inc.", name)

	// Two Assets 10-Q periods since 2010 (2009 and the 10-K row dropped,
	// amended 2024-03-30 value superseding the original), plus net income.
	require.Len(t, records, 3)

	byLabel := map[string][]model.RawRecord{}
	for _, r := range records {
		byLabel[r.SourceLabel] = append(byLabel[r.SourceLabel], r)
	}
	require.Len(t, byLabel["Assets"], 2)
	require.Len(t, byLabel["NetIncomeLoss"], 1)

	for _, r := range byLabel["Assets"] {
		if r.PeriodEnd.Format("2006-01-02") == "2024-03-30" {
			assert.Equal(t, 337500000000.0, r.Value, "latest filed value wins")
		}
	}

	// XBRL facts are whole currency units.
	assert.Equal(t, model.ScaleUnits, records[0].Scale)

	// Seq strictly increases in output order.
	for i := 1; i < len(records); i++ {
		assert.Greater(t, records[i].Seq, records[i-1].Seq)
	}
}

func TestSECFetch_Deterministic(t *testing.T) {
	_, a := newSECTestServer(t)

	r1, _, err := a.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	r2, _, err := a.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestSECFetch_UnknownTicker(t *testing.T) {
	_, a := newSECTestServer(t)

	_, _, err := a.Fetch(context.Background(), "ZZZZZZ")
	require.ErrorIs(t, err, ErrEntityNotFound)
}

func TestSECFetch_SourceDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	a, err := NewSECAdapter(config.SECConfig{
		BaseURL: srv.URL, WWWURL: srv.URL, Since: "2010-01-01",
	}, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1}))
	require.NoError(t, err)

	_, _, err = a.Fetch(context.Background(), "AAPL")
	require.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestNewSECAdapter_BadSince(t *testing.T) {
	_, err := NewSECAdapter(config.SECConfig{Since: "not-a-date"}, nil)
	require.Error(t, err)
}

func TestJoinSourceErr_ContextCancellationPassesThrough(t *testing.T) {
	err := joinSourceErr(fmt.Errorf("get facts: %w", context.Canceled))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrSourceUnavailable)
}

func TestJoinSourceErr_DeadlineExpiryPassesThrough(t *testing.T) {
	err := joinSourceErr(fmt.Errorf("get facts: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrSourceUnavailable)
}

func TestJoinSourceErr_KeepsCauseInChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := joinSourceErr(cause)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.ErrorIs(t, err, cause)
}

func TestSECFetch_CancelledMidRequest(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	a, err := NewSECAdapter(config.SECConfig{
		BaseURL: srv.URL, WWWURL: srv.URL, Since: "2010-01-01",
	}, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, _, err = a.Fetch(ctx, "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrSourceUnavailable)
}

func TestSECFetch_DeadlineMidRequest(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	a, err := NewSECAdapter(config.SECConfig{
		BaseURL: srv.URL, WWWURL: srv.URL, Since: "2010-01-01",
	}, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxRetries: 1}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, _, err = a.Fetch(ctx, "AAPL")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrSourceUnavailable)
}
