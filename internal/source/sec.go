package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/config"
	"github.com/sells-group/filings-cli/internal/fetcher"
	"github.com/sells-group/filings-cli/internal/model"
)

// SECAdapter reads 10-Q XBRL facts from the EDGAR company-facts API.
type SECAdapter struct {
	cfg     config.SECConfig
	fetcher fetcher.Fetcher
	since   time.Time
}

// NewSECAdapter creates an adapter over the EDGAR API. The since date bounds
// which filings are considered (facts filed earlier are dropped).
func NewSECAdapter(cfg config.SECConfig, f fetcher.Fetcher) (*SECAdapter, error) {
	since, err := time.Parse("2006-01-02", cfg.Since)
	if err != nil {
		return nil, eris.Wrapf(err, "sec: parse since date %q", cfg.Since)
	}
	return &SECAdapter{cfg: cfg, fetcher: f, since: since}, nil
}

// companyFacts is the EDGAR company facts JSON-LD structure.
type companyFacts struct {
	CIK        int                           `json:"cik"`
	EntityName string                        `json:"entityName"`
	Facts      map[string]map[string]secFact `json:"facts"`
}

type secFact struct {
	Label string                    `json:"label"`
	Units map[string][]secFactValue `json:"units"`
}

type secFactValue struct {
	End   string  `json:"end"`
	Val   float64 `json:"val"`
	Form  string  `json:"form"`
	Filed string  `json:"filed"`
}

// tickerEntry is one row of the SEC ticker-to-CIK mapping file.
type tickerEntry struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
}

// LookupCIK resolves a ticker symbol to a zero-padded 10-digit CIK through
// the SEC company_tickers.json mapping.
func (a *SECAdapter) LookupCIK(ctx context.Context, ticker string) (string, error) {
	url := a.cfg.WWWURL + "/files/company_tickers.json"
	mapping, err := fetcher.GetJSON[map[string]tickerEntry](ctx, a.fetcher, url)
	if err != nil {
		return "", eris.Wrap(joinSourceErr(err), "sec: fetch ticker mapping")
	}

	want := strings.ToUpper(ticker)
	for _, entry := range *mapping {
		if strings.ToUpper(entry.Ticker) == want {
			return fmt.Sprintf("%010d", entry.CIK), nil
		}
	}
	return "", eris.Wrapf(ErrEntityNotFound, "ticker %s", ticker)
}

// Fetch returns the 10-Q facts for a ticker as raw records. Fact names (the
// US-GAAP tags) are the source labels; values are whole currency units.
func (a *SECAdapter) Fetch(ctx context.Context, ticker string) ([]model.RawRecord, string, error) {
	cik, err := a.LookupCIK(ctx, ticker)
	if err != nil {
		return nil, "", err
	}

	url := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", a.cfg.BaseURL, cik)
	facts, err := fetcher.GetJSON[companyFacts](ctx, a.fetcher, url)
	if err != nil {
		return nil, "", eris.Wrapf(joinSourceErr(err), "sec: fetch company facts for %s", ticker)
	}

	records := a.flatten(facts)
	if len(records) == 0 {
		return nil, "", eris.Wrapf(ErrEntityNotFound, "no 10-Q facts for %s since %s", ticker, a.cfg.Since)
	}

	zap.L().Info("fetched SEC facts",
		zap.String("ticker", ticker),
		zap.String("cik", cik),
		zap.Int("records", len(records)),
	)

	return records, facts.EntityName, nil
}

// flatten walks the facts map in a deterministic order (namespace, sorted
// tag, period) and keeps the latest-filed value per (tag, period end), so
// amended filings supersede originals.
func (a *SECAdapter) flatten(facts *companyFacts) []model.RawRecord {
	type chosen struct {
		value float64
		filed string
	}

	var tags []string
	gaap := facts.Facts["us-gaap"]
	for tag := range gaap {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	var records []model.RawRecord
	seq := 0

	for _, tag := range tags {
		fact := gaap[tag]

		var unitNames []string
		for unit := range fact.Units {
			unitNames = append(unitNames, unit)
		}
		sort.Strings(unitNames)

		best := make(map[string]chosen)
		var ends []string
		for _, unit := range unitNames {
			if !reportableUnit(unit) {
				continue
			}
			for _, v := range fact.Units[unit] {
				if v.Form != "10-Q" || v.End == "" {
					continue
				}
				filed, err := time.Parse("2006-01-02", v.Filed)
				if err != nil || filed.Before(a.since) {
					continue
				}
				if prev, ok := best[v.End]; ok {
					if v.Filed <= prev.filed {
						continue
					}
				} else {
					ends = append(ends, v.End)
				}
				best[v.End] = chosen{value: v.Val, filed: v.Filed}
			}
		}

		sort.Strings(ends)
		for _, end := range ends {
			periodEnd, err := time.Parse("2006-01-02", end)
			if err != nil {
				continue
			}
			records = append(records, model.RawRecord{
				SourceLabel: tag,
				PeriodEnd:   periodEnd,
				Value:       best[end].value,
				Scale:       model.ScaleUnits,
				Seq:         seq,
			})
			seq++
		}
	}

	return records
}

// reportableUnit filters XBRL unit dimensions down to the ones the canonical
// model carries: currency amounts, per-share amounts, and share counts.
func reportableUnit(unit string) bool {
	switch unit {
	case "USD", "USD/shares", "shares":
		return true
	default:
		return false
	}
}

// joinSourceErr maps transport failures onto the adapter error taxonomy:
// a 404 is an unknown entity, anything else is the source being unavailable.
// Context cancellation and deadline expiry pass through unwrapped so the job
// runner can tell an aborted fetch apart from a source outage.
func joinSourceErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var se *fetcher.StatusError
	if eris.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return errors.Join(ErrEntityNotFound, err)
	}
	return errors.Join(ErrSourceUnavailable, err)
}
