package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/config"
	"github.com/sells-group/filings-cli/internal/fetcher"
	"github.com/sells-group/filings-cli/internal/model"
)

// fdicFields is the call-report field set requested per bank, matching the
// overview workbook's metric coverage.
var fdicFields = []string{
	"REPDTE", "CERT", "ASSET", "LNLSGR", "SC", "CHBALI", "DEP", "BRO", "OTHBRF",
	"EQTOT", "LNATRES", "RBCT1J", "NIMY", "NETINC", "PTAXNETINC", "IGLSEC",
	"ELNATR", "NTLNLS", "P9ASSET", "NAASSET", "ORE", "INTAN", "EQCBHCTR",
	"ROA", "ROE", "EEFFR", "ITAX", "SCHTMRES", "NCLNLSR", "RBC1AAJ", "IDT1CER",
	"IDT1RWAJR", "RBCRWAJ", "ITAXR", "LNRECONS", "LNREMULT", "LNCOMRE",
	"LNRENROT",
}

// fdicRatioFields are reported as percentages, not thousands of dollars, so
// they pass through unscaled.
var fdicRatioFields = map[string]bool{
	"NIMY": true, "ROA": true, "ROE": true, "EEFFR": true, "NCLNLSR": true,
	"RBC1AAJ": true, "IDT1CER": true, "IDT1RWAJR": true, "RBCRWAJ": true,
	"ITAXR": true,
}

// fdicInputFields feed derived metrics only and are not line items
// themselves.
var fdicInputFields = map[string]bool{
	"LNRECONS": true, "LNREMULT": true, "LNCOMRE": true, "LNRENROT": true,
}

// FDICAdapter reads quarterly call-report financials from the FDIC BankFind
// API. Entities are FDIC certificate numbers.
type FDICAdapter struct {
	cfg     config.FDICConfig
	fetcher fetcher.Fetcher
}

// NewFDICAdapter creates an adapter over the FDIC BankFind API.
func NewFDICAdapter(cfg config.FDICConfig, f fetcher.Fetcher) *FDICAdapter {
	return &FDICAdapter{cfg: cfg, fetcher: f}
}

// fdicEnvelope is the BankFind response wrapper: rows nest their fields
// under a "data" key.
type fdicEnvelope struct {
	Data []struct {
		Data map[string]json.RawMessage `json:"data"`
	} `json:"data"`
}

// Fetch returns call-report records for one certificate number. Amounts are
// reported by the FDIC in thousands of dollars; ratio fields stay unscaled.
func (a *FDICAdapter) Fetch(ctx context.Context, cert string) ([]model.RawRecord, string, error) {
	q := url.Values{
		"filters":    {"CERT:" + cert},
		"fields":     {strings.Join(fdicFields, ",")},
		"sort_by":    {"REPDTE"},
		"sort_order": {"DESC"},
		"limit":      {"10000"},
		"format":     {"json"},
	}
	env, err := fetcher.GetJSON[fdicEnvelope](ctx, a.fetcher, a.cfg.BaseURL+"/api/financials?"+q.Encode())
	if err != nil {
		return nil, "", eris.Wrapf(joinSourceErr(err), "fdic: fetch financials for CERT %s", cert)
	}

	if len(env.Data) == 0 {
		return nil, "", eris.Wrapf(ErrEntityNotFound, "no call reports for CERT %s", cert)
	}

	records := a.flatten(env)
	if len(records) == 0 {
		return nil, "", eris.Wrapf(ErrEntityNotFound, "no usable call-report rows for CERT %s", cert)
	}

	name := a.bankName(ctx, cert)

	zap.L().Info("fetched FDIC call reports",
		zap.String("cert", cert),
		zap.String("bank", name),
		zap.Int("records", len(records)),
	)

	return records, name, nil
}

// flatten emits one record per (field, report date), then the derived
// overview metrics computed from that row. Row order follows the API's
// deterministic REPDTE sort; fields follow the request order.
func (a *FDICAdapter) flatten(env *fdicEnvelope) []model.RawRecord {
	var records []model.RawRecord
	seq := 0

	for _, row := range env.Data {
		end, ok := parseREPDTE(row.Data["REPDTE"])
		if !ok {
			continue
		}

		vals := fieldVals{}
		for _, field := range fdicFields {
			if field == "REPDTE" || field == "CERT" {
				continue
			}
			raw, present := row.Data[field]
			if !present {
				continue
			}
			if value, ok := parseNumber(raw); ok {
				vals[field] = value
			}
		}

		for _, field := range fdicFields {
			if field == "REPDTE" || field == "CERT" || fdicInputFields[field] {
				continue
			}
			value, ok := vals[field]
			if !ok {
				continue
			}

			scale := model.ScaleThousands
			if fdicRatioFields[field] {
				scale = model.ScaleUnits
			}

			records = append(records, model.RawRecord{
				SourceLabel: field,
				PeriodEnd:   end,
				Value:       value,
				Scale:       scale,
				Seq:         seq,
			})
			seq++
		}

		months := fdicMonths(end)
		for _, m := range fdicDerivedMetrics {
			value, ok := m.calc(vals, months)
			if !ok {
				continue
			}
			records = append(records, model.RawRecord{
				SourceLabel: m.label,
				PeriodEnd:   end,
				Value:       value,
				Scale:       m.scale,
				Seq:         seq,
			})
			seq++
		}
	}

	return records
}

// bankName resolves the institution's display name; the certificate number
// stands in when the lookup fails.
func (a *FDICAdapter) bankName(ctx context.Context, cert string) string {
	q := url.Values{
		"filters": {"CERT:" + cert},
		"fields":  {"NAME,CERT"},
		"limit":   {"1"},
		"format":  {"json"},
	}

	type instEnvelope struct {
		Data []struct {
			Data struct {
				Name string `json:"NAME"`
			} `json:"data"`
		} `json:"data"`
	}

	env, err := fetcher.GetJSON[instEnvelope](ctx, a.fetcher, a.cfg.BaseURL+"/api/institutions?"+q.Encode())
	if err != nil || len(env.Data) == 0 || env.Data[0].Data.Name == "" {
		if err != nil {
			zap.L().Warn("fdic: institution name lookup failed", zap.String("cert", cert), zap.Error(err))
		}
		return fmt.Sprintf("Bank_%s", cert)
	}
	return env.Data[0].Data.Name
}

// parseREPDTE accepts the two date spellings the API emits.
func parseREPDTE(raw json.RawMessage) (time.Time, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n int64
		if err := json.Unmarshal(raw, &n); err != nil {
			return time.Time{}, false
		}
		s = strconv.FormatInt(n, 10)
	}
	for _, layout := range []string{"20060102", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseNumber accepts numeric fields whether the API emits them as numbers
// or quoted strings; null and empty values are skipped.
func parseNumber(raw json.RawMessage) (float64, bool) {
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
