package source

import (
	"math"
	"time"

	"github.com/sells-group/filings-cli/internal/model"
)

// fieldVals is one call-report row's parsed numeric fields, keyed by RFC
// field code. Absent keys mean the API reported null or omitted the field.
type fieldVals map[string]float64

func (v fieldVals) sum(fields ...string) (float64, bool) {
	total := 0.0
	for _, f := range fields {
		x, ok := v[f]
		if !ok {
			return 0, false
		}
		total += x
	}
	return total, true
}

// pct divides and rounds to two decimal places, the precision the call-report
// overview uses for every ratio.
func pct(num, den float64) (float64, bool) {
	if den == 0 {
		return 0, false
	}
	return math.Round(num/den*10000) / 100, true
}

// fdicMonths is the number of year-to-date months covered by a report date,
// used to annualize YTD income fields.
func fdicMonths(end time.Time) float64 {
	quarter := (int(end.Month())-1)/3 + 1
	return float64(quarter * 3)
}

// fdicMetric is one overview metric derived per report date from that row's
// raw fields. Metrics are independent: missing inputs skip the metric
// without dropping the row.
type fdicMetric struct {
	label string
	scale model.UnitScale
	calc  func(v fieldVals, months float64) (float64, bool)
}

// fdicDerivedMetrics lists the derived metrics in emission order. Dollar
// metrics stay in thousands like the raw fields they combine; ratios are
// percentages and pass through unscaled.
var fdicDerivedMetrics = []fdicMetric{
	{"Investment Securities", model.ScaleThousands, func(v fieldVals, _ float64) (float64, bool) {
		return v.sum("SC", "CHBALI")
	}},
	{"90 Days Past Due & Nonaccrual Loans", model.ScaleThousands, func(v fieldVals, _ float64) (float64, bool) {
		return v.sum("P9ASSET", "NAASSET")
	}},
	{"Annualized Earnings (Pre-Tax)", model.ScaleThousands, func(v fieldVals, months float64) (float64, bool) {
		pretax, ok := v["PTAXNETINC"]
		if !ok {
			return 0, false
		}
		gains, ok := v["IGLSEC"]
		if !ok {
			return 0, false
		}
		return (pretax - gains) / months * 12, true
	}},
	{"Annualized Earnings (Tax Adjusted)", model.ScaleThousands, func(v fieldVals, months float64) (float64, bool) {
		net, ok := v["NETINC"]
		if !ok {
			return 0, false
		}
		return net / months * 12, true
	}},
	{"Investments/Assets", model.ScaleUnits, func(v fieldVals, _ float64) (float64, bool) {
		inv, ok := v.sum("SC", "CHBALI")
		if !ok {
			return 0, false
		}
		assets, ok := v["ASSET"]
		if !ok {
			return 0, false
		}
		return pct(inv, assets)
	}},
	{"Loan-to-Deposit Ratio", model.ScaleUnits, func(v fieldVals, _ float64) (float64, bool) {
		return fdicRatio(v, "LNLSGR", "DEP")
	}},
	{"Brokered Deposits/Total Deposits", model.ScaleUnits, func(v fieldVals, _ float64) (float64, bool) {
		return fdicRatio(v, "BRO", "DEP")
	}},
	{"Borrowings/Assets", model.ScaleUnits, func(v fieldVals, _ float64) (float64, bool) {
		return fdicRatio(v, "OTHBRF", "ASSET")
	}},
	{"GAAP Capital/Assets", model.ScaleUnits, func(v fieldVals, _ float64) (float64, bool) {
		return fdicRatio(v, "EQTOT", "ASSET")
	}},
	{"Non-Owner Occupied Commercial Real Estate/Total Capital", model.ScaleUnits, func(v fieldVals, _ float64) (float64, bool) {
		cre, ok := v.sum("LNRECONS", "LNREMULT", "LNCOMRE", "LNRENROT")
		if !ok {
			return 0, false
		}
		capital, ok := v.sum("LNATRES", "RBCT1J")
		if !ok {
			return 0, false
		}
		return pct(cre, capital)
	}},
	{"Allowance/Loans", model.ScaleUnits, func(v fieldVals, _ float64) (float64, bool) {
		return fdicRatio(v, "LNATRES", "LNLSGR")
	}},
	{"Annualized Losses/Loans", model.ScaleUnits, func(v fieldVals, months float64) (float64, bool) {
		chargeoffs, ok := v["NTLNLS"]
		if !ok {
			return 0, false
		}
		loans, ok := v["LNLSGR"]
		if !ok {
			return 0, false
		}
		return pct(chargeoffs/months*12, loans)
	}},
	{"(90 Days Past Due + Nonaccrual + REO) / (Capital + Allowance)", model.ScaleUnits, func(v fieldVals, _ float64) (float64, bool) {
		criticized, ok := v.sum("P9ASSET", "NAASSET", "ORE")
		if !ok {
			return 0, false
		}
		allowance, ok := v["LNATRES"]
		if !ok {
			return 0, false
		}
		equity, ok := v["EQTOT"]
		if !ok {
			return 0, false
		}
		intangibles, ok := v["INTAN"]
		if !ok {
			return 0, false
		}
		return pct(criticized, allowance+equity-intangibles)
	}},
}

func fdicRatio(v fieldVals, numField, denField string) (float64, bool) {
	num, ok := v[numField]
	if !ok {
		return 0, false
	}
	den, ok := v[denField]
	if !ok {
		return 0, false
	}
	return pct(num, den)
}
