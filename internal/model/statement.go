package model

import (
	"sort"
	"time"
)

// StatementType identifies one of the four canonical financial statements.
type StatementType string

const (
	BalanceSheet    StatementType = "Balance Sheet"
	IncomeStatement StatementType = "Income Statement"
	CashFlow        StatementType = "Cash Flow"
	Equity          StatementType = "Equity"
)

// StatementTypes lists all statement types in display order.
func StatementTypes() []StatementType {
	return []StatementType{BalanceSheet, IncomeStatement, CashFlow, Equity}
}

// UnitScale is the multiplier a source applies to raw numeric disclosures.
type UnitScale string

const (
	ScaleUnits     UnitScale = "units"
	ScaleThousands UnitScale = "thousands"
	ScaleMillions  UnitScale = "millions"
)

// Multiplier returns the factor that converts a value at this scale to whole
// currency units, or false for an unrecognized scale.
func (s UnitScale) Multiplier() (float64, bool) {
	switch s {
	case ScaleUnits:
		return 1, true
	case ScaleThousands:
		return 1e3, true
	case ScaleMillions:
		return 1e6, true
	default:
		return 0, false
	}
}

// RawRecord is a single disclosure as delivered by a source adapter: a
// source-specific label, the reporting period it belongs to, and the value
// at the source's declared scale. Seq is the ingestion order within the
// adapter's output and is the deterministic tiebreak everywhere.
type RawRecord struct {
	SourceLabel string
	PeriodEnd   time.Time
	Value       float64
	Scale       UnitScale
	Seq         int
}

// Value is a single cell of a canonical statement. Reported distinguishes a
// genuine zero from a line item the source never disclosed for that period.
type Value struct {
	Amount   float64
	Reported bool
}

// Period holds one reporting period's cells, keyed by canonical line item.
type Period struct {
	End   time.Time
	Seq   int // ingestion order of the first record seen for this period
	Items map[string]Value
}

// Statement is an ordered grid: every period carries the same line-item key
// set (absent disclosures are present with Reported=false).
type Statement struct {
	Type    StatementType
	Items   []string // canonical line items plus any unmapped labels, display order
	Periods []Period // most-recent-first
}

// Empty reports whether the statement carries no reported values at all.
func (s Statement) Empty() bool {
	for _, p := range s.Periods {
		for _, v := range p.Items {
			if v.Reported {
				return false
			}
		}
	}
	return true
}

// StatementSet is the canonical statement model for one entity.
type StatementSet struct {
	Entity      string // ticker or FDIC CERT
	EntityName  string // display name when the source provides one
	Statements  map[StatementType]Statement
	Diagnostics []Diagnostic
}

// SortPeriods orders periods most-recent-first with ingestion order as the
// stable tiebreak, so identical inputs always serialize identically.
func SortPeriods(periods []Period) {
	sort.SliceStable(periods, func(i, j int) bool {
		if !periods[i].End.Equal(periods[j].End) {
			return periods[i].End.After(periods[j].End)
		}
		return periods[i].Seq < periods[j].Seq
	})
}

// DiagnosticKind tags a non-fatal normalization finding.
type DiagnosticKind string

const (
	DiagUnmappedLabel  DiagnosticKind = "unmapped_label"
	DiagDuplicateLabel DiagnosticKind = "duplicate_label"
	DiagUnknownScale   DiagnosticKind = "unknown_scale"
	DiagEmptyStatement DiagnosticKind = "empty_statement"
)

// Diagnostic records a normalization finding that did not fail the job.
type Diagnostic struct {
	Kind      DiagnosticKind `json:"kind"`
	Label     string         `json:"label,omitempty"`
	Statement StatementType  `json:"statement,omitempty"`
	Detail    string         `json:"detail"`
}
