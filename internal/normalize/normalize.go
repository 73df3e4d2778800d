// Package normalize reconciles raw source disclosures into the canonical
// four-statement model: one grid per statement, uniform line items across
// periods, values rescaled to whole currency units.
package normalize

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/filings-cli/internal/model"
)

// ErrNoData is returned when a source yields no usable records for any
// statement type. Absence of a single statement is not an error; absence of
// everything is.
var ErrNoData = eris.New("normalize: no records for entity")

// UnmappedItem is the reserved line-item name an unresolvable label is
// retained under. The original label stays visible in the row name.
func UnmappedItem(label string) string {
	return fmt.Sprintf("Unmapped: %s", label)
}

// Normalizer is a stateless transform from raw records to a StatementSet.
type Normalizer struct {
	table *AliasTable
}

// New creates a Normalizer over the given alias table.
func New(table *AliasTable) *Normalizer {
	return &Normalizer{table: table}
}

// cell holds one resolved record before grid assembly.
type cell struct {
	item   string
	end    time.Time
	value  float64
	seq    int
	mapped bool
}

// Normalize builds the canonical statement model for one entity. Records are
// consumed in ingestion order; the output is fully determined by the input
// sequence.
func (n *Normalizer) Normalize(entity, entityName string, records []model.RawRecord) (*model.StatementSet, error) {
	if len(records) == 0 {
		return nil, eris.Wrapf(ErrNoData, "entity %s", entity)
	}

	set := &model.StatementSet{
		Entity:     entity,
		EntityName: entityName,
		Statements: make(map[model.StatementType]model.Statement),
	}

	// Resolved cells per statement, in ingestion order.
	cells := make(map[model.StatementType][]cell)
	// Union of period end dates across all statements, with the ingestion
	// order of their first appearance as the deterministic tiebreak.
	periodSeq := make(map[time.Time]int)
	var periodEnds []time.Time

	lastStatement := model.BalanceSheet

	for _, rec := range records {
		mult, ok := rec.Scale.Multiplier()
		if !ok {
			set.Diagnostics = append(set.Diagnostics, model.Diagnostic{
				Kind:   model.DiagUnknownScale,
				Label:  rec.SourceLabel,
				Detail: fmt.Sprintf("unrecognized unit scale %q, record excluded", rec.Scale),
			})
			continue
		}

		c := cell{end: rec.PeriodEnd, value: rec.Value * mult, seq: rec.Seq}

		tgt, resolved := n.table.Resolve(rec.SourceLabel)
		if resolved {
			c.item = tgt.Item
			c.mapped = true
			lastStatement = tgt.Statement
		} else {
			// Unknown label: keep it, filed under the statement most
			// recently seen in document order.
			tgt.Statement = lastStatement
			c.item = UnmappedItem(rec.SourceLabel)
			set.Diagnostics = append(set.Diagnostics, model.Diagnostic{
				Kind:      model.DiagUnmappedLabel,
				Label:     rec.SourceLabel,
				Statement: tgt.Statement,
				Detail:    fmt.Sprintf("label %q not in alias table v%d", rec.SourceLabel, n.table.Version),
			})
		}

		if _, seen := periodSeq[rec.PeriodEnd]; !seen {
			periodSeq[rec.PeriodEnd] = rec.Seq
			periodEnds = append(periodEnds, rec.PeriodEnd)
		}

		cells[tgt.Statement] = append(cells[tgt.Statement], c)
	}

	if len(periodEnds) == 0 {
		return nil, eris.Wrapf(ErrNoData, "entity %s", entity)
	}

	for _, stype := range model.StatementTypes() {
		stmt := n.buildStatement(set, stype, cells[stype], periodEnds, periodSeq)
		set.Statements[stype] = stmt
		if stmt.Empty() {
			set.Diagnostics = append(set.Diagnostics, model.Diagnostic{
				Kind:      model.DiagEmptyStatement,
				Statement: stype,
				Detail:    fmt.Sprintf("no resolvable records for %s", stype),
			})
		}
	}

	zap.L().Debug("normalized statements",
		zap.String("entity", entity),
		zap.Int("records", len(records)),
		zap.Int("periods", len(periodEnds)),
		zap.Int("diagnostics", len(set.Diagnostics)),
	)

	return set, nil
}

// buildStatement assembles one uniform grid. Every period carries every line
// item; first-seen values win and later duplicates are diagnosed.
func (n *Normalizer) buildStatement(set *model.StatementSet, stype model.StatementType, stmtCells []cell, periodEnds []time.Time, periodSeq map[time.Time]int) model.Statement {
	byPeriod := make(map[time.Time]map[string]model.Value, len(periodEnds))
	for _, end := range periodEnds {
		byPeriod[end] = make(map[string]model.Value)
	}

	// Line items present in this statement, tracked in first-seen order for
	// unmapped rows; canonical rows use the table's display order.
	seenItems := make(map[string]bool)
	var unmappedOrder []string

	for _, c := range stmtCells {
		row := byPeriod[c.end]
		if prev, dup := row[c.item]; dup && prev.Reported {
			set.Diagnostics = append(set.Diagnostics, model.Diagnostic{
				Kind:      model.DiagDuplicateLabel,
				Label:     c.item,
				Statement: stype,
				Detail: fmt.Sprintf("duplicate value for %s at %s: kept %v, dropped %v",
					c.item, c.end.Format("2006-01-02"), prev.Amount, c.value),
			})
			continue
		}
		row[c.item] = model.Value{Amount: c.value, Reported: true}

		if !seenItems[c.item] {
			seenItems[c.item] = true
			if !c.mapped {
				unmappedOrder = append(unmappedOrder, c.item)
			}
		}
	}

	// Row order: canonical vocabulary order first, then unmapped labels in
	// first-seen order.
	var items []string
	for _, name := range n.table.DisplayOrder(stype) {
		if seenItems[name] {
			items = append(items, name)
		}
	}
	items = append(items, unmappedOrder...)

	periods := make([]model.Period, 0, len(periodEnds))
	for _, end := range periodEnds {
		p := model.Period{End: end, Seq: periodSeq[end], Items: make(map[string]model.Value, len(items))}
		for _, item := range items {
			if v, ok := byPeriod[end][item]; ok {
				p.Items[item] = v
			} else {
				p.Items[item] = model.Value{} // explicit not-reported
			}
		}
		periods = append(periods, p)
	}
	model.SortPeriods(periods)

	return model.Statement{Type: stype, Items: items, Periods: periods}
}
