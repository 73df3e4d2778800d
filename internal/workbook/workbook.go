// Package workbook renders canonical statement models into a multi-sheet
// XLSX artifact: a leading summary sheet, then one sheet per non-empty
// statement (qualified per entity when a job spans several banks).
package workbook

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/filings-cli/internal/model"
)

// unitAnnotation is the reporting-unit label carried once per sheet header;
// the normalizer rescales all currency amounts to whole dollars.
const unitAnnotation = "Amounts in whole US dollars; ratio fields in percent"

const (
	summarySheet = "Summary"
	gridHeadRow  = 5 // grid starts below the three-line sheet header
)

// Options configures synthesis.
type Options struct {
	// GeneratedAt stamps the summary sheet. Zero means time.Now is used at
	// the call site; the synthesizer itself never reads the clock, so equal
	// inputs produce equal workbooks.
	GeneratedAt time.Time
	// Qualify appends the entity identifier to every statement sheet name.
	// Required when the workbook carries more than one entity.
	Qualify bool
}

// Synthesize renders one workbook from one or more canonical models. The
// input order is the sheet order. Statements with no reported values are
// omitted from the output (they remain visible in diagnostics).
func Synthesize(sets []*model.StatementSet, opts Options) ([]byte, error) {
	if len(sets) == 0 {
		return nil, eris.New("workbook: no statement sets")
	}
	if len(sets) > 1 {
		opts.Qualify = true
	}

	f := excelize.NewFile()
	// The default sheet becomes the summary.
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, eris.Wrap(err, "workbook: rename summary sheet")
	}

	var produced []string
	for _, set := range sets {
		for _, stype := range model.StatementTypes() {
			stmt, ok := set.Statements[stype]
			if !ok || stmt.Empty() {
				continue
			}
			name := sheetName(stype, set.Entity, opts.Qualify)
			if err := writeStatement(f, name, set, stmt, opts.Qualify); err != nil {
				return nil, err
			}
			produced = append(produced, name)
		}
	}

	if err := writeSummary(f, sets, produced, opts.GeneratedAt); err != nil {
		return nil, err
	}

	idx, err := f.GetSheetIndex(summarySheet)
	if err == nil {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, eris.Wrap(err, "workbook: write buffer")
	}
	return buf.Bytes(), nil
}

// sheetName builds a legal XLSX sheet name (31 chars, no []:*?/\), keeping
// the entity qualifier intact when truncation is needed.
func sheetName(stype model.StatementType, entity string, qualify bool) string {
	base := string(stype)
	if !qualify {
		return base
	}
	suffix := "-" + sanitizeSheetName(entity)
	if len(base)+len(suffix) > 31 {
		base = base[:31-len(suffix)]
	}
	return base + suffix
}

func sanitizeSheetName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return -1
		}
		return r
	}, s)
}

// PeriodLabel formats a period column header, e.g. "Jun 2024".
func PeriodLabel(end time.Time) string {
	return end.Format("Jan 2006")
}

func writeStatement(f *excelize.File, sheet string, set *model.StatementSet, stmt model.Statement, qualified bool) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return eris.Wrapf(err, "workbook: create sheet %s", sheet)
	}

	// Multi-entity workbooks title each sheet set "{Name}-{Entity}" so a
	// reader can tell the banks apart without the summary sheet.
	title := set.EntityName
	switch {
	case title == "":
		title = set.Entity
	case qualified:
		title = set.EntityName + "-" + set.Entity
	}

	setCell := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(sheet, cell, v)
	}

	setCell(1, 1, title)
	setCell(1, 2, unitAnnotation)
	setCell(1, 3, fmt.Sprintf("Entity: %s", set.Entity))

	// Grid header: line-item column plus one column per period,
	// most-recent-first.
	setCell(1, gridHeadRow, "Line Item")
	for c, p := range stmt.Periods {
		setCell(c+2, gridHeadRow, PeriodLabel(p.End))
	}

	for r, item := range stmt.Items {
		row := gridHeadRow + 1 + r
		setCell(1, row, item)
		for c, p := range stmt.Periods {
			v := p.Items[item]
			if !v.Reported {
				continue // explicit blank, distinguishable from zero
			}
			setCell(c+2, row, v.Amount)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 45)
	if len(stmt.Periods) > 0 {
		last, _ := excelize.ColumnNumberToName(len(stmt.Periods) + 1)
		_ = f.SetColWidth(sheet, "B", last, 15)
	}

	return nil
}

func writeSummary(f *excelize.File, sets []*model.StatementSet, produced []string, generatedAt time.Time) error {
	setCell := func(col, row int, v any) {
		cell, _ := excelize.CoordinatesToCellName(col, row)
		_ = f.SetCellValue(summarySheet, cell, v)
	}

	var entities []string
	var diags int
	for _, set := range sets {
		label := set.Entity
		if set.EntityName != "" {
			label = fmt.Sprintf("%s (%s)", set.EntityName, set.Entity)
		}
		entities = append(entities, label)
		diags += len(set.Diagnostics)
	}

	setCell(1, 1, "Financial Statements Export")
	setCell(1, 3, "Entity")
	setCell(2, 3, strings.Join(entities, ", "))
	setCell(1, 4, "Generated")
	setCell(2, 4, generatedAt.UTC().Format(time.RFC3339))
	setCell(1, 5, "Sheets")
	setCell(2, 5, strings.Join(produced, ", "))
	setCell(1, 6, "Diagnostics")
	setCell(2, 6, diags)

	row := 8
	if diags > 0 {
		setCell(1, row, "Normalization diagnostics")
		row++
		for _, set := range sets {
			for _, d := range set.Diagnostics {
				setCell(1, row, string(d.Kind))
				setCell(2, row, d.Detail)
				row++
			}
		}
	}

	_ = f.SetColWidth(summarySheet, "A", "A", 28)
	_ = f.SetColWidth(summarySheet, "B", "B", 70)

	return nil
}
