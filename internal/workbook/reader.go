package workbook

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Grid is a parsed statement sheet: item name -> period label -> amount.
// Blank cells (values never reported) are absent from the inner map.
type Grid map[string]map[string]float64

// SheetNames lists the sheets of a workbook in file order.
func SheetNames(data []byte) ([]string, error) {
	wb, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "workbook: open")
	}
	names := make([]string, 0, len(wb.Sheets))
	for _, s := range wb.Sheets {
		names = append(names, s.Name)
	}
	return names, nil
}

// SheetTitle returns the header title cell of a statement sheet.
func SheetTitle(data []byte, sheet string) (string, error) {
	wb, err := xlsx.OpenBinary(data)
	if err != nil {
		return "", eris.Wrap(err, "workbook: open")
	}
	sh, ok := wb.Sheet[sheet]
	if !ok {
		return "", eris.Errorf("workbook: sheet %s not found", sheet)
	}
	if len(sh.Rows) == 0 || len(sh.Rows[0].Cells) == 0 {
		return "", nil
	}
	return sh.Rows[0].Cells[0].String(), nil
}

// ReadGrid parses a statement sheet produced by Synthesize back into a Grid.
func ReadGrid(data []byte, sheet string) (Grid, error) {
	wb, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "workbook: open")
	}
	sh, ok := wb.Sheet[sheet]
	if !ok {
		return nil, eris.Errorf("workbook: sheet %s not found", sheet)
	}
	if len(sh.Rows) < gridHeadRow {
		return nil, eris.Errorf("workbook: sheet %s has no grid", sheet)
	}

	head := sh.Rows[gridHeadRow-1]
	var labels []string
	for _, c := range head.Cells[1:] {
		labels = append(labels, c.String())
	}

	grid := make(Grid)
	for _, row := range sh.Rows[gridHeadRow:] {
		if len(row.Cells) == 0 {
			continue
		}
		item := row.Cells[0].String()
		if item == "" {
			continue
		}
		vals := make(map[string]float64)
		for i, label := range labels {
			if i+1 >= len(row.Cells) {
				break
			}
			cell := row.Cells[i+1]
			if cell.String() == "" {
				continue
			}
			v, err := cell.Float()
			if err != nil {
				return nil, eris.Wrapf(err, "workbook: cell %s/%s", item, label)
			}
			vals[label] = v
		}
		grid[item] = vals
	}
	return grid, nil
}
