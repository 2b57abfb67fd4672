package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// XLSXOptions selects the sheet and preamble of a workbook.
type XLSXOptions struct {
	SheetName string // matched case-insensitively; empty picks the first sheet
	SkipRows  int
}

// ReadXLSX returns the cell text of one sheet, after SkipRows. Trailing
// empty cells are trimmed and rows left empty are dropped, since statistics
// exports pad every row to the widest column.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	wb, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", path)
	}

	sheet, err := pickSheet(wb, opts.SheetName)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows || row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for j, c := range row.Cells {
			cells[j] = strings.TrimSpace(c.String())
		}
		for len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	return rows, nil
}

func pickSheet(wb *xlsx.File, name string) (*xlsx.Sheet, error) {
	if len(wb.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	if name == "" {
		return wb.Sheets[0], nil
	}
	for _, s := range wb.Sheets {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return nil, eris.Errorf("xlsx: sheet %q not found", name)
}
