package loader

import (
	"bytes"
	"context"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomarketing-cli/internal/fetcher"
	"github.com/sells-group/geomarketing-cli/internal/merge"
)

// IncomeOptions describes a headerless income table. Column indices are
// zero-based; a negative index disables the column.
type IncomeOptions struct {
	Format          string
	Encoding        string
	Sheet           string
	SkipRows        int
	IDColumn        int
	NameColumn      int
	TotalColumn     int
	PerCapitaColumn int
}

// DefaultIncomeOptions matches the federal tax statistics export: six
// preamble rows, then id, name, total, per-capita.
func DefaultIncomeOptions() IncomeOptions {
	return IncomeOptions{
		Encoding:        fetcher.DefaultFallbackCharset,
		SkipRows:        6,
		IDColumn:        0,
		NameColumn:      1,
		TotalColumn:     2,
		PerCapitaColumn: 3,
	}
}

// LoadIncome reads raw attribute rows from a CSV or XLSX table. Cells are
// returned uncleaned; see merge.CleanRecords. Rows without a name are
// skipped.
func LoadIncome(ctx context.Context, path string, opts IncomeOptions) ([]merge.RawRecord, error) {
	format, err := DetectFormat(path, opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.NameColumn < 0 {
		return nil, eris.New("loader: income name column is required")
	}
	if opts.SkipRows < 0 {
		return nil, eris.Errorf("loader: invalid skip rows %d", opts.SkipRows)
	}

	var rows [][]string
	switch format {
	case FormatCSV:
		rows, err = incomeRowsCSV(ctx, path, opts)
	case FormatXLSX:
		rows, err = fetcher.ReadXLSX(path, fetcher.XLSXOptions{
			SheetName: opts.Sheet,
			SkipRows:  opts.SkipRows,
		})
		if err != nil {
			err = eris.Wrapf(err, "loader: read %s", path)
		}
	default:
		return nil, eris.Errorf("loader: format %s not supported for income", format)
	}
	if err != nil {
		return nil, err
	}

	records := make([]merge.RawRecord, 0, len(rows))
	var skipped int
	for i, row := range rows {
		name := cell(row, opts.NameColumn)
		if name == "" {
			skipped++
			continue
		}
		id := cell(row, opts.IDColumn)
		if id == "" {
			// Row position keeps last-write-wins ordering stable.
			id = strconv.Itoa(i + 1)
		}
		records = append(records, merge.RawRecord{
			SourceID:        id,
			RawName:         name,
			IncomeTotal:     cell(row, opts.TotalColumn),
			IncomePerCapita: cell(row, opts.PerCapitaColumn),
		})
	}

	zap.L().Info("loader: income loaded",
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("records", len(records)),
		zap.Int("skipped_blank", skipped),
	)
	return records, nil
}

func incomeRowsCSV(ctx context.Context, path string, opts IncomeOptions) ([][]string, error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, err
	}
	data, charset, err := fetcher.DecodeText(raw, opts.Encoding)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: decode %s", path)
	}

	_, rows, err := fetcher.ReadCSV(ctx, bytes.NewReader(data), fetcher.CSVOptions{
		Delimiter:  sniffDelimiter(data, opts.SkipRows),
		SkipRows:   opts.SkipRows,
		LazyQuotes: true,
		TrimSpace:  true,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "loader: parse %s", path)
	}

	zap.L().Debug("loader: decoded income csv", zap.String("path", path), zap.String("charset", charset))
	return rows, nil
}

// sniffDelimiter picks ';' when the first data line has more semicolons
// than commas, as Swiss exports often do.
func sniffDelimiter(data []byte, skip int) rune {
	lines := bytes.SplitN(data, []byte("\n"), skip+2)
	line := lines[len(lines)-1]
	if len(lines) > skip {
		line = lines[skip]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}
