package fetcher

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures EachCSVRow and ReadCSV.
type CSVOptions struct {
	Delimiter  rune // default ','
	SkipRows   int  // preamble rows dropped before the header
	HasHeader  bool
	LazyQuotes bool
	TrimSpace  bool
}

// EachCSVRow calls fn with every data row of r and returns the header when
// opts.HasHeader is set. Rows may have differing field counts. fn receives
// the 1-based record number and may stop iteration by returning an error.
func EachCSVRow(ctx context.Context, r io.Reader, opts CSVOptions, fn func(n int, row []string) error) ([]string, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1

	var header []string
	wantHeader := opts.HasHeader
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "csv: cancelled")
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return header, nil
		}
		if err != nil {
			return nil, eris.Wrapf(err, "csv: read record %d", n)
		}
		if n <= opts.SkipRows {
			continue
		}
		if opts.TrimSpace {
			for i := range row {
				row[i] = strings.TrimSpace(row[i])
			}
		}
		if wantHeader {
			header, wantHeader = row, false
			continue
		}
		if err := fn(n, row); err != nil {
			return nil, err
		}
	}
}

// ReadCSV collects every data row of r in memory.
func ReadCSV(ctx context.Context, r io.Reader, opts CSVOptions) (header []string, rows [][]string, err error) {
	header, err = EachCSVRow(ctx, r, opts, func(_ int, row []string) error {
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return header, rows, nil
}
