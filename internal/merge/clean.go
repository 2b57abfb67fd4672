package merge

import (
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/geomarketing-cli/internal/model"
)

// Income field names used in DroppedValue.
const (
	FieldIncomeTotal     = "income_total"
	FieldIncomePerCapita = "income_per_capita"
)

// numberNoise removes thousands separators and quoting from a raw cell.
var numberNoise = strings.NewReplacer(
	",", "",
	"'", "",
	"\u2019", "",
	"\"", "",
	" ", "",
	"\u00a0", "",
	"\u202f", "",
	"\u2009", "",
)

// RawRecord is an attribute row exactly as read from the source, before any
// numeric cleaning.
type RawRecord struct {
	SourceID        string
	RawName         string
	IncomeTotal     string
	IncomePerCapita string
}

// DroppedValue describes a single field that could not be parsed.
type DroppedValue struct {
	SourceID string `json:"source_id"`
	RawName  string `json:"raw_name"`
	Field    string `json:"field"`
	Value    string `json:"value"`
}

// ParseNumber cleans and parses a numeric cell. Thousands separators,
// quotes, and embedded spaces are stripped first. ok is false for blank,
// non-numeric ("X", "..."), NaN, or infinite values.
func ParseNumber(raw string) (float64, bool) {
	s := numberNoise.Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// CleanRecords parses the numeric fields of raw rows. An unparseable field
// is nulled and reported; the rest of the record is kept. Blank cells are
// treated as absent without being reported.
func CleanRecords(raws []RawRecord) ([]model.AttributeRecord, []DroppedValue) {
	records := make([]model.AttributeRecord, 0, len(raws))
	var dropped []DroppedValue

	for _, raw := range raws {
		rec := model.AttributeRecord{
			SourceID: strings.TrimSpace(raw.SourceID),
			RawName:  strings.TrimSpace(raw.RawName),
		}

		var drop bool
		rec.IncomeTotal, drop = cleanField(raw.IncomeTotal)
		if drop {
			dropped = append(dropped, DroppedValue{
				SourceID: rec.SourceID, RawName: rec.RawName,
				Field: FieldIncomeTotal, Value: raw.IncomeTotal,
			})
		}
		rec.IncomePerCapita, drop = cleanField(raw.IncomePerCapita)
		if drop {
			dropped = append(dropped, DroppedValue{
				SourceID: rec.SourceID, RawName: rec.RawName,
				Field: FieldIncomePerCapita, Value: raw.IncomePerCapita,
			})
		}

		records = append(records, rec)
	}

	return records, dropped
}

// cleanField returns the parsed value, and whether a non-blank cell had to
// be dropped.
func cleanField(raw string) (*float64, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}
	v, ok := ParseNumber(raw)
	if !ok {
		return nil, true
	}
	return &v, false
}
