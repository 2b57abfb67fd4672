// Package merge joins external attribute records onto canonical regions
// through fuzzy name matching.
package merge

import (
	"cmp"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geomarketing-cli/internal/matcher"
	"github.com/sells-group/geomarketing-cli/internal/model"
)

// ErrNoRegions is returned when Merge receives an empty region list.
var ErrNoRegions = eris.New("merge: no regions")

// Options configures name matching during the merge.
type Options struct {
	Threshold int
	Scorer    matcher.Scorer
}

// DefaultOptions returns the default matching threshold and scorer.
func DefaultOptions() Options {
	return Options{Threshold: matcher.DefaultThreshold, Scorer: matcher.WRatio}
}

// Conflict records an attribute record that lost a region to another record
// matching the same canonical name.
type Conflict struct {
	Region           string `json:"region"`
	Winner           string `json:"winner"`
	WinnerConfidence int    `json:"winner_confidence"`
	Loser            string `json:"loser"`
	LoserConfidence  int    `json:"loser_confidence"`
}

// Diagnostics summarizes recoverable conditions found while merging.
type Diagnostics struct {
	UnmatchedRegions  []string       `json:"unmatched_regions"`
	UnmatchedRecords  []string       `json:"unmatched_records"`
	DuplicatesDropped int            `json:"duplicates_dropped"`
	BlankNames        int            `json:"blank_names"`
	DroppedValues     []DroppedValue `json:"dropped_values,omitempty"`
	Conflicts         []Conflict     `json:"conflicts,omitempty"`
}

// Result is the merge output: one MergedRegion per input region, in input
// order, plus diagnostics.
type Result struct {
	Regions     []model.MergedRegion `json:"regions"`
	Diagnostics Diagnostics          `json:"diagnostics"`
}

// MatchedCount returns the number of regions that acquired attributes.
func (r *Result) MatchedCount() int {
	n := 0
	for i := range r.Regions {
		if r.Regions[i].Attributes != nil {
			n++
		}
	}
	return n
}

// MergeRaw cleans raw rows and merges them, carrying dropped values into
// the diagnostics.
func MergeRaw(regions []model.Region, raws []RawRecord, opts Options) (*Result, error) {
	records, dropped := CleanRecords(raws)
	res, err := Merge(regions, records, opts)
	if err != nil {
		return nil, err
	}
	res.Diagnostics.DroppedValues = dropped
	if len(dropped) > 0 {
		zap.L().Warn("merge: dropped unparseable values", zap.Int("count", len(dropped)))
	}
	return res, nil
}

// Merge left-joins attribute records onto regions. Records sharing a
// RawName are reduced to the one with the greatest SourceID. Each survivor
// is matched against the region names; a region acquires the record whose
// match equals its name. Regions with no record still appear in the output.
// When several records match one region the highest confidence wins and a
// tie goes to the later record in (RawName, SourceID) order.
func Merge(regions []model.Region, records []model.AttributeRecord, opts Options) (*Result, error) {
	if err := validateRegions(regions); err != nil {
		return nil, err
	}
	if opts.Threshold == 0 && opts.Scorer == nil {
		opts = DefaultOptions()
	}

	res := &Result{}

	kept, blanks, dups := dedupe(records)
	res.Diagnostics.BlankNames = blanks
	res.Diagnostics.DuplicatesDropped = dups

	names := make([]string, len(regions))
	for i, r := range regions {
		names[i] = r.Name
	}
	m := matcher.NewMatcher(names, matcher.WithThreshold(opts.Threshold), matcher.WithScorer(opts.Scorer))

	type assignment struct {
		record model.AttributeRecord
		match  model.MatchResult
	}
	assigned := make(map[string]assignment, len(regions))

	for _, rec := range kept {
		match, err := m.Match(rec.RawName)
		if err != nil {
			return nil, eris.Wrapf(err, "merge: match %q", rec.RawName)
		}
		if !match.Matched() {
			res.Diagnostics.UnmatchedRecords = append(res.Diagnostics.UnmatchedRecords, rec.RawName)
			continue
		}

		prev, taken := assigned[match.MatchedName]
		if !taken {
			assigned[match.MatchedName] = assignment{record: rec, match: match}
			continue
		}

		if match.Confidence >= prev.match.Confidence {
			assigned[match.MatchedName] = assignment{record: rec, match: match}
			res.Diagnostics.Conflicts = append(res.Diagnostics.Conflicts, Conflict{
				Region:           match.MatchedName,
				Winner:           rec.RawName,
				WinnerConfidence: match.Confidence,
				Loser:            prev.record.RawName,
				LoserConfidence:  prev.match.Confidence,
			})
		} else {
			res.Diagnostics.Conflicts = append(res.Diagnostics.Conflicts, Conflict{
				Region:           match.MatchedName,
				Winner:           prev.record.RawName,
				WinnerConfidence: prev.match.Confidence,
				Loser:            rec.RawName,
				LoserConfidence:  match.Confidence,
			})
		}
	}

	res.Regions = make([]model.MergedRegion, len(regions))
	for i, r := range regions {
		mr := model.MergedRegion{Region: r}
		if a, ok := assigned[r.Name]; ok {
			rec := a.record
			mr.Attributes = &rec
			mr.Match = a.match
		} else {
			res.Diagnostics.UnmatchedRegions = append(res.Diagnostics.UnmatchedRegions, r.Name)
		}
		res.Regions[i] = mr
	}

	logDiagnostics(len(regions), len(kept), res)

	return res, nil
}

// dedupe drops records with blank names and keeps the last record per
// RawName under a stable (RawName, SourceID) sort.
func dedupe(records []model.AttributeRecord) (kept []model.AttributeRecord, blanks, dups int) {
	sorted := make([]model.AttributeRecord, 0, len(records))
	for _, rec := range records {
		if strings.TrimSpace(rec.RawName) == "" {
			blanks++
			continue
		}
		sorted = append(sorted, rec)
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].RawName != sorted[j].RawName {
			return sorted[i].RawName < sorted[j].RawName
		}
		return CompareSourceID(sorted[i].SourceID, sorted[j].SourceID) < 0
	})

	for i, rec := range sorted {
		if i+1 < len(sorted) && sorted[i+1].RawName == rec.RawName {
			dups++
			continue
		}
		kept = append(kept, rec)
	}
	return kept, blanks, dups
}

// CompareSourceID orders source identifiers. Integer ids sort before all
// other ids and compare numerically ("9" < "10"); the rest compare
// lexically.
func CompareSourceID(a, b string) int {
	ai, aErr := strconv.ParseInt(strings.TrimSpace(a), 10, 64)
	bi, bErr := strconv.ParseInt(strings.TrimSpace(b), 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return cmp.Compare(ai, bi)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}
	return strings.Compare(a, b)
}

func validateRegions(regions []model.Region) error {
	if len(regions) == 0 {
		return ErrNoRegions
	}

	ids := make(map[string]bool, len(regions))
	names := make(map[string]bool, len(regions))
	for i, r := range regions {
		if strings.TrimSpace(r.Name) == "" {
			return eris.Errorf("merge: region %d (id %q) has a blank name", i, r.ID)
		}
		if ids[r.ID] {
			return eris.Errorf("merge: duplicate region id %q", r.ID)
		}
		if names[r.Name] {
			return eris.Errorf("merge: duplicate region name %q", r.Name)
		}
		ids[r.ID] = true
		names[r.Name] = true
	}
	return nil
}

func logDiagnostics(regions, records int, res *Result) {
	d := res.Diagnostics
	zap.L().Info("merge: attributes joined",
		zap.Int("regions", regions),
		zap.Int("records", records),
		zap.Int("matched", res.MatchedCount()),
		zap.Int("duplicates_dropped", d.DuplicatesDropped),
	)

	if len(d.UnmatchedRegions) > 0 || len(d.UnmatchedRecords) > 0 {
		zap.L().Warn("merge: unmatched names",
			zap.Strings("regions", d.UnmatchedRegions),
			zap.Strings("records", d.UnmatchedRecords),
		)
	}
	for _, c := range d.Conflicts {
		zap.L().Warn("merge: several records matched one region",
			zap.String("region", c.Region),
			zap.String("winner", c.Winner),
			zap.Int("winner_confidence", c.WinnerConfidence),
			zap.String("loser", c.Loser),
			zap.Int("loser_confidence", c.LoserConfidence),
		)
	}
}
