// Package model defines the region, attribute, and point-of-interest types
// shared by the matching, merge, proximity, and scoring stages.
package model

import (
	"github.com/twpayne/go-geom"
)

// Region is a canonical administrative unit (a municipality).
// Geometry is WGS84 lon/lat: a point, polygon, or multipolygon.
type Region struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CantonCode string `json:"canton_code,omitempty"`
	Geometry   geom.T `json:"-"`
}

// HasGeometry reports whether the region can enter the scoring pipeline.
func (r Region) HasGeometry() bool {
	if r.Geometry == nil {
		return false
	}
	return !r.Geometry.Empty()
}

// AttributeRecord is one row of external demographic data. Names are free
// text and may differ from the canonical spelling. Nil values are absent.
type AttributeRecord struct {
	SourceID        string   `json:"source_id"`
	RawName         string   `json:"raw_name"`
	IncomeTotal     *float64 `json:"income_total,omitempty"`
	IncomePerCapita *float64 `json:"income_per_capita,omitempty"`
}

// IncomeField selects which attribute feeds the normalized income signal.
type IncomeField string

const (
	IncomePerCapita IncomeField = "per_capita"
	IncomeTotal     IncomeField = "total"
)

// Value returns the selected income value, or nil if absent.
func (f IncomeField) Value(rec *AttributeRecord) *float64 {
	if rec == nil {
		return nil
	}
	switch f {
	case IncomeTotal:
		return rec.IncomeTotal
	default:
		return rec.IncomePerCapita
	}
}

// MatchResult is the outcome of a fuzzy name lookup. The zero value means
// no match.
type MatchResult struct {
	MatchedName string `json:"matched_name,omitempty"`
	Confidence  int    `json:"confidence"`
}

// Matched reports whether a canonical name was found.
func (m MatchResult) Matched() bool {
	return m.MatchedName != ""
}

// MergedRegion is a Region joined with at most one AttributeRecord.
type MergedRegion struct {
	Region
	Attributes       *AttributeRecord `json:"attributes,omitempty"`
	Match            MatchResult      `json:"match"`
	IncomeNormalized *float64         `json:"income_normalized,omitempty"`
}

// Income returns the selected raw income value, or nil when unresolved.
func (m MergedRegion) Income(field IncomeField) *float64 {
	return field.Value(m.Attributes)
}
