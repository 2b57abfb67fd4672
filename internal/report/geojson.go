// Package report renders scoring results for consumers: GeoJSON feature
// collections for maps and segment descriptions for the API.
package report

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/geomarketing-cli/internal/model"
	"github.com/sells-group/geomarketing-cli/internal/scorer"
)

// WeightProperty is the feature property holding a segment weight.
func WeightProperty(segmentID string) string {
	return segmentID + "_weight"
}

// ProximityProperty is the feature property holding a point-set weight.
func ProximityProperty(set string) string {
	return set + "_proximity"
}

// FeatureCollection converts scored regions into GeoJSON features. Every
// segment gets a weight property, null when the region is ineligible.
func FeatureCollection(regions []model.ScoredRegion, segments []scorer.Segment, field model.IncomeField) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(regions))}
	for i := range regions {
		fc.Features = append(fc.Features, Feature(regions[i], segments, field))
	}
	return fc
}

// Feature converts one scored region.
func Feature(r model.ScoredRegion, segments []scorer.Segment, field model.IncomeField) *geojson.Feature {
	props := map[string]interface{}{
		"id":                r.ID,
		"name":              r.Name,
		"canton":            nullable(r.CantonCode),
		"income":            floatOrNil(r.Income(field)),
		"income_normalized": floatOrNil(r.IncomeNormalized),
		"matched_name":      nullable(r.Match.MatchedName),
		"match_confidence":  r.Match.Confidence,
	}
	for set, w := range r.Proximity {
		props[ProximityProperty(set)] = w
	}
	for _, s := range segments {
		props[WeightProperty(s.ID)] = floatOrNil(r.Weight(s.ID))
	}

	return &geojson.Feature{
		ID:         r.ID,
		Geometry:   r.Geometry,
		Properties: props,
	}
}

// WriteGeoJSON encodes scored regions as a FeatureCollection.
func WriteGeoJSON(w io.Writer, regions []model.ScoredRegion, segments []scorer.Segment, field model.IncomeField) error {
	data, err := json.Marshal(FeatureCollection(regions, segments, field))
	if err != nil {
		return eris.Wrap(err, "report: encode geojson")
	}
	if _, err := w.Write(data); err != nil {
		return eris.Wrap(err, "report: write geojson")
	}
	return nil
}

func floatOrNil(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
