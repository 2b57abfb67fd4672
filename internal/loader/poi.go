package loader

import (
	"context"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/geomarketing-cli/internal/fetcher"
	"github.com/sells-group/geomarketing-cli/internal/model"
)

var (
	nameKeys     = []string{"name", "title", "bezeichnung"}
	categoryKeys = []string{"category", "type", "kategorie"}
)

// LoadPOIs reads a named point set from a GeoJSON FeatureCollection or a
// Google Places export. Features without geometry are kept; the proximity
// stage skips them.
func LoadPOIs(ctx context.Context, name, path, format string) (model.PointOfInterestSet, error) {
	set := model.PointOfInterestSet{Name: name}

	f, err := DetectFormat(path, format)
	if err != nil {
		return set, err
	}

	switch f {
	case FormatGeoJSON:
		set.Points, err = poisFromGeoJSON(path)
	case FormatPlaces:
		set.Points, err = LoadCompetitors(ctx, path)
	default:
		return set, eris.Errorf("loader: format %s not supported for point set %s", f, name)
	}
	if err != nil {
		return set, err
	}

	zap.L().Info("loader: point set loaded",
		zap.String("set", name),
		zap.String("path", path),
		zap.Int("count", set.Len()),
	)
	return set, nil
}

func poisFromGeoJSON(path string) ([]model.PointOfInterest, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, err
	}

	points := make([]model.PointOfInterest, 0, len(fc.Features))
	for _, feat := range fc.Features {
		points = append(points, model.PointOfInterest{
			Name:     firstProp(feat.Properties, nameKeys),
			Category: firstProp(feat.Properties, categoryKeys),
			Address:  propString(feat.Properties, "address"),
			Geometry: feat.Geometry,
		})
	}
	return points, nil
}

func firstProp(props map[string]interface{}, keys []string) string {
	for _, k := range keys {
		if v := propString(props, k); v != "" {
			return v
		}
	}
	return ""
}

// placeResult is one entry of a Google Places text-search export.
type placeResult struct {
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	Types            []string `json:"types"`
	Rating           *float64 `json:"rating"`
	Geometry         struct {
		Location *struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
	} `json:"geometry"`
}

// LoadCompetitors reads a JSON array of Google Places results. Types are
// joined into the category; entries without a location get no geometry.
func LoadCompetitors(ctx context.Context, path string) ([]model.PointOfInterest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open %s", path)
	}
	defer file.Close() //nolint:errcheck

	places, err := fetcher.ReadJSONArray[placeResult](ctx, file)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: decode places %s", path)
	}

	points := make([]model.PointOfInterest, 0, len(places))
	for _, p := range places {
		poi := model.PointOfInterest{
			Name:     strings.TrimSpace(p.Name),
			Category: strings.Join(p.Types, ", "),
			Address:  strings.TrimSpace(p.FormattedAddress),
			Rating:   p.Rating,
		}
		if loc := p.Geometry.Location; loc != nil {
			poi.Geometry = geom.NewPointFlat(geom.XY, []float64{loc.Lng, loc.Lat}).SetSRID(4326)
		}
		points = append(points, poi)
	}
	return points, nil
}
