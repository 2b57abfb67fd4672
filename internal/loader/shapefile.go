package loader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/geomarketing-cli/internal/fetcher"
	"github.com/sells-group/geomarketing-cli/internal/model"
)

// regionsFromShapefile reads regions from a .shp file, or from the first
// .shp inside a .zip archive.
func regionsFromShapefile(path string, opts RegionOptions, filter *regionFilter) ([]model.Region, error) {
	shpPath := path
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		dir, err := os.MkdirTemp(opts.TempDir, "shp-")
		if err != nil {
			return nil, eris.Wrap(err, "loader: create extract dir")
		}
		defer os.RemoveAll(dir) //nolint:errcheck

		if _, err := fetcher.ExtractZIP(path, dir); err != nil {
			return nil, eris.Wrapf(err, "loader: extract %s", path)
		}
		shpPath, err = fetcher.FindByExt(dir, ".shp")
		if err != nil {
			return nil, eris.Wrapf(err, "loader: find shapefile in %s", path)
		}
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	// Build field name → index map.
	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	attr := func(field string) string {
		i, ok := fieldIdx[strings.ToLower(field)]
		if !ok || field == "" {
			return ""
		}
		return strings.TrimSpace(strings.TrimRight(reader.Attribute(i), "\x00"))
	}

	if _, ok := fieldIdx[strings.ToLower(opts.NameField)]; !ok {
		return nil, eris.Errorf("loader: field %q not found in %s", opts.NameField, shpPath)
	}
	if filter.checksCountry() {
		if _, ok := fieldIdx[strings.ToLower(filter.countryField)]; !ok {
			return nil, eris.Errorf("loader: field %q not found in %s", filter.countryField, shpPath)
		}
	}

	var regions []model.Region
	var unsupported int
	for reader.Next() {
		_, shape := reader.Shape()

		r := model.Region{
			ID:         attr(opts.IDField),
			Name:       attr(opts.NameField),
			CantonCode: attr(opts.CantonField),
			Geometry:   shapeToGeom(shape),
		}
		if !filter.keep(r.ID, attr(filter.countryField)) {
			continue
		}
		if r.Geometry == nil && shape != nil {
			unsupported++
		}
		regions = append(regions, r)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "loader: read shapefile %s", shpPath)
	}

	if unsupported > 0 {
		zap.L().Debug("loader: shapefile records without usable geometry",
			zap.String("path", shpPath),
			zap.Int("count", unsupported),
		)
	}
	return regions, nil
}

// shapeToGeom converts a go-shp shape to a WGS84 go-geom geometry. Returns
// nil for unsupported or empty shapes.
func shapeToGeom(shape shp.Shape) geom.T {
	switch s := shape.(type) {
	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(4326)
	case *shp.PointZ:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}).SetSRID(4326)
	case *shp.Polygon:
		return ringsToMultiPolygon(s.Parts, s.Points)
	case *shp.PolygonZ:
		return ringsToMultiPolygon(s.Parts, s.Points)
	default:
		return nil
	}
}

// ringsToMultiPolygon groups shapefile rings into polygons. Clockwise rings
// start a new polygon; counter-clockwise rings are holes of the preceding
// polygon.
func ringsToMultiPolygon(parts []int32, points []shp.Point) geom.T {
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	var current *geom.Polygon

	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("loader: skipping malformed polygon", zap.Error(err))
		}
		current = nil
	}

	for i := range parts {
		start := int(parts[i])
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		if start < 0 || end > len(points) || end-start < 4 {
			continue
		}

		flat := make([]float64, 0, 2*(end-start))
		for _, p := range points[start:end] {
			flat = append(flat, p.X, p.Y)
		}
		ring := geom.NewLinearRingFlat(geom.XY, flat)

		if signedArea(points[start:end]) <= 0 || current == nil {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("loader: skipping malformed ring", zap.Int("part", i), zap.Error(err))
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// signedArea is positive for counter-clockwise rings.
func signedArea(ring []shp.Point) float64 {
	var a float64
	for i := 0; i+1 < len(ring); i++ {
		a += ring[i].X*ring[i+1].Y - ring[i+1].X*ring[i].Y
	}
	return a / 2
}
