package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/sells-group/geomarketing-cli/internal/fetcher"
	"github.com/sells-group/geomarketing-cli/internal/model"
)

// RegionOptions maps source fields onto Region. For CSV the fields are
// header names, for GeoJSON property keys, for shapefiles DBF attribute
// names. LonField and LatField are only used by CSV.
//
// When CountryField and Country are both set, rows whose country value
// differs are dropped. When IDRanges is non-empty, only rows whose numeric
// id falls inside one of the ranges are kept.
type RegionOptions struct {
	Format       string
	IDField      string
	NameField    string
	CantonField  string
	LonField     string
	LatField     string
	CountryField string
	Country      string
	IDRanges     []IDRange
	Encoding     string
	TempDir      string
}

// LoadRegions reads canonical regions from a local CSV, GeoJSON, or
// shapefile source. Rows without usable coordinates are kept with a nil
// geometry so the caller can report them.
func LoadRegions(ctx context.Context, path string, opts RegionOptions) ([]model.Region, error) {
	format, err := DetectFormat(path, opts.Format)
	if err != nil {
		return nil, err
	}
	if opts.IDField == "" || opts.NameField == "" {
		return nil, eris.New("loader: region id and name fields are required")
	}

	filter := newRegionFilter(opts)
	var regions []model.Region
	switch format {
	case FormatCSV:
		regions, err = regionsFromCSV(ctx, path, opts, filter)
	case FormatGeoJSON:
		regions, err = regionsFromGeoJSON(path, opts, filter)
	case FormatShapefile:
		regions, err = regionsFromShapefile(path, opts, filter)
	default:
		return nil, eris.Errorf("loader: format %s not supported for regions", format)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("loader: regions loaded",
		zap.String("path", path),
		zap.String("format", format),
		zap.Int("count", len(regions)),
		zap.Int("excluded", filter.excluded),
	)
	return regions, nil
}

func regionsFromCSV(ctx context.Context, path string, opts RegionOptions, filter *regionFilter) ([]model.Region, error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, err
	}
	data, charset, err := fetcher.DecodeText(raw, opts.Encoding)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: decode %s", path)
	}

	header, rows, err := fetcher.ReadCSV(ctx, bytes.NewReader(data), fetcher.CSVOptions{
		HasHeader: true,
		TrimSpace: true,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "loader: parse %s", path)
	}

	cols := columnIndex(header)
	lookup := func(name string, required bool) (int, error) {
		if name == "" && !required {
			return -1, nil
		}
		i, ok := cols[strings.ToLower(name)]
		if !ok {
			if required {
				return -1, eris.Errorf("loader: column %q not found in %s", name, path)
			}
			return -1, nil
		}
		return i, nil
	}

	idCol, err := lookup(opts.IDField, true)
	if err != nil {
		return nil, err
	}
	nameCol, err := lookup(opts.NameField, true)
	if err != nil {
		return nil, err
	}
	cantonCol, _ := lookup(opts.CantonField, false)
	lonCol, _ := lookup(opts.LonField, false)
	latCol, _ := lookup(opts.LatField, false)
	countryCol := -1
	if filter.checksCountry() {
		if countryCol, err = lookup(filter.countryField, true); err != nil {
			return nil, err
		}
	}

	regions := make([]model.Region, 0, len(rows))
	for _, row := range rows {
		r := model.Region{
			ID:         cell(row, idCol),
			Name:       cell(row, nameCol),
			CantonCode: cell(row, cantonCol),
		}
		if !filter.keep(r.ID, cell(row, countryCol)) {
			continue
		}
		lon, lonOK := parseCoord(cell(row, lonCol))
		lat, latOK := parseCoord(cell(row, latCol))
		if lonOK && latOK {
			r.Geometry = geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(4326)
		}
		regions = append(regions, r)
	}

	zap.L().Debug("loader: decoded regions csv", zap.String("path", path), zap.String("charset", charset))
	return regions, nil
}

func regionsFromGeoJSON(path string, opts RegionOptions, filter *regionFilter) ([]model.Region, error) {
	fc, err := readFeatureCollection(path)
	if err != nil {
		return nil, err
	}

	regions := make([]model.Region, 0, len(fc.Features))
	for i, f := range fc.Features {
		r := model.Region{
			ID:         propString(f.Properties, opts.IDField),
			Name:       propString(f.Properties, opts.NameField),
			CantonCode: propString(f.Properties, opts.CantonField),
			Geometry:   f.Geometry,
		}
		if r.ID == "" {
			r.ID = f.ID
		}
		if r.ID == "" {
			r.ID = strconv.Itoa(i + 1)
		}
		if !filter.keep(r.ID, propString(f.Properties, filter.countryField)) {
			continue
		}
		regions = append(regions, r)
	}
	return regions, nil
}

func readFeatureCollection(path string) (*geojson.FeatureCollection, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrapf(err, "loader: decode geojson %s", path)
	}
	return &fc, nil
}

// propString renders a GeoJSON property as a string. Whole numbers are
// printed without a decimal point so numeric IDs round-trip.
func propString(props map[string]interface{}, key string) string {
	if key == "" || props == nil {
		return ""
	}
	v, ok := props[key]
	if !ok {
		for k, val := range props {
			if strings.EqualFold(k, key) {
				v, ok = val, true
				break
			}
		}
	}
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
