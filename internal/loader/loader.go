// Package loader reads regions, income tables, and point-of-interest sets
// from CSV, XLSX, GeoJSON, shapefile, and Google Places exports.
package loader

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Supported source formats.
const (
	FormatCSV       = "csv"
	FormatXLSX      = "xlsx"
	FormatGeoJSON   = "geojson"
	FormatShapefile = "shapefile"
	FormatPlaces    = "places"
)

// DetectFormat returns format when set, otherwise infers it from the file
// extension. Zipped sources are assumed to hold a shapefile.
func DetectFormat(path, format string) (string, error) {
	if f := strings.ToLower(strings.TrimSpace(format)); f != "" {
		switch f {
		case FormatCSV, FormatXLSX, FormatGeoJSON, FormatShapefile, FormatPlaces:
			return f, nil
		case "json":
			return FormatGeoJSON, nil
		case "shp", "zip":
			return FormatShapefile, nil
		default:
			return "", eris.Errorf("loader: unknown format %q", format)
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".geojson", ".json":
		return FormatGeoJSON, nil
	case ".shp", ".zip":
		return FormatShapefile, nil
	default:
		return "", eris.Errorf("loader: cannot infer format of %s", path)
	}
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read %s", path)
	}
	return data, nil
}

// columnIndex maps header names to positions, case-insensitively.
func columnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// cell returns row[i] trimmed, or "" when i is out of range or negative.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func parseCoord(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
