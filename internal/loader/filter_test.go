package loader

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const filterCSV = "BFS-Nr,Gemeindename,ICC\n" +
	"261,Zürich,CH\n" +
	"300,Gap,CH\n" +
	"1711,Zug,CH\n" +
	"7001,Vaduz,LI\n" +
	"5001,Enclave,DE\n" +
	"x1,Broken,CH\n"

const filterGeoJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"BFS-Nr":261,"Gemeindename":"Zürich","ICC":"CH"},"geometry":{"type":"Point","coordinates":[8.54,47.37]}},
{"type":"Feature","properties":{"BFS-Nr":300,"Gemeindename":"Gap","ICC":"CH"},"geometry":{"type":"Point","coordinates":[8.0,47.0]}},
{"type":"Feature","properties":{"BFS-Nr":1711,"Gemeindename":"Zug","ICC":"CH"},"geometry":{"type":"Point","coordinates":[8.51,47.16]}},
{"type":"Feature","properties":{"BFS-Nr":7001,"Gemeindename":"Vaduz","ICC":"LI"},"geometry":{"type":"Point","coordinates":[9.52,47.14]}},
{"type":"Feature","properties":{"BFS-Nr":5001,"Gemeindename":"Enclave"},"geometry":{"type":"Point","coordinates":[8.7,47.7]}}
]}`

func TestLoadRegions_Filter(t *testing.T) {
	swissRanges := []IDRange{{Min: 1, Max: 299}, {Min: 301, Max: 999}, {Min: 1001, Max: 1999}}

	tests := []struct {
		name     string
		file     string
		data     string
		country  string
		ranges   []IDRange
		expected []string
	}{
		{"csv no filter", "m.csv", filterCSV, "", nil, []string{"261", "300", "1711", "7001", "5001", "x1"}},
		{"csv country", "m.csv", filterCSV, "CH", nil, []string{"261", "300", "1711", "x1"}},
		{"csv country lowercase value", "m.csv", filterCSV, "ch", nil, []string{"261", "300", "1711", "x1"}},
		{"csv ranges", "m.csv", filterCSV, "", swissRanges, []string{"261", "1711"}},
		{"csv country and ranges", "m.csv", filterCSV, "CH", swissRanges, []string{"261", "1711"}},
		{"csv inclusive bounds", "m.csv", filterCSV, "", []IDRange{{Min: 261, Max: 261}, {Min: 1711, Max: 7001}}, []string{"261", "1711", "7001", "5001"}},
		{"geojson country", "m.geojson", filterGeoJSON, "CH", nil, []string{"261", "300", "1711"}},
		{"geojson country and ranges", "m.geojson", filterGeoJSON, "CH", swissRanges, []string{"261", "1711"}},
		{"geojson ranges", "m.geojson", filterGeoJSON, "", []IDRange{{Min: 5000, Max: 8000}}, []string{"7001", "5001"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), tt.file, []byte(tt.data))
			opts := RegionOptions{
				IDField:   "BFS-Nr",
				NameField: "Gemeindename",
				IDRanges:  tt.ranges,
			}
			if tt.country != "" {
				opts.CountryField = "ICC"
				opts.Country = tt.country
			}

			regions, err := LoadRegions(context.Background(), path, opts)
			require.NoError(t, err)

			ids := make([]string, 0, len(regions))
			for _, r := range regions {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestLoadRegions_FilterShapefile(t *testing.T) {
	dir := t.TempDir()
	path := writeTestShapefile(t, dir)

	tests := []struct {
		name     string
		ranges   []IDRange
		expected []string
	}{
		{"no ranges", nil, []string{"1711", "261"}},
		{"zug only", []IDRange{{Min: 1701, Max: 1999}}, []string{"1711"}},
		{"none match", []IDRange{{Min: 4001, Max: 4399}}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := shpOptions(dir)
			opts.IDRanges = tt.ranges

			regions, err := LoadRegions(context.Background(), path, opts)
			require.NoError(t, err)

			ids := []string{}
			for _, r := range regions {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.expected, ids)
		})
	}
}

func TestLoadRegions_FilterMissingCountryField(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
		opts RegionOptions
	}{
		{
			"csv",
			writeFile(t, dir, "m.csv", []byte("BFS-Nr,Gemeindename\n261,Zürich\n")),
			RegionOptions{IDField: "BFS-Nr", NameField: "Gemeindename"},
		},
		{
			"shapefile",
			writeTestShapefile(t, dir),
			shpOptions(dir),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.CountryField = "ICC"
			tt.opts.Country = "CH"
			_, err := LoadRegions(context.Background(), tt.path, tt.opts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "ICC")
		})
	}
}

func TestRegionFilterKeep(t *testing.T) {
	tests := []struct {
		name     string
		opts     RegionOptions
		id       string
		country  string
		expected bool
	}{
		{"zero filter", RegionOptions{}, "abc", "", true},
		{"country without field ignored", RegionOptions{Country: "CH"}, "1", "LI", true},
		{"country match", RegionOptions{CountryField: "ICC", Country: "CH"}, "1", " ch ", true},
		{"country mismatch", RegionOptions{CountryField: "ICC", Country: "CH"}, "1", "LI", false},
		{"lower bound", RegionOptions{IDRanges: []IDRange{{Min: 1, Max: 299}}}, "1", "", true},
		{"upper bound", RegionOptions{IDRanges: []IDRange{{Min: 1, Max: 299}}}, "299", "", true},
		{"gap", RegionOptions{IDRanges: []IDRange{{Min: 1, Max: 299}, {Min: 301, Max: 999}}}, "300", "", false},
		{"non numeric id", RegionOptions{IDRanges: []IDRange{{Min: 1, Max: 299}}}, "12a", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRegionFilter(tt.opts)
			assert.Equal(t, tt.expected, f.keep(tt.id, tt.country))
			if tt.expected {
				assert.Zero(t, f.excluded)
			} else {
				assert.Equal(t, 1, f.excluded)
			}
		})
	}
}
