package geospatial

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geomarketing-cli/internal/model"
)

func point(lon, lat float64) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{lon, lat})
}

func square(minX, minY, size float64) *geom.Polygon {
	return geom.NewPolygon(geom.XY).MustSetCoords([][]geom.Coord{{
		{minX, minY}, {minX + size, minY}, {minX + size, minY + size}, {minX, minY + size}, {minX, minY},
	}})
}

func TestProximityWeight(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		distance float64
		max      float64
		want     float64
	}{
		{"coincident", 0, 10000, 1},
		{"halfway", 5000, 10000, 0.5},
		{"at max", 10000, 10000, 0},
		{"beyond max", 25000, 10000, 0},
		{"negative distance clamps", -5, 10000, 1},
		{"zero max", 5, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, ProximityWeight(tt.distance, tt.max), 1e-12)
		})
	}
}

func TestProximityWeight_Monotonic(t *testing.T) {
	t.Parallel()

	prev := ProximityWeight(0, DefaultMaxDistance)
	for d := 250.0; d <= 2*DefaultMaxDistance; d += 250 {
		w := ProximityWeight(d, DefaultMaxDistance)
		assert.LessOrEqual(t, w, prev, "distance %v", d)
		assert.GreaterOrEqual(t, w, 0.0)
		prev = w
	}
}

func TestRepresentativePoint(t *testing.T) {
	t.Parallel()

	p, ok := RepresentativePoint(point(8.5, 47.1))
	require.True(t, ok)
	assert.Equal(t, orb.Point{8.5, 47.1}, p)

	p, ok = RepresentativePoint(square(0, 0, 2))
	require.True(t, ok)
	assert.InDelta(t, 1.0, p[0], 1e-9)
	assert.InDelta(t, 1.0, p[1], 1e-9)

	_, ok = RepresentativePoint(nil)
	assert.False(t, ok)

	_, ok = RepresentativePoint(geom.NewPolygon(geom.XY))
	assert.False(t, ok)
}

func TestPoints_SkipsMissing(t *testing.T) {
	t.Parallel()

	pts, skipped := Points([]geom.T{point(1, 2), nil, square(0, 0, 2)})
	assert.Len(t, pts, 2)
	assert.Equal(t, 1, skipped)
}

func TestParseMetric(t *testing.T) {
	t.Parallel()

	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricHaversine, m)

	m, err = ParseMetric("planar")
	require.NoError(t, err)
	assert.Equal(t, MetricPlanar, m)

	_, err = ParseMetric("manhattan")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown metric")
}

func TestIndex_Nearest(t *testing.T) {
	t.Parallel()

	pts := []orb.Point{{0, 0}, {10, 0}, {3, 4}}

	for _, metric := range []Metric{MetricPlanar, MetricHaversine} {
		t.Run(string(metric), func(t *testing.T) {
			t.Parallel()
			idx, err := NewIndex(pts, metric)
			require.NoError(t, err)
			assert.Equal(t, 3, idx.Len())
			assert.Equal(t, metric, idx.Metric())

			d, ok := idx.Nearest(orb.Point{3, 4})
			require.True(t, ok)
			assert.InDelta(t, 0, d, 1e-9)
		})
	}

	idx, err := NewIndex(pts, MetricPlanar)
	require.NoError(t, err)
	d, ok := idx.Nearest(orb.Point{9, 0})
	require.True(t, ok)
	assert.InDelta(t, 1.0, d, 1e-9)
}

func TestIndex_HaversineMeters(t *testing.T) {
	t.Parallel()

	// 0.01 degrees of latitude is roughly 1112 m.
	idx, err := NewIndex([]orb.Point{{8.5, 47.01}}, MetricHaversine)
	require.NoError(t, err)
	d, ok := idx.Nearest(orb.Point{8.5, 47.0})
	require.True(t, ok)
	assert.InDelta(t, 1112, d, 5)
}

func TestIndex_Empty(t *testing.T) {
	t.Parallel()

	idx, err := NewIndex(nil, MetricPlanar)
	require.NoError(t, err)
	_, ok := idx.Nearest(orb.Point{0, 0})
	assert.False(t, ok)
}

func TestCompute(t *testing.T) {
	t.Parallel()

	regions := []model.Region{
		{ID: "1", Name: "Near", Geometry: point(8.5, 47.0)},
		{ID: "2", Name: "Mid", Geometry: point(8.5, 47.05)},
		{ID: "3", Name: "Far", Geometry: point(9.5, 47.0)},
		{ID: "4", Name: "Nowhere"},
	}
	set := model.PointOfInterestSet{
		Name: model.SetHotspots,
		Points: []model.PointOfInterest{
			{Name: "station", Geometry: point(8.5, 47.0)},
			{Name: "ghost"},
		},
	}

	out, err := Compute(context.Background(), regions, set, Options{MaxDistance: 10000, Workers: 2})
	require.NoError(t, err)
	require.Len(t, out, 4)

	assert.InDelta(t, 1.0, out[0], 1e-9)
	assert.Greater(t, out[1], 0.0)
	assert.Less(t, out[1], 1.0)
	assert.InDelta(t, 0.0, out[2], 1e-9)
	assert.InDelta(t, 0.0, out[3], 1e-9)
}

func TestCompute_EmptySet(t *testing.T) {
	t.Parallel()

	regions := []model.Region{
		{ID: "1", Name: "Zug", Geometry: point(8.5, 47.17)},
		{ID: "2", Name: "Zürich", Geometry: point(8.54, 47.37)},
	}

	out, err := Compute(context.Background(), regions, model.PointOfInterestSet{Name: model.SetHotspots}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, out)
}

func TestCompute_InvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := Compute(context.Background(), nil, model.PointOfInterestSet{}, Options{MaxDistance: 0})
	require.Error(t, err)

	_, err = Compute(context.Background(), nil, model.PointOfInterestSet{}, Options{MaxDistance: 1, Metric: "bogus"})
	require.Error(t, err)
}

func TestCompute_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	regions := []model.Region{{ID: "1", Name: "Zug", Geometry: point(8.5, 47.17)}}
	set := model.PointOfInterestSet{Name: "x", Points: []model.PointOfInterest{{Geometry: point(8.5, 47.17)}}}

	_, err := Compute(ctx, regions, set, DefaultOptions())
	require.Error(t, err)
}

func TestComputeAll(t *testing.T) {
	t.Parallel()

	regions := []model.Region{{ID: "1", Name: "Zug", Geometry: point(8.5, 47.17)}}
	sets := []model.PointOfInterestSet{
		{Name: model.SetHotspots, Points: []model.PointOfInterest{{Geometry: point(8.5, 47.17)}}},
		{Name: model.SetCompetitors},
	}

	out, err := ComputeAll(context.Background(), regions, sets, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, out[model.SetHotspots])
	assert.Equal(t, []float64{0}, out[model.SetCompetitors])
}
