package scorer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/geomarketing-cli/internal/geospatial"
	"github.com/sells-group/geomarketing-cli/internal/merge"
	"github.com/sells-group/geomarketing-cli/internal/model"
)

func mergedWithIncome(id, name string, perCapita *float64) model.MergedRegion {
	mr := model.MergedRegion{Region: model.Region{ID: id, Name: name}}
	if perCapita != nil {
		mr.Attributes = &model.AttributeRecord{SourceID: id, RawName: name, IncomePerCapita: perCapita}
	}
	return mr
}

func TestEngine_ZugZurichExample(t *testing.T) {
	regions := []model.Region{
		{ID: "1", Name: "Zug", Geometry: geom.NewPointFlat(geom.XY, []float64{8.517, 47.166})},
		{ID: "2", Name: "Zürich", Geometry: geom.NewPointFlat(geom.XY, []float64{8.541, 47.374})},
	}
	records := []model.AttributeRecord{
		{SourceID: "1", RawName: "Zug", IncomePerCapita: ptr(100000)},
		{SourceID: "2", RawName: "Zuerich", IncomePerCapita: ptr(80000)},
	}

	merged, err := merge.Merge(regions, records, merge.DefaultOptions())
	require.NoError(t, err)
	require.Equal(t, 2, merged.MatchedCount())

	ctx := context.Background()
	hotspots, err := geospatial.Compute(ctx, regions, model.PointOfInterestSet{Name: model.SetHotspots}, geospatial.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, hotspots)

	scored, err := NewEngine(nil).Score(ctx, merged.Regions, map[string][]float64{model.SetHotspots: hotspots})
	require.NoError(t, err)
	require.Len(t, scored, 2)

	require.NotNil(t, scored[0].IncomeNormalized)
	assert.InDelta(t, 1.0, *scored[0].IncomeNormalized, 1e-12)
	require.NotNil(t, scored[1].IncomeNormalized)
	assert.InDelta(t, 0.0, *scored[1].IncomeNormalized, 1e-12)

	zug := scored[0].Weight(SegmentKMU)
	require.NotNil(t, zug)
	assert.InDelta(t, 0.2, *zug, 1e-9)
	zurich := scored[1].Weight(SegmentKMU)
	require.NotNil(t, zurich)
	assert.InDelta(t, 0.0, *zurich, 1e-9)

	top := TopK(scored, SegmentKMU, 1)
	require.Len(t, top, 1)
	assert.Equal(t, "Zug", top[0].Name)
	assert.InDelta(t, 0.2, top[0].Weight, 1e-9)
}

func TestEngine_SegmentFormulas(t *testing.T) {
	t.Parallel()

	// Incomes normalize to 0, 0.5 and 1.
	merged := []model.MergedRegion{
		mergedWithIncome("1", "Low", ptr(0)),
		mergedWithIncome("2", "Mid", ptr(50)),
		mergedWithIncome("3", "High", ptr(100)),
	}
	proximity := map[string][]float64{model.SetHotspots: {0.2, 0.5, 1.0}}

	scored, err := NewEngine(nil).Score(context.Background(), merged, proximity)
	require.NoError(t, err)

	tests := []struct {
		segment string
		want    [3]float64
	}{
		{SegmentKMU, [3]float64{0.5*Bell(0, 0.7) + 0.5*0.2, 0.5*Bell(0.5, 0.7) + 0.5*0.5, 0.5*Bell(1, 0.7) + 0.5*1}},
		{SegmentHandwerk, [3]float64{0.6*Bell(0, 0.5) + 0.4*0.2, 0.6*1 + 0.4*0.5, 0.6*Bell(1, 0.5) + 0.4*1}},
		{SegmentRetailGastro, [3]float64{0.7 * 0.2, 0.7*0.5 + 0.3*0.5, 0.7 + 0.3}},
		{SegmentService, [3]float64{0.4 * 0.2, 0.6*0.5 + 0.4*0.5, 0.6 + 0.4}},
		{SegmentTourism, [3]float64{0.8 * 0.2, 0.8*0.5 + 0.2*0.5, 0.8 + 0.2}},
		{SegmentStartup, [3]float64{0.5*0.2 + 0.5*Bell(0, 0.6), 0.5*0.5 + 0.5*Bell(0.5, 0.6), 0.5 + 0.5*Bell(1, 0.6)}},
	}

	for _, tt := range tests {
		t.Run(tt.segment, func(t *testing.T) {
			t.Parallel()
			for i := range scored {
				w := scored[i].Weight(tt.segment)
				require.NotNil(t, w, "region %d", i)
				assert.InDelta(t, tt.want[i], *w, 1e-9, "region %d", i)
				assert.False(t, scored[i].Scores[tt.segment].Renormalized)
			}
		})
	}
}

func TestEngine_RenormalizesMissingIncome(t *testing.T) {
	t.Parallel()

	merged := []model.MergedRegion{
		mergedWithIncome("1", "Known", ptr(10)),
		mergedWithIncome("2", "Unknown", nil),
	}
	proximity := map[string][]float64{model.SetHotspots: {0.0, 0.6}}

	scored, err := NewEngine(nil).Score(context.Background(), merged, proximity)
	require.NoError(t, err)

	unknown := scored[1].Scores[SegmentKMU]
	assert.True(t, unknown.Renormalized)
	require.NotNil(t, unknown.Weight)
	assert.InDelta(t, 0.6, *unknown.Weight, 1e-9)
	assert.Equal(t, map[string]float64{"hotspots_proximity": 0.6}, unknown.Components)

	known := scored[0].Scores[SegmentKMU]
	assert.False(t, known.Renormalized)
	assert.Contains(t, known.Components, "income_weight")
}

func TestEngine_AllTermsMissing(t *testing.T) {
	t.Parallel()

	merged := []model.MergedRegion{mergedWithIncome("1", "Nowhere", nil)}

	scored, err := NewEngine(nil).Score(context.Background(), merged, nil)
	require.NoError(t, err)

	for _, seg := range DefaultSegments() {
		assert.Nil(t, scored[0].Weight(seg.ID), seg.ID)
	}
	assert.Empty(t, TopK(scored, SegmentKMU, 10))
}

func TestEngine_IncomeField(t *testing.T) {
	t.Parallel()

	merged := []model.MergedRegion{
		{Region: model.Region{ID: "1", Name: "A"}, Attributes: &model.AttributeRecord{IncomeTotal: ptr(10), IncomePerCapita: ptr(90)}},
		{Region: model.Region{ID: "2", Name: "B"}, Attributes: &model.AttributeRecord{IncomeTotal: ptr(20), IncomePerCapita: ptr(80)}},
	}

	scored, err := NewEngine(nil, WithIncomeField(model.IncomeTotal)).Score(context.Background(), merged, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, *scored[0].IncomeNormalized, 1e-12)
	assert.InDelta(t, 1.0, *scored[1].IncomeNormalized, 1e-12)
}

func TestEngine_ProximityLengthMismatch(t *testing.T) {
	t.Parallel()

	merged := []model.MergedRegion{mergedWithIncome("1", "A", ptr(1))}
	_, err := NewEngine(nil).Score(context.Background(), merged, map[string][]float64{"hotspots": {0.1, 0.2}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has 2 weights for 1 regions")
}

func TestEngine_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(nil).Score(ctx, []model.MergedRegion{mergedWithIncome("1", "A", ptr(1))}, nil)
	require.Error(t, err)
}

func TestEngine_CustomWeightsNotClamped(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		terms        []Term
		income       *float64
		hotspot      float64
		expected     float64
		renormalized bool
	}{
		{"unit weights", []Term{IncomeRaw(0.5), Proximity(0.5, "hotspots")}, ptr(2), 1, 1, false},
		{"sum above one", []Term{IncomeRaw(2), Proximity(2, "hotspots")}, ptr(2), 1, 4, false},
		{"sum below one", []Term{IncomeRaw(0.25), Proximity(0.25, "hotspots")}, ptr(2), 0.5, 0.375, false},
		{"missing income keeps total", []Term{IncomeRaw(2), Proximity(2, "hotspots")}, nil, 0.5, 2, true},
		{"missing income unit total", []Term{IncomeRaw(0.3), Proximity(0.7, "hotspots")}, nil, 0.5, 0.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRegistry(Segment{ID: "x", Terms: tt.terms})
			require.NoError(t, err)

			// The reference region pins the income range so the tested one
			// normalizes to 1 when present.
			merged := []model.MergedRegion{
				mergedWithIncome("1", "Ref", ptr(1)),
				mergedWithIncome("2", "Tested", tt.income),
			}
			scored, err := NewEngine(r).Score(context.Background(), merged,
				map[string][]float64{"hotspots": {0, tt.hotspot}})
			require.NoError(t, err)

			score := scored[1].Scores["x"]
			require.NotNil(t, score.Weight)
			assert.InDelta(t, tt.expected, *score.Weight, 1e-9)
			assert.Equal(t, tt.renormalized, score.Renormalized)
		})
	}
}
