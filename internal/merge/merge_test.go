package merge

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geomarketing-cli/internal/model"
)

func ptr(v float64) *float64 { return &v }

func region(id, name string) model.Region {
	return model.Region{ID: id, Name: name}
}

func record(id, name string, perCapita float64) model.AttributeRecord {
	return model.AttributeRecord{SourceID: id, RawName: name, IncomePerCapita: ptr(perCapita)}
}

func TestMerge_DiacriticInsensitiveJoin(t *testing.T) {
	t.Parallel()

	regions := []model.Region{region("1", "Zug"), region("2", "Zürich")}
	records := []model.AttributeRecord{
		record("1", "Zug", 100000),
		record("2", "Zuerich", 80000),
	}

	res, err := Merge(regions, records, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Regions, 2)

	assert.Equal(t, "Zug", res.Regions[0].Name)
	require.NotNil(t, res.Regions[0].Attributes)
	assert.InDelta(t, 100000.0, *res.Regions[0].Attributes.IncomePerCapita, 1e-9)
	assert.Equal(t, 100, res.Regions[0].Match.Confidence)

	assert.Equal(t, "Zürich", res.Regions[1].Name)
	require.NotNil(t, res.Regions[1].Attributes)
	assert.Equal(t, "Zuerich", res.Regions[1].Attributes.RawName)
	assert.GreaterOrEqual(t, res.Regions[1].Match.Confidence, 80)

	assert.Empty(t, res.Diagnostics.UnmatchedRegions)
	assert.Empty(t, res.Diagnostics.UnmatchedRecords)
	assert.Equal(t, 2, res.MatchedCount())
}

func TestMerge_LeftJoinKeepsEveryRegion(t *testing.T) {
	t.Parallel()

	regions := []model.Region{region("1", "Zug"), region("2", "Baar"), region("3", "Cham")}
	records := []model.AttributeRecord{record("1", "Baar", 70000)}

	res, err := Merge(regions, records, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Regions, 3)

	for i, r := range regions {
		assert.Equal(t, r.ID, res.Regions[i].ID, "order preserved")
	}
	assert.Nil(t, res.Regions[0].Attributes)
	assert.NotNil(t, res.Regions[1].Attributes)
	assert.Nil(t, res.Regions[2].Attributes)
	assert.Equal(t, []string{"Zug", "Cham"}, res.Diagnostics.UnmatchedRegions)
}

func TestMerge_LastWriteWins(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		records []model.AttributeRecord
		want    float64
	}{
		{
			name:    "greater id later in input",
			records: []model.AttributeRecord{record("1", "Zug", 10), record("2", "Zug", 20)},
			want:    20,
		},
		{
			name:    "greater id earlier in input",
			records: []model.AttributeRecord{record("2", "Zug", 20), record("1", "Zug", 10)},
			want:    20,
		},
		{
			name:    "numeric ordering of ids",
			records: []model.AttributeRecord{record("10", "Zug", 100), record("9", "Zug", 90)},
			want:    100,
		},
		{
			name:    "lexical ordering of non-numeric ids",
			records: []model.AttributeRecord{record("b", "Zug", 2), record("a", "Zug", 1)},
			want:    2,
		},
		{
			name:    "mixed ids in any input order",
			records: []model.AttributeRecord{record("1a", "Zug", 3), record("10", "Zug", 10), record("2", "Zug", 2)},
			want:    3,
		},
		{
			name:    "mixed ids reversed",
			records: []model.AttributeRecord{record("2", "Zug", 2), record("10", "Zug", 10), record("1a", "Zug", 3)},
			want:    3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := Merge([]model.Region{region("1", "Zug")}, tt.records, DefaultOptions())
			require.NoError(t, err)
			require.NotNil(t, res.Regions[0].Attributes)
			assert.InDelta(t, tt.want, *res.Regions[0].Attributes.IncomePerCapita, 1e-9)
			assert.Equal(t, len(tt.records)-1, res.Diagnostics.DuplicatesDropped)
		})
	}
}

func TestMerge_ConflictHighestConfidenceWins(t *testing.T) {
	t.Parallel()

	regions := []model.Region{region("1", "Zürich")}
	records := []model.AttributeRecord{
		record("1", "Zuerich", 1),
		record("2", "Zurich", 2),
	}

	res, err := Merge(regions, records, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res.Regions[0].Attributes)
	assert.Equal(t, "Zurich", res.Regions[0].Attributes.RawName)
	assert.Equal(t, 100, res.Regions[0].Match.Confidence)

	require.Len(t, res.Diagnostics.Conflicts, 1)
	c := res.Diagnostics.Conflicts[0]
	assert.Equal(t, "Zürich", c.Region)
	assert.Equal(t, "Zurich", c.Winner)
	assert.Equal(t, "Zuerich", c.Loser)
	assert.Greater(t, c.WinnerConfidence, c.LoserConfidence)
}

func TestMerge_ConflictTieGoesToLaterRecord(t *testing.T) {
	t.Parallel()

	// Both fold to "zurich" and score 100.
	regions := []model.Region{region("1", "Zürich")}
	records := []model.AttributeRecord{
		record("1", "ZURICH", 1),
		record("2", "Zurich", 2),
	}

	res, err := Merge(regions, records, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res.Regions[0].Attributes)
	// "ZURICH" < "Zurich" in byte order, so "Zurich" is processed later.
	assert.Equal(t, "Zurich", res.Regions[0].Attributes.RawName)
	require.Len(t, res.Diagnostics.Conflicts, 1)
	assert.Equal(t, "ZURICH", res.Diagnostics.Conflicts[0].Loser)
}

func TestMerge_UnmatchedAndBlankRecords(t *testing.T) {
	t.Parallel()

	regions := []model.Region{region("1", "Zug")}
	records := []model.AttributeRecord{
		record("1", "Zug", 1),
		record("2", "Lausanne", 2),
		record("3", "   ", 3),
	}

	res, err := Merge(regions, records, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"Lausanne"}, res.Diagnostics.UnmatchedRecords)
	assert.Equal(t, 1, res.Diagnostics.BlankNames)
	assert.Equal(t, 1, res.MatchedCount())
}

func TestMerge_NoRecords(t *testing.T) {
	t.Parallel()

	res, err := Merge([]model.Region{region("1", "Zug")}, nil, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, res.Regions, 1)
	assert.Nil(t, res.Regions[0].Attributes)
	assert.False(t, res.Regions[0].Match.Matched())
}

func TestMerge_StructuralErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		regions []model.Region
		errMsg  string
	}{
		{"empty", nil, "no regions"},
		{"blank name", []model.Region{region("1", " ")}, "blank name"},
		{"duplicate id", []model.Region{region("1", "Zug"), region("1", "Baar")}, "duplicate region id"},
		{"duplicate name", []model.Region{region("1", "Zug"), region("2", "Zug")}, "duplicate region name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Merge(tt.regions, nil, DefaultOptions())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestMerge_ThresholdOption(t *testing.T) {
	t.Parallel()

	regions := []model.Region{region("1", "Zürich")}
	records := []model.AttributeRecord{record("1", "Zuerich", 1)}

	res, err := Merge(regions, records, Options{Threshold: 100})
	require.NoError(t, err)
	assert.Nil(t, res.Regions[0].Attributes)
	assert.Equal(t, []string{"Zuerich"}, res.Diagnostics.UnmatchedRecords)
}

func TestMergeRaw(t *testing.T) {
	t.Parallel()

	regions := []model.Region{region("1", "Zug"), region("2", "Baar")}
	raws := []RawRecord{
		{SourceID: "1", RawName: "Zug", IncomePerCapita: "100'000"},
		{SourceID: "2", RawName: "Baar", IncomePerCapita: "X"},
	}

	res, err := MergeRaw(regions, raws, DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res.Regions[0].Attributes)
	assert.InDelta(t, 100000.0, *res.Regions[0].Attributes.IncomePerCapita, 1e-9)
	require.NotNil(t, res.Regions[1].Attributes)
	assert.Nil(t, res.Regions[1].Attributes.IncomePerCapita)
	require.Len(t, res.Diagnostics.DroppedValues, 1)
	assert.Equal(t, "Baar", res.Diagnostics.DroppedValues[0].RawName)
}

func TestCompareSourceID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"numeric", "9", "10", -1},
		{"lexical", "b", "a", 1},
		{"equal", "7", "7", 0},
		{"integer before text", "10", "9a", -1},
		{"text after integer", "1a", "2", 1},
		{"padded integer", " 3", "3", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareSourceID(tt.a, tt.b))
			assert.Equal(t, -tt.want, CompareSourceID(tt.b, tt.a))
		})
	}
}

func TestCompareSourceIDTransitive(t *testing.T) {
	t.Parallel()

	ids := []string{"2", "10", "1a", "b", "9", "a10", "0"}
	for _, a := range ids {
		for _, b := range ids {
			for _, c := range ids {
				if CompareSourceID(a, b) < 0 && CompareSourceID(b, c) < 0 {
					assert.Negative(t, CompareSourceID(a, c), "%s < %s < %s", a, b, c)
				}
			}
		}
	}

	sorted := append([]string(nil), ids...)
	sort.SliceStable(sorted, func(i, j int) bool { return CompareSourceID(sorted[i], sorted[j]) < 0 })
	assert.Equal(t, []string{"0", "2", "9", "10", "1a", "a10", "b"}, sorted)
}
