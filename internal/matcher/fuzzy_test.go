package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var albisRegions = []string{
	"Aeugst am Albis", "Affoltern am Albis", "Bonstetten",
	"Hausen am Albis", "Hedingen", "Kappel am Albis",
	"Knonau", "Maschwanden", "Mettmenstetten",
	"Obfelden", "Ottenbach",
}

func TestMatch_DiacriticVariant(t *testing.T) {
	res, err := Match("Zuerich", []string{"Zug", "Zürich"}, DefaultThreshold)
	require.NoError(t, err)
	assert.True(t, res.Matched())
	assert.Equal(t, "Zürich", res.MatchedName)
	assert.GreaterOrEqual(t, res.Confidence, 80)
}

func TestMatch_Exact(t *testing.T) {
	res, err := Match("Zug", []string{"Zug", "Zürich"}, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, "Zug", res.MatchedName)
	assert.Equal(t, 100, res.Confidence)
}

func TestMatch_CaseInsensitive(t *testing.T) {
	res, err := Match("HEDINGEN", albisRegions, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, "Hedingen", res.MatchedName)
	assert.Equal(t, 100, res.Confidence)
}

func TestMatch_BelowThresholdIsNoMatch(t *testing.T) {
	res, err := Match("Basel", albisRegions, DefaultThreshold)
	require.NoError(t, err)
	assert.False(t, res.Matched())
	assert.Empty(t, res.MatchedName)
	assert.Zero(t, res.Confidence)
}

func TestMatch_ThresholdIsInclusive(t *testing.T) {
	// "zuerich" vs "zurich" scores 86.
	res, err := Match("Zuerich", []string{"Zürich"}, 86)
	require.NoError(t, err)
	assert.Equal(t, "Zürich", res.MatchedName)

	res, err = Match("Zuerich", []string{"Zürich"}, 87)
	require.NoError(t, err)
	assert.False(t, res.Matched())
}

func TestMatch_EmptyQuery(t *testing.T) {
	_, err := Match("", albisRegions, DefaultThreshold)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	_, err = Match("   ", albisRegions, DefaultThreshold)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestMatch_EmptyCandidates(t *testing.T) {
	res, err := Match("Zug", nil, DefaultThreshold)
	require.NoError(t, err)
	assert.False(t, res.Matched())
}

func TestMatch_TieGoesToFirstCandidate(t *testing.T) {
	candidates := []string{"Buchs (AG)", "Buchs (SG)", "Buchs (ZH)"}
	res, err := Match("Buchs", candidates, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, "Buchs (AG)", res.MatchedName)

	reversed := []string{"Buchs (ZH)", "Buchs (SG)", "Buchs (AG)"}
	res, err = Match("Buchs", reversed, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, "Buchs (ZH)", res.MatchedName)
}

func TestMatch_ExactPreferredOverSubset(t *testing.T) {
	res, err := Match("Affoltern", []string{"Affoltern am Albis", "Affoltern"}, DefaultThreshold)
	require.NoError(t, err)
	assert.Equal(t, "Affoltern", res.MatchedName)
	assert.Equal(t, 100, res.Confidence)
}

func TestMatch_Deterministic(t *testing.T) {
	m := NewMatcher(albisRegions)
	first, err := m.Match("Hausen a. Albis")
	require.NoError(t, err)
	for range 20 {
		again, err := m.Match("Hausen a. Albis")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMatcher_AllBelowThreshold(t *testing.T) {
	queries := []string{"Genève", "Lugano", "Chur", "Basel-Stadt"}
	m := NewMatcher(albisRegions)
	for _, q := range queries {
		best, ok, err := m.Best(q)
		require.NoError(t, err)
		require.True(t, ok)
		require.Less(t, best.Score, m.Threshold(), q)

		res, err := m.Match(q)
		require.NoError(t, err)
		assert.False(t, res.Matched(), q)
	}
}

func TestMatcher_WithScorer(t *testing.T) {
	m := NewMatcher([]string{"Zürich"}, WithScorer(JaroWinkler), WithThreshold(90))
	assert.Equal(t, 90, m.Threshold())

	res, err := m.Match("Zurich")
	require.NoError(t, err)
	assert.Equal(t, "Zürich", res.MatchedName)
	assert.Equal(t, 100, res.Confidence)
}

func TestMatcher_WithNilScorerKeepsDefault(t *testing.T) {
	m := NewMatcher([]string{"Zug"}, WithScorer(nil))
	res, err := m.Match("zug")
	require.NoError(t, err)
	assert.Equal(t, "Zug", res.MatchedName)
}

func TestMatcher_CandidatesCopied(t *testing.T) {
	names := []string{"Zug", "Baar"}
	m := NewMatcher(names)
	names[0] = "Cham"

	res, err := m.Match("Zug")
	require.NoError(t, err)
	assert.Equal(t, "Zug", res.MatchedName)
}

func TestRank(t *testing.T) {
	m := NewMatcher(albisRegions)
	ranked, err := m.Rank("Hausen", 3)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, "Hausen am Albis", ranked[0].Name)
	assert.Equal(t, 3, ranked[0].Index)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}

	all, err := m.Rank("Hausen", 0)
	require.NoError(t, err)
	assert.Len(t, all, len(albisRegions))

	_, err = m.Rank(" ", 3)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}
