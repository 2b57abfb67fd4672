package scorer

import (
	"sort"

	"github.com/sells-group/geomarketing-cli/internal/model"
)

// DefaultTopK is the default number of regions reported per segment.
const DefaultTopK = 10

// Ranked is one entry of a segment ranking.
type Ranked struct {
	RegionID string  `json:"-"`
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
}

// TopK returns up to k regions with the highest weight for segmentID, in
// descending order. Regions with no weight are skipped and equal weights
// keep input order. k <= 0 returns an empty slice.
func TopK(regions []model.ScoredRegion, segmentID string, k int) []Ranked {
	if k <= 0 {
		return []Ranked{}
	}

	ranked := make([]Ranked, 0, len(regions))
	for i := range regions {
		w := regions[i].Weight(segmentID)
		if w == nil {
			continue
		}
		ranked = append(ranked, Ranked{
			RegionID: regions[i].ID,
			Name:     regions[i].Name,
			Weight:   *w,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Weight > ranked[j].Weight
	})

	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// Statistics ranks every segment and keys the result by segment label.
func Statistics(regions []model.ScoredRegion, segments []Segment, k int) map[string][]Ranked {
	out := make(map[string][]Ranked, len(segments))
	for _, s := range segments {
		out[s.Label] = TopK(regions, s.ID, k)
	}
	return out
}
