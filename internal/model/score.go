package model

// SegmentScore is the composite suitability of one region for one segment.
// Weight is nil when no term of the segment formula had input data.
type SegmentScore struct {
	RegionID     string             `json:"region_id"`
	Segment      string             `json:"segment"`
	Weight       *float64           `json:"weight"`
	Components   map[string]float64 `json:"components,omitempty"`
	Renormalized bool               `json:"renormalized,omitempty"`
}

// ScoredRegion is a MergedRegion annotated with proximity weights per point
// set and one SegmentScore per segment.
type ScoredRegion struct {
	MergedRegion
	Proximity map[string]float64      `json:"proximity"`
	Scores    map[string]SegmentScore `json:"scores"`
}

// Weight returns the composite weight for a segment, or nil if absent.
func (s ScoredRegion) Weight(segmentID string) *float64 {
	sc, ok := s.Scores[segmentID]
	if !ok {
		return nil
	}
	return sc.Weight
}
