package report

import (
	"github.com/sells-group/geomarketing-cli/internal/scorer"
)

// SegmentInfo describes a segment and its formula.
type SegmentInfo struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Formula     string   `json:"formula"`
	Sources     []string `json:"sources,omitempty"`
}

// DescribeSegments lists segments in registry order.
func DescribeSegments(segments []scorer.Segment) []SegmentInfo {
	out := make([]SegmentInfo, 0, len(segments))
	for _, s := range segments {
		info := SegmentInfo{
			ID:          s.ID,
			Label:       s.Label,
			Description: s.Description,
			Formula:     s.Formula(),
		}
		for _, t := range s.Terms {
			if t.Kind == scorer.KindProximity {
				info.Sources = append(info.Sources, t.Source)
			}
		}
		out = append(out, info)
	}
	return out
}
