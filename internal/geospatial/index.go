package geospatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/quadtree"
	"github.com/rotisserie/eris"
)

// Metric selects how distances between points are measured.
type Metric string

// Supported metrics.
const (
	// MetricHaversine measures great-circle meters between WGS84 lon/lat points.
	MetricHaversine Metric = "haversine"
	// MetricPlanar measures Euclidean distance in the units of a projected CRS.
	MetricPlanar Metric = "planar"
)

// ParseMetric validates a metric name. Empty selects haversine.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", MetricHaversine:
		return MetricHaversine, nil
	case MetricPlanar:
		return MetricPlanar, nil
	default:
		return "", eris.Errorf("geospatial: unknown metric %q", s)
	}
}

// Index answers nearest-neighbour distance queries over a fixed point set.
// It is read-only after construction and safe for concurrent use.
type Index struct {
	metric Metric
	points []orb.Point
	tree   *quadtree.Quadtree
}

// NewIndex builds an index over points. Planar indexes are backed by a
// quadtree; haversine indexes scan every point so results are exact on the
// sphere.
func NewIndex(points []orb.Point, metric Metric) (*Index, error) {
	metric, err := ParseMetric(string(metric))
	if err != nil {
		return nil, err
	}

	idx := &Index{
		metric: metric,
		points: append([]orb.Point(nil), points...),
	}

	if metric == MetricPlanar && len(points) > 0 {
		bound := orb.MultiPoint(idx.points).Bound().Pad(1)
		idx.tree = quadtree.New(bound)
		for _, p := range idx.points {
			if err := idx.tree.Add(p); err != nil {
				return nil, eris.Wrap(err, "geospatial: build quadtree")
			}
		}
	}

	return idx, nil
}

// Len returns the number of indexed points.
func (idx *Index) Len() int { return len(idx.points) }

// Metric returns the distance metric of the index.
func (idx *Index) Metric() Metric { return idx.metric }

// Nearest returns the distance from p to the closest indexed point. ok is
// false when the index is empty.
func (idx *Index) Nearest(p orb.Point) (float64, bool) {
	if len(idx.points) == 0 {
		return 0, false
	}

	if idx.tree != nil {
		found := idx.tree.Find(p)
		if found == nil {
			return 0, false
		}
		return planar.Distance(p, found.Point()), true
	}

	best := math.Inf(1)
	for _, q := range idx.points {
		if d := geo.DistanceHaversine(p, q); d < best {
			best = d
		}
	}
	return best, true
}
