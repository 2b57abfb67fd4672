// Package geospatial turns region and point-of-interest geometries into
// bounded proximity weights.
package geospatial

import (
	"context"
	"math"
	"runtime"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/geomarketing-cli/internal/model"
)

// DefaultMaxDistance is the distance at which proximity weight reaches zero.
const DefaultMaxDistance = 10000.0

// ProximityWeight maps a distance to [0, 1]: 1 at distance zero, 0 at or
// beyond maxDistance, linear in between. A non-positive maxDistance yields 0.
func ProximityWeight(distance, maxDistance float64) float64 {
	if maxDistance <= 0 || math.IsNaN(distance) {
		return 0
	}
	if distance < 0 {
		distance = 0
	}
	return 1 - math.Min(distance, maxDistance)/maxDistance
}

// Options configures Compute.
type Options struct {
	MaxDistance float64
	Metric      Metric
	Workers     int
}

// DefaultOptions returns haversine distances saturating at 10 km with one
// worker per CPU.
func DefaultOptions() Options {
	return Options{
		MaxDistance: DefaultMaxDistance,
		Metric:      MetricHaversine,
		Workers:     runtime.NumCPU(),
	}
}

// Compute returns the proximity weight of every region to its nearest point
// in set. The result is positional: out[i] belongs to regions[i]. An empty
// set gives every region weight 0, as does a region with no usable geometry.
func Compute(ctx context.Context, regions []model.Region, set model.PointOfInterestSet, opts Options) ([]float64, error) {
	if opts.MaxDistance <= 0 {
		return nil, eris.Errorf("geospatial: max distance must be positive, got %v", opts.MaxDistance)
	}

	geoms := make([]geom.T, 0, set.Len())
	for _, poi := range set.Points {
		geoms = append(geoms, poi.Geometry)
	}
	points, skipped := Points(geoms)
	if skipped > 0 {
		zap.L().Warn("geospatial: points of interest without geometry skipped",
			zap.String("set", set.Name),
			zap.Int("skipped", skipped),
		)
	}

	idx, err := NewIndex(points, opts.Metric)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(regions))
	if idx.Len() == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if opts.Workers > 0 {
		g.SetLimit(opts.Workers)
	}

	for i := range regions {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, ok := RepresentativePoint(regions[i].Geometry)
			if !ok {
				zap.L().Debug("geospatial: region has no representative point",
					zap.String("region", regions[i].ID),
				)
				return nil
			}
			d, ok := idx.Nearest(p)
			if !ok {
				return nil
			}
			out[i] = ProximityWeight(d, opts.MaxDistance)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "geospatial: compute proximity to %s", set.Name)
	}

	zap.L().Debug("geospatial: proximity computed",
		zap.String("set", set.Name),
		zap.Int("regions", len(regions)),
		zap.Int("points", idx.Len()),
	)

	return out, nil
}

// ComputeAll runs Compute for each set and keys the results by set name.
func ComputeAll(ctx context.Context, regions []model.Region, sets []model.PointOfInterestSet, opts Options) (map[string][]float64, error) {
	out := make(map[string][]float64, len(sets))
	for _, set := range sets {
		weights, err := Compute(ctx, regions, set, opts)
		if err != nil {
			return nil, err
		}
		out[set.Name] = weights
	}
	return out, nil
}
