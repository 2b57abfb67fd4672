package geospatial

import (
	"github.com/paulmach/orb"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// RepresentativePoint reduces a geometry to one lon/lat point: the point
// itself for point geometries, the centroid otherwise. ok is false for nil
// or empty geometries and for shapes with no defined centroid.
func RepresentativePoint(g geom.T) (orb.Point, bool) {
	if g == nil || g.Empty() {
		return orb.Point{}, false
	}

	if p, isPoint := g.(*geom.Point); isPoint {
		c := p.Coords()
		return orb.Point{c.X(), c.Y()}, true
	}

	c, err := xy.Centroid(g)
	if err != nil || len(c) < 2 {
		return orb.Point{}, false
	}
	return orb.Point{c[0], c[1]}, true
}

// Points converts geometries to representative points, skipping those
// without one. skipped counts the geometries that were dropped.
func Points(geoms []geom.T) (points []orb.Point, skipped int) {
	points = make([]orb.Point, 0, len(geoms))
	for _, g := range geoms {
		p, ok := RepresentativePoint(g)
		if !ok {
			skipped++
			continue
		}
		points = append(points, p)
	}
	return points, skipped
}
