package geo

import (
	"github.com/paulmach/orb"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// CloseRing returns ring with its first point repeated at the end when missing.
// Rings with fewer than three distinct points return ErrDegenerateRing.
func CloseRing(ring orb.Ring) (orb.Ring, error) {
	if distinct(ring) < 3 { //nolint:mnd
		return nil, ErrDegenerateRing
	}

	if ring.Closed() {
		return ring, nil
	}

	out := make(orb.Ring, 0, len(ring)+1)
	out = append(out, ring...)

	return append(out, ring[0]), nil
}

// BBox returns the bounding box of ring.
func BBox(ring orb.Ring) orb.Bound {
	return ring.Bound()
}

// ConvexHull returns the closed, counter-clockwise convex hull of the ring's points.
// Collinear points on the hull edge are dropped.
func ConvexHull(ring orb.Ring) (orb.Ring, error) {
	if distinct(ring) < 3 { //nolint:mnd
		return nil, ErrDegenerateRing
	}

	flat := make([]float64, 0, 2*len(ring))
	for _, p := range ring {
		flat = append(flat, p[0], p[1])
	}

	// all points collinear yields a LineString
	polygon, ok := xy.ConvexHullFlat(geom.XY, flat).(*geom.Polygon)
	if !ok {
		return nil, ErrDegenerateRing
	}

	coords := polygon.FlatCoords()

	hull := make(orb.Ring, 0, len(coords)/2)
	for i := 0; i+1 < len(coords); i += 2 {
		hull = append(hull, orb.Point{coords[i], coords[i+1]})
	}

	if hull.Orientation() == orb.CW {
		hull.Reverse()
	}

	return hull, nil
}

func distinct(ring orb.Ring) int {
	seen := make(map[orb.Point]struct{}, len(ring))
	for _, p := range ring {
		seen[p] = struct{}{}
	}

	return len(seen)
}
