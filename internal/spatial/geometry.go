package spatial

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

type segment [2]orb.Point

func vertices(g orb.Geometry) []orb.Point {
	switch g := g.(type) {
	case orb.Point:
		return []orb.Point{g}
	case orb.MultiPoint:
		return g
	case orb.LineString:
		return g
	case orb.Ring:
		return g
	case orb.MultiLineString:
		var out []orb.Point
		for _, ls := range g {
			out = append(out, ls...)
		}
		return out
	case orb.Polygon:
		var out []orb.Point
		for _, r := range g {
			out = append(out, r...)
		}
		return out
	case orb.MultiPolygon:
		var out []orb.Point
		for _, p := range g {
			out = append(out, vertices(p)...)
		}
		return out
	case orb.Bound:
		return vertices(g.ToRing())
	case orb.Collection:
		var out []orb.Point
		for _, c := range g {
			out = append(out, vertices(c)...)
		}
		return out
	}
	return nil
}

func segments(g orb.Geometry) []segment {
	path := func(ps []orb.Point) []segment {
		var out []segment
		for i := 1; i < len(ps); i++ {
			out = append(out, segment{ps[i-1], ps[i]})
		}
		return out
	}
	switch g := g.(type) {
	case orb.LineString:
		return path(g)
	case orb.Ring:
		return path(g)
	case orb.MultiLineString:
		var out []segment
		for _, ls := range g {
			out = append(out, path(ls)...)
		}
		return out
	case orb.Polygon:
		var out []segment
		for _, r := range g {
			out = append(out, path(r)...)
		}
		return out
	case orb.MultiPolygon:
		var out []segment
		for _, p := range g {
			out = append(out, segments(p)...)
		}
		return out
	case orb.Bound:
		return path(g.ToRing())
	case orb.Collection:
		var out []segment
		for _, c := range g {
			out = append(out, segments(c)...)
		}
		return out
	}
	return nil
}

// distanceToEdges is the distance from p to the nearest edge or isolated
// point of g, ignoring whether p lies inside it.
func distanceToEdges(g orb.Geometry, p orb.Point) float64 {
	best := math.Inf(1)
	switch g := g.(type) {
	case orb.Point:
		return planar.Distance(g, p)
	case orb.MultiPoint:
		for _, q := range g {
			best = math.Min(best, planar.Distance(q, p))
		}
		return best
	case orb.Collection:
		for _, c := range g {
			best = math.Min(best, distanceToEdges(c, p))
		}
		return best
	}
	for _, s := range segments(g) {
		best = math.Min(best, planar.DistanceFromSegment(s[0], s[1], p))
	}
	return best
}

func segmentDistance(a, b segment) float64 {
	if segmentsCross(a, b) {
		return 0
	}
	return math.Min(
		math.Min(planar.DistanceFromSegment(b[0], b[1], a[0]), planar.DistanceFromSegment(b[0], b[1], a[1])),
		math.Min(planar.DistanceFromSegment(a[0], a[1], b[0]), planar.DistanceFromSegment(a[0], a[1], b[1])),
	)
}

func segmentsCross(a, b segment) bool {
	d1 := orientation(b[0], b[1], a[0])
	d2 := orientation(b[0], b[1], a[1])
	d3 := orientation(a[0], a[1], b[0])
	d4 := orientation(a[0], a[1], b[1])
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	// Collinear and touching cases are covered by the endpoint distances.
	return false
}

func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}
