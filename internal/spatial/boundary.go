// Package spatial restricts observations to a watershed boundary and moves
// geometries between the provider and working coordinate systems.
package spatial

import (
	"fmt"
	"slices"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

// Predicate selects the spatial relation tested against the buffered boundary.
type Predicate int

const (
	// Intersects keeps points inside, on, or exactly at buffer distance from
	// the boundary.
	Intersects Predicate = iota
	// Within keeps points strictly inside the buffered boundary.
	Within
)

func (p Predicate) String() string {
	if p == Within {
		return "within"
	}
	return "intersects"
}

// Boundary is the reference geometry of a batch. It is immutable once built.
type Boundary struct {
	geom orb.Geometry
	crs  domain.CRS
}

// NewBoundary validates a reference geometry. Polygons, multipolygons, line
// strings and collections of them are accepted.
func NewBoundary(g orb.Geometry, crs domain.CRS) (Boundary, error) {
	if g == nil || len(vertices(g)) == 0 {
		return Boundary{}, domain.ErrEmptyBoundary
	}
	if crs == domain.CRSUnknown {
		return Boundary{}, fmt.Errorf("boundary: %w", domain.ErrAmbiguousCRS)
	}
	return Boundary{geom: orb.Clone(g), crs: crs}, nil
}

// FirstBoundary uses the first geometry of a spatial table, the way the
// watershed layer is consumed by every downstream source.
func FirstBoundary(t *domain.Table) (Boundary, error) {
	if t == nil || len(t.Geometries) == 0 {
		return Boundary{}, domain.ErrEmptyBoundary
	}
	return NewBoundary(t.Geometries[0], t.CRS)
}

// UnionBoundary combines every geometry of a spatial table, for example the
// flowlines of a hydrography layer.
func UnionBoundary(t *domain.Table) (Boundary, error) {
	if t == nil || len(t.Geometries) == 0 {
		return Boundary{}, domain.ErrEmptyBoundary
	}
	var c orb.Collection
	for _, g := range t.Geometries {
		if g != nil {
			c = append(c, g)
		}
	}
	return NewBoundary(c, t.CRS)
}

// Geometry returns a copy of the reference geometry.
func (b Boundary) Geometry() orb.Geometry { return orb.Clone(b.geom) }

// CRS is the coordinate system of the reference geometry.
func (b Boundary) CRS() domain.CRS { return b.crs }

// Distance is the planar distance from p to the boundary; zero when p lies
// inside an areal boundary.
func (b Boundary) Distance(p orb.Point) float64 {
	if containsPoint(b.geom, p) {
		return 0
	}
	return distanceToEdges(b.geom, p)
}

// Test applies pred to p with the boundary buffered by buffer units.
func (b Boundary) Test(p orb.Point, buffer float64, pred Predicate) bool {
	inside := containsPoint(b.geom, p)
	edge := distanceToEdges(b.geom, p)
	switch pred {
	case Within:
		if buffer > 0 {
			return inside || edge < buffer
		}
		return inside && edge > 0
	default:
		return inside || edge <= buffer
	}
}

// IntersectsGeometry reports whether g touches the buffered boundary.
func (b Boundary) IntersectsGeometry(g orb.Geometry, buffer float64) bool {
	if g == nil {
		return false
	}
	if !g.Bound().Pad(buffer).Intersects(b.geom.Bound()) {
		return false
	}
	for _, v := range vertices(g) {
		if b.Test(v, buffer, Intersects) {
			return true
		}
	}
	for _, v := range vertices(b.geom) {
		if containsPoint(g, v) {
			return true
		}
	}
	for _, s := range segments(g) {
		for _, e := range segments(b.geom) {
			if segmentDistance(s, e) <= buffer {
				return true
			}
		}
	}
	return false
}

// Restrict keeps the observations satisfying pred against the buffered
// boundary. Every observation must share the boundary CRS.
func Restrict(obs []domain.Observation, b Boundary, buffer float64, pred Predicate) ([]domain.Observation, error) {
	if b.geom == nil {
		return nil, domain.ErrEmptyBoundary
	}
	out := make([]domain.Observation, 0, len(obs))
	for i, o := range obs {
		if o.CRS != b.crs {
			return nil, fmt.Errorf("observation %d at %q is %s, boundary is %s: %w",
				i, o.LocationID, o.CRS, b.crs, domain.ErrAmbiguousCRS)
		}
		if b.Test(o.Geometry, buffer, pred) {
			out = append(out, o)
		}
	}
	return out, nil
}

// Locations returns the sorted distinct location ids of observations that
// intersect the buffered boundary, minus the excluded ids.
func Locations(obs []domain.Observation, b Boundary, buffer float64, exclude ...string) ([]string, error) {
	kept, err := Restrict(obs, b, buffer, Intersects)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, o := range kept {
		if o.LocationID == "" || slices.Contains(exclude, o.LocationID) {
			continue
		}
		if _, ok := seen[o.LocationID]; ok {
			continue
		}
		seen[o.LocationID] = struct{}{}
		ids = append(ids, o.LocationID)
	}
	slices.Sort(ids)
	return ids, nil
}

func containsPoint(g orb.Geometry, p orb.Point) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, p)
	case orb.Ring:
		return planar.RingContains(g, p)
	case orb.Bound:
		return g.Contains(p)
	case orb.Collection:
		for _, c := range g {
			if containsPoint(c, p) {
				return true
			}
		}
	}
	return false
}
