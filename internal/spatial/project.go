package spatial

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

// GRS80 / WGS84 ellipsoid and UTM constants.
const (
	semiMajor     = 6378137.0
	flattening    = 1 / 298.257223563
	utmScale      = 0.9996
	falseEasting  = 500000.0
	falseNorthing = 10000000.0
)

// UTM is a forward transverse Mercator projection for one UTM zone.
type UTM struct {
	Zone  int
	North bool
}

// UTMZone14N covers central Texas.
var UTMZone14N = UTM{Zone: 14, North: true}

func (u UTM) centralMeridian() float64 {
	return float64(u.Zone*6-183) * math.Pi / 180
}

// Forward projects a longitude/latitude point (degrees) to easting/northing
// (meters).
func (u UTM) Forward(p orb.Point) orb.Point {
	e2 := flattening * (2 - flattening)
	ep2 := e2 / (1 - e2)
	e4, e6 := e2*e2, e2*e2*e2

	lat := p.Lat() * math.Pi / 180
	lon := p.Lon() * math.Pi / 180
	sin, cos, tan := math.Sin(lat), math.Cos(lat), math.Tan(lat)

	n := semiMajor / math.Sqrt(1-e2*sin*sin)
	t := tan * tan
	c := ep2 * cos * cos
	a := (lon - u.centralMeridian()) * cos
	m := semiMajor * ((1-e2/4-3*e4/64-5*e6/256)*lat -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*lat) +
		(15*e4/256+45*e6/1024)*math.Sin(4*lat) -
		(35*e6/3072)*math.Sin(6*lat))

	x := utmScale*n*(a+(1-t+c)*math.Pow(a, 3)/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120) + falseEasting
	y := utmScale * (m + n*tan*(a*a/2+
		(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))
	if !u.North {
		y += falseNorthing
	}
	return orb.Point{x, y}
}

// Projection returns the forward transform as an orb.Projection.
func (u UTM) Projection() orb.Projection { return u.Forward }

// Reprojector converts geometries between the supported coordinate systems.
type Reprojector struct {
	toUTM orb.Projection
}

// NewReprojector builds a reprojector. cacheSize > 0 memoizes point
// transforms, which pays off when thousands of samples share a few sites.
func NewReprojector(cacheSize int) *Reprojector {
	proj := UTMZone14N.Projection()
	if cacheSize > 0 {
		proj = CachedProjection(proj, cacheSize)
	}
	return &Reprojector{toUTM: proj}
}

// Reproject returns a copy of g expressed in to. Only WGS84 to UTM 14N and
// identity transforms are supported.
func (r *Reprojector) Reproject(g orb.Geometry, from, to domain.CRS) (orb.Geometry, error) {
	if g == nil {
		return nil, nil
	}
	switch {
	case from == to && from != domain.CRSUnknown:
		return orb.Clone(g), nil
	case from == domain.WGS84 && to == domain.UTM14N:
		return project.Geometry(orb.Clone(g), r.toUTM), nil
	default:
		return nil, fmt.Errorf("reproject %s to %s: %w", from, to, domain.ErrAmbiguousCRS)
	}
}

// Point reprojects a single lon/lat point.
func (r *Reprojector) Point(p orb.Point, from, to domain.CRS) (orb.Point, error) {
	g, err := r.Reproject(p, from, to)
	if err != nil {
		return orb.Point{}, err
	}
	return g.(orb.Point), nil
}
