package spatial

import (
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

func square() orb.Polygon {
	return orb.Polygon{{{0, 0}, {100, 0}, {100, 100}, {0, 100}, {0, 0}}}
}

func obsAt(id string, x, y float64) domain.Observation {
	return domain.Observation{
		Timestamp:  time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		LocationID: id,
		Geometry:   orb.Point{x, y},
		CRS:        domain.UTM14N,
	}
}

func ids(obs []domain.Observation) []string {
	out := make([]string, 0, len(obs))
	for _, o := range obs {
		out = append(out, o.LocationID)
	}
	return out
}

func TestRestrictBufferedBoundary(t *testing.T) {
	b, err := NewBoundary(square(), domain.UTM14N)
	require.NoError(t, err)

	obs := []domain.Observation{
		obsAt("inside", 50, 50),
		obsAt("near", 120, 50),
		obsAt("far", 130, 50),
		obsAt("edge", 125, 50),
		obsAt("on-boundary", 100, 50),
	}

	got, err := Restrict(obs, b, 25, Intersects)
	require.NoError(t, err)
	assert.Equal(t, []string{"inside", "near", "edge", "on-boundary"}, ids(got))

	got, err = Restrict(obs, b, 25, Within)
	require.NoError(t, err)
	assert.Equal(t, []string{"inside", "near", "on-boundary"}, ids(got), "points at exactly the buffer distance are not within")

	got, err = Restrict(obs, b, 0, Within)
	require.NoError(t, err)
	assert.Equal(t, []string{"inside"}, ids(got), "boundary points are not strictly within")

	got, err = Restrict(obs, b, 0, Intersects)
	require.NoError(t, err)
	assert.Equal(t, []string{"inside", "on-boundary"}, ids(got))
}

func TestRestrictLineBoundary(t *testing.T) {
	line := orb.MultiLineString{{{0, 0}, {1000, 0}}}
	b, err := NewBoundary(line, domain.UTM14N)
	require.NoError(t, err)

	got, err := Restrict([]domain.Observation{
		obsAt("a", 500, 20),
		obsAt("b", 500, -30),
		obsAt("c", 1020, 0),
	}, b, 25, Intersects)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(got))
}

func TestRestrictMixedCRS(t *testing.T) {
	b, err := NewBoundary(square(), domain.UTM14N)
	require.NoError(t, err)

	o := obsAt("wgs", -97.75, 30.28)
	o.CRS = domain.WGS84
	_, err = Restrict([]domain.Observation{obsAt("ok", 1, 1), o}, b, 25, Intersects)
	require.ErrorIs(t, err, domain.ErrAmbiguousCRS)
}

func TestNewBoundaryErrors(t *testing.T) {
	_, err := NewBoundary(nil, domain.UTM14N)
	assert.ErrorIs(t, err, domain.ErrEmptyBoundary)
	_, err = NewBoundary(square(), domain.CRSUnknown)
	assert.ErrorIs(t, err, domain.ErrAmbiguousCRS)
	_, err = FirstBoundary(domain.NewSpatialTable(domain.UTM14N))
	assert.ErrorIs(t, err, domain.ErrEmptyBoundary)
}

func TestLocations(t *testing.T) {
	lines := domain.NewSpatialTable(domain.UTM14N, domain.Column{Name: "id", Kind: domain.KindText})
	lines.Append(orb.LineString{{0, 0}, {0, 1000}}, "upper")
	lines.Append(orb.LineString{{0, 1000}, {500, 1500}}, "lower")
	b, err := UnionBoundary(lines)
	require.NoError(t, err)

	obs := []domain.Observation{
		obsAt("site-b", 10, 500),
		obsAt("site-a", 10, 10),
		obsAt("site-a", 12, 12),
		obsAt("excluded", 5, 5),
		obsAt("far", 300, 300),
	}
	got, err := Locations(obs, b, 25, "excluded")
	require.NoError(t, err)
	assert.Equal(t, []string{"site-a", "site-b"}, got)
}

func TestIntersectsGeometry(t *testing.T) {
	b, err := NewBoundary(square(), domain.UTM14N)
	require.NoError(t, err)

	tests := []struct {
		name string
		geom orb.Geometry
		want bool
	}{
		{"line crossing", orb.LineString{{-50, 50}, {150, 50}}, true},
		{"polygon enclosing", orb.Polygon{{{-10, -10}, {110, -10}, {110, 110}, {-10, 110}, {-10, -10}}}, true},
		{"polygon inside", orb.Polygon{{{10, 10}, {20, 10}, {20, 20}, {10, 10}}}, true},
		{"line outside", orb.LineString{{200, 0}, {200, 100}}, false},
		{"point outside", orb.Point{150, 150}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, b.IntersectsGeometry(tt.geom, 0))
		})
	}

	assert.True(t, b.IntersectsGeometry(orb.LineString{{110, 0}, {110, 100}}, 25), "within buffer")
}
