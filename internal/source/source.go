// Package source holds the acquire and normalize stages of every exported
// layer. Each source reads a staging store with parameterized SQL and
// produces a spatial table in UTM zone 14N.
package source

import (
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/observability"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/pipeline"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/spatial"
)

// Layer names written by the sources.
const (
	LayerWatershed      = "watershed"
	LayerHydrography    = "hydrography"
	LayerWaterQuality   = "water_quality"
	LayerDischarge      = "discharge"
	LayerDischargeDaily = "discharge_daily"
	LayerClimateHourly  = "climate_hourly"
	LayerClimateDaily   = "climate_daily"
	LayerBioControls    = "bio_controls"
)

// Deps are the collaborators shared by every source. Staging is the
// GeoPackage staging store queried with ? placeholders; Warehouse is the
// relational staging schema queried with $n placeholders.
type Deps struct {
	Staging     pipeline.RowSource
	Warehouse   pipeline.RowSource
	Reprojector *spatial.Reprojector
	Logger      *slog.Logger
	Metrics     *observability.Metrics
}

func (d Deps) logger(layer string) *slog.Logger {
	return d.Logger.With("source", layer)
}

func (d Deps) drop(reason domain.DropReason) {
	if d.Metrics != nil {
		d.Metrics.ObservationsDropped.WithLabelValues(string(reason)).Inc()
	}
}

// toUTM reprojects a WGS84 lon/lat pair.
func (d Deps) toUTM(lon, lat float64) (orb.Point, error) {
	return d.Reprojector.Point(orb.Point{lon, lat}, domain.WGS84, domain.UTM14N)
}

// sitePoint reads the latitude/longitude columns of a row and reprojects
// them. ok is false when either coordinate is missing.
func (d Deps) sitePoint(row domain.RawRow) (p orb.Point, ok bool, err error) {
	lat, okLat := row.Float("latitude")
	lon, okLon := row.Float("longitude")
	if !okLat || !okLon {
		return orb.Point{}, false, nil
	}
	p, err = d.toUTM(lon, lat)
	return p, err == nil, err
}

// value reads a measurement cell. Blank cells are NULL; text that does not
// parse is NULL and counted as dropped.
func (d Deps) value(row domain.RawRow, col string) any {
	if strings.TrimSpace(row.String(col)) == "" {
		return nil
	}
	v, ok := row.Float(col)
	if !ok {
		d.drop(domain.DropUnparsableValue)
		return nil
	}
	return v
}

// ckey is a deterministic hex key built from a row's identifying parts.
func ckey(parts ...string) string {
	return hex.EncodeToString([]byte(strings.Join(parts, "")))
}

func epoch(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}

// nullableFloat parses a raw cell; unparsable text becomes NULL, never zero.
func nullableFloat(row domain.RawRow, col string) any {
	v, ok := row.Float(col)
	if !ok {
		return nil
	}
	return v
}

func nullableInt(row domain.RawRow, col string) any {
	v, ok := row.Float(col)
	if !ok {
		return nil
	}
	return int64(v)
}

func parseBool(s string) any {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "T", "Y", "YES", "TRUE", "1":
		return true
	case "F", "N", "NO", "FALSE", "0":
		return false
	default:
		return nil
	}
}
