package source

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/spatial"
)

// USGS monitoring sites on Shoal Creek kept regardless of the boundary test:
// the 12th Street gauge and the upstream gauge.
var defaultUSGSSites = []string{"USGS-08156800", "USGS-08156675"}

const waterQualitySQL = `
SELECT * FROM (
    SELECT wq.fid AS source_fid,
           wq.ActivityStartDate || 'T' ||
             CASE WHEN coalesce(wq."ActivityStartTime/Time", '') = '' THEN '00:00:00'
                  ELSE wq."ActivityStartTime/Time" END AS sample_date_time,
           wq.CharacteristicName AS parameter,
           coalesce(nullif(wq."ActivityLocation/LatitudeMeasure", ''), s.dec_lat_va)   AS latitude,
           coalesce(nullif(wq."ActivityLocation/LongitudeMeasure", ''), s.dec_long_va) AS longitude,
           wq.OrganizationFormalName       AS organization_name,
           wq.MonitoringLocationIdentifier AS sample_location_id,
           coalesce(nullif(wq.MonitoringLocationName, ''), wq.MonitoringLocationIdentifier) AS sample_location,
           wq.ActivityTypeCode               AS sample_type,
           wq.ResultMeasureValue             AS value,
           wq."ResultMeasure/MeasureUnitCode" AS unit,
           wq.ResultStatusIdentifier         AS sample_status,
           'nwis' AS provider
    FROM WaterQuality_NWIS_EPA AS wq
    LEFT OUTER JOIN NWIS_Sites s ON s.site_no = substr(wq.MonitoringLocationIdentifier, 6)
    WHERE nullif(wq.ResultMeasureValue, '') IS NOT NULL
    UNION ALL
    SELECT wq.fid AS source_fid,
           substr(wq.SAMPLE_DATE, 7, 4) || '-' || substr(wq.SAMPLE_DATE, 1, 2) || '-' ||
             substr(wq.SAMPLE_DATE, 4, 2) || 'T' || substr(wq.SAMPLE_DATE, 12, 8) AS sample_date_time,
           wq.PARAMETER    AS parameter,
           wq.LAT_DD_WGS84 AS latitude,
           wq.LON_DD_WGS84 AS longitude,
           ?               AS organization_name,
           coalesce(nullif(wq.SAMPLE_ID, ''), wq.SITE_NAME) AS sample_location_id,
           wq.SITE_NAME AS sample_location,
           wq.METHOD    AS sample_type,
           wq.RESULT    AS value,
           wq.UNIT      AS unit,
           ?            AS sample_status,
           'coa' AS provider
    FROM WaterQuality_COA AS wq
    WHERE coalesce(wq.LAT_DD_WGS84, '') != ''
      AND wq.MEDIUM = ?
      AND nullif(wq.RESULT, '') IS NOT NULL
)
ORDER BY sample_date_time`

// WaterQuality unions USGS/EPA portal samples with City of Austin samples.
// USGS samples are kept for the configured gauge sites; City samples are
// kept when they fall within the watershed. Raw labels are preserved and
// canonical parameter, unit and value are added where they resolve.
type WaterQuality struct {
	deps      Deps
	boundary  spatial.Boundary
	resolver  domain.Resolver
	usgsSites []string
}

// NewWaterQuality creates the water-quality source.
func NewWaterQuality(deps Deps, boundary spatial.Boundary, resolver domain.Resolver) *WaterQuality {
	return &WaterQuality{deps: deps, boundary: boundary, resolver: resolver, usgsSites: defaultUSGSSites}
}

func (w *WaterQuality) Name() string { return LayerWaterQuality }

func (w *WaterQuality) Acquire(ctx context.Context) (domain.RawTable, error) {
	return w.deps.Staging.Query(ctx, domain.Query{
		SQL:  waterQualitySQL,
		Args: []any{"City of Austin", "Final", "Surface Water"},
	})
}

func waterQualityColumns() []domain.Column {
	return []domain.Column{
		{Name: "ckey", Kind: domain.KindText},
		{Name: "source_fid", Kind: domain.KindInteger},
		{Name: "sample_date_time", Kind: domain.KindTimestamp},
		{Name: "sample_location_id", Kind: domain.KindText},
		{Name: "sample_location", Kind: domain.KindText},
		{Name: "organization_name", Kind: domain.KindText},
		{Name: "sample_type", Kind: domain.KindText},
		{Name: "sample_status", Kind: domain.KindText},
		{Name: "quality_flag", Kind: domain.KindText},
		{Name: "provider", Kind: domain.KindText},
		{Name: "raw_parameter", Kind: domain.KindText},
		{Name: "parameter", Kind: domain.KindText},
		{Name: "raw_unit", Kind: domain.KindText},
		{Name: "unit", Kind: domain.KindText},
		{Name: "raw_value", Kind: domain.KindText},
		{Name: "value", Kind: domain.KindReal},
	}
}

func (w *WaterQuality) Normalize(_ context.Context, raw domain.RawTable) (*domain.Table, error) {
	logger := w.deps.logger(LayerWaterQuality)
	t := domain.NewSpatialTable(domain.UTM14N, waterQualityColumns()...)

	var outside, malformed int
	for _, row := range raw.Rows {
		o, ok := w.observation(row)
		if !ok {
			malformed++
			continue
		}
		p, err := w.deps.toUTM(o.Geometry.Lon(), o.Geometry.Lat())
		if err != nil {
			return nil, err
		}
		o.Geometry, o.CRS = p, domain.UTM14N

		if !w.keep(o.LocationID, p) {
			outside++
			w.deps.drop(domain.DropOutsideBoundary)
			continue
		}

		// One drop per row; an unresolved label takes precedence.
		res, resErr := w.resolver.Canonicalize(o.RawParameter, o.RawUnit)
		if resErr == nil {
			o.Parameter, o.Unit = res.Parameter, res.Unit
		}
		v, parseErr := domain.ParseValue(o.RawValue)
		o.Value = v
		switch {
		case resErr != nil:
			w.deps.drop(domain.ReasonFor(resErr))
		case parseErr != nil:
			w.deps.drop(domain.DropUnparsableValue)
		}

		t.Append(o.Geometry,
			ckey(epoch(o.Timestamp), o.RawParameter, o.LocationID, row.String("source_fid")),
			nullableInt(row, "source_fid"),
			o.Timestamp,
			o.LocationID,
			domain.NullableText(o.LocationName),
			domain.NullableText(row.String("organization_name")),
			domain.NullableText(row.String("sample_type")),
			domain.NullableText(row.String("sample_status")),
			domain.NullableText(o.Quality.Label()),
			o.Provider,
			o.RawParameter,
			domain.NullableText(o.Parameter),
			domain.NullableText(o.RawUnit),
			domain.NullableText(o.Unit),
			o.RawValue,
			domain.Nullable(o.Value),
		)
	}
	if malformed > 0 {
		logger.Warn("skipped samples without a timestamp or coordinates", "count", malformed)
	}
	logger.Info("water quality normalized", "read", raw.Len(), "kept", t.Len(), "outside_watershed", outside)
	return t, nil
}

func (w *WaterQuality) keep(locationID string, p orb.Point) bool {
	if strings.HasPrefix(locationID, "USGS") {
		return slices.Contains(w.usgsSites, locationID)
	}
	return w.boundary.Test(p, 0, spatial.Within)
}

// observation reads the raw fields of one sample. The geometry is the WGS84
// lon/lat pair.
func (w *WaterQuality) observation(row domain.RawRow) (domain.Observation, bool) {
	ts, ok := row.Time("sample_date_time")
	if !ok {
		return domain.Observation{}, false
	}
	lat, okLat := row.Float("latitude")
	lon, okLon := row.Float("longitude")
	if !okLat || !okLon {
		return domain.Observation{}, false
	}
	o := domain.Observation{
		Timestamp:    ts,
		LocationID:   row.String("sample_location_id"),
		LocationName: row.String("sample_location"),
		RawParameter: row.String("parameter"),
		RawUnit:      row.String("unit"),
		RawValue:     row.String("value"),
		Provider:     row.String("provider"),
		Quality:      domain.NormalizeQualityFlag(row.String("sample_status")),
		CRS:          domain.WGS84,
	}
	o.Geometry[0], o.Geometry[1] = lon, lat
	return o, o.LocationID != ""
}

// ObservationsFromTable reads a water_quality layer back into observations.
// Rows without a timestamp are skipped; unresolved rows are returned as-is
// for domain.Resolve to count.
func ObservationsFromTable(t *domain.Table) []domain.Observation {
	col := func(name string) int { return t.Index(name) }
	iTime, iLoc, iName := col("sample_date_time"), col("sample_location_id"), col("sample_location")
	iRawP, iParam, iRawU, iUnit := col("raw_parameter"), col("parameter"), col("raw_unit"), col("unit")
	iRawV, iVal, iProv := col("raw_value"), col("value"), col("provider")

	text := func(r []any, i int) string {
		if i < 0 {
			return ""
		}
		s, _ := r[i].(string)
		return s
	}
	var out []domain.Observation
	for n, r := range t.Rows {
		ts, ok := r[iTime].(time.Time)
		if !ok {
			continue
		}
		o := domain.Observation{
			Timestamp:    ts,
			LocationID:   text(r, iLoc),
			LocationName: text(r, iName),
			RawParameter: text(r, iRawP),
			Parameter:    text(r, iParam),
			RawUnit:      text(r, iRawU),
			Unit:         text(r, iUnit),
			RawValue:     text(r, iRawV),
			Provider:     text(r, iProv),
			CRS:          t.CRS,
		}
		if v, ok := r[iVal].(float64); ok {
			o.Value = domain.Float(v)
		}
		if t.Spatial() {
			if p, ok := t.Geometries[n].(orb.Point); ok {
				o.Geometry = p
			}
		}
		out = append(out, o)
	}
	return out
}
