package source

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/observability"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/spatial"
)

type fakeRows struct {
	table   domain.RawTable
	queries []domain.Query
}

func (f *fakeRows) Query(_ context.Context, q domain.Query) (domain.RawTable, error) {
	f.queries = append(f.queries, q)
	return f.table, nil
}

func testDeps(rows *fakeRows) (Deps, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return Deps{
		Staging:     rows,
		Warehouse:   rows,
		Reprojector: spatial.NewReprojector(16),
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:     m,
	}, m
}

// testBoundary is a box around the lower Shoal Creek watershed in UTM 14N.
func testBoundary(t *testing.T, deps Deps) spatial.Boundary {
	t.Helper()
	box := orb.Polygon{{{-97.78, 30.26}, {-97.73, 30.26}, {-97.73, 30.36}, {-97.78, 30.36}, {-97.78, 30.26}}}
	g, err := deps.Reprojector.Reproject(box, domain.WGS84, domain.UTM14N)
	require.NoError(t, err)
	b, err := spatial.NewBoundary(g, domain.UTM14N)
	require.NoError(t, err)
	return b
}

func column(t *testing.T, tbl *domain.Table, name string) []any {
	t.Helper()
	i := tbl.Index(name)
	require.GreaterOrEqual(t, i, 0, "column %s", name)
	out := make([]any, len(tbl.Rows))
	for n, r := range tbl.Rows {
		out[n] = r[i]
	}
	return out
}

func sample(id, param, unit, value, provider string, lon, lat float64) domain.RawRow {
	return domain.RawRow{
		"source_fid":         int64(1),
		"sample_date_time":   "2015-04-02T10:30:00",
		"parameter":          param,
		"latitude":           lat,
		"longitude":          lon,
		"sample_location_id": id,
		"sample_location":    id + " site",
		"value":              value,
		"unit":               unit,
		"sample_status":      "Final",
		"provider":           provider,
	}
}

func TestWaterQualityNormalize(t *testing.T) {
	rows := &fakeRows{}
	deps, m := testDeps(rows)
	wq := NewWaterQuality(deps, testBoundary(t, deps), domain.DefaultTaxonomy())

	raw := domain.RawTable{Rows: []domain.RawRow{
		sample("SC-1", "TURBIDITY", "None", "12.5", "coa", -97.75, 30.30),
		sample("SC-2", "TURBIDITY", "None", "3", "coa", -97.90, 30.30),
		sample("USGS-08156800", "Turbidity", "NTU", "4.1", "nwis", -97.70, 30.20),
		sample("USGS-08158000", "Turbidity", "NTU", "4.1", "nwis", -97.75, 30.30),
		sample("SC-1", "Dissolved oxygen", "mg/L", "8", "coa", -97.75, 30.30),
		sample("SC-1", "pH", "std units", "<5", "coa", -97.75, 30.30),
		{"sample_location_id": "SC-3", "parameter": "pH"},
	}}

	tbl, err := wq.Normalize(context.Background(), raw)
	require.NoError(t, err)
	require.NoError(t, tbl.Validate())
	assert.Equal(t, domain.UTM14N, tbl.CRS)

	assert.Equal(t, []any{"SC-1", "USGS-08156800", "SC-1", "SC-1"}, column(t, tbl, "sample_location_id"))
	assert.Equal(t, []any{domain.ParamTurbidity, domain.ParamTurbidity, nil, domain.ParamPH}, column(t, tbl, "parameter"))
	assert.Equal(t, []any{"NTU", "NTU", nil, "standard units"}, column(t, tbl, "unit"))
	assert.Equal(t, []any{12.5, 4.1, 8.0, nil}, column(t, tbl, "value"))
	assert.Equal(t, "<5", column(t, tbl, "raw_value")[3])
	assert.Equal(t, "Approved", column(t, tbl, "quality_flag")[0])

	p, ok := tbl.Geometries[0].(orb.Point)
	require.True(t, ok)
	assert.Greater(t, p.X(), 600000.0, "easting in meters")

	assert.InDelta(t, 2, testutil.ToFloat64(m.ObservationsDropped.WithLabelValues(string(domain.DropOutsideBoundary))), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ObservationsDropped.WithLabelValues(string(domain.DropUnresolvedParameter))), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.ObservationsDropped.WithLabelValues(string(domain.DropUnparsableValue))), 0)
}

func TestWaterQualityCountsOneDropPerRow(t *testing.T) {
	rows := &fakeRows{}
	deps, m := testDeps(rows)
	wq := NewWaterQuality(deps, testBoundary(t, deps), domain.DefaultTaxonomy())

	tbl, err := wq.Normalize(context.Background(), domain.RawTable{Rows: []domain.RawRow{
		sample("SC-1", "Dissolved oxygen", "mg/L", "n/a", "coa", -97.75, 30.30),
		sample("SC-1", "TURBIDITY", "Furlongs", "", "coa", -97.75, 30.30),
		sample("SC-1", "TURBIDITY", "None", "ND", "coa", -97.75, 30.30),
	}})
	require.NoError(t, err)
	assert.Equal(t, []any{nil, nil, nil}, column(t, tbl, "value"))

	dropped := func(r domain.DropReason) float64 {
		return testutil.ToFloat64(m.ObservationsDropped.WithLabelValues(string(r)))
	}
	assert.InDelta(t, 1, dropped(domain.DropUnresolvedParameter), 0)
	assert.InDelta(t, 1, dropped(domain.DropUnresolvedUnit), 0)
	assert.InDelta(t, 1, dropped(domain.DropUnparsableValue), 0)
}

func TestObservationsFromTable(t *testing.T) {
	rows := &fakeRows{}
	deps, _ := testDeps(rows)
	wq := NewWaterQuality(deps, testBoundary(t, deps), domain.DefaultTaxonomy())
	tbl, err := wq.Normalize(context.Background(), domain.RawTable{Rows: []domain.RawRow{
		sample("SC-1", "TURBIDITY", "None", "12.5", "coa", -97.75, 30.30),
		sample("SC-1", "pH", "std units", "n/a", "coa", -97.75, 30.30),
	}})
	require.NoError(t, err)

	obs := ObservationsFromTable(tbl)
	require.Len(t, obs, 2)
	assert.Equal(t, domain.ParamTurbidity, obs[0].Parameter)
	require.NotNil(t, obs[0].Value)
	assert.InDelta(t, 12.5, *obs[0].Value, 1e-9)
	assert.Nil(t, obs[1].Value)
	assert.Equal(t, "n/a", obs[1].RawValue)
	assert.Equal(t, domain.UTM14N, obs[0].CRS)
	assert.Equal(t, time.Date(2015, 4, 2, 10, 30, 0, 0, time.UTC), obs[0].Timestamp)
}

func TestWaterQualityAcquireIsParameterized(t *testing.T) {
	rows := &fakeRows{}
	deps, _ := testDeps(rows)
	_, err := NewWaterQuality(deps, spatial.Boundary{}, domain.DefaultTaxonomy()).Acquire(context.Background())
	require.NoError(t, err)
	require.Len(t, rows.queries, 1)
	q := rows.queries[0]
	assert.Equal(t, strings.Count(q.SQL, "?"), len(q.Args))
	assert.Contains(t, q.Args, "Surface Water")
	assert.NotContains(t, q.SQL, "Surface Water")
}

func TestDischargeNormalize(t *testing.T) {
	rows := &fakeRows{}
	deps, m := testDeps(rows)
	raw := domain.RawTable{Rows: []domain.RawRow{
		{
			"date_time": "2020-05-01 12:15", "site_number": "08156800", "parameter": "Discharge", "unit": "cfs",
			"primary_value": "3.2", "secondary_value": "", "primary_value_flag": "P", "secondary_value_flag": "",
			"latitude": "30.2743", "longitude": "-97.7528",
		},
		{
			"date_time": "2020-05-01 12:15", "site_number": "08156675", "parameter": "Gage height", "unit": "ft",
			"primary_value": "Ice", "secondary_value": "1.1", "primary_value_flag": "A", "secondary_value_flag": "e",
			"latitude": "30.3486", "longitude": "-97.7381",
		},
		{"date_time": "2020-05-01 12:15", "site_number": "08150000"},
	}}
	tbl, err := NewDischarge(deps).Normalize(context.Background(), raw)
	require.NoError(t, err)
	require.NoError(t, tbl.Validate())

	assert.Equal(t, []any{3.2, nil}, column(t, tbl, "primary_value"))
	assert.Equal(t, []any{nil, 1.1}, column(t, tbl, "secondary_value"))
	assert.Equal(t, []any{"Provisional", "Approved"}, column(t, tbl, "primary_value_flag"))
	assert.Equal(t, []any{nil, "Estimated"}, column(t, tbl, "secondary_value_flag"))
	assert.InDelta(t, 1, testutil.ToFloat64(m.ObservationsDropped.WithLabelValues(string(domain.DropUnparsableValue))), 0)
}

func TestDischargeSQL(t *testing.T) {
	sql := dischargeSQL(instantaneousSeries)
	assert.Equal(t, len(instantaneousSeries)-1, strings.Count(sql, "UNION ALL"))
	assert.Contains(t, sql, `iv."141286_00060_cd"`)
	assert.Contains(t, sql, "INNER JOIN NWIS_Sites")

	daily := dischargeDailySQL(dailyDischargeSeries)
	assert.Contains(t, daily, `staging."NWIS_DV_08156800"`)
	assert.Contains(t, daily, `dv."136084_00060_00003_cd"`)
}

func TestDischargeDailyNormalize(t *testing.T) {
	rows := &fakeRows{}
	deps, _ := testDeps(rows)
	raw := domain.RawTable{Rows: []domain.RawRow{{
		"date_time": time.Date(2019, 7, 3, 0, 0, 0, 0, time.UTC), "site_number": "08156800",
		"avg_value": "2.5", "max_value": "9", "min_value": nil, "value_flag": "A:e",
		"latitude": 30.2743, "longitude": -97.7528,
	}}}
	tbl, err := NewDischargeDaily(deps).Normalize(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())

	v, _ := tbl.Value(0, "avg_value")
	assert.Equal(t, 2.5, v)
	v, _ = tbl.Value(0, "min_value")
	assert.Nil(t, v)
	v, _ = tbl.Value(0, "value_flag")
	assert.Equal(t, "Approved", v)
}

func TestParseClimateValue(t *testing.T) {
	tests := []struct {
		raw  string
		want *float64
	}{
		{"75", domain.Float(75)},
		{"75s", domain.Float(75)},
		{"0.02", domain.Float(0.02)},
		{"-3.5", domain.Float(-3.5)},
		{"29.92V", domain.Float(29.92)},
		{"T", nil},
		{"*", nil},
		{"M", nil},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseClimateValue(tt.raw)
			if tt.want == nil {
				require.ErrorIs(t, err, domain.ErrUnparsableValue)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestClimateHourlyUnpivot(t *testing.T) {
	rows := &fakeRows{}
	deps, _ := testDeps(rows)
	c := NewClimateHourly(deps)

	_, err := c.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"FM-15"}, rows.queries[0].Args)
	assert.Contains(t, rows.queries[0].SQL, `"HourlySeaLevelPressure"`)

	raw := domain.RawTable{Rows: []domain.RawRow{{
		"date_time":                 "2018-06-01T13:51:00",
		"station_number":            "72254013958",
		"HourlyDryBulbTemperature":  "91",
		"HourlyPrecipitation":       "T",
		"HourlyRelativeHumidity":    "45s",
		"HourlyDewPointTemperature": "",
	}}}
	tbl, err := c.Normalize(context.Background(), raw)
	require.NoError(t, err)
	require.NoError(t, tbl.Validate())

	assert.Equal(t, []any{"Dry Bulb Temperature", "Relative Humidity", "Precipitation"}, column(t, tbl, "parameter"))
	assert.Equal(t, []any{91.0, 45.0, nil}, column(t, tbl, "value"))
	assert.Equal(t, tbl.Geometries[0], tbl.Geometries[2], "one station point")
}

func TestClimateDailyTruncatesToDate(t *testing.T) {
	rows := &fakeRows{}
	deps, _ := testDeps(rows)
	tbl, err := NewClimateDaily(deps).Normalize(context.Background(), domain.RawTable{Rows: []domain.RawRow{{
		"date_time":          "2018-06-01T23:59:00",
		"station_number":     "72254013958",
		"DailyPrecipitation": "1.25",
	}}})
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	v, _ := tbl.Value(0, "date_time")
	assert.Equal(t, time.Date(2018, 6, 1, 0, 0, 0, 0, time.UTC), v)
}

func TestBioControlsNormalize(t *testing.T) {
	rows := &fakeRows{}
	deps, _ := testDeps(rows)
	bc := NewBioControls(deps, testBoundary(t, deps))

	q := bc.query()
	assert.Equal(t, strings.Count(q.SQL, "?"), len(q.Args))
	assert.NotContains(t, q.SQL, "%s")

	raw := domain.RawTable{Rows: []domain.RawRow{
		{
			"OBJECTID": int64(7), "category": "grow_zone", "type": "Grow Zone", "name": "Pease Park",
			"geometry": "POLYGON ((-97.755 30.28,-97.754 30.28,-97.754 30.281,-97.755 30.281,-97.755 30.28))",
			"date":     "2014-01-01T00:00:00", "acres": "1.5", "is_water_quality_control": "T",
		},
		{
			"OBJECTID": int64(8), "category": "stormwater_control", "type": "RAIN_GARDEN", "name": "Far away",
			"geometry": "POINT (-97.6 30.1)", "date": "2016-03-01", "is_water_quality_control": "F",
		},
		{"OBJECTID": int64(9), "type": "WET_POND", "geometry": "not wkt"},
	}}
	tbl, err := bc.Normalize(context.Background(), raw)
	require.NoError(t, err)
	require.NoError(t, tbl.Validate())
	require.Equal(t, 1, tbl.Len())

	v, _ := tbl.Value(0, "is_water_quality_control")
	assert.Equal(t, true, v)
	v, _ = tbl.Value(0, "volume")
	assert.Nil(t, v)
	assert.Equal(t, -1, tbl.Index("is_flood_control"))
}

func TestWatershedNormalize(t *testing.T) {
	rows := &fakeRows{}
	deps, _ := testDeps(rows)
	ws := NewWatershed(deps, "Shoal Creek")

	_, err := ws.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"Shoal Creek"}, rows.queries[0].Args)

	tbl, err := ws.Normalize(context.Background(), domain.RawTable{Rows: []domain.RawRow{{
		"OBJECTID":       int64(1),
		"watershed_name": "Shoal Creek",
		"geometry":       "POLYGON ((-97.78 30.26,-97.73 30.26,-97.73 30.36,-97.78 30.36,-97.78 30.26))",
	}}})
	require.NoError(t, err)
	b, err := spatial.FirstBoundary(tbl)
	require.NoError(t, err)
	p, err := deps.toUTM(-97.75, 30.30)
	require.NoError(t, err)
	assert.True(t, b.Test(p, 0, spatial.Within))

	_, err = ws.Normalize(context.Background(), domain.RawTable{})
	require.ErrorIs(t, err, domain.ErrEmptyBoundary)
}

func TestHydrographyKeepsIntersectingFlowlines(t *testing.T) {
	rows := &fakeRows{}
	deps, _ := testDeps(rows)
	b := testBoundary(t, deps)

	inside, err := deps.toUTM(-97.75, 30.29)
	require.NoError(t, err)
	inside2, err := deps.toUTM(-97.75, 30.31)
	require.NoError(t, err)
	crossing, err := deps.toUTM(-97.70, 30.30)
	require.NoError(t, err)
	far1, err := deps.toUTM(-97.60, 30.10)
	require.NoError(t, err)
	far2, err := deps.toUTM(-97.59, 30.11)
	require.NoError(t, err)

	mk := func(id int64, ls orb.LineString) domain.RawRow {
		blob, err := spatial.EncodeGPKG(ls, domain.UTM14N.SRID())
		require.NoError(t, err)
		return domain.RawRow{"OBJECTID": id, "geometry": blob, "name": "Shoal Creek"}
	}
	tbl, err := NewHydrography(deps, b).Normalize(context.Background(), domain.RawTable{Rows: []domain.RawRow{
		mk(1, orb.LineString{inside, inside2}),
		mk(2, orb.LineString{inside, crossing}),
		mk(3, orb.LineString{far1, far2}),
	}})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, column(t, tbl, "objectid"))
}
