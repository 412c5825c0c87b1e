package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/aggregate"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/align"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/config"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/spatial"
)

const hydrographySQL = `
SELECT objectid, ST_AsBinary(geometry) AS geometry, ST_SRID(geometry) AS srid
FROM hydrography
WHERE geometry IS NOT NULL`

// precipitationParameter is the climate_daily parameter holding rainfall.
const precipitationParameter = "Precipitation"

const precipitationSQL = `
SELECT date_time, station_number, parameter, raw_value, value
FROM climate_daily
WHERE parameter = $1 AND value IS NOT NULL
ORDER BY date_time`

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// hydrographyTable turns the flowline rows into a spatial table keyed by
// objectid. Every row must share one SRID.
func hydrographyTable(raw domain.RawTable) (*domain.Table, error) {
	crs := domain.CRSUnknown
	t := domain.NewSpatialTable(crs, domain.Column{Name: "objectid", Kind: domain.KindInteger})
	for i, row := range raw.Rows {
		g, err := spatial.DecodeGeometry(row["geometry"])
		if err != nil {
			return nil, fmt.Errorf("hydrography row %d: %w", i, err)
		}
		if g == nil {
			continue
		}
		srid, ok := row.Float("srid")
		if !ok {
			return nil, fmt.Errorf("hydrography row %d: %w", i, domain.ErrAmbiguousCRS)
		}
		rowCRS := domain.CRS(int(srid))
		if crs != domain.CRSUnknown && rowCRS != crs {
			return nil, fmt.Errorf("hydrography srid %d and %d: %w", crs, rowCRS, domain.ErrAmbiguousCRS)
		}
		crs = rowCRS
		var id any
		if v, ok := row.Float("objectid"); ok {
			id = int64(v)
		}
		t.Append(g, id)
	}
	t.CRS = crs
	return t, nil
}

// precipitationObservations reads climate_daily rows as observations.
func precipitationObservations(raw domain.RawTable) []domain.Observation {
	out := make([]domain.Observation, 0, len(raw.Rows))
	for _, row := range raw.Rows {
		ts, ok := row.Time("date_time")
		if !ok {
			continue
		}
		v, ok := row.Float("value")
		if !ok {
			continue
		}
		out = append(out, domain.Observation{
			Timestamp:    ts,
			LocationID:   row.String("station_number"),
			RawParameter: row.String("parameter"),
			Parameter:    row.String("parameter"),
			RawValue:     row.String("raw_value"),
			Value:        domain.Float(v),
		})
	}
	return out
}

func onlyLocations(obs []domain.Observation, locations []string) []domain.Observation {
	out := make([]domain.Observation, 0, len(obs))
	for _, o := range obs {
		if slices.Contains(locations, o.LocationID) {
			out = append(out, o)
		}
	}
	return out
}

// alignInputs splits buckets into one series per requested parameter. With
// named locations the series are collapsed across them and joined on the
// start date; otherwise every location keeps its own rows.
func alignInputs(buckets []domain.AggregatedBucket, params, locations []string) ([]align.Input, align.KeyMode) {
	mode := align.ByLocation
	if len(locations) > 0 {
		mode = align.ByStart
	}
	inputs := make([]align.Input, 0, len(params))
	for _, p := range params {
		var series []domain.AggregatedBucket
		for _, b := range buckets {
			if b.Parameter != p {
				continue
			}
			if len(locations) > 0 && !slices.Contains(locations, b.LocationID) {
				continue
			}
			series = append(series, b)
		}
		if mode == align.ByStart {
			series = aggregate.CollapseLocations(series)
		}
		inputs = append(inputs, align.Input{Parameter: p, Buckets: series})
	}
	return inputs, mode
}

// constructionSummary compares daily buckets before and after construction.
// Daily buckets only exist for observed days, so each period starts at its
// first sample and counts sampled days.
func constructionSummary(daily []domain.AggregatedBucket, cfg *config.Config, opts options) []aggregate.PeriodSummary {
	return aggregate.CompareConstruction(daily, aggregate.CompareOptions{
		Cutoff:     cfg.ConstructionDate,
		StudyStart: cfg.StudyStart,
		ByLocation: opts.byLocation,
		Parameters: opts.align,
	})
}
