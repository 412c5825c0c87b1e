package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

// gaugeSeries names the NWIS columns holding one parameter at one gauge.
// Primary and secondary are the two sensors reported by the site.
type gaugeSeries struct {
	table     string
	parameter string
	unit      string
	primary   string
	secondary string
}

// instantaneousSeries are the instantaneous-value series of the Shoal Creek
// gauges at 12th Street (08156800) and Northwest Park (08156675).
var instantaneousSeries = []gaugeSeries{
	{table: "NWIS_IV_08156800", parameter: "Discharge", unit: "cfs", primary: "141286_00060", secondary: "227895_00060"},
	{table: "NWIS_IV_08156800", parameter: "Gage height", unit: "ft", primary: "141287_00065", secondary: "224497_00065"},
	{table: "NWIS_IV_08156675", parameter: "Discharge", unit: "cfs", primary: "141284_00060", secondary: "227924_00060"},
	{table: "NWIS_IV_08156675", parameter: "Gage height", unit: "ft", primary: "141283_00065", secondary: "224476_00065"},
}

// dischargeSQL unions the fixed gauge series. Column and table names come
// from instantaneousSeries, never from input.
func dischargeSQL(series []gaugeSeries) string {
	parts := make([]string, 0, len(series))
	for _, s := range series {
		parts = append(parts, fmt.Sprintf(`
    SELECT iv.datetime AS date_time,
           iv.site_no  AS site_number,
           '%[2]s' AS parameter,
           '%[3]s' AS unit,
           nullif(iv."%[4]s", '') AS primary_value,
           nullif(iv."%[5]s", '') AS secondary_value,
           iv."%[4]s_cd" AS primary_value_flag,
           iv."%[5]s_cd" AS secondary_value_flag
    FROM %[1]s iv`, s.table, s.parameter, s.unit, s.primary, s.secondary))
	}
	return `
SELECT g.*, s.dec_lat_va AS latitude, s.dec_long_va AS longitude
FROM (` + strings.Join(parts, "\n    UNION ALL") + `
) g
INNER JOIN NWIS_Sites s ON s.site_no = g.site_number
ORDER BY g.date_time`
}

// Discharge reads the instantaneous discharge and gage height series.
type Discharge struct {
	deps Deps
}

// NewDischarge creates the instantaneous-value source.
func NewDischarge(deps Deps) *Discharge {
	return &Discharge{deps: deps}
}

func (d *Discharge) Name() string { return LayerDischarge }

func (d *Discharge) Acquire(ctx context.Context) (domain.RawTable, error) {
	return d.deps.Staging.Query(ctx, domain.Query{SQL: dischargeSQL(instantaneousSeries)})
}

func (d *Discharge) Normalize(_ context.Context, raw domain.RawTable) (*domain.Table, error) {
	logger := d.deps.logger(LayerDischarge)
	t := domain.NewSpatialTable(domain.UTM14N,
		domain.Column{Name: "ckey", Kind: domain.KindText},
		domain.Column{Name: "date_time", Kind: domain.KindTimestamp},
		domain.Column{Name: "site_number", Kind: domain.KindText},
		domain.Column{Name: "parameter", Kind: domain.KindText},
		domain.Column{Name: "unit", Kind: domain.KindText},
		domain.Column{Name: "primary_value", Kind: domain.KindReal},
		domain.Column{Name: "secondary_value", Kind: domain.KindReal},
		domain.Column{Name: "primary_value_flag", Kind: domain.KindText},
		domain.Column{Name: "secondary_value_flag", Kind: domain.KindText},
	)
	var skipped int
	for _, row := range raw.Rows {
		ts, ok := row.Time("date_time")
		if !ok {
			skipped++
			continue
		}
		p, ok, err := d.deps.sitePoint(row)
		if err != nil {
			return nil, err
		}
		if !ok {
			skipped++
			continue
		}
		primary := d.deps.value(row, "primary_value")
		secondary := d.deps.value(row, "secondary_value")
		site, param := row.String("site_number"), row.String("parameter")
		t.Append(p,
			ckey(epoch(ts), site, param),
			ts,
			site,
			param,
			row.String("unit"),
			primary,
			secondary,
			flagLabel(row.String("primary_value_flag")),
			flagLabel(row.String("secondary_value_flag")),
		)
	}
	if skipped > 0 {
		logger.Warn("skipped gauge readings without a timestamp or site location", "count", skipped)
	}
	logger.Info("discharge normalized", "read", raw.Len(), "kept", t.Len())
	return t, nil
}

func flagLabel(code string) any {
	return domain.NullableText(domain.NormalizeQualityFlag(code).Label())
}
