package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

// dailySeries names the NWIS daily-value columns of one gauge.
type dailySeries struct {
	table string
	avg   string
	max   string
	min   string
}

var dailyDischargeSeries = []dailySeries{
	{table: "NWIS_DV_08156675", avg: "136080_00060_00003", max: "295487_00060_00001", min: "295488_00060_00002"},
	{table: "NWIS_DV_08156800", avg: "136084_00060_00003", max: "136082_00060_00001", min: "325692_00060_00002"},
}

func dischargeDailySQL(series []dailySeries) string {
	parts := make([]string, 0, len(series))
	for _, s := range series {
		parts = append(parts, fmt.Sprintf(`
    SELECT dv.datetime AS date_time,
           dv.site_no  AS site_number,
           nullif(dv."%[2]s", '') AS avg_value,
           nullif(dv."%[3]s", '') AS max_value,
           nullif(dv."%[4]s", '') AS min_value,
           dv."%[2]s_cd" AS value_flag
    FROM staging."%[1]s" dv`, s.table, s.avg, s.max, s.min))
	}
	return `
SELECT g.*, s.dec_lat_va AS latitude, s.dec_long_va AS longitude
FROM (` + strings.Join(parts, "\n    UNION ALL") + `
) g
INNER JOIN staging."NWIS_Sites" s ON s.site_no = g.site_number
ORDER BY g.date_time`
}

// DischargeDaily reads daily mean, maximum and minimum discharge from the
// relational staging schema.
type DischargeDaily struct {
	deps Deps
}

// NewDischargeDaily creates the daily-value source.
func NewDischargeDaily(deps Deps) *DischargeDaily {
	return &DischargeDaily{deps: deps}
}

func (d *DischargeDaily) Name() string { return LayerDischargeDaily }

func (d *DischargeDaily) Acquire(ctx context.Context) (domain.RawTable, error) {
	return d.deps.Warehouse.Query(ctx, domain.Query{SQL: dischargeDailySQL(dailyDischargeSeries)})
}

func (d *DischargeDaily) Normalize(_ context.Context, raw domain.RawTable) (*domain.Table, error) {
	logger := d.deps.logger(LayerDischargeDaily)
	t := domain.NewSpatialTable(domain.UTM14N,
		domain.Column{Name: "ckey", Kind: domain.KindText},
		domain.Column{Name: "date_time", Kind: domain.KindDate},
		domain.Column{Name: "site_number", Kind: domain.KindText},
		domain.Column{Name: "parameter", Kind: domain.KindText},
		domain.Column{Name: "unit", Kind: domain.KindText},
		domain.Column{Name: "avg_value", Kind: domain.KindReal},
		domain.Column{Name: "max_value", Kind: domain.KindReal},
		domain.Column{Name: "min_value", Kind: domain.KindReal},
		domain.Column{Name: "value_flag", Kind: domain.KindText},
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
		day := domain.DateOf(ts)
		site := row.String("site_number")
		t.Append(p,
			ckey(epoch(day), site, "Discharge"),
			day,
			site,
			"Discharge",
			"cfs",
			d.deps.value(row, "avg_value"),
			d.deps.value(row, "max_value"),
			d.deps.value(row, "min_value"),
			flagLabel(row.String("value_flag")),
		)
	}
	if skipped > 0 {
		logger.Warn("skipped daily values without a date or site location", "count", skipped)
	}
	logger.Info("daily discharge normalized", "read", raw.Len(), "kept", t.Len())
	return t, nil
}
