package source

import (
	"context"
	"strings"

	"github.com/paulmach/orb"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

// Camp Mabry, the NOAA station reporting for the watershed.
var campMabry = orb.Point{-97.7604, 30.3208}

const (
	reportHourly = "FM-15"
	reportDaily  = "SOD"
)

// climateColumn maps one Local Climatological Data column to a parameter.
type climateColumn struct {
	column    string
	parameter string
}

var hourlyClimateColumns = []climateColumn{
	{"HourlyDewPointTemperature", "Dew Point Temperature"},
	{"HourlyWetBulbTemperature", "Wet Bulb Temperature"},
	{"HourlyDryBulbTemperature", "Dry Bulb Temperature"},
	{"HourlyRelativeHumidity", "Relative Humidity"},
	{"HourlyPrecipitation", "Precipitation"},
	{"HourlyVisibility", "Hourly Visibility"},
	{"HourlyWindDirection", "Wind Direction"},
	{"HourlyWindSpeed", "Wind Speed"},
	{"HourlyWindGustSpeed", "Wind Gust Speed"},
	{"HourlySeaLevelPressure", "Sea Level Pressure"},
}

var dailyClimateColumns = []climateColumn{
	{"DailyAverageDewPointTemperature", "Dew Point Temperature"},
	{"DailyAverageWetBulbTemperature", "Wet Bulb Temperature"},
	{"DailyAverageDryBulbTemperature", "Dry Bulb Temperature"},
	{"DailyAverageRelativeHumidity", "Relative Humidity"},
	{"DailyPrecipitation", "Precipitation"},
	{"DailyAverageWindSpeed", "Average Wind Speed"},
	{"DailySustainedWindDirection", "Sustained Wind Direction"},
	{"DailySustainedWindSpeed", "Sustained Wind Speed"},
	{"DailyPeakWindDirection", "Peak Wind Direction"},
	{"DailyPeakWindSpeed", "Peak Wind Speed"},
	{"DailyAverageSeaLevelPressure", "Sea Level Pressure"},
}

func climateSQL(cols []climateColumn) string {
	var b strings.Builder
	b.WriteString(`SELECT r."DATE" AS date_time, r."STATION" AS station_number`)
	for _, c := range cols {
		b.WriteString(`, r."` + c.column + `"`)
	}
	b.WriteString(`
FROM staging."NOAA_CM_Hourly" r
WHERE r."REPORT_TYPE" = $1
ORDER BY r."DATE"`)
	return b.String()
}

// parseClimateValue reads an LCD cell. Suspect ("s") and variable ("V")
// markers and the "*" placeholder are stripped. Trace amounts ("T") and
// anything else that is not numeric stay unparsable.
func parseClimateValue(raw string) (*float64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimRight(s, "sV*")
	return domain.ParseValue(s)
}

// Climate unpivots NOAA Local Climatological Data into one row per station,
// timestamp and parameter.
type Climate struct {
	deps    Deps
	layer   string
	report  string
	columns []climateColumn
	kind    domain.ColumnKind
}

// NewClimateHourly reads hourly (FM-15) observations.
func NewClimateHourly(deps Deps) *Climate {
	return &Climate{deps: deps, layer: LayerClimateHourly, report: reportHourly, columns: hourlyClimateColumns, kind: domain.KindTimestamp}
}

// NewClimateDaily reads daily summaries (SOD).
func NewClimateDaily(deps Deps) *Climate {
	return &Climate{deps: deps, layer: LayerClimateDaily, report: reportDaily, columns: dailyClimateColumns, kind: domain.KindDate}
}

func (c *Climate) Name() string { return c.layer }

func (c *Climate) Acquire(ctx context.Context) (domain.RawTable, error) {
	return c.deps.Warehouse.Query(ctx, domain.Query{SQL: climateSQL(c.columns), Args: []any{c.report}})
}

func (c *Climate) Normalize(_ context.Context, raw domain.RawTable) (*domain.Table, error) {
	logger := c.deps.logger(c.layer)
	station, err := c.deps.toUTM(campMabry.Lon(), campMabry.Lat())
	if err != nil {
		return nil, err
	}
	t := domain.NewSpatialTable(domain.UTM14N,
		domain.Column{Name: "ckey", Kind: domain.KindText},
		domain.Column{Name: "date_time", Kind: c.kind},
		domain.Column{Name: "station_number", Kind: domain.KindText},
		domain.Column{Name: "parameter", Kind: domain.KindText},
		domain.Column{Name: "raw_value", Kind: domain.KindText},
		domain.Column{Name: "value", Kind: domain.KindReal},
	)
	var unparsable int
	for _, row := range raw.Rows {
		ts, ok := row.Time("date_time")
		if !ok {
			continue
		}
		if c.kind == domain.KindDate {
			ts = domain.DateOf(ts)
		}
		stationID := row.String("station_number")
		for _, col := range c.columns {
			rawValue := strings.TrimSpace(row.String(col.column))
			if rawValue == "" {
				continue
			}
			var value any
			if v, err := parseClimateValue(rawValue); err != nil {
				unparsable++
				c.deps.drop(domain.DropUnparsableValue)
			} else {
				value = *v
			}
			t.Append(station,
				ckey(epoch(ts), stationID, col.parameter),
				ts,
				stationID,
				col.parameter,
				rawValue,
				value,
			)
		}
	}
	if unparsable > 0 {
		logger.Warn("climate readings kept without a numeric value", "count", unparsable)
	}
	logger.Info("climate normalized", "read", raw.Len(), "kept", t.Len())
	return t, nil
}
