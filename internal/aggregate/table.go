package aggregate

import (
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

// Stat column names shared by bucket layers and aligned series.
const (
	ColAvg    = "avg_value"
	ColMedian = "median_value"
	ColMax    = "max_value"
	ColMin    = "min_value"
)

// StatColumns lists the statistic columns in output order.
var StatColumns = []string{ColAvg, ColMedian, ColMax, ColMin}

func bucketColumns() []domain.Column {
	return []domain.Column{
		{Name: "sample_location", Kind: domain.KindText},
		{Name: "parameter", Kind: domain.KindText},
		{Name: "unit", Kind: domain.KindText},
		{Name: "start_date", Kind: domain.KindDate},
		{Name: "end_date", Kind: domain.KindDate},
		{Name: "observation_count", Kind: domain.KindInteger},
		{Name: ColAvg, Kind: domain.KindReal},
		{Name: ColMedian, Kind: domain.KindReal},
		{Name: ColMax, Kind: domain.KindReal},
		{Name: ColMin, Kind: domain.KindReal},
	}
}

// BucketsTable renders buckets as an exportable layer. The layer is spatial
// when the buckets carry geometries in a known CRS.
func BucketsTable(buckets []domain.AggregatedBucket) *domain.Table {
	crs := domain.CRSUnknown
	for _, b := range buckets {
		if b.Geometry != nil && b.CRS != domain.CRSUnknown {
			crs = b.CRS
			break
		}
	}
	t := domain.NewTable(bucketColumns()...)
	if crs != domain.CRSUnknown {
		t = domain.NewSpatialTable(crs, bucketColumns()...)
	}
	for _, b := range buckets {
		t.Append(b.Geometry,
			b.LocationID,
			b.Parameter,
			b.Unit,
			b.Interval.Start,
			b.Interval.End,
			int64(b.Count),
			domain.Nullable(b.Avg),
			domain.Nullable(b.Median),
			domain.Nullable(b.Max),
			domain.Nullable(b.Min),
		)
	}
	return t
}

// SummaryTable renders a before/after construction comparison.
func SummaryTable(summaries []PeriodSummary) *domain.Table {
	t := domain.NewTable(
		domain.Column{Name: "location", Kind: domain.KindText},
		domain.Column{Name: "parameter", Kind: domain.KindText},
		domain.Column{Name: "period", Kind: domain.KindText},
		domain.Column{Name: "min_date", Kind: domain.KindDate},
		domain.Column{Name: "bucket_count", Kind: domain.KindInteger},
		domain.Column{Name: ColAvg, Kind: domain.KindReal},
		domain.Column{Name: "stddev", Kind: domain.KindReal},
		domain.Column{Name: ColMax, Kind: domain.KindReal},
		domain.Column{Name: ColMedian, Kind: domain.KindReal},
	)
	for _, s := range summaries {
		t.Append(nil,
			s.Location,
			s.Parameter,
			string(s.Period),
			s.MinDate,
			int64(s.Buckets),
			domain.Nullable(s.Avg),
			domain.Nullable(s.StdDev),
			domain.Nullable(s.Max),
			domain.Nullable(s.Median),
		)
	}
	return t
}

// PrecipitationTable renders buckets enriched with precipitation.
func PrecipitationTable(buckets []PrecipitationBucket) *domain.Table {
	plain := make([]domain.AggregatedBucket, len(buckets))
	for i, b := range buckets {
		plain[i] = b.AggregatedBucket
	}
	t := BucketsTable(plain)
	t.Columns = append(t.Columns,
		domain.Column{Name: "avg_precipitation", Kind: domain.KindReal},
		domain.Column{Name: "max_precipitation", Kind: domain.KindReal},
	)
	for i, b := range buckets {
		t.Rows[i] = append(t.Rows[i], domain.Nullable(b.AvgPrecipitation), domain.Nullable(b.MaxPrecipitation))
	}
	return t
}
