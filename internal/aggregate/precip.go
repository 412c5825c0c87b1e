package aggregate

import (
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

// PrecipitationBucket pairs a bucket with rainfall observed around it.
type PrecipitationBucket struct {
	domain.AggregatedBucket
	AvgPrecipitation *float64
	MaxPrecipitation *float64
}

// WithPrecipitation attaches the mean and maximum of precip values whose
// day falls in [start - windowDays, end + windowDays) of each bucket.
func WithPrecipitation(buckets []domain.AggregatedBucket, precip []domain.Observation, windowDays int) []PrecipitationBucket {
	out := make([]PrecipitationBucket, len(buckets))
	for i, b := range buckets {
		from := b.Interval.Start.AddDate(0, 0, -windowDays)
		to := b.Interval.End.AddDate(0, 0, windowDays)
		var vals []*float64
		for _, p := range precip {
			d := p.Day()
			if p.Value != nil && !d.Before(from) && d.Before(to) {
				vals = append(vals, p.Value)
			}
		}
		out[i] = PrecipitationBucket{
			AggregatedBucket: b,
			AvgPrecipitation: meanOf(vals),
			MaxPrecipitation: maxOf(vals),
		}
	}
	return out
}
