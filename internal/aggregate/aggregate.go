package aggregate

import (
	"sort"
	"time"

	"github.com/paulmach/orb"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

// SeriesKey selects the observations of one aggregation unit.
type SeriesKey struct {
	LocationID string
	Parameter  string
	Unit       string
}

func (k SeriesKey) matches(o domain.Observation) bool {
	return o.LocationID == k.LocationID && o.Parameter == k.Parameter
}

// Aggregate emits exactly one bucket per interval for the key, in interval
// order. Observations count toward the bucket whose [start, end) contains
// their calendar day; nil values are skipped. Buckets without values keep
// nil statistics.
func Aggregate(obs []domain.Observation, intervals []domain.Interval, key SeriesKey) []domain.AggregatedBucket {
	values := make([][]float64, len(intervals))
	var geom orb.Geometry
	crs := domain.CRSUnknown
	for _, o := range obs {
		if !key.matches(o) {
			continue
		}
		if geom == nil {
			geom, crs = o.Geometry, o.CRS
		}
		if o.Value == nil {
			continue
		}
		if i := locate(intervals, o.Day()); i >= 0 {
			values[i] = append(values[i], *o.Value)
		}
	}

	out := make([]domain.AggregatedBucket, len(intervals))
	for i, iv := range intervals {
		s := summarize(values[i])
		out[i] = domain.AggregatedBucket{
			LocationID: key.LocationID,
			Parameter:  key.Parameter,
			Unit:       key.Unit,
			Geometry:   geom,
			CRS:        crs,
			Interval:   iv,
			Count:      s.count,
			Avg:        s.avg,
			Median:     s.median,
			Max:        s.max,
			Min:        s.min,
		}
	}
	return out
}

// AggregateDaily groups the key's observations by calendar day. Only days
// with at least one observation produce a bucket.
func AggregateDaily(obs []domain.Observation, key SeriesKey) []domain.AggregatedBucket {
	seen := make(map[int64]struct{})
	var intervals []domain.Interval
	for _, o := range obs {
		if !key.matches(o) || o.Value == nil {
			continue
		}
		d := o.Day()
		if _, ok := seen[d.Unix()]; ok {
			continue
		}
		seen[d.Unix()] = struct{}{}
		intervals = append(intervals, DailyInterval(d))
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].Start.Before(intervals[j].Start) })
	return Aggregate(obs, intervals, key)
}

// ObservedOnly drops empty buckets.
func ObservedOnly(buckets []domain.AggregatedBucket) []domain.AggregatedBucket {
	out := make([]domain.AggregatedBucket, 0, len(buckets))
	for _, b := range buckets {
		if !b.Empty() {
			out = append(out, b)
		}
	}
	return out
}

// locate finds the interval containing day by binary search over the
// contiguous, ascending interval slice.
func locate(intervals []domain.Interval, day time.Time) int {
	i := sort.Search(len(intervals), func(i int) bool { return intervals[i].End.After(day) })
	if i < len(intervals) && intervals[i].Contains(day) {
		return i
	}
	return -1
}
