package aggregate

import (
	"sort"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

// CollapseLocations merges buckets of several locations that share a
// parameter and start date into one bucket per (parameter, start). Each
// statistic is the maximum across locations, counts are summed and the
// location id is the greatest contributing id.
func CollapseLocations(buckets []domain.AggregatedBucket) []domain.AggregatedBucket {
	type key struct {
		param string
		start int64
	}
	index := make(map[key]int)
	var out []domain.AggregatedBucket
	for _, b := range buckets {
		k := key{b.Parameter, b.Interval.Start.Unix()}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, b)
			continue
		}
		acc := &out[i]
		acc.Count += b.Count
		acc.Avg = maxPtr(acc.Avg, b.Avg)
		acc.Median = maxPtr(acc.Median, b.Median)
		acc.Max = maxPtr(acc.Max, b.Max)
		acc.Min = maxPtr(acc.Min, b.Min)
		if b.Interval.End.After(acc.Interval.End) {
			acc.Interval.End = b.Interval.End
		}
		if b.LocationID > acc.LocationID {
			acc.LocationID = b.LocationID
			acc.Geometry = b.Geometry
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Parameter != out[j].Parameter {
			return out[i].Parameter < out[j].Parameter
		}
		return out[i].Interval.Start.Before(out[j].Interval.Start)
	})
	return out
}

func maxPtr(a, b *float64) *float64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b > *a:
		return b
	default:
		return a
	}
}
