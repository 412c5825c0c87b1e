package aggregate

import (
	"sort"
	"time"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

// Period labels one side of the construction cutoff.
type Period string

const (
	Before Period = "before"
	After  Period = "after"
)

// WatershedLocation stands in for the location when summaries are pooled.
const WatershedLocation = "watershed"

// CompareOptions configures CompareConstruction.
type CompareOptions struct {
	// Cutoff is the construction date. Buckets starting after it are "after".
	Cutoff time.Time
	// StudyStart discards buckets starting on or before it.
	StudyStart time.Time
	// ByLocation summarizes each location separately instead of pooling.
	ByLocation bool
	// Parameters restricts the summary; empty keeps all.
	Parameters []string
}

// PeriodSummary describes one parameter on one side of the cutoff.
type PeriodSummary struct {
	Location  string
	Parameter string
	Period    Period
	MinDate   time.Time
	Buckets   int
	Avg       *float64 // mean of bucket averages
	StdDev    *float64 // sample standard deviation of bucket averages
	Max       *float64 // max of bucket maxima
	Median    *float64 // median of bucket medians
}

// CompareConstruction summarizes buckets before and after the cutoff.
// Results are ordered by location, parameter, then most recent period first.
func CompareConstruction(buckets []domain.AggregatedBucket, opts CompareOptions) []PeriodSummary {
	type key struct {
		location, param string
		period          Period
	}
	type acc struct {
		minDate time.Time
		n       int
		avgs    []*float64
		maxs    []*float64
		medians []*float64
	}
	allowed := make(map[string]struct{}, len(opts.Parameters))
	for _, p := range opts.Parameters {
		allowed[p] = struct{}{}
	}

	groups := make(map[key]*acc)
	var order []key
	for _, b := range buckets {
		if !b.Interval.Start.After(opts.StudyStart) {
			continue
		}
		if _, ok := allowed[b.Parameter]; len(allowed) > 0 && !ok {
			continue
		}
		k := key{location: WatershedLocation, param: b.Parameter, period: Before}
		if opts.ByLocation {
			k.location = b.LocationID
		}
		if b.Interval.Start.After(opts.Cutoff) {
			k.period = After
		}
		a, ok := groups[k]
		if !ok {
			a = &acc{minDate: b.Interval.Start}
			groups[k] = a
			order = append(order, k)
		}
		if b.Interval.Start.Before(a.minDate) {
			a.minDate = b.Interval.Start
		}
		a.n++
		a.avgs = append(a.avgs, b.Avg)
		a.maxs = append(a.maxs, b.Max)
		a.medians = append(a.medians, b.Median)
	}

	out := make([]PeriodSummary, 0, len(order))
	for _, k := range order {
		a := groups[k]
		out = append(out, PeriodSummary{
			Location:  k.location,
			Parameter: k.param,
			Period:    k.period,
			MinDate:   a.minDate,
			Buckets:   a.n,
			Avg:       meanOf(a.avgs),
			StdDev:    stdDevOf(a.avgs),
			Max:       maxOf(a.maxs),
			Median:    medianOf(a.medians),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		if out[i].Parameter != out[j].Parameter {
			return out[i].Parameter < out[j].Parameter
		}
		return out[i].MinDate.After(out[j].MinDate)
	})
	return out
}
