package aggregate

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type summary struct {
	count    int
	avg      *float64
	median   *float64
	max, min *float64
}

func summarize(values []float64) summary {
	if len(values) == 0 {
		return summary{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	avg := stat.Mean(sorted, nil)
	median := percentileCont(sorted, 0.5)
	maxV, minV := floats.Max(sorted), floats.Min(sorted)
	return summary{count: len(values), avg: &avg, median: &median, max: &maxV, min: &minV}
}

// percentileCont is the continuous percentile of sorted data: rank
// p*(n-1) with linear interpolation between neighbours.
func percentileCont(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p * float64(len(sorted)-1)
	lo := math.Floor(rank)
	hi := math.Ceil(rank)
	if lo == hi {
		return sorted[int(lo)]
	}
	return sorted[int(lo)] + (rank-lo)*(sorted[int(hi)]-sorted[int(lo)])
}

// median of optional values; nil when none are present.
func medianOf(values []*float64) *float64 {
	vs := present(values)
	if len(vs) == 0 {
		return nil
	}
	slices.Sort(vs)
	m := percentileCont(vs, 0.5)
	return &m
}

func meanOf(values []*float64) *float64 {
	vs := present(values)
	if len(vs) == 0 {
		return nil
	}
	m := stat.Mean(vs, nil)
	return &m
}

// stdDevOf is the sample standard deviation; nil below two values.
func stdDevOf(values []*float64) *float64 {
	vs := present(values)
	if len(vs) < 2 {
		return nil
	}
	s := stat.StdDev(vs, nil)
	return &s
}

func maxOf(values []*float64) *float64 {
	vs := present(values)
	if len(vs) == 0 {
		return nil
	}
	m := floats.Max(vs)
	return &m
}

func present(values []*float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}
