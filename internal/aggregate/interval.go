// Package aggregate buckets irregular observations into fixed-width day
// intervals and summarizes each bucket.
package aggregate

import (
	"fmt"
	"time"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

const day = 24 * time.Hour

// GenerateIntervals covers [from, to] with contiguous half-open buckets of
// widthDays calendar days starting at from's date. The last bucket may end
// after to. from == to yields a single bucket.
func GenerateIntervals(from, to time.Time, widthDays int) ([]domain.Interval, error) {
	if widthDays <= 0 {
		return nil, fmt.Errorf("generate intervals width %d: %w", widthDays, domain.ErrInvalidIntervalWidth)
	}
	start, end := domain.DateOf(from), domain.DateOf(to)
	if end.Before(start) {
		return nil, fmt.Errorf("generate intervals %s..%s: %w",
			start.Format(time.DateOnly), end.Format(time.DateOnly), domain.ErrInvalidRange)
	}
	span := int(end.Sub(start) / day)
	n := span/widthDays + 1
	out := make([]domain.Interval, n)
	for i := range out {
		s := start.AddDate(0, 0, i*widthDays)
		out[i] = domain.Interval{Start: s, End: s.AddDate(0, 0, widthDays)}
	}
	return out, nil
}

// DailyInterval is the one-day bucket containing t.
func DailyInterval(t time.Time) domain.Interval {
	s := domain.DateOf(t)
	return domain.Interval{Start: s, End: s.AddDate(0, 0, 1)}
}

// Span returns the earliest and latest observation days.
func Span(obs []domain.Observation) (first, last time.Time, ok bool) {
	for i, o := range obs {
		d := o.Day()
		if i == 0 || d.Before(first) {
			first = d
		}
		if i == 0 || d.After(last) {
			last = d
		}
	}
	return first, last, len(obs) > 0
}
