package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Observation is one point measurement as it leaves a source: raw fields
// are preserved and the canonical fields are filled by the taxonomy.
type Observation struct {
	Timestamp    time.Time
	LocationID   string
	LocationName string
	Geometry     orb.Point
	CRS          CRS

	RawParameter string
	Parameter    string // canonical; empty until resolved
	RawUnit      string
	Unit         string // canonical; empty until resolved
	RawValue     string
	Value        *float64 // nil when RawValue is unparsable

	Provider string
	Quality  QualityFlag
}

// Day is the calendar date the observation was taken on, at UTC midnight.
// The wall-clock date in the timestamp's own zone is used, matching a SQL
// ::date cast.
func (o Observation) Day() time.Time {
	return DateOf(o.Timestamp)
}

// Resolved reports whether the observation carries a canonical parameter.
func (o Observation) Resolved() bool {
	return o.Parameter != ""
}

// DateOf truncates t to its calendar date and re-anchors it at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseValue reads a raw measurement. Blank, non-numeric, NaN and infinite
// values are rejected with ErrUnparsableValue; they are never coerced to zero.
func ParseValue(raw string) (*float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil, fmt.Errorf("parse value %q: %w", raw, ErrUnparsableValue)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("parse value %q: %w", raw, ErrUnparsableValue)
	}
	return &v, nil
}

// Float returns a pointer to v. Handy for literals in tests and table rows.
func Float(v float64) *float64 { return &v }

// Interval is a half-open calendar-day range [Start, End). Its identity is Start.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether day falls inside the interval.
func (i Interval) Contains(day time.Time) bool {
	return !day.Before(i.Start) && day.Before(i.End)
}

// Days is the interval width in whole days.
func (i Interval) Days() int {
	return int(i.End.Sub(i.Start).Hours() / 24)
}

func (i Interval) String() string {
	return i.Start.Format(time.DateOnly) + "/" + i.End.Format(time.DateOnly)
}

// AggregatedBucket summarizes one (location, parameter, interval) cell. A
// bucket with no observations still exists; its statistics are nil.
type AggregatedBucket struct {
	LocationID string
	Parameter  string
	Unit       string
	Geometry   orb.Geometry // representative location geometry; nil when unknown
	CRS        CRS
	Interval   Interval
	Count      int

	Avg    *float64
	Median *float64
	Max    *float64
	Min    *float64
}

// Empty reports whether no observation contributed to the bucket.
func (b AggregatedBucket) Empty() bool { return b.Count == 0 }
