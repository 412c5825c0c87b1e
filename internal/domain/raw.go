package domain

import (
	"strconv"
	"strings"
	"time"
)

// Query is a parameterized statement against a row source. Values are never
// interpolated into SQL.
type Query struct {
	SQL  string
	Args []any
}

// RawRow is one untyped record from a row source, keyed by column name.
type RawRow map[string]any

// RawTable is the result of an acquire stage.
type RawTable struct {
	Columns []string
	Rows    []RawRow
}

// Len is the number of rows.
func (t RawTable) Len() int { return len(t.Rows) }

// String renders a cell as text. Missing and NULL cells are empty.
func (r RawRow) String(col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return ""
	}
}

// Float reads a numeric cell, parsing text when needed.
func (r RawRow) Float(col string) (float64, bool) {
	switch v := r[col].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	case int:
		return float64(v), true
	}
	p, err := ParseValue(r.String(col))
	if err != nil {
		return 0, false
	}
	return *p, true
}

// timeLayouts are the timestamp shapes emitted by the staging stores and
// provider exports, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	time.DateOnly,
	"01/02/2006 15:04",
	"01/02/2006",
}

// Time reads a timestamp cell. Text without a zone is taken as UTC.
func (r RawRow) Time(col string) (time.Time, bool) {
	if t, ok := r[col].(time.Time); ok {
		return t, true
	}
	return ParseTime(r.String(col))
}

// ParseTime parses any of the supported timestamp layouts.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ObservationQuery narrows a relational read of the water-quality layer.
// Empty slices and zero times leave that dimension unfiltered; To is
// exclusive.
type ObservationQuery struct {
	RawNames  []string
	RawUnits  []string
	Locations []string
	From      time.Time
	To        time.Time
}
