// Package align outer-merges per-parameter bucket series that share one
// interval axis into a single wide table.
//
// Column naming follows a left-to-right merge: the first series seeds bare
// stat columns (avg_value, ...). When a later series brings a stat column
// whose bare name is still present, the existing column takes the suffix of
// the previous parameter and the incoming one takes its own. After the last
// merge, any remaining bare column is suffixed with the last parameter, so
// every output column reads {stat}_value_{parameter}.
package align

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/aggregate"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

var (
	// ErrDuplicateParameter means a parameter was merged twice.
	ErrDuplicateParameter = errors.New("duplicate parameter")
	// ErrDuplicateKey means one series holds two buckets for the same key.
	ErrDuplicateKey = errors.New("duplicate series key")
	// ErrNoSeries means Result or Align was called with nothing merged.
	ErrNoSeries = errors.New("no series to align")
)

// KeyMode selects the merge key.
type KeyMode int

const (
	// ByStart joins on the interval start date.
	ByStart KeyMode = iota
	// ByLocation joins on (location id, interval start date).
	ByLocation
)

// Input is one parameter's bucket series.
type Input struct {
	Parameter string
	Buckets   []domain.AggregatedBucket
}

type rowKey struct {
	location string
	start    int64
}

type column struct {
	name string
	stat int
}

// Row is one aligned key with a value per column; nil marks a missing or
// empty bucket.
type Row struct {
	LocationID string
	Start      time.Time
	Values     []*float64
}

// Series is the aligned wide table.
type Series struct {
	Mode    KeyMode
	Columns []string
	Rows    []Row
}

// Value returns the cell of row i in the named column.
func (s *Series) Value(i int, name string) (*float64, bool) {
	for j, c := range s.Columns {
		if c == name && i >= 0 && i < len(s.Rows) {
			return s.Rows[i].Values[j], true
		}
	}
	return nil, false
}

// Aligner merges series one at a time.
type Aligner struct {
	mode    KeyMode
	params  []string
	columns []column
	index   map[rowKey]int
	rows    []Row
}

// NewAligner starts an empty alignment.
func NewAligner(mode KeyMode) *Aligner {
	return &Aligner{mode: mode, index: make(map[rowKey]int)}
}

func (a *Aligner) key(b domain.AggregatedBucket) rowKey {
	k := rowKey{start: b.Interval.Start.Unix()}
	if a.mode == ByLocation {
		k.location = b.LocationID
	}
	return k
}

// Merge outer-joins one more parameter series.
func (a *Aligner) Merge(parameter string, buckets []domain.AggregatedBucket) error {
	for _, p := range a.params {
		if p == parameter {
			return fmt.Errorf("merge %q: %w", parameter, ErrDuplicateParameter)
		}
	}
	incoming := make(map[rowKey]domain.AggregatedBucket, len(buckets))
	for _, b := range buckets {
		k := a.key(b)
		if _, dup := incoming[k]; dup {
			return fmt.Errorf("merge %q at %s %s: %w",
				parameter, b.LocationID, b.Interval.Start.Format(time.DateOnly), ErrDuplicateKey)
		}
		incoming[k] = b
	}

	width := len(a.columns)
	for stat, name := range aggregate.StatColumns {
		next := column{name: name, stat: stat}
		if len(a.params) > 0 {
			prev := a.params[len(a.params)-1]
			for i := range a.columns {
				if a.columns[i].name == name {
					a.columns[i].name = name + "_" + prev
					next.name = name + "_" + parameter
				}
			}
		}
		a.columns = append(a.columns, next)
	}
	for i := range a.rows {
		a.rows[i].Values = append(a.rows[i].Values, make([]*float64, len(aggregate.StatColumns))...)
	}

	for _, b := range buckets {
		k := a.key(b)
		i, ok := a.index[k]
		if !ok {
			i = len(a.rows)
			a.index[k] = i
			a.rows = append(a.rows, Row{
				LocationID: k.location,
				Start:      b.Interval.Start,
				Values:     make([]*float64, width+len(aggregate.StatColumns)),
			})
		}
		vals := a.rows[i].Values
		vals[width+0] = b.Avg
		vals[width+1] = b.Median
		vals[width+2] = b.Max
		vals[width+3] = b.Min
	}
	a.params = append(a.params, parameter)
	return nil
}

// Result returns the aligned series with final column names and rows sorted
// by key. The aligner is left untouched and may keep merging.
func (a *Aligner) Result() (*Series, error) {
	if len(a.params) == 0 {
		return nil, ErrNoSeries
	}
	last := a.params[len(a.params)-1]
	s := &Series{Mode: a.mode, Columns: make([]string, len(a.columns))}
	for i, c := range a.columns {
		name := c.name
		if name == aggregate.StatColumns[c.stat] {
			name += "_" + last
		}
		s.Columns[i] = name
	}
	s.Rows = make([]Row, len(a.rows))
	for i, r := range a.rows {
		s.Rows[i] = Row{LocationID: r.LocationID, Start: r.Start, Values: append([]*float64(nil), r.Values...)}
	}
	sort.SliceStable(s.Rows, func(i, j int) bool {
		if s.Rows[i].LocationID != s.Rows[j].LocationID {
			return s.Rows[i].LocationID < s.Rows[j].LocationID
		}
		return s.Rows[i].Start.Before(s.Rows[j].Start)
	})
	return s, nil
}

// Align merges every input in order.
func Align(inputs []Input, mode KeyMode) (*Series, error) {
	a := NewAligner(mode)
	for _, in := range inputs {
		if err := a.Merge(in.Parameter, in.Buckets); err != nil {
			return nil, err
		}
	}
	return a.Result()
}

// Table renders the series as an exportable, non-spatial layer.
func (s *Series) Table() *domain.Table {
	var cols []domain.Column
	if s.Mode == ByLocation {
		cols = append(cols, domain.Column{Name: "location_id", Kind: domain.KindText})
	}
	cols = append(cols, domain.Column{Name: "start_date", Kind: domain.KindDate})
	for _, c := range s.Columns {
		cols = append(cols, domain.Column{Name: c, Kind: domain.KindReal})
	}
	t := domain.NewTable(cols...)
	for _, r := range s.Rows {
		var row []any
		if s.Mode == ByLocation {
			row = append(row, r.LocationID)
		}
		row = append(row, r.Start)
		for _, v := range r.Values {
			row = append(row, domain.Nullable(v))
		}
		t.Append(nil, row...)
	}
	return t
}
