package domain

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// ColumnKind is the logical type of a table column. Sinks map kinds to their
// native types.
type ColumnKind int

const (
	KindText ColumnKind = iota
	KindReal
	KindInteger
	KindTimestamp
	KindDate
	KindBool
)

func (k ColumnKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindReal:
		return "real"
	case KindInteger:
		return "integer"
	case KindTimestamp:
		return "timestamp"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Column names and types one field of a Table.
type Column struct {
	Name string
	Kind ColumnKind
}

// Table is the row-oriented result of a normalize or aggregate stage.
// Cells hold nil, string, float64, int64, bool or time.Time. A spatial table
// carries one geometry per row, all in CRS.
type Table struct {
	Columns    []Column
	Rows       [][]any
	Geometries []orb.Geometry
	CRS        CRS
}

// NewTable starts an empty table with the given columns.
func NewTable(cols ...Column) *Table {
	return &Table{Columns: cols}
}

// NewSpatialTable starts an empty table whose rows carry geometries in crs.
func NewSpatialTable(crs CRS, cols ...Column) *Table {
	return &Table{Columns: cols, Geometries: []orb.Geometry{}, CRS: crs}
}

// Spatial reports whether rows carry geometries.
func (t *Table) Spatial() bool { return t.Geometries != nil }

// Len is the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of a column, or -1.
func (t *Table) Index(name string) int {
	for i, c := range t.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Append adds one row. geom is ignored for non-spatial tables.
func (t *Table) Append(geom orb.Geometry, values ...any) {
	t.Rows = append(t.Rows, values)
	if t.Spatial() {
		t.Geometries = append(t.Geometries, geom)
	}
}

// Value returns the cell of row i in the named column.
func (t *Table) Value(i int, name string) (any, bool) {
	j := t.Index(name)
	if j < 0 || i < 0 || i >= len(t.Rows) {
		return nil, false
	}
	return t.Rows[i][j], true
}

// Validate checks that every row matches the column count and that spatial
// tables have one geometry per row and a known CRS.
func (t *Table) Validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table has no columns")
	}
	seen := make(map[string]struct{}, len(t.Columns))
	for _, c := range t.Columns {
		if _, dup := seen[c.Name]; dup {
			return fmt.Errorf("table column %q declared twice", c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	for i, r := range t.Rows {
		if len(r) != len(t.Columns) {
			return fmt.Errorf("table row %d has %d values, want %d", i, len(r), len(t.Columns))
		}
	}
	if t.Spatial() {
		if len(t.Geometries) != len(t.Rows) {
			return fmt.Errorf("table has %d geometries for %d rows", len(t.Geometries), len(t.Rows))
		}
		if t.CRS == CRSUnknown {
			return fmt.Errorf("spatial table: %w", ErrAmbiguousCRS)
		}
	}
	return nil
}

// Nullable converts an optional float to a cell value.
func Nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// NullableText stores empty strings as nil.
func NullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Record returns row i as a column-name map.
func (t *Table) Record(i int) map[string]any {
	rec := make(map[string]any, len(t.Columns))
	for j, c := range t.Columns {
		rec[c.Name] = t.Rows[i][j]
	}
	return rec
}

// Key identifies row i within its layer. The ckey column is used when the
// layer has one; otherwise the text, date and timestamp cells are joined.
// Columns named in skip are ignored.
func (t *Table) Key(i int, skip ...string) string {
	if j := t.Index("ckey"); j >= 0 {
		if s, ok := t.Rows[i][j].(string); ok && s != "" {
			return s
		}
	}
	var parts []string
	for j, c := range t.Columns {
		if slices.Contains(skip, c.Name) {
			continue
		}
		switch c.Kind {
		case KindText, KindDate, KindTimestamp:
			parts = append(parts, cellText(t.Rows[i][j]))
		}
	}
	return strings.Join(parts, "|")
}

func cellText(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}
