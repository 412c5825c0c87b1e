// Package postgres reads staged rows from and exports layers to a PostGIS
// database through a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/spatial"
)

// DefaultSchema holds exported layers.
const DefaultSchema = "public"

// Connect opens a pool and checks connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Store runs read queries against the pool.
// It implements pipeline.RowSource and pipeline.ObservationSource.
type Store struct {
	pool   *pgxpool.Pool
	schema string
}

// NewStore wraps a pool. Observations are read from schema.
func NewStore(pool *pgxpool.Pool, schema string) *Store {
	if schema == "" {
		schema = DefaultSchema
	}
	return &Store{pool: pool, schema: schema}
}

// Close releases the pool resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Query runs a parameterized statement and returns every row keyed by
// column name.
func (s *Store) Query(ctx context.Context, q domain.Query) (domain.RawTable, error) {
	rows, err := s.pool.Query(ctx, q.SQL, q.Args...)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	out := domain.RawTable{Columns: make([]string, len(fields))}
	for i, f := range fields {
		out.Columns[i] = f.Name
	}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return domain.RawTable{}, fmt.Errorf("read row: %w", err)
		}
		row := make(domain.RawRow, len(values))
		for i, v := range values {
			row[out.Columns[i]] = cell(v)
		}
		out.Rows = append(out.Rows, row)
	}
	return out, rows.Err()
}

// cell converts driver values to the types RawRow understands.
func cell(v any) any {
	switch v := v.(type) {
	case pgtype.Numeric:
		f, err := v.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case int16:
		return int64(v)
	case int8:
		return int64(v)
	default:
		return v
	}
}

// Observations reads the water_quality layer back as observations, ordered
// by location and time.
func (s *Store) Observations(ctx context.Context, q domain.ObservationQuery) ([]domain.Observation, error) {
	sql, args := buildObservationSQL(pgx.Identifier{s.schema, "water_quality"}, q)
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var out []domain.Observation
	for rows.Next() {
		var (
			o                                  domain.Observation
			name, param, rawUnit, unit, rawVal *string
			provider                           *string
			geom                               []byte
			srid                               *int32
		)
		if err := rows.Scan(
			&o.Timestamp, &o.LocationID, &name,
			&o.RawParameter, &param, &rawUnit, &unit,
			&rawVal, &o.Value, &provider,
			&geom, &srid,
		); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		o.LocationName, o.Parameter = deref(name), deref(param)
		o.RawUnit, o.Unit = deref(rawUnit), deref(unit)
		o.RawValue, o.Provider = deref(rawVal), deref(provider)
		o.Timestamp = o.Timestamp.UTC()
		if srid != nil {
			o.CRS = domain.CRS(*srid)
		}
		if len(geom) > 0 {
			g, err := spatial.DecodeGeometry(geom)
			if err != nil {
				return nil, fmt.Errorf("decode observation geometry: %w", err)
			}
			if p, ok := g.(orb.Point); ok {
				o.Geometry = p
			}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// buildObservationSQL renders the observation read with one placeholder per
// active filter.
func buildObservationSQL(table pgx.Identifier, q domain.ObservationQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if len(q.RawNames) > 0 {
		add("raw_parameter = ANY($%d)", q.RawNames)
	}
	if len(q.RawUnits) > 0 {
		add("raw_unit = ANY($%d)", q.RawUnits)
	}
	if len(q.Locations) > 0 {
		add("sample_location_id = ANY($%d)", q.Locations)
	}
	if !q.From.IsZero() {
		add("sample_date_time >= $%d", q.From.UTC())
	}
	if !q.To.IsZero() {
		add("sample_date_time < $%d", q.To.UTC())
	}

	var b strings.Builder
	b.WriteString(`SELECT sample_date_time, sample_location_id, sample_location,
       raw_parameter, parameter, raw_unit, unit,
       raw_value, value, provider,
       ST_AsBinary(geometry), ST_SRID(geometry)
FROM `)
	b.WriteString(table.Sanitize())
	if len(where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(where, "\n  AND "))
	}
	b.WriteString("\nORDER BY sample_location_id, sample_date_time")
	return b.String(), args
}
