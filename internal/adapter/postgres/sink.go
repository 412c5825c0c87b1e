package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/spatial"
)

// geometryColumn holds the geometry of spatial layers.
const geometryColumn = "geometry"

// insertBatchSize bounds the statements queued in one pgx.Batch.
const insertBatchSize = 1000

// Sink exports layers to PostGIS tables. By default each write drops and
// recreates the layer table in one transaction.
// It implements pipeline.Sink.
type Sink struct {
	pool   *pgxpool.Pool
	schema string
	append bool
	logger *slog.Logger
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithAppend keeps existing rows and inserts after them.
func WithAppend() SinkOption {
	return func(s *Sink) { s.append = true }
}

// WithSchema writes layers into schema instead of DefaultSchema.
func WithSchema(schema string) SinkOption {
	return func(s *Sink) { s.schema = schema }
}

// NewSink creates a PostGIS sink on pool.
func NewSink(pool *pgxpool.Pool, logger *slog.Logger, opts ...SinkOption) *Sink {
	s := &Sink{pool: pool, schema: DefaultSchema, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Name() string { return "postgis" }

func (s *Sink) Write(ctx context.Context, layer string, t *domain.Table) error {
	table := pgx.Identifier{s.schema, layer}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	for _, stmt := range tableStatements(table, t, s.append) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("prepare table %s: %w", table.Sanitize(), err)
		}
	}

	insert := insertSQL(table, t)
	for start := 0; start < t.Len(); start += insertBatchSize {
		end := min(start+insertBatchSize, t.Len())
		batch := &pgx.Batch{}
		for i := start; i < end; i++ {
			args, err := rowArgs(t, i)
			if err != nil {
				return err
			}
			batch.Queue(insert, args...)
		}
		res := tx.SendBatch(ctx, batch)
		for i := start; i < end; i++ {
			if _, err := res.Exec(); err != nil {
				res.Close()
				return fmt.Errorf("insert row %d: %w", i, err)
			}
		}
		if err := res.Close(); err != nil {
			return fmt.Errorf("close batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("layer exported", "table", table.Sanitize(), "rows", t.Len(), "append", s.append)
	return nil
}

func pgType(k domain.ColumnKind) string {
	switch k {
	case domain.KindReal:
		return "double precision"
	case domain.KindInteger:
		return "bigint"
	case domain.KindTimestamp:
		return "timestamptz"
	case domain.KindDate:
		return "date"
	case domain.KindBool:
		return "boolean"
	default:
		return "text"
	}
}

// tableStatements replace the table, or create it when missing in append
// mode.
func tableStatements(table pgx.Identifier, t *domain.Table, appendRows bool) []string {
	cols := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		cols = append(cols, pgx.Identifier{c.Name}.Sanitize()+" "+pgType(c.Kind))
	}
	if t.Spatial() {
		cols = append(cols, fmt.Sprintf("%s geometry(Geometry, %d)", pgx.Identifier{geometryColumn}.Sanitize(), t.CRS.SRID()))
	}
	create := fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", table.Sanitize(), strings.Join(cols, ",\n    "))
	if appendRows {
		return []string{strings.Replace(create, "CREATE TABLE", "CREATE TABLE IF NOT EXISTS", 1)}
	}
	return []string{"DROP TABLE IF EXISTS " + table.Sanitize(), create}
}

func insertSQL(table pgx.Identifier, t *domain.Table) string {
	names := make([]string, 0, len(t.Columns)+1)
	marks := make([]string, 0, len(t.Columns)+1)
	for i, c := range t.Columns {
		names = append(names, pgx.Identifier{c.Name}.Sanitize())
		marks = append(marks, fmt.Sprintf("$%d", i+1))
	}
	if t.Spatial() {
		names = append(names, pgx.Identifier{geometryColumn}.Sanitize())
		marks = append(marks, fmt.Sprintf("ST_GeomFromWKB($%d, %d)", len(t.Columns)+1, t.CRS.SRID()))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table.Sanitize(), strings.Join(names, ", "), strings.Join(marks, ", "))
}

func rowArgs(t *domain.Table, i int) ([]any, error) {
	args := make([]any, 0, len(t.Columns)+1)
	args = append(args, t.Rows[i]...)
	if t.Spatial() {
		var wkb []byte
		if g := t.Geometries[i]; g != nil {
			b, err := spatial.EncodeWKB(g)
			if err != nil {
				return nil, fmt.Errorf("encode geometry of row %d: %w", i, err)
			}
			wkb = b
		}
		args = append(args, wkb)
	}
	return args, nil
}
