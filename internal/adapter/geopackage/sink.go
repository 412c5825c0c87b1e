package geopackage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/spatial"
)

const (
	// applicationID is "GPKG" in ASCII.
	applicationID = 0x47504B47
	userVersion   = 10300

	geometryColumn = "geom"
	datetimeLayout = "2006-01-02T15:04:05.000Z"
)

var coreTables = []string{
	`CREATE TABLE IF NOT EXISTS gpkg_spatial_ref_sys (
    srs_name TEXT NOT NULL,
    srs_id INTEGER NOT NULL PRIMARY KEY,
    organization TEXT NOT NULL,
    organization_coordsys_id INTEGER NOT NULL,
    definition TEXT NOT NULL,
    description TEXT
)`,
	`CREATE TABLE IF NOT EXISTS gpkg_contents (
    table_name TEXT NOT NULL PRIMARY KEY,
    data_type TEXT NOT NULL,
    identifier TEXT UNIQUE,
    description TEXT DEFAULT '',
    last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
    min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
    srs_id INTEGER,
    CONSTRAINT fk_gc_r_srs_id FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys(srs_id)
)`,
	`CREATE TABLE IF NOT EXISTS gpkg_geometry_columns (
    table_name TEXT NOT NULL,
    column_name TEXT NOT NULL,
    geometry_type_name TEXT NOT NULL,
    srs_id INTEGER NOT NULL,
    z TINYINT NOT NULL,
    m TINYINT NOT NULL,
    CONSTRAINT pk_geom_cols PRIMARY KEY (table_name, column_name),
    CONSTRAINT fk_gc_tn FOREIGN KEY (table_name) REFERENCES gpkg_contents(table_name),
    CONSTRAINT fk_gc_srs FOREIGN KEY (srs_id) REFERENCES gpkg_spatial_ref_sys (srs_id)
)`,
}

// spatialRefs are the reference systems every container declares, plus the
// two used by exported layers.
var spatialRefs = []struct {
	name, org, definition string
	id, orgID             int
}{
	{"Undefined cartesian SRS", "NONE", "undefined", -1, -1},
	{"Undefined geographic SRS", "NONE", "undefined", 0, 0},
	{"WGS 84 geodetic", "EPSG", `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433],AUTHORITY["EPSG","4326"]]`, 4326, 4326},
	{"NAD83 / UTM zone 14N", "EPSG", `PROJCS["NAD83 / UTM zone 14N",GEOGCS["NAD83",DATUM["North_American_Datum_1983",SPHEROID["GRS 1980",6378137,298.257222101]],PRIMEM["Greenwich",0],UNIT["degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["latitude_of_origin",0],PARAMETER["central_meridian",-99],PARAMETER["scale_factor",0.9996],PARAMETER["false_easting",500000],PARAMETER["false_northing",0],UNIT["metre",1],AUTHORITY["EPSG","26914"]]`, 26914, 26914},
}

// Sink writes each layer as a feature (or attribute) table of a GeoPackage.
// It implements pipeline.Sink.
type Sink struct {
	db     *sql.DB
	append bool
	logger *slog.Logger
}

// SinkOption configures a Sink.
type SinkOption func(*Sink)

// WithAppend keeps existing rows of a layer.
func WithAppend() SinkOption {
	return func(s *Sink) { s.append = true }
}

// NewSink creates a sink writing into db.
func NewSink(db *sql.DB, logger *slog.Logger, opts ...SinkOption) *Sink {
	s := &Sink{db: db, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sink) Name() string { return "geopackage" }

func (s *Sink) Write(ctx context.Context, layer string, t *domain.Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := initContainer(ctx, tx); err != nil {
		return err
	}
	if !s.append {
		for _, stmt := range []string{
			"DROP TABLE IF EXISTS " + quote(layer),
			"DELETE FROM gpkg_geometry_columns WHERE table_name = ?",
			"DELETE FROM gpkg_contents WHERE table_name = ?",
		} {
			var args []any
			if strings.Contains(stmt, "?") {
				args = append(args, layer)
			}
			if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
				return fmt.Errorf("drop layer %s: %w", layer, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, createTableSQL(layer, t)); err != nil {
		return fmt.Errorf("create layer %s: %w", layer, err)
	}

	stmt, err := tx.PrepareContext(ctx, insertSQL(layer, t))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	var (
		bound   orb.Bound
		bounded bool
	)
	for i, r := range t.Rows {
		args := make([]any, 0, len(r)+1)
		for j, v := range r {
			args = append(args, sqliteValue(t.Columns[j].Kind, v))
		}
		if t.Spatial() {
			var blob []byte
			if g := t.Geometries[i]; g != nil {
				if blob, err = spatial.EncodeGPKG(g, t.CRS.SRID()); err != nil {
					return fmt.Errorf("encode geometry of row %d: %w", i, err)
				}
				if bounded {
					bound = bound.Union(g.Bound())
				} else {
					bound, bounded = g.Bound(), true
				}
			}
			args = append(args, blob)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert row %d: %w", i, err)
		}
	}

	if s.append && t.Spatial() {
		prior, ok, err := registeredExtent(ctx, tx, layer)
		if err != nil {
			return err
		}
		switch {
		case ok && bounded:
			bound = bound.Union(prior)
		case ok:
			bound = prior
		}
	}

	if err := register(ctx, tx, layer, t, bound); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Debug("layer written", "layer", layer, "rows", t.Len(), "append", s.append)
	return nil
}

func initContainer(ctx context.Context, tx *sql.Tx) error {
	pragmas := []string{
		fmt.Sprintf("PRAGMA application_id = %d", applicationID),
		fmt.Sprintf("PRAGMA user_version = %d", userVersion),
	}
	for _, stmt := range append(pragmas, coreTables...) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init geopackage: %w", err)
		}
	}
	for _, srs := range spatialRefs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO gpkg_spatial_ref_sys (srs_name, srs_id, organization, organization_coordsys_id, definition)
VALUES (?, ?, ?, ?, ?)`,
			srs.name, srs.id, srs.org, srs.orgID, srs.definition); err != nil {
			return fmt.Errorf("register srs %d: %w", srs.id, err)
		}
	}
	return nil
}

func register(ctx context.Context, tx *sql.Tx, layer string, t *domain.Table, b orb.Bound) error {
	now := domain.Now().Format(datetimeLayout)
	if !t.Spatial() {
		_, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO gpkg_contents (table_name, data_type, identifier, last_change) VALUES (?, 'attributes', ?, ?)`,
			layer, layer, now)
		if err != nil {
			return fmt.Errorf("register layer %s: %w", layer, err)
		}
		return nil
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO gpkg_contents (table_name, data_type, identifier, last_change, min_x, min_y, max_x, max_y, srs_id)
VALUES (?, 'features', ?, ?, ?, ?, ?, ?, ?)`,
		layer, layer, now, b.Min.X(), b.Min.Y(), b.Max.X(), b.Max.Y(), t.CRS.SRID()); err != nil {
		return fmt.Errorf("register layer %s: %w", layer, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO gpkg_geometry_columns (table_name, column_name, geometry_type_name, srs_id, z, m)
VALUES (?, ?, 'GEOMETRY', ?, 0, 0)`,
		layer, geometryColumn, t.CRS.SRID()); err != nil {
		return fmt.Errorf("register geometry of %s: %w", layer, err)
	}
	return nil
}

// registeredExtent reads the extent already recorded for layer, if any.
func registeredExtent(ctx context.Context, tx *sql.Tx, layer string) (orb.Bound, bool, error) {
	var minX, minY, maxX, maxY sql.NullFloat64
	err := tx.QueryRowContext(ctx,
		`SELECT min_x, min_y, max_x, max_y FROM gpkg_contents WHERE table_name = ?`, layer).
		Scan(&minX, &minY, &maxX, &maxY)
	if errors.Is(err, sql.ErrNoRows) {
		return orb.Bound{}, false, nil
	}
	if err != nil {
		return orb.Bound{}, false, fmt.Errorf("read extent of %s: %w", layer, err)
	}
	if !minX.Valid || !minY.Valid || !maxX.Valid || !maxY.Valid {
		return orb.Bound{}, false, nil
	}
	return orb.Bound{Min: orb.Point{minX.Float64, minY.Float64}, Max: orb.Point{maxX.Float64, maxY.Float64}}, true, nil
}

func sqliteType(k domain.ColumnKind) string {
	switch k {
	case domain.KindReal:
		return "REAL"
	case domain.KindInteger:
		return "INTEGER"
	case domain.KindTimestamp:
		return "DATETIME"
	case domain.KindDate:
		return "DATE"
	case domain.KindBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func createTableSQL(layer string, t *domain.Table) string {
	cols := []string{"fid INTEGER PRIMARY KEY AUTOINCREMENT NOT NULL"}
	if t.Spatial() {
		cols = append(cols, quote(geometryColumn)+" GEOMETRY")
	}
	for _, c := range t.Columns {
		cols = append(cols, quote(c.Name)+" "+sqliteType(c.Kind))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", quote(layer), strings.Join(cols, ",\n    "))
}

// insertSQL lists the attribute columns first and the geometry last, the
// order Write binds its arguments in.
func insertSQL(layer string, t *domain.Table) string {
	names := make([]string, 0, len(t.Columns)+1)
	for _, c := range t.Columns {
		names = append(names, quote(c.Name))
	}
	if t.Spatial() {
		names = append(names, quote(geometryColumn))
	}
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(layer), strings.Join(names, ", "), marks)
}

// sqliteValue renders times the way GeoPackage readers expect them.
func sqliteValue(k domain.ColumnKind, v any) any {
	switch v := v.(type) {
	case time.Time:
		if k == domain.KindDate {
			return v.UTC().Format(time.DateOnly)
		}
		return v.UTC().Format(datetimeLayout)
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return v
	}
}
