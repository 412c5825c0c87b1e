// Package geopackage reads the staging GeoPackage and writes exported layers
// into a portable GeoPackage container.
package geopackage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

// Open opens a GeoPackage file and checks the connection.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open geopackage %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping geopackage %s: %w", path, err)
	}
	return db, nil
}

// Store runs read queries against a GeoPackage.
// It implements pipeline.RowSource.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Query runs a parameterized statement and returns every row keyed by
// column name.
func (s *Store) Query(ctx context.Context, q domain.Query) (domain.RawTable, error) {
	rows, err := s.db.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return domain.RawTable{}, fmt.Errorf("read columns: %w", err)
	}
	out := domain.RawTable{Columns: cols}
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return domain.RawTable{}, fmt.Errorf("scan row: %w", err)
		}
		row := make(domain.RawRow, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				row[c] = append([]byte(nil), b...)
				continue
			}
			row[c] = values[i]
		}
		out.Rows = append(out.Rows, row)
	}
	return out, rows.Err()
}

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
