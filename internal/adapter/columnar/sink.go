// Package columnar writes layers as column-major MessagePack files, one
// file per layer, for analysis tools that read whole columns at a time.
package columnar

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/spatial"
)

// Column is one named vector of a layer file.
type Column struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Values []any  `json:"values"`
}

// Layer is the on-disk form of a table. Geometry holds WKB per row and is
// empty for non-spatial layers.
type Layer struct {
	Name     string   `json:"name"`
	SRID     int      `json:"srid"`
	Rows     int      `json:"rows"`
	Columns  []Column `json:"columns"`
	Geometry [][]byte `json:"geometry,omitempty"`
}

// Sink writes dir/<layer>/<layer>.msgpack, replacing any previous file.
// It implements pipeline.Sink.
type Sink struct {
	dir    string
	logger *slog.Logger
}

// NewSink creates a sink rooted at dir.
func NewSink(dir string, logger *slog.Logger) *Sink {
	return &Sink{dir: dir, logger: logger}
}

func (s *Sink) Name() string { return "columnar" }

// Path is the file a layer is written to.
func (s *Sink) Path(layer string) string {
	return filepath.Join(s.dir, layer, layer+".msgpack")
}

func (s *Sink) Write(ctx context.Context, layer string, t *domain.Table) error {
	l, err := toLayer(layer, t)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path := s.Path(layer)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create layer directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+layer+"-*.msgpack")
	if err != nil {
		return fmt.Errorf("create layer file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(l); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", layer, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", layer, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", layer, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	s.logger.Debug("layer file written", "layer", layer, "path", path, "rows", t.Len())
	return nil
}

// Read loads a layer file.
func Read(path string) (*Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := msgpack.NewDecoder(bufio.NewReader(f))
	dec.SetCustomStructTag("json")
	var l Layer
	if err := dec.Decode(&l); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &l, nil
}

// Column returns the named column, or nil.
func (l *Layer) Column(name string) *Column {
	for i := range l.Columns {
		if l.Columns[i].Name == name {
			return &l.Columns[i]
		}
	}
	return nil
}

func toLayer(name string, t *domain.Table) (*Layer, error) {
	l := &Layer{Name: name, SRID: t.CRS.SRID(), Rows: t.Len(), Columns: make([]Column, len(t.Columns))}
	for j, c := range t.Columns {
		l.Columns[j] = Column{Name: c.Name, Kind: c.Kind.String(), Values: make([]any, t.Len())}
	}
	for i, r := range t.Rows {
		for j, v := range r {
			l.Columns[j].Values[i] = v
		}
	}
	if t.Spatial() {
		l.Geometry = make([][]byte, t.Len())
		for i, g := range t.Geometries {
			if g == nil {
				continue
			}
			b, err := spatial.EncodeWKB(g)
			if err != nil {
				return nil, fmt.Errorf("encode %s geometry %d: %w", name, i, err)
			}
			l.Geometry[i] = b
		}
	}
	return l, nil
}
