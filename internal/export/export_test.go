package export

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/config"
)

func TestOpenFileTargets(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		GeoPackagePath: filepath.Join(dir, "out.gpkg"),
		ColumnarDir:    dir,
	}
	set, err := Open(context.Background(), cfg, []string{config.TargetGeoPackage, config.TargetColumnar}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	var names []string
	for _, s := range set.Sinks() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"geopackage", "columnar"}, names)
	require.NoError(t, set.Close())
}

func TestOpenUnknownTarget(t *testing.T) {
	_, err := Open(context.Background(), &config.Config{}, []string{"ftp"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open ftp sink")
}

func TestCloseJoinsErrors(t *testing.T) {
	var order []int
	s := &Set{closers: []func() error{
		func() error { order = append(order, 1); return errors.New("first") },
		func() error { order = append(order, 2); return nil },
	}}
	err := s.Close()
	require.Error(t, err)
	assert.Equal(t, []int{2, 1}, order, "closed in reverse order")
}
