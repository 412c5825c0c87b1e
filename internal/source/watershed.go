package source

import (
	"context"
	"fmt"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/spatial"
)

const watershedSQL = `
SELECT OBJECTID,
       WATERSHED_FULL_NAME AS watershed_name,
       the_geom            AS geometry,
       SHAPE_Area          AS area,
       SHAPE_Length        AS length,
       RECEIVING_BASIN     AS receiving_basin,
       RECEIVING_WATERS    AS receiving_waters,
       WATERSHED_ID        AS watershed_id
FROM WBD_COA
WHERE WATERSHED_FULL_NAME = ?
ORDER BY SHAPE_Length DESC`

// Watershed reads the named watershed polygons from the City of Austin
// watershed boundary layer. The longest outline comes first and serves as
// the batch boundary.
type Watershed struct {
	deps Deps
	name string
}

// NewWatershed creates the watershed source for the named watershed.
func NewWatershed(deps Deps, name string) *Watershed {
	return &Watershed{deps: deps, name: name}
}

func (w *Watershed) Name() string { return LayerWatershed }

func (w *Watershed) Acquire(ctx context.Context) (domain.RawTable, error) {
	return w.deps.Staging.Query(ctx, domain.Query{SQL: watershedSQL, Args: []any{w.name}})
}

func (w *Watershed) Normalize(_ context.Context, raw domain.RawTable) (*domain.Table, error) {
	logger := w.deps.logger(LayerWatershed)
	t := domain.NewSpatialTable(domain.UTM14N,
		domain.Column{Name: "objectid", Kind: domain.KindInteger},
		domain.Column{Name: "watershed_name", Kind: domain.KindText},
		domain.Column{Name: "area", Kind: domain.KindReal},
		domain.Column{Name: "length", Kind: domain.KindReal},
		domain.Column{Name: "receiving_basin", Kind: domain.KindText},
		domain.Column{Name: "receiving_waters", Kind: domain.KindText},
		domain.Column{Name: "watershed_id", Kind: domain.KindText},
	)
	for _, row := range raw.Rows {
		g, err := spatial.DecodeGeometry(row["geometry"])
		if err != nil || g == nil {
			logger.Warn("skipping watershed with unreadable geometry", "objectid", row.String("OBJECTID"), "error", err)
			continue
		}
		g, err = w.deps.Reprojector.Reproject(g, domain.WGS84, domain.UTM14N)
		if err != nil {
			return nil, err
		}
		t.Append(g,
			nullableInt(row, "OBJECTID"),
			row.String("watershed_name"),
			nullableFloat(row, "area"),
			nullableFloat(row, "length"),
			domain.NullableText(row.String("receiving_basin")),
			domain.NullableText(row.String("receiving_waters")),
			domain.NullableText(row.String("watershed_id")),
		)
	}
	if t.Len() == 0 {
		return nil, fmt.Errorf("watershed %q: %w", w.name, domain.ErrEmptyBoundary)
	}
	return t, nil
}
