package source

import (
	"context"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/spatial"
)

const hydrographySQL = `
SELECT OBJECTID,
       Shape      AS geometry,
       gnis_name  AS name,
       SHAPE_Leng AS length_geom,
       lengthkm   AS length_km,
       fcode      AS feature_code
FROM NHD_Flowline_TC`

// Hydrography reads NHD flowlines, already in UTM zone 14N, and keeps the
// ones touching the watershed.
type Hydrography struct {
	deps     Deps
	boundary spatial.Boundary
}

// NewHydrography creates the flowline source clipped to boundary.
func NewHydrography(deps Deps, boundary spatial.Boundary) *Hydrography {
	return &Hydrography{deps: deps, boundary: boundary}
}

func (h *Hydrography) Name() string { return LayerHydrography }

func (h *Hydrography) Acquire(ctx context.Context) (domain.RawTable, error) {
	return h.deps.Staging.Query(ctx, domain.Query{SQL: hydrographySQL})
}

func (h *Hydrography) Normalize(_ context.Context, raw domain.RawTable) (*domain.Table, error) {
	logger := h.deps.logger(LayerHydrography)
	t := domain.NewSpatialTable(domain.UTM14N,
		domain.Column{Name: "objectid", Kind: domain.KindInteger},
		domain.Column{Name: "name", Kind: domain.KindText},
		domain.Column{Name: "length_geom", Kind: domain.KindReal},
		domain.Column{Name: "length_km", Kind: domain.KindReal},
		domain.Column{Name: "feature_code", Kind: domain.KindInteger},
	)
	for _, row := range raw.Rows {
		g, err := spatial.DecodeGeometry(row["geometry"])
		if err != nil || g == nil {
			logger.Warn("skipping flowline with unreadable geometry", "objectid", row.String("OBJECTID"), "error", err)
			continue
		}
		if !h.boundary.IntersectsGeometry(g, 0) {
			continue
		}
		t.Append(g,
			nullableInt(row, "OBJECTID"),
			domain.NullableText(row.String("name")),
			nullableFloat(row, "length_geom"),
			nullableFloat(row, "length_km"),
			nullableInt(row, "feature_code"),
		)
	}
	logger.Info("flowlines clipped to watershed", "read", raw.Len(), "kept", t.Len())
	return t, nil
}
