package source

import (
	"context"
	"strings"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/spatial"
)

// VegetationTypes are the control types counted as vegetative mitigation.
var VegetationTypes = []string{
	"Wildflower Meadow",
	"Grow Zone",
	"BIOFILTRATION",
	"RAIN_GARDEN",
	"VEGETATIVE_FILTER_STRIP",
	"WET_POND",
	"FILTRATION_ONLY",
	"MSE with limestone boulder toe and vegetated geogrids",
}

const bioControlsSQL = `
SELECT * FROM (
    SELECT sw.OBJECTID,
           'stormwater_control'     AS category,
           sw.the_geom              AS geometry,
           sw.DATE_BUILT            AS date,
           sw.CONTROL_TYPE          AS type,
           sw.PROJECT_NAME          AS name,
           sw.CONTROL_AREA_ACRES    AS acres,
           sw.CONTROL_VOLUME        AS volume,
           sw.CONTROL_DEPTH         AS depth,
           sw.DRAINAGE_AREA_ACRES   AS drainage_acres,
           sw.RUNOFF_CAPTURE_DEPTH  AS runoff_depth,
           sw.SHAPE_Area            AS geom_area,
           sw.SHAPE_Length          AS geom_length,
           sw.WATER_QUALITY_CONTROL AS is_water_quality_control
    FROM StormWaterControls_COA AS sw
    WHERE sw.STATUS = ?
    UNION ALL
    SELECT gz.OBJECTID,
           'grow_zone',
           gz.the_geom,
           gz.YEAR_START || '-01-01T00:00:00',
           gz.MAINTENANCE,
           gz.LOCATION,
           gz.ACREAGE,
           NULL, NULL, NULL, NULL,
           gz.SHAPE_Area,
           gz.SHAPE_Length,
           'T'
    FROM GrowZones_COA AS gz
    WHERE gz.STATUS = ?
    UNION ALL
    SELECT er.fid,
           'erosion_project',
           er.the_geom,
           coalesce(nullif(er.CONSTRUCTI, ''), er.CONSTRUC_1),
           er.SOLUTION,
           er.PROJECT_NA,
           NULL, NULL, NULL, NULL, NULL,
           er.SHAPE_Area,
           er.SHAPE_LEN,
           'T'
    FROM ErosionProjects_COA AS er
    WHERE er.PROJECT_PH = ?
)
WHERE type IN (%s)
ORDER BY date DESC`

// BioControls reads active stormwater controls, grow zones and completed
// erosion projects of a vegetative type that intersect the watershed.
type BioControls struct {
	deps     Deps
	boundary spatial.Boundary
	types    []string
}

// NewBioControls creates the vegetative control source clipped to boundary.
func NewBioControls(deps Deps, boundary spatial.Boundary) *BioControls {
	return &BioControls{deps: deps, boundary: boundary, types: VegetationTypes}
}

func (b *BioControls) Name() string { return LayerBioControls }

func (b *BioControls) query() domain.Query {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(b.types)), ", ")
	args := []any{"ACTIVE", "ACTIVE", "PROJECT COMPLETE"}
	for _, t := range b.types {
		args = append(args, t)
	}
	return domain.Query{SQL: strings.Replace(bioControlsSQL, "%s", marks, 1), Args: args}
}

func (b *BioControls) Acquire(ctx context.Context) (domain.RawTable, error) {
	return b.deps.Staging.Query(ctx, b.query())
}

func (b *BioControls) Normalize(_ context.Context, raw domain.RawTable) (*domain.Table, error) {
	logger := b.deps.logger(LayerBioControls)
	t := domain.NewSpatialTable(domain.UTM14N,
		domain.Column{Name: "ckey", Kind: domain.KindText},
		domain.Column{Name: "objectid", Kind: domain.KindInteger},
		domain.Column{Name: "category", Kind: domain.KindText},
		domain.Column{Name: "date", Kind: domain.KindTimestamp},
		domain.Column{Name: "type", Kind: domain.KindText},
		domain.Column{Name: "name", Kind: domain.KindText},
		domain.Column{Name: "acres", Kind: domain.KindReal},
		domain.Column{Name: "volume", Kind: domain.KindReal},
		domain.Column{Name: "depth", Kind: domain.KindReal},
		domain.Column{Name: "drainage_acres", Kind: domain.KindReal},
		domain.Column{Name: "runoff_depth", Kind: domain.KindReal},
		domain.Column{Name: "geom_area", Kind: domain.KindReal},
		domain.Column{Name: "geom_length", Kind: domain.KindReal},
		domain.Column{Name: "is_water_quality_control", Kind: domain.KindBool},
	)
	for _, row := range raw.Rows {
		g, err := spatial.DecodeGeometry(row["geometry"])
		if err != nil || g == nil {
			logger.Warn("skipping control with unreadable geometry", "objectid", row.String("OBJECTID"), "error", err)
			continue
		}
		g, err = b.deps.Reprojector.Reproject(g, domain.WGS84, domain.UTM14N)
		if err != nil {
			return nil, err
		}
		if !b.boundary.IntersectsGeometry(g, 0) {
			continue
		}
		var date any
		if ts, ok := row.Time("date"); ok {
			date = ts
		}
		t.Append(g,
			ckey(row.String("date"), row.String("OBJECTID")),
			nullableInt(row, "OBJECTID"),
			row.String("category"),
			date,
			row.String("type"),
			domain.NullableText(row.String("name")),
			nullableFloat(row, "acres"),
			nullableFloat(row, "volume"),
			nullableFloat(row, "depth"),
			nullableFloat(row, "drainage_acres"),
			nullableFloat(row, "runoff_depth"),
			nullableFloat(row, "geom_area"),
			nullableFloat(row, "geom_length"),
			parseBool(row.String("is_water_quality_control")),
		)
	}
	logger.Info("bio controls clipped to watershed", "read", raw.Len(), "kept", t.Len())
	return t, nil
}
