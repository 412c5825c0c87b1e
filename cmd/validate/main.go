// Command validate checks the integrity of an exported GeoPackage: every
// registered layer exists, water-quality values follow the null policy,
// interval buckets are internally consistent and aligned series carry the
// expected column contract.
//
// Usage:
//
//	go run ./cmd/validate -gpkg data/shoal-creek-wq-bio-mitigation.gpkg
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/adapter/geopackage"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/source"
)

const (
	layerIntervals      = "water_quality_intervals"
	layerDailyIntervals = "water_quality_daily_intervals"
	layerAligned        = "water_quality_aligned"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	_ = godotenv.Load() // ignore missing file

	path := flag.String("gpkg", sharedcfg.EnvOrDefault("GEOPACKAGE_PATH", "data/shoal-creek-wq-bio-mitigation.gpkg"), "exported GeoPackage to check")
	requireFlag := flag.String("require", source.LayerWatershed, "comma-separated layers that must be present")
	flag.Parse()

	os.Exit(run(context.Background(), *path, strings.Split(*requireFlag, ",")))
}

func run(ctx context.Context, path string, required []string) int {
	db, err := geopackage.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: open %s: %v\n", path, err)
		return 1
	}
	store := geopackage.NewStore(db)
	defer store.Close()

	fmt.Println("=== Watershed Export Validation ===")
	fmt.Println()

	phases, err := validate(ctx, store, required)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println("\nAll checks passed.")
	return 0
}

// validate runs every phase against the layers registered in the container.
func validate(ctx context.Context, store *geopackage.Store, required []string) ([]*phase, error) {
	contents, err := store.Query(ctx, domain.Query{SQL: `
SELECT c.table_name, c.data_type, g.srs_id
FROM gpkg_contents c
LEFT JOIN gpkg_geometry_columns g ON g.table_name = c.table_name
ORDER BY c.table_name`})
	if err != nil {
		return nil, fmt.Errorf("read gpkg_contents: %w", err)
	}

	layers := make(map[string]domain.RawTable)
	registry := &phase{name: "Layer registry"}
	for _, row := range contents.Rows {
		name := row.String("table_name")
		if row.String("data_type") == "features" {
			srid, ok := row.Float("srs_id")
			if !ok {
				registry.errorf("%s: feature layer without a geometry column", name)
			} else if srid != float64(domain.UTM14N) && srid != float64(domain.WGS84) {
				registry.errorf("%s: unexpected srs_id %v", name, srid)
			}
		}
		t, err := store.Query(ctx, domain.Query{SQL: "SELECT * FROM \"" + strings.ReplaceAll(name, `"`, `""`) + "\""})
		if err != nil {
			registry.errorf("%s: registered but unreadable: %v", name, err)
			continue
		}
		layers[name] = t
	}
	for _, r := range required {
		if r = strings.TrimSpace(r); r != "" {
			if _, ok := layers[r]; !ok {
				registry.errorf("%s: required layer missing", r)
			}
		}
	}

	phases := []*phase{registry}
	if t, ok := layers[source.LayerWaterQuality]; ok {
		phases = append(phases, checkNullPolicy(t))
	}
	if t, ok := layers[layerIntervals]; ok {
		phases = append(phases, checkBuckets("Interval buckets", t, 0))
	}
	if t, ok := layers[layerDailyIntervals]; ok {
		phases = append(phases, checkBuckets("Daily buckets", t, 1))
	}
	if t, ok := layers[layerAligned]; ok {
		phases = append(phases, checkAligned(t))
	}
	return phases, nil
}

// checkNullPolicy verifies that stored values match their raw text and that
// unparsable values were kept as NULL rather than coerced.
func checkNullPolicy(t domain.RawTable) *phase {
	p := &phase{name: "Water quality null policy"}
	for i, row := range t.Rows {
		raw := row.String("raw_value")
		parsed, perr := domain.ParseValue(raw)
		v, has := row.Float("value")
		switch {
		case row["value"] == nil && perr == nil:
			p.errorf("row %d: raw value %q parses but value is NULL", i, raw)
		case row["value"] != nil && perr != nil:
			p.errorf("row %d: raw value %q is unparsable but value is %v", i, raw, row["value"])
		case has && perr == nil && !floatEq(v, *parsed):
			p.errorf("row %d: value %v does not match raw %q", i, v, raw)
		}
		if (row["parameter"] == nil) != (row["unit"] == nil) {
			p.errorf("row %d: parameter and unit must resolve together", i)
		}
	}
	return p
}

// checkBuckets verifies statistic ordering, the empty-bucket rule and a
// constant width per series. widthDays of zero only requires the width to be
// constant within each (location, parameter) series.
func checkBuckets(name string, t domain.RawTable, widthDays int) *phase {
	p := &phase{name: name}
	widths := make(map[string]time.Duration)
	for i, row := range t.Rows {
		start, ok1 := row.Time("start_date")
		end, ok2 := row.Time("end_date")
		if !ok1 || !ok2 || !end.After(start) {
			p.errorf("row %d: invalid interval %q..%q", i, row.String("start_date"), row.String("end_date"))
			continue
		}
		width := end.Sub(start)
		if widthDays > 0 && width != time.Duration(widthDays)*24*time.Hour {
			p.errorf("row %d: width %s, want %d days", i, width, widthDays)
		}
		series := row.String("sample_location") + "|" + row.String("parameter")
		if w, seen := widths[series]; seen && w != width {
			p.errorf("row %d: width %s differs from %s in series %s", i, width, w, series)
		}
		widths[series] = width

		count, _ := row.Float("observation_count")
		stats := []string{"avg_value", "median_value", "max_value", "min_value"}
		if count == 0 {
			for _, s := range stats {
				if row[s] != nil {
					p.errorf("row %d: empty bucket has %s = %v", i, s, row[s])
				}
			}
			continue
		}
		avg, _ := row.Float("avg_value")
		med, _ := row.Float("median_value")
		hi, okMax := row.Float("max_value")
		lo, okMin := row.Float("min_value")
		if !okMax || !okMin {
			p.errorf("row %d: %v observations but no extrema", i, count)
			continue
		}
		if lo > med || med > hi || lo > avg || avg > hi {
			p.errorf("row %d: statistics out of order (min %v avg %v median %v max %v)", i, lo, avg, med, hi)
		}
	}
	return p
}

var alignedColumn = regexp.MustCompile(`^(avg|median|max|min)_value_.+$`)

// checkAligned verifies the wide-table column contract and key order.
func checkAligned(t domain.RawTable) *phase {
	p := &phase{name: "Aligned series"}
	keyCols := []string{"fid", "location_id", "start_date", "exported_at"}
	for _, c := range t.Columns {
		if slices.Contains(keyCols, c) {
			continue
		}
		if !alignedColumn.MatchString(c) {
			p.errorf("column %q does not follow {stat}_value_{parameter}", c)
		}
	}
	var prev string
	for i, row := range t.Rows {
		start, ok := row.Time("start_date")
		if !ok {
			p.errorf("row %d: missing start_date", i)
			continue
		}
		key := row.String("location_id") + "|" + start.Format(time.DateOnly)
		if i > 0 && key < prev {
			p.errorf("row %d: key %s sorts before %s", i, key, prev)
		}
		prev = key
	}
	return p
}

func floatEq(a, b float64) bool {
	d := a - b
	return d < 1e-9 && d > -1e-9
}
