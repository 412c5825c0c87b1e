package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	httpadapter "github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/adapter/http"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/adapter/geopackage"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/adapter/postgres"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/config"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/export"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/observability"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/pipeline"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/source"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/spatial"
)

// warehouseLayers read the relational staging schema.
var warehouseLayers = []string{source.LayerDischargeDaily, source.LayerClimateHourly, source.LayerClimateDaily}

func main() {
	targetsFlag := flag.String("targets", "", "comma-separated export targets, overriding EXPORT_TARGETS")
	sourcesFlag := flag.String("sources", "", "comma-separated layers to export after the watershed (default: all)")
	flag.Parse()

	_ = godotenv.Load() // ignore missing file

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	targets := cfg.ExportTargets
	if *targetsFlag != "" {
		if targets, err = config.ParseTargets(*targetsFlag); err != nil {
			slog.Error("invalid -targets", "error", err)
			os.Exit(1)
		}
	}

	logger := observability.NewLogger(cfg, uuid.NewString())
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)

	code := run(ctx, cfg, targets, selectedLayers(*sourcesFlag), logger, metrics)
	cancel()
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, targets, layers []string, logger *slog.Logger, metrics *observability.Metrics) int {
	stagingDB, err := geopackage.Open(cfg.StagingGPKGPath)
	if err != nil {
		logger.Error("failed to open staging geopackage", "error", err)
		return 1
	}
	defer stagingDB.Close()

	deps := source.Deps{
		Staging:     geopackage.NewStore(stagingDB),
		Reprojector: spatial.NewReprojector(cfg.ProjectionCacheSize),
		Logger:      logger,
		Metrics:     metrics,
	}
	if slices.ContainsFunc(layers, func(l string) bool { return slices.Contains(warehouseLayers, l) }) {
		pool, err := postgres.Connect(ctx, cfg.ReadWriteURL())
		if err != nil {
			logger.Error("failed to connect to staging database", "error", err)
			return 1
		}
		store := postgres.NewStore(pool, postgres.DefaultSchema)
		defer store.Close()
		deps.Warehouse = store
	}

	sinks, err := export.Open(ctx, cfg, targets, logger)
	if err != nil {
		logger.Error("failed to open export targets", "error", err)
		return 1
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Error("export target close error", "error", err)
		}
	}()

	p := pipeline.New(logger, metrics)
	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	logger.Info("batch started", "watershed", cfg.WatershedName, "targets", targets, "layers", layers, "started_at", domain.Now())

	watershed, err := p.Run(ctx, source.NewWatershed(deps, cfg.WatershedName), sinks.Sinks()...)
	if watershed == nil {
		logger.Error("watershed layer unavailable", "error", err)
		return 1
	}
	boundary, berr := spatial.FirstBoundary(watershed)
	if berr != nil {
		logger.Error("watershed boundary unusable", "error", berr)
		return 1
	}

	all := map[string]pipeline.Source{
		source.LayerHydrography:    source.NewHydrography(deps, boundary),
		source.LayerWaterQuality:   source.NewWaterQuality(deps, boundary, domain.DefaultTaxonomy()),
		source.LayerDischarge:      source.NewDischarge(deps),
		source.LayerDischargeDaily: source.NewDischargeDaily(deps),
		source.LayerClimateHourly:  source.NewClimateHourly(deps),
		source.LayerClimateDaily:   source.NewClimateDaily(deps),
		source.LayerBioControls:    source.NewBioControls(deps, boundary),
	}
	var sources []pipeline.Source
	for _, l := range layers {
		sources = append(sources, all[l])
	}

	tables, batchErr := p.RunBatch(ctx, sources, sinks.Sinks()...)
	if err := errors.Join(err, batchErr); err != nil {
		logger.Error("batch finished with errors", "exported", len(tables)+1, "error", err)
		return 1
	}
	logger.Info("batch complete", "layers", p.Status().Layers)
	return 0
}

// defaultLayers is the export order after the watershed.
var defaultLayers = []string{
	source.LayerHydrography,
	source.LayerWaterQuality,
	source.LayerDischarge,
	source.LayerDischargeDaily,
	source.LayerClimateHourly,
	source.LayerClimateDaily,
	source.LayerBioControls,
}

// selectedLayers keeps the requested layers in export order. Unknown names
// are ignored with a warning.
func selectedLayers(flagValue string) []string {
	if strings.TrimSpace(flagValue) == "" {
		return defaultLayers
	}
	var requested []string
	for _, part := range strings.Split(flagValue, ",") {
		name := strings.TrimSpace(part)
		if name == "" || name == source.LayerWatershed {
			continue
		}
		if !slices.Contains(defaultLayers, name) {
			slog.Warn("ignoring unknown layer", "layer", name)
			continue
		}
		requested = append(requested, name)
	}
	var out []string
	for _, l := range defaultLayers {
		if slices.Contains(requested, l) {
			out = append(out, l)
		}
	}
	return out
}
