package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/adapter/postgres"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/aggregate"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/align"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/config"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/export"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/observability"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/pipeline"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/spatial"
)

// Output layers.
const (
	layerIntervals      = "water_quality_intervals"
	layerDailyIntervals = "water_quality_daily_intervals"
	layerAligned        = "water_quality_aligned"
	layerComparison     = "water_quality_construction_summary"
	layerPrecipitation  = "water_quality_daily_precipitation"
)

type options struct {
	targets     []string
	align       []string
	locations   []string
	alignDaily  bool
	compare     bool
	byLocation  bool
	precipDays  int
	excludeSite []string
}

func main() {
	targetsFlag := flag.String("targets", "", "comma-separated export targets, overriding EXPORT_TARGETS")
	alignFlag := flag.String("align", "", "comma-separated parameters to align into one wide layer")
	locationsFlag := flag.String("locations", "", "comma-separated locations to align (default: every location, keyed by location)")
	dailyFlag := flag.Bool("daily", false, "align daily buckets instead of fixed-width intervals")
	compareFlag := flag.Bool("compare", false, "export a before/after construction summary")
	byLocationFlag := flag.Bool("by-location", false, "summarize each location separately with -compare")
	precipFlag := flag.Int("precip-window", 0, "attach precipitation within N days of each daily bucket (0 disables)")
	excludeFlag := flag.String("exclude", "", "comma-separated locations to leave out")
	flag.Parse()

	_ = godotenv.Load() // ignore missing file

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	opts := options{
		targets:     cfg.ExportTargets,
		align:       splitList(*alignFlag),
		locations:   splitList(*locationsFlag),
		alignDaily:  *dailyFlag,
		compare:     *compareFlag,
		byLocation:  *byLocationFlag,
		precipDays:  *precipFlag,
		excludeSite: splitList(*excludeFlag),
	}
	if *targetsFlag != "" {
		if opts.targets, err = config.ParseTargets(*targetsFlag); err != nil {
			slog.Error("invalid -targets", "error", err)
			os.Exit(1)
		}
	}

	logger := observability.NewLogger(cfg, uuid.NewString())
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)

	err = run(ctx, cfg, opts, logger, metrics)
	cancel()
	stop()
	if err != nil {
		logger.Error("interval run failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts options, logger *slog.Logger, metrics *observability.Metrics) error {
	pool, err := postgres.Connect(ctx, cfg.ReadOnlyURL())
	if err != nil {
		return err
	}
	store := postgres.NewStore(pool, postgres.DefaultSchema)
	defer store.Close()

	taxonomy := domain.DefaultTaxonomy()
	obs, err := store.Observations(ctx, domain.ObservationQuery{RawNames: taxonomy.RawNames()})
	if err != nil {
		return err
	}
	kept, dropped := domain.Resolve(obs, taxonomy)
	metrics.RecordDrops(dropped)
	logger.Info("observations resolved", "read", len(obs), "kept", len(kept), "dropped", dropped)

	raw, err := store.Query(ctx, domain.Query{SQL: hydrographySQL})
	if err != nil {
		return fmt.Errorf("read hydrography: %w", err)
	}
	hydro, err := hydrographyTable(raw)
	if err != nil {
		return err
	}
	boundary, err := spatial.UnionBoundary(hydro)
	if err != nil {
		return fmt.Errorf("hydrography boundary: %w", err)
	}
	locations, err := spatial.Locations(kept, boundary, cfg.BufferDistance, opts.excludeSite...)
	if err != nil {
		return err
	}
	logger.Info("locations selected", "count", len(locations), "buffer", cfg.BufferDistance)

	sinks, err := export.Open(ctx, cfg, opts.targets, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.Error("export target close error", "error", err)
		}
	}()

	p := pipeline.New(logger, metrics)
	runner := aggregate.NewRunner(cfg.AggregateWorkers, logger)
	keys := aggregate.Keys(locations, taxonomy)
	selected := onlyLocations(kept, locations)

	intervals, err := runner.Run(ctx, selected, keys, aggregate.Options{WidthDays: cfg.IntervalWidthDays})
	if err != nil {
		return err
	}
	daily, err := runner.Run(ctx, selected, keys, aggregate.Options{Daily: true})
	if err != nil {
		return err
	}
	recordBuckets(metrics, "interval", intervals)
	recordBuckets(metrics, "daily", daily)

	var errs []error
	write := func(layer string, t *domain.Table) {
		if err := p.Export(ctx, layer, t, sinks.Sinks()...); err != nil {
			errs = append(errs, err)
		}
	}
	write(layerIntervals, aggregate.BucketsTable(intervals))
	write(layerDailyIntervals, aggregate.BucketsTable(daily))

	if len(opts.align) > 0 {
		source := intervals
		if opts.alignDaily {
			source = daily
		}
		inputs, mode := alignInputs(source, opts.align, opts.locations)
		series, err := align.Align(inputs, mode)
		if err != nil {
			return fmt.Errorf("align %v: %w", opts.align, err)
		}
		write(layerAligned, series.Table())
	}

	if opts.compare {
		write(layerComparison, aggregate.SummaryTable(constructionSummary(daily, cfg, opts)))
	}

	if opts.precipDays > 0 {
		raw, err := store.Query(ctx, domain.Query{SQL: precipitationSQL, Args: []any{precipitationParameter}})
		if err != nil {
			return fmt.Errorf("read precipitation: %w", err)
		}
		precip := precipitationObservations(raw)
		write(layerPrecipitation, aggregate.PrecipitationTable(aggregate.WithPrecipitation(daily, precip, opts.precipDays)))
	}

	return errors.Join(errs...)
}

func recordBuckets(m *observability.Metrics, mode string, buckets []domain.AggregatedBucket) {
	empty := 0
	for _, b := range buckets {
		if b.Empty() {
			empty++
		}
	}
	m.BucketsGenerated.WithLabelValues(mode).Set(float64(len(buckets)))
	m.BucketsEmpty.WithLabelValues(mode).Set(float64(empty))
}
