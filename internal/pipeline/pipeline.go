package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/observability"
)

// RowSource runs parameterized queries against an external store.
type RowSource interface {
	Query(ctx context.Context, q domain.Query) (domain.RawTable, error)
}

// ObservationSource reads previously exported observations back for
// aggregation.
type ObservationSource interface {
	Observations(ctx context.Context, q domain.ObservationQuery) ([]domain.Observation, error)
}

// Acquirer reads the raw rows of one source.
type Acquirer interface {
	Acquire(ctx context.Context) (domain.RawTable, error)
}

// Normalizer converts raw rows into the exported layer.
type Normalizer interface {
	Normalize(ctx context.Context, raw domain.RawTable) (*domain.Table, error)
}

// Source is one named layer with its acquire and normalize stages.
type Source interface {
	Name() string
	Acquirer
	Normalizer
}

// Sink persists a layer. Writes replace the layer unless the sink was built
// in append mode.
type Sink interface {
	Name() string
	Write(ctx context.Context, layer string, t *domain.Table) error
}

// ExportedAtColumn is stamped on every exported row.
const ExportedAtColumn = "exported_at"

// Pipeline orchestrates acquire, normalize and export for each source.
type Pipeline struct {
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu       sync.Mutex
	exported map[string]int
}

// Status summarizes the layers exported so far in this process.
type Status struct {
	Ready  bool           `json:"ready"`
	Layers map[string]int `json:"layers"`
}

// New creates a Pipeline with the given observability.
func New(logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{logger: logger, metrics: metrics, exported: make(map[string]int)}
}

// Status reports the exported layers with their row counts.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Status{Ready: p.ready.Load(), Layers: maps.Clone(p.exported)}
}

// CheckReadiness returns nil once at least one layer has been exported.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("pipeline has not exported any layer yet")
	}
	return nil
}

// Ready reports whether a layer has been exported.
func (p *Pipeline) Ready() bool { return p.ready.Load() }

// Run executes one source and exports its layer to every sink. The
// normalized table is returned so later sources can reuse it.
func (p *Pipeline) Run(ctx context.Context, src Source, sinks ...Sink) (*domain.Table, error) {
	name := src.Name()
	start := time.Now()
	logger := p.logger.With("source", name)
	logger.Info("source started")

	raw, err := src.Acquire(ctx)
	if err != nil {
		p.metrics.SourceFailures.WithLabelValues(name, "acquire").Inc()
		return nil, fmt.Errorf("acquire %s: %w", name, err)
	}
	p.metrics.RowsAcquired.WithLabelValues(name).Add(float64(raw.Len()))

	table, err := src.Normalize(ctx, raw)
	if err != nil {
		p.metrics.SourceFailures.WithLabelValues(name, "normalize").Inc()
		return nil, fmt.Errorf("normalize %s: %w", name, err)
	}

	err = p.Export(ctx, name, table, sinks...)
	p.metrics.RunDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.SourceFailures.WithLabelValues(name, "sink").Inc()
		return table, err
	}

	logger.Info("source complete",
		"rows_acquired", raw.Len(),
		"rows_exported", table.Len(),
		"duration", time.Since(start),
	)
	return table, nil
}

// Export validates a table, stamps the export time and writes it to every
// sink. A failing sink does not stop the remaining sinks.
func (p *Pipeline) Export(ctx context.Context, layer string, t *domain.Table, sinks ...Sink) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("export %s: %w", layer, err)
	}
	stamped := stampExportedAt(t, domain.Now())

	var errs []error
	for _, s := range sinks {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.Write(ctx, layer, stamped); err != nil {
			p.logger.Error("sink write failed", "layer", layer, "sink", s.Name(), "error", err)
			errs = append(errs, fmt.Errorf("write %s to %s: %w", layer, s.Name(), err))
			continue
		}
		p.metrics.RowsExported.WithLabelValues(layer, s.Name()).Add(float64(stamped.Len()))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	p.mu.Lock()
	p.exported[layer] = stamped.Len()
	p.mu.Unlock()
	p.ready.Store(true)
	return nil
}

// RunBatch runs sources sequentially. A failing source is logged and
// skipped; the errors of every failed source are joined. Tables of the
// sources that normalized successfully are returned by name.
func (p *Pipeline) RunBatch(ctx context.Context, sources []Source, sinks ...Sink) (map[string]*domain.Table, error) {
	p.metrics.BatchRunning.Set(1)
	defer p.metrics.BatchRunning.Set(0)

	tables := make(map[string]*domain.Table, len(sources))
	var errs []error
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("batch stopped before %s: %w", src.Name(), err))
			break
		}
		t, err := p.Run(ctx, src, sinks...)
		if t != nil {
			tables[src.Name()] = t
		}
		if err != nil {
			p.logger.Error("source failed", "source", src.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	return tables, errors.Join(errs...)
}

func stampExportedAt(t *domain.Table, at time.Time) *domain.Table {
	if t.Index(ExportedAtColumn) >= 0 {
		return t
	}
	out := &domain.Table{
		Columns:    append(append([]domain.Column(nil), t.Columns...), domain.Column{Name: ExportedAtColumn, Kind: domain.KindTimestamp}),
		Rows:       make([][]any, len(t.Rows)),
		Geometries: t.Geometries,
		CRS:        t.CRS,
	}
	for i, r := range t.Rows {
		row := make([]any, 0, len(r)+1)
		row = append(row, r...)
		out.Rows[i] = append(row, at)
	}
	return out
}
