package aggregate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ramseyboy/shoal-creek-wq-bio-mitigation/internal/domain"
)

// Options configures one aggregation run.
type Options struct {
	// WidthDays is the bucket width for fixed-width mode.
	WidthDays int
	// Daily switches to observed-day buckets; WidthDays is ignored.
	Daily bool
	// From and To pin the interval grid. When zero the grid spans every
	// observation passed to Run, so all series share one axis.
	From, To time.Time
}

// Runner aggregates many (location, parameter) units over a bounded pool
// of goroutines. Output order follows the key order, never scheduling.
type Runner struct {
	workers int
	logger  *slog.Logger
}

// NewRunner creates a runner with at most workers concurrent units.
func NewRunner(workers int, logger *slog.Logger) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{workers: workers, logger: logger}
}

// Keys is the cross product of locations and the taxonomy's parameters.
func Keys(locations []string, t *domain.Taxonomy) []SeriesKey {
	params := t.Parameters()
	keys := make([]SeriesKey, 0, len(locations)*len(params))
	for _, loc := range locations {
		for _, p := range params {
			unit, _ := t.Unit(p)
			keys = append(keys, SeriesKey{LocationID: loc, Parameter: p, Unit: unit})
		}
	}
	return keys
}

// Run aggregates every key. An empty observation set yields no intervals
// and therefore no buckets unless From/To pin the grid.
func (r *Runner) Run(ctx context.Context, obs []domain.Observation, keys []SeriesKey, opts Options) ([]domain.AggregatedBucket, error) {
	var intervals []domain.Interval
	if !opts.Daily {
		from, to, ok := opts.From, opts.To, !opts.From.IsZero() && !opts.To.IsZero()
		if !ok {
			from, to, ok = Span(obs)
		}
		if opts.WidthDays <= 0 {
			return nil, fmt.Errorf("aggregate width %d: %w", opts.WidthDays, domain.ErrInvalidIntervalWidth)
		}
		if ok {
			var err error
			intervals, err = GenerateIntervals(from, to, opts.WidthDays)
			if err != nil {
				return nil, err
			}
		}
	}

	partitions := make(map[SeriesKey][]domain.Observation)
	for _, o := range obs {
		k := SeriesKey{LocationID: o.LocationID, Parameter: o.Parameter}
		partitions[k] = append(partitions[k], o)
	}

	results := make([][]domain.AggregatedBucket, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			part := partitions[SeriesKey{LocationID: key.LocationID, Parameter: key.Parameter}]
			if opts.Daily {
				results[i] = AggregateDaily(part, key)
			} else {
				results[i] = Aggregate(part, intervals, key)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}

	var out []domain.AggregatedBucket
	empty := 0
	for _, rs := range results {
		for _, b := range rs {
			if b.Empty() {
				empty++
			}
		}
		out = append(out, rs...)
	}
	r.logger.Info("aggregation complete",
		"units", len(keys),
		"intervals", len(intervals),
		"daily", opts.Daily,
		"buckets", len(out),
		"empty_buckets", empty,
	)
	return out, nil
}
